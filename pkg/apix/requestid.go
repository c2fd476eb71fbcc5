package apix

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ridOnce    sync.Once
	ridMu      sync.Mutex
	ridEntropy *ulid.MonotonicEntropy
)

// newRequestID returns a lexicographically sortable ULID used as the
// X-Request-Id header. A monotonic entropy source keeps IDs ordered even
// when requests are issued within the same millisecond.
func newRequestID() string {
	ridOnce.Do(func() {
		ridEntropy = ulid.Monotonic(rand.Reader, 0)
	})

	ridMu.Lock()
	defer ridMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), ridEntropy).String()
}
