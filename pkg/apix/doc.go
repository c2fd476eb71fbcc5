// Package apix is the core HTTP client for the Gatherly backend.
//
// It layers three concerns on top of net/http:
//
//   - a request pipeline that builds versioned URLs, merges headers and
//     injects the bearer token for a single attempt,
//   - a retry controller applying bounded retry with exponential backoff
//     to retryable failure classes (transport errors, timeouts, 5xx, 429),
//   - a single-flight token refresh triggered by the first 401 a request
//     observes, shared by every request that hits a 401 during the same
//     refresh window.
//
// Credentials live behind the tokenstore.Store interface; the client holds
// a swappable reference to the active store and never duplicates token
// values into its own state.
package apix
