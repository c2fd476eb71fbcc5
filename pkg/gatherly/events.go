package gatherly

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gatherly/gatherly-go/pkg/apix"
)

// eventMessages translates event endpoint statuses into user-facing text.
var eventMessages = map[int]string{
	http.StatusUnauthorized: "Please log in to browse events.",
	http.StatusForbidden:    "You don't have access to this event.",
	http.StatusNotFound:     "That event is no longer available.",
}

// EventsService wraps the event discovery endpoints.
type EventsService struct {
	client *apix.Client
}

// NewEventsService creates an EventsService bound to client.
func NewEventsService(client *apix.Client) *EventsService {
	return &EventsService{client: client}
}

// List returns events matching the filter.
func (s *EventsService) List(ctx context.Context, filter EventFilter) ([]Event, error) {
	resp, err := s.client.Get(ctx, "/events", filter.params()...)
	if err != nil {
		return nil, translate(err, eventMessages)
	}
	return decodeList[Event](resp, "events")
}

// Nearby returns events within radiusKm of the given coordinates.
func (s *EventsService) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]Event, error) {
	resp, err := s.client.Get(ctx, "/events/nearby",
		apix.Param{Key: "lat", Value: formatCoord(lat)},
		apix.Param{Key: "lng", Value: formatCoord(lng)},
		apix.Param{Key: "radius", Value: strconv.FormatFloat(radiusKm, 'f', -1, 64)},
	)
	if err != nil {
		return nil, translate(err, eventMessages)
	}
	return decodeList[Event](resp, "nearby events")
}

// Get returns a single event by ID.
func (s *EventsService) Get(ctx context.Context, id string) (*Event, error) {
	resp, err := s.client.Get(ctx, "/events/"+id)
	if err != nil {
		return nil, translate(err, eventMessages)
	}

	var envelope itemEnvelope[Event]
	if err := resp.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("gatherly: malformed event response: %w", err)
	}
	return &envelope.Data, nil
}

// Search performs a free-text event search.
func (s *EventsService) Search(ctx context.Context, query string, filter EventFilter) ([]Event, error) {
	params := append([]apix.Param{{Key: "q", Value: query}}, filter.params()...)
	resp, err := s.client.Get(ctx, "/events/search", params...)
	if err != nil {
		return nil, translate(err, eventMessages)
	}
	return decodeList[Event](resp, "search results")
}

// params renders the filter as ordered query parameters.
func (f EventFilter) params() []apix.Param {
	var params []apix.Param
	if f.Category != "" {
		params = append(params, apix.Param{Key: "category", Value: f.Category})
	}
	if !f.From.IsZero() {
		params = append(params, apix.Param{Key: "from", Value: f.From.Format(time.RFC3339)})
	}
	if !f.To.IsZero() {
		params = append(params, apix.Param{Key: "to", Value: f.To.Format(time.RFC3339)})
	}
	if f.Query != "" {
		params = append(params, apix.Param{Key: "query", Value: f.Query})
	}
	if f.Page > 0 {
		params = append(params, apix.Param{Key: "page", Value: strconv.Itoa(f.Page)})
	}
	if f.PerPage > 0 {
		params = append(params, apix.Param{Key: "per_page", Value: strconv.Itoa(f.PerPage)})
	}
	return params
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func decodeList[T any](resp *apix.Response, what string) ([]T, error) {
	var envelope listEnvelope[T]
	if err := resp.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("gatherly: malformed %s response: %w", what, err)
	}
	return envelope.Data, nil
}
