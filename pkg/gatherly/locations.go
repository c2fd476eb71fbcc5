package gatherly

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gatherly/gatherly-go/pkg/apix"
)

// locationMessages translates location endpoint statuses into user-facing text.
var locationMessages = map[int]string{
	http.StatusUnauthorized: "Please log in to browse locations.",
	http.StatusNotFound:     "We couldn't find that location.",
}

// LocationsService wraps the location endpoints.
type LocationsService struct {
	client *apix.Client
}

// NewLocationsService creates a LocationsService bound to client.
func NewLocationsService(client *apix.Client) *LocationsService {
	return &LocationsService{client: client}
}

// List returns known locations, optionally filtered by city.
func (s *LocationsService) List(ctx context.Context, city string) ([]Location, error) {
	var params []apix.Param
	if city != "" {
		params = append(params, apix.Param{Key: "city", Value: city})
	}
	resp, err := s.client.Get(ctx, "/locations", params...)
	if err != nil {
		return nil, translate(err, locationMessages)
	}
	return decodeList[Location](resp, "locations")
}

// Get returns a single location by ID.
func (s *LocationsService) Get(ctx context.Context, id string) (*Location, error) {
	resp, err := s.client.Get(ctx, "/locations/"+id)
	if err != nil {
		return nil, translate(err, locationMessages)
	}

	var envelope itemEnvelope[Location]
	if err := resp.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("gatherly: malformed location response: %w", err)
	}
	return &envelope.Data, nil
}

// Reverse returns the location nearest to the given coordinates.
func (s *LocationsService) Reverse(ctx context.Context, lat, lng float64) (*Location, error) {
	resp, err := s.client.Get(ctx, "/locations/reverse",
		apix.Param{Key: "lat", Value: formatCoord(lat)},
		apix.Param{Key: "lng", Value: formatCoord(lng)},
	)
	if err != nil {
		return nil, translate(err, locationMessages)
	}

	var envelope itemEnvelope[Location]
	if err := resp.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("gatherly: malformed reverse lookup response: %w", err)
	}
	return &envelope.Data, nil
}
