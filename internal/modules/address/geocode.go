// README: Street-to-coordinate geocoding via the Google Maps API.
package address

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"kilap/internal/types"
)

// Geocoder turns a street address into coordinates. The maps-backed client
// is the production implementation; tests substitute a fixed-point stub.
type Geocoder interface {
	Geocode(ctx context.Context, street string) (types.Point, error)
}

type MapsGeocoder struct {
	client *maps.Client
}

func NewMapsGeocoder(apiKey string) (*MapsGeocoder, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}
	return &MapsGeocoder{client: c}, nil
}

func (g *MapsGeocoder) Geocode(ctx context.Context, street string) (types.Point, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: street})
	if err != nil {
		return types.Point{}, fmt.Errorf("geocoding %q: %w", street, err)
	}
	if len(results) == 0 {
		return types.Point{}, fmt.Errorf("no geocoding result for %q", street)
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
