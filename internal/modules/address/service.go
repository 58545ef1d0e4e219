// README: Address resolution; implements the order module's Locator.
package address

import (
	"context"

	"kilap/internal/modules/order"
	"kilap/internal/types"
)

type Service struct {
	geocoder Geocoder
	fence    *Geofence
}

func NewService(geocoder Geocoder, fence *Geofence) *Service {
	return &Service{geocoder: geocoder, fence: fence}
}

// Resolve geocodes the street when the client sent no coordinates, then
// rejects points outside the service boundary.
func (s *Service) Resolve(ctx context.Context, street string, p types.Point) (types.Point, error) {
	if p == (types.Point{}) {
		var err error
		p, err = s.geocoder.Geocode(ctx, street)
		if err != nil {
			return types.Point{}, err
		}
	}
	if !s.fence.Contains(p) {
		return types.Point{}, order.ErrOutsideServiceArea
	}
	return p, nil
}
