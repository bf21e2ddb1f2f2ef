// README: Label-to-coordinate resolution via the Google Geocoding API.
package maps

import (
	"context"
	"errors"

	gmaps "googlemaps.github.io/maps"

	"waypool/internal/types"
)

var ErrNotFound = errors.New("location not found")

type Location struct {
	Point       types.Point
	DisplayName string
}

// Geocoder resolves a free-form place label to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, label string) (Location, error)
}

type GoogleGeocoder struct {
	client *gmaps.Client
}

func NewGoogleGeocoder(apiKey string) (*GoogleGeocoder, error) {
	c, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GoogleGeocoder{client: c}, nil
}

func (g *GoogleGeocoder) Resolve(ctx context.Context, label string) (Location, error) {
	results, err := g.client.Geocode(ctx, &gmaps.GeocodingRequest{Address: label})
	if err != nil {
		return Location{}, err
	}
	if len(results) == 0 {
		return Location{}, ErrNotFound
	}
	hit := results[0]
	return Location{
		Point:       types.Point{Lat: hit.Geometry.Location.Lat, Lng: hit.Geometry.Location.Lng},
		DisplayName: hit.FormattedAddress,
	}, nil
}
