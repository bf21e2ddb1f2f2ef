// README: Redis GEO index over open-ride origins.
package match

import (
	"context"

	"github.com/redis/go-redis/v9"

	"waypool/internal/types"
)

const geoKey = "waypool:ride_origins"

// RedisGeoIndex implements both the ride-side registration port and the
// engine-side prefilter on one sorted set.
type RedisGeoIndex struct {
	rdb *redis.Client
}

func NewRedisGeoIndex(rdb *redis.Client) *RedisGeoIndex {
	return &RedisGeoIndex{rdb: rdb}
}

func (g *RedisGeoIndex) Add(ctx context.Context, rideID types.ID, origin types.Point) error {
	return g.rdb.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(rideID),
		Longitude: origin.Lng,
		Latitude:  origin.Lat,
	}).Err()
}

func (g *RedisGeoIndex) Remove(ctx context.Context, rideID types.ID) error {
	return g.rdb.ZRem(ctx, geoKey, string(rideID)).Err()
}

func (g *RedisGeoIndex) NearbyRideIDs(ctx context.Context, origin types.Point, radiusKm float64) ([]types.ID, error) {
	names, err := g.rdb.GeoSearch(ctx, geoKey, &redis.GeoSearchQuery{
		Longitude:  origin.Lng,
		Latitude:   origin.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(names))
	for i, n := range names {
		ids[i] = types.ID(n)
	}
	return ids, nil
}
