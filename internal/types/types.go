// README: Shared value types used across modules.
package types

// ID is an opaque identifier for rides, riders, and drivers.
type ID string

// Point is a WGS84 coordinate pair. The zero value means "unset".
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point is the unset sentinel (exactly 0,0).
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}
