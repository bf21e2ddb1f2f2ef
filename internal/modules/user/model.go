// README: Minimal user state: rating aggregate and green-point balance.
package user

import (
	"math"

	"waypool/internal/types"
)

type User struct {
	ID          types.ID
	Name        string
	Rating      float64
	RatingCount int
	GreenPoints int
}

// NewAverage folds one rating into a running average, rounded to 1 decimal.
func NewAverage(oldAvg float64, oldCount int, rating float64) float64 {
	avg := (oldAvg*float64(oldCount) + rating) / float64(oldCount+1)
	return math.Round(avg*10) / 10
}
