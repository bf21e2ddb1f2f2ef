// README: Match buckets, scoring, and candidate shapes.
package match

import "waypool/internal/modules/ride"

type Bucket string

const (
	BucketPerfect Bucket = "perfect"
	BucketGood    Bucket = "good"
	BucketNearby  Bucket = "nearby"
)

// Bucket thresholds, checked tightest first; a candidate lands in the
// first tier it satisfies.
type limits struct {
	pickupKm float64
	dropKm   float64
	timeMin  float64
}

var bucketLimits = []struct {
	bucket Bucket
	lim    limits
}{
	{BucketPerfect, limits{5, 5, 60}},
	{BucketGood, limits{8, 8, 90}},
	{BucketNearby, limits{15, 15, 120}},
}

// maxTimeDiffMin is the hard cutoff when the rider states a preferred
// time; candidates further out are not ranked at all.
const maxTimeDiffMin = 120

// classify assigns the first bucket whose limits hold. A nil timeDiff
// means no preference and satisfies every time bound.
func classify(pickupKm, dropKm float64, timeDiff *float64) (Bucket, bool) {
	for _, b := range bucketLimits {
		if pickupKm > b.lim.pickupKm || dropKm > b.lim.dropKm {
			continue
		}
		if timeDiff != nil && *timeDiff > b.lim.timeMin {
			continue
		}
		return b.bucket, true
	}
	return "", false
}

// normalize maps a distance or time delta into [0,1], closer is higher.
func normalize(v, max float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > max {
		v = max
	}
	return 1 - v/max
}

// score ranks candidates inside a bucket. Without a time preference the
// time component contributes a neutral 0.5.
func score(pickupKm, dropKm float64, timeDiff *float64) float64 {
	timeScore := 0.5
	if timeDiff != nil {
		timeScore = normalize(*timeDiff, 180)
	}
	routeSimilarity := (normalize(pickupKm, 25) + normalize(dropKm, 25)) / 2
	return 0.35*normalize(pickupKm, 20) +
		0.35*normalize(dropKm, 20) +
		0.2*timeScore +
		0.1*routeSimilarity
}

// Candidate is one ranked ride with the measurements that placed it.
type Candidate struct {
	Ride        *ride.Ride `json:"ride"`
	Bucket      Bucket     `json:"bucket"`
	Score       float64    `json:"score"`
	PickupKm    float64    `json:"pickupKm"`
	DropKm      float64    `json:"dropKm"`
	TimeDiffMin *float64   `json:"timeDiffMin,omitempty"`
}

// Result carries the three ranked tiers.
type Result struct {
	Perfect []Candidate `json:"perfect"`
	Good    []Candidate `json:"good"`
	Nearby  []Candidate `json:"nearby"`
}

func (r *Result) Counts() (perfect, good, nearby int) {
	return len(r.Perfect), len(r.Good), len(r.Nearby)
}
