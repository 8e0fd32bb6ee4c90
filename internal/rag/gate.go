package rag

import "math"

// Decision records the outcome of the relevance gate for one query.
// Derived per query, never stored.
type Decision struct {
	Admit     bool    `json:"admit"`
	Distance  float64 `json:"distance"`
	Threshold float64 `json:"threshold"`
}

// Admit reports whether a retrieved chunk at the given L2 distance may be
// used for generation. A non-finite distance fails closed: refusing is
// always preferred over generating from an untrustworthy signal.
//
// This comparison is the entire grounding-safety mechanism. It is evaluated
// exactly once per query, on the top-ranked candidate, before any generation
// work happens.
func Admit(distance, threshold float64) bool {
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return false
	}
	return distance <= threshold
}

// Gate applies Admit and returns the full decision record.
func Gate(distance, threshold float64) Decision {
	return Decision{
		Admit:     Admit(distance, threshold),
		Distance:  distance,
		Threshold: threshold,
	}
}
