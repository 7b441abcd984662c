package models

import "fmt"

// RoadState is the classified condition of the road surface.
type RoadState string

const (
	RoadStateUnknown RoadState = "unknown"
	RoadStateFlat    RoadState = "flat"
	RoadStatePit     RoadState = "pit"
	RoadStateHill    RoadState = "hill"
)

// IsClassified reports whether the state is a concrete classification result.
// Unknown is only a placeholder and must never be persisted.
func (s RoadState) IsClassified() bool {
	switch s {
	case RoadStateFlat, RoadStatePit, RoadStateHill:
		return true
	default:
		return false
	}
}

// ParseRoadState converts a stored or submitted label into a RoadState.
func ParseRoadState(s string) (RoadState, error) {
	state := RoadState(s)
	if !state.IsClassified() {
		return RoadStateUnknown, &ValidationError{
			Field:  "road_state",
			Reason: fmt.Sprintf("%q is not one of flat, pit, hill", s),
		}
	}
	return state, nil
}
