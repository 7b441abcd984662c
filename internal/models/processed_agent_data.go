package models

import "time"

// ProcessedAgentData is a sample together with its road-state classification.
// Values are replaced, never mutated in place.
type ProcessedAgentData struct {
	RoadState RoadState `json:"road_state"`
	AgentData AgentData `json:"agent_data"`
}

// Validate rejects unclassified states and malformed samples.
func (p ProcessedAgentData) Validate() error {
	if _, err := ParseRoadState(string(p.RoadState)); err != nil {
		return err
	}
	return p.AgentData.Validate()
}

// Flatten maps the nested sample onto the stored column layout. The ID is left
// zero for the store to assign.
func (p ProcessedAgentData) Flatten() PersistedRecord {
	return PersistedRecord{
		RoadState: p.RoadState,
		UserID:    p.AgentData.UserID,
		X:         float64(p.AgentData.Accelerometer.X),
		Y:         float64(p.AgentData.Accelerometer.Y),
		Z:         float64(p.AgentData.Accelerometer.Z),
		Latitude:  p.AgentData.Gps.Latitude,
		Longitude: p.AgentData.Gps.Longitude,
		Timestamp: p.AgentData.Timestamp,
	}
}

// PersistedRecord is a stored processed_agent_data row.
type PersistedRecord struct {
	ID        int64     `bson:"_id" json:"id"`
	RoadState RoadState `bson:"road_state" json:"road_state"`
	UserID    int64     `bson:"user_id" json:"user_id"`
	X         float64   `bson:"x" json:"x"`
	Y         float64   `bson:"y" json:"y"`
	Z         float64   `bson:"z" json:"z"`
	Latitude  float64   `bson:"latitude" json:"latitude"`
	Longitude float64   `bson:"longitude" json:"longitude"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}
