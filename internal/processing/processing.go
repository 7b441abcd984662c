// Package processing classifies road-surface condition from agent samples.
package processing

import "github.com/ukydev/road-vision/internal/models"

// Vertical acceleration beyond these bounds is treated as a pit or a hill.
const (
	pitThreshold  = -100
	hillThreshold = 100
)

// Classify maps a sample to a road state. It is pure and never returns
// RoadStateUnknown.
func Classify(data models.AgentData) models.RoadState {
	switch y := data.Accelerometer.Y; {
	case y < pitThreshold:
		return models.RoadStatePit
	case y > hillThreshold:
		return models.RoadStateHill
	default:
		return models.RoadStateFlat
	}
}

// Process classifies a sample and pairs it with the result.
func Process(data models.AgentData) models.ProcessedAgentData {
	return models.ProcessedAgentData{
		RoadState: Classify(data),
		AgentData: data,
	}
}

// ProcessBatch classifies every sample, keeping input order.
func ProcessBatch(batch []models.AgentData) []models.ProcessedAgentData {
	out := make([]models.ProcessedAgentData, 0, len(batch))
	for _, data := range batch {
		out = append(out, Process(data))
	}
	return out
}
