package processing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ukydev/road-vision/internal/models"
)

func sampleWithY(y int) models.AgentData {
	return models.AgentData{
		UserID:        1,
		Accelerometer: models.Accelerometer{X: 5, Y: y, Z: 16000},
		Gps:           models.Gps{Longitude: 30.5, Latitude: 50.4},
		Timestamp:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		y    int
		want models.RoadState
	}{
		{"deep pit", -5000, models.RoadStatePit},
		{"just below pit bound", -101, models.RoadStatePit},
		{"pit bound is flat", -100, models.RoadStateFlat},
		{"level", 0, models.RoadStateFlat},
		{"hill bound is flat", 100, models.RoadStateFlat},
		{"just above hill bound", 101, models.RoadStateHill},
		{"steep hill", 5000, models.RoadStateHill},
		{"min int", math.MinInt, models.RoadStatePit},
		{"max int", math.MaxInt, models.RoadStateHill},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(sampleWithY(tt.y)))
		})
	}
}

func TestClassify_TotalAndDeterministic(t *testing.T) {
	for y := -1000; y <= 1000; y += 7 {
		data := sampleWithY(y)
		first := Classify(data)
		assert.True(t, first.IsClassified(), "y=%d produced %q", y, first)
		assert.NotEqual(t, models.RoadStateUnknown, first)
		assert.Equal(t, first, Classify(data), "y=%d is not deterministic", y)
	}
}

func TestClassify_IgnoresOtherAxes(t *testing.T) {
	data := sampleWithY(0)
	data.Accelerometer.X = -10000
	data.Accelerometer.Z = 10000
	assert.Equal(t, models.RoadStateFlat, Classify(data))
}

func TestProcessBatch(t *testing.T) {
	batch := []models.AgentData{sampleWithY(-200), sampleWithY(0), sampleWithY(200)}

	out := ProcessBatch(batch)

	assert.Len(t, out, 3)
	assert.Equal(t, models.RoadStatePit, out[0].RoadState)
	assert.Equal(t, models.RoadStateFlat, out[1].RoadState)
	assert.Equal(t, models.RoadStateHill, out[2].RoadState)
	for i := range batch {
		assert.Equal(t, batch[i], out[i].AgentData)
	}
}
