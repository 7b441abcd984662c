package mqttingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/road-vision/internal/gateway"
	"github.com/ukydev/road-vision/internal/models"
)

// MockCreator is a mock implementation of Creator
type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) Create(ctx context.Context, items []models.ProcessedAgentData) []gateway.Outcome {
	args := m.Called(ctx, items)
	return args.Get(0).([]gateway.Outcome)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return subscribeQoS }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

const samplePayload = `{"user_id":3,"accelerometer":{"x":10,"y":-140,"z":16400},"gps":{"longitude":30.5,"latitude":50.4},"timestamp":"2024-03-01T10:00:00.123456"}`

func created(n int) []gateway.Outcome {
	out := make([]gateway.Outcome, n)
	for i := range out {
		out[i] = gateway.Outcome{Index: i, Status: gateway.StatusCreated, Record: &models.PersistedRecord{ID: int64(i + 1)}}
	}
	return out
}

func TestHandlePayload_ClassifiesAndStores(t *testing.T) {
	creator := new(MockCreator)
	logger, _ := test.NewNullLogger()
	sub := NewSubscriber(nil, "agent_data_topic", creator, logger)

	creator.On("Create", mock.Anything, mock.MatchedBy(func(items []models.ProcessedAgentData) bool {
		return len(items) == 1 &&
			items[0].RoadState == models.RoadStatePit &&
			items[0].AgentData.UserID == 3 &&
			items[0].AgentData.Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC))
	})).Return(created(1))

	require.NoError(t, sub.HandlePayload(context.Background(), []byte(samplePayload)))
	creator.AssertExpectations(t)
}

func TestHandlePayload_Array(t *testing.T) {
	creator := new(MockCreator)
	logger, _ := test.NewNullLogger()
	sub := NewSubscriber(nil, "agent_data_topic", creator, logger)

	creator.On("Create", mock.Anything, mock.MatchedBy(func(items []models.ProcessedAgentData) bool {
		return len(items) == 2
	})).Return(created(2))

	require.NoError(t, sub.HandlePayload(context.Background(), []byte(" ["+samplePayload+","+samplePayload+"]")))
	creator.AssertExpectations(t)
}

func TestHandlePayload_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"garbage", `not json`},
		{"empty array", `[]`},
		{"bad timestamp", `{"user_id":3,"accelerometer":{"x":1,"y":1,"z":1},"gps":{"longitude":1,"latitude":1},"timestamp":"noon"}`},
		{"bad latitude", `{"user_id":3,"accelerometer":{"x":1,"y":1,"z":1},"gps":{"longitude":1,"latitude":123},"timestamp":"2024-03-01T10:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := new(MockCreator)
			logger, _ := test.NewNullLogger()
			sub := NewSubscriber(nil, "agent_data_topic", creator, logger)

			assert.Error(t, sub.HandlePayload(context.Background(), []byte(tt.payload)))
			creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestHandlePayload_ReportsStorageFailure(t *testing.T) {
	creator := new(MockCreator)
	logger, _ := test.NewNullLogger()
	sub := NewSubscriber(nil, "agent_data_topic", creator, logger)
	storageErr := errors.New("database is locked")

	creator.On("Create", mock.Anything, mock.Anything).Return([]gateway.Outcome{
		{Index: 0, Status: gateway.StatusFailed, Error: storageErr.Error(), Err: storageErr},
	})

	err := sub.HandlePayload(context.Background(), []byte(samplePayload))
	assert.ErrorIs(t, err, storageErr)
}

func TestOnMessage_LogsDroppedMessage(t *testing.T) {
	creator := new(MockCreator)
	logger, hook := test.NewNullLogger()
	sub := NewSubscriber(nil, "agent_data_topic", creator, logger)

	sub.onMessage(nil, fakeMessage{topic: "agent_data_topic", payload: []byte("{")})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "agent_data_topic", entry.Data["topic"])
}
