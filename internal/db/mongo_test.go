package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/road-vision/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

func TestConnectMongo_BadURI(t *testing.T) {
	client, err := ConnectMongo("mongodb://bad:uri")
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestMongoCollection_NilCollection(t *testing.T) {
	ctx := context.Background()
	coll := &MongoCollection{}
	data := processed(1, models.RoadStateFlat, 0)

	_, err := coll.InsertProcessedAgentData(ctx, data)
	assert.Error(t, err)
	_, err = coll.FindProcessedAgentDataByID(ctx, 1)
	assert.Error(t, err)
	_, err = coll.FindProcessedAgentData(ctx)
	assert.Error(t, err)
	_, err = coll.UpdateProcessedAgentData(ctx, 1, data)
	assert.Error(t, err)
	_, err = coll.DeleteProcessedAgentData(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, coll.Ping(ctx))
	assert.NoError(t, coll.Close(ctx))
}

// Integration test (requires running MongoDB)
func TestMongoCollection_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" || uri == "uri" {
		t.Skip("MONGO_URI not set or invalid, skipping integration test")
	}
	client, err := ConnectMongo(uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer client.Disconnect(context.Background())

	database := client.Database("road_vision_test")
	coll := NewMongoCollection(database)
	_, _ = coll.Collection.DeleteMany(ctx, bson.M{})

	input := processed(7, models.RoadStatePit, -150)
	created, err := coll.InsertProcessedAgentData(ctx, input)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	found, err := coll.FindProcessedAgentDataByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.UserID, found.UserID)
	assert.Equal(t, created.RoadState, found.RoadState)
	assert.WithinDuration(t, created.Timestamp, found.Timestamp, time.Millisecond)

	deleted, err := coll.DeleteProcessedAgentData(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = coll.FindProcessedAgentDataByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	next, err := coll.InsertProcessedAgentData(ctx, input)
	require.NoError(t, err)
	assert.Greater(t, next.ID, created.ID)
}
