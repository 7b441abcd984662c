package db

import (
	"context"
	"errors"

	"github.com/ukydev/road-vision/internal/models"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("processed agent data not found")

// ProcessedAgentDataCollection defines the record store operations. Each
// insert is atomic on its own; there is no multi-record transaction.
type ProcessedAgentDataCollection interface {
	InsertProcessedAgentData(ctx context.Context, data models.ProcessedAgentData) (models.PersistedRecord, error)
	FindProcessedAgentDataByID(ctx context.Context, id int64) (models.PersistedRecord, error)
	FindProcessedAgentData(ctx context.Context) ([]models.PersistedRecord, error)
	UpdateProcessedAgentData(ctx context.Context, id int64, data models.ProcessedAgentData) (models.PersistedRecord, error)
	DeleteProcessedAgentData(ctx context.Context, id int64) (models.PersistedRecord, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var (
	_ ProcessedAgentDataCollection = (*SQLCollection)(nil)
	_ ProcessedAgentDataCollection = (*MongoCollection)(nil)
)
