// Package gateway ties the record store to live fan-out: records are stored
// first and published to their user's listeners only once stored.
package gateway

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/road-vision/internal/db"
	"github.com/ukydev/road-vision/internal/models"
)

// Outcome statuses.
const (
	StatusCreated = "created"
	StatusFailed  = "failed"
)

// Publisher fans a stored record out to the listeners of one user.
type Publisher interface {
	Publish(ctx context.Context, userID int64, rec models.PersistedRecord) int
}

// Outcome reports what happened to one item of a batch create.
type Outcome struct {
	Index  int                     `json:"index"`
	Status string                  `json:"status"`
	Record *models.PersistedRecord `json:"record,omitempty"`
	Error  string                  `json:"error,omitempty"`

	Err error `json:"-"`
}

// OK reports whether the item was stored.
func (o Outcome) OK() bool { return o.Status == StatusCreated }

// Gateway serves create/read/update/delete over the store.
type Gateway struct {
	store     db.ProcessedAgentDataCollection
	publisher Publisher
	logger    logrus.FieldLogger
	metrics   *Metrics
}

// New creates a Gateway. publisher may be nil when nothing listens live.
func New(store db.ProcessedAgentDataCollection, publisher Publisher, logger logrus.FieldLogger, metrics *Metrics) *Gateway {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Gateway{store: store, publisher: publisher, logger: logger, metrics: metrics}
}

// Create stores every item independently and returns one outcome per item in
// input order. A failed item never stops the rest of the batch. Items are
// published in order, each after its own insert succeeded.
func (g *Gateway) Create(ctx context.Context, items []models.ProcessedAgentData) []Outcome {
	outcomes := make([]Outcome, 0, len(items))
	for i, item := range items {
		outcomes = append(outcomes, g.createOne(ctx, i, item))
	}
	return outcomes
}

func (g *Gateway) createOne(ctx context.Context, index int, item models.ProcessedAgentData) Outcome {
	start := time.Now()
	if err := item.Validate(); err != nil {
		g.metrics.observe("create", "invalid", start)
		return Outcome{Index: index, Status: StatusFailed, Error: err.Error(), Err: err}
	}

	rec, err := g.store.InsertProcessedAgentData(ctx, item)
	if err != nil {
		g.metrics.observe("create", "error", start)
		g.logger.WithFields(logrus.Fields{"index": index, "user_id": item.AgentData.UserID}).
			WithError(err).Error("failed to store processed agent data")
		return Outcome{Index: index, Status: StatusFailed, Error: err.Error(), Err: err}
	}
	g.metrics.observe("create", "ok", start)

	if g.publisher != nil {
		delivered := g.publisher.Publish(ctx, rec.UserID, rec)
		g.logger.WithFields(logrus.Fields{
			"record_id": rec.ID,
			"user_id":   rec.UserID,
			"delivered": delivered,
		}).Debug("record published")
	}
	return Outcome{Index: index, Status: StatusCreated, Record: &rec}
}

// Get returns one record or db.ErrNotFound.
func (g *Gateway) Get(ctx context.Context, id int64) (models.PersistedRecord, error) {
	start := time.Now()
	rec, err := g.store.FindProcessedAgentDataByID(ctx, id)
	g.metrics.observe("get", result(err), start)
	return rec, err
}

// List returns every record in id order.
func (g *Gateway) List(ctx context.Context) ([]models.PersistedRecord, error) {
	start := time.Now()
	recs, err := g.store.FindProcessedAgentData(ctx)
	g.metrics.observe("list", result(err), start)
	return recs, err
}

// Update fully replaces record id. Invalid data is rejected before the store
// is touched. Updates are not published.
func (g *Gateway) Update(ctx context.Context, id int64, data models.ProcessedAgentData) (models.PersistedRecord, error) {
	start := time.Now()
	if err := data.Validate(); err != nil {
		g.metrics.observe("update", "invalid", start)
		return models.PersistedRecord{}, err
	}
	rec, err := g.store.UpdateProcessedAgentData(ctx, id, data)
	g.metrics.observe("update", result(err), start)
	return rec, err
}

// Delete removes record id and returns what was removed.
func (g *Gateway) Delete(ctx context.Context, id int64) (models.PersistedRecord, error) {
	start := time.Now()
	rec, err := g.store.DeleteProcessedAgentData(ctx, id)
	g.metrics.observe("delete", result(err), start)
	return rec, err
}

// Ping checks the store.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.store.Ping(ctx)
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
