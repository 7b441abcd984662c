// Package hub keeps the per-user sets of live listeners and fans stored
// records out to them.
package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/road-vision/internal/models"
)

// DefaultSendTimeout bounds a single delivery when none is configured.
const DefaultSendTimeout = 5 * time.Second

// ErrSendTimeout is reported when a listener does not accept a record in time.
var ErrSendTimeout = errors.New("listener send timed out")

// Listener receives records published for the user it subscribed to.
type Listener interface {
	ID() string
	Send(ctx context.Context, rec models.PersistedRecord) error
}

// closer is implemented by listeners backed by a transport. A listener dropped
// after a failed send is closed so its peer sees the disconnect.
type closer interface {
	Close() error
}

// Registry maps user ids to their currently subscribed listeners.
// It only closes listeners it drops after a failed send; otherwise whoever
// subscribed a listener owns it.
type Registry struct {
	mu          sync.RWMutex
	listeners   map[int64]map[Listener]struct{}
	sendTimeout time.Duration
	logger      logrus.FieldLogger
	metrics     *Metrics
}

// NewRegistry creates an empty registry. A zero sendTimeout uses
// DefaultSendTimeout and a nil logger uses the logrus standard logger.
func NewRegistry(sendTimeout time.Duration, logger logrus.FieldLogger, metrics *Metrics) *Registry {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		listeners:   make(map[int64]map[Listener]struct{}),
		sendTimeout: sendTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

// Subscribe adds l to the set for userID. Subscribing twice is a no-op.
func (r *Registry) Subscribe(userID int64, l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.listeners[userID]
	if !ok {
		set = make(map[Listener]struct{})
		r.listeners[userID] = set
	}
	if _, exists := set[l]; exists {
		return
	}
	set[l] = struct{}{}
	r.metrics.listenerAdded()
	r.logger.WithFields(logrus.Fields{"user_id": userID, "listener": l.ID()}).Debug("listener subscribed")
}

// Unsubscribe removes l from the set for userID. Removing a non-member is a no-op.
func (r *Registry) Unsubscribe(userID int64, l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(userID, l)
}

func (r *Registry) removeLocked(userID int64, l Listener) bool {
	set, ok := r.listeners[userID]
	if !ok {
		return false
	}
	if _, exists := set[l]; !exists {
		return false
	}
	delete(set, l)
	if len(set) == 0 {
		delete(r.listeners, userID)
	}
	r.metrics.listenerRemoved()
	r.logger.WithFields(logrus.Fields{"user_id": userID, "listener": l.ID()}).Debug("listener unsubscribed")
	return true
}

// Count returns the number of listeners subscribed for userID.
func (r *Registry) Count(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[userID])
}

func (r *Registry) snapshot(userID int64) []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.listeners[userID]
	out := make([]Listener, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	return out
}

// Publish delivers rec to every listener subscribed for userID when the call
// begins. Each send is bounded by the send timeout; a listener whose send
// fails is unsubscribed and the others still receive the record. Publish
// returns the number of successful deliveries.
func (r *Registry) Publish(ctx context.Context, userID int64, rec models.PersistedRecord) int {
	start := time.Now()
	targets := r.snapshot(userID)
	if len(targets) == 0 {
		r.metrics.published(time.Since(start).Seconds())
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for _, l := range targets {
		wg.Add(1)
		go func(l Listener) {
			defer wg.Done()
			if err := r.send(ctx, l, rec); err != nil {
				r.logger.WithFields(logrus.Fields{
					"user_id":   userID,
					"listener":  l.ID(),
					"record_id": rec.ID,
				}).WithError(err).Warn("delivery failed, dropping listener")
				r.metrics.delivered("failed")
				r.Unsubscribe(userID, l)
				if c, ok := l.(closer); ok {
					if cerr := c.Close(); cerr != nil {
						r.logger.WithField("listener", l.ID()).WithError(cerr).Debug("close dropped listener")
					}
				}
				return
			}
			r.metrics.delivered("ok")
			mu.Lock()
			delivered++
			mu.Unlock()
		}(l)
	}
	wg.Wait()

	r.metrics.published(time.Since(start).Seconds())
	return delivered
}

func (r *Registry) send(ctx context.Context, l Listener, rec models.PersistedRecord) error {
	// A caller going away must not look like a broken listener.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sendTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Send(sendCtx, rec)
	}()

	select {
	case err := <-errCh:
		return err
	case <-sendCtx.Done():
		return ErrSendTimeout
	}
}
