package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/road-vision/internal/db"
	"github.com/ukydev/road-vision/internal/gateway"
	"github.com/ukydev/road-vision/internal/models"
)

const maxBodyBytes = 4 << 20

// ProcessedAgentDataHandler serves the processed_agent_data resource
type ProcessedAgentDataHandler struct {
	gateway *gateway.Gateway
	logger  logrus.FieldLogger
}

// NewProcessedAgentDataHandler creates a handler backed by gw
func NewProcessedAgentDataHandler(gw *gateway.Gateway, logger logrus.FieldLogger) *ProcessedAgentDataHandler {
	return &ProcessedAgentDataHandler{gateway: gw, logger: logger}
}

// Create stores a batch and answers with one outcome per item: 201 when every
// item was stored, 207 when some were, 500 when none were.
func (h *ProcessedAgentDataHandler) Create(w http.ResponseWriter, r *http.Request) {
	var items []models.ProcessedAgentData
	if err := decodeBody(w, r, &items); err != nil {
		writeDecodeError(w, err)
		return
	}
	if len(items) == 0 {
		http.Error(w, "Request body must be a non-empty array", http.StatusBadRequest)
		return
	}
	for i, item := range items {
		if err := item.Validate(); err != nil {
			http.Error(w, fmt.Sprintf("item %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	outcomes := h.gateway.Create(r.Context(), items)

	created := 0
	for _, o := range outcomes {
		if o.OK() {
			created++
		}
	}
	status := http.StatusCreated
	switch {
	case created == 0:
		status = http.StatusInternalServerError
	case created < len(outcomes):
		status = http.StatusMultiStatus
	}
	h.logger.WithFields(logrus.Fields{"items": len(items), "created": created}).Info("batch stored")
	writeJSON(w, status, outcomes)
}

// List returns every stored record
func (h *ProcessedAgentDataHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.gateway.List(r.Context())
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Get returns one record
func (h *ProcessedAgentDataHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.gateway.Get(r.Context(), id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Update replaces a record
func (h *ProcessedAgentDataHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var data models.ProcessedAgentData
	if err := decodeBody(w, r, &data); err != nil {
		writeDecodeError(w, err)
		return
	}
	rec, err := h.gateway.Update(r.Context(), id, data)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete removes a record and returns it
func (h *ProcessedAgentDataHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.gateway.Delete(r.Context(), id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ProcessedAgentDataHandler) storeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, db.ErrNotFound):
		http.Error(w, "Processed agent data not found", http.StatusNotFound)
	default:
		h.logger.WithError(err).Error("store operation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var (
		verr    *models.ValidationError
		tooBig  *http.MaxBytesError
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &verr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &tooBig):
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
	case errors.As(err, &typeErr):
		http.Error(w, fmt.Sprintf("Invalid value for field %q", typeErr.Field), http.StatusBadRequest)
	default:
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
	}
}
