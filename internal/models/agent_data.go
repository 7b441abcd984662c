package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts lists the accepted ISO-8601 forms, most specific first.
// Layouts without a zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// AgentData is one aligned multi-sensor sample captured for a user.
type AgentData struct {
	UserID        int64         `bson:"user_id" json:"user_id"`
	Accelerometer Accelerometer `bson:"accelerometer" json:"accelerometer"`
	Gps           Gps           `bson:"gps" json:"gps"`
	Timestamp     time.Time     `bson:"timestamp" json:"timestamp"`
}

// NewAgentData builds a validated sample.
func NewAgentData(userID int64, acc Accelerometer, gps Gps, ts time.Time) (AgentData, error) {
	data := AgentData{
		UserID:        userID,
		Accelerometer: acc,
		Gps:           gps,
		Timestamp:     ts,
	}
	if err := data.Validate(); err != nil {
		return AgentData{}, err
	}
	return data, nil
}

// Validate checks the timestamp can be rendered as an ISO-8601 instant and
// the coordinates are in range.
func (d AgentData) Validate() error {
	if d.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	if y := d.Timestamp.Year(); y < 0 || y > 9999 {
		return &ValidationError{Field: "timestamp", Reason: fmt.Sprintf("year %d is outside 0000-9999", y)}
	}
	return d.Gps.Validate()
}

// UnmarshalJSON accepts the timestamp in any of the ISO-8601 layouts above.
func (d *AgentData) UnmarshalJSON(data []byte) error {
	type alias AgentData
	var raw struct {
		alias
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	*d = AgentData(raw.alias)
	d.Timestamp = ts
	return nil
}

// ParseTimestamp parses an ISO-8601 instant.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, &ValidationError{
		Field:  "timestamp",
		Reason: "expected ISO 8601 format (YYYY-MM-DDTHH:MM:SSZ)",
		Err:    lastErr,
	}
}
