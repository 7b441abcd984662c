package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AgentConfig configures the sensor agent.
type AgentConfig struct {
	AccelerometerFile string
	GpsFile           string
	ParkingFile       string
	UserID            int64

	StoreAPIURL string
	MQTTBroker  string
	MQTTTopic   string

	BatchSize int
	Delay     time.Duration
	AuthToken string

	LogLevel string
}

const (
	defaultAccelerometerFile = "data/accelerometer.csv"
	defaultGpsFile           = "data/gps.csv"
	defaultParkingFile       = "data/parking.csv"
	defaultUserID            = 1
	defaultStoreAPIURL       = "http://localhost:8000"
	defaultBatchSize         = 10
	defaultAgentDelay        = 100 * time.Millisecond
)

// UseMQTT reports whether samples go to the broker instead of the HTTP API.
func (c AgentConfig) UseMQTT() bool { return c.MQTTBroker != "" }

// LoadAgent derives the agent configuration from the environment.
func LoadAgent() (AgentConfig, error) {
	if err := loadDotEnv(); err != nil {
		return AgentConfig{}, err
	}

	cfg := AgentConfig{
		AccelerometerFile: defaultAccelerometerFile,
		GpsFile:           defaultGpsFile,
		ParkingFile:       defaultParkingFile,
		UserID:            defaultUserID,
		StoreAPIURL:       defaultStoreAPIURL,
		MQTTBroker:        os.Getenv("MQTT_BROKER"),
		MQTTTopic:         defaultMQTTTopic,
		BatchSize:         defaultBatchSize,
		Delay:             defaultAgentDelay,
		AuthToken:         os.Getenv("AGENT_AUTH_TOKEN"),
		LogLevel:          defaultLogLevel,
	}

	if v := os.Getenv("ACCELEROMETER_FILE"); v != "" {
		cfg.AccelerometerFile = v
	}
	if v := os.Getenv("GPS_FILE"); v != "" {
		cfg.GpsFile = v
	}
	if v := os.Getenv("PARKING_FILE"); v != "" {
		cfg.ParkingFile = v
	}
	if v := os.Getenv("USER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("invalid USER_ID: %w", err)
		}
		cfg.UserID = id
	}
	if v := os.Getenv("STORE_API_URL"); v != "" {
		cfg.StoreAPIURL = v
	}
	if v := os.Getenv("MQTT_TOPIC"); v != "" {
		cfg.MQTTTopic = v
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return AgentConfig{}, fmt.Errorf("invalid BATCH_SIZE %q", v)
		}
		cfg.BatchSize = n
	}
	if v := os.Getenv("AGENT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return AgentConfig{}, fmt.Errorf("invalid AGENT_DELAY %q", v)
		}
		cfg.Delay = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}
