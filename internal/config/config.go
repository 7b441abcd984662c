package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config lists the tunable parameters for the road-vision server.
type Config struct {
	Port string

	StoreDriver string
	SQLitePath  string
	PostgresDSN string
	MongoURI    string
	MongoDB     string

	MQTTBroker string
	MQTTTopic  string

	WSSendTimeout time.Duration

	JWTSecret        string
	JWTExpiry        time.Duration
	AuthUsername     string
	AuthPasswordHash string

	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel  string
	LogFormat string
}

const (
	defaultPort           = "8000"
	defaultStoreDriver    = DriverSQLite
	defaultSQLitePath     = "data/road_vision.db"
	defaultMongoDB        = "road_vision"
	defaultMQTTTopic      = "agent_data_topic"
	defaultWSSendTimeout  = 5 * time.Second
	defaultJWTExpiry      = 24 * time.Hour
	defaultRateLimitRPS   = 50
	defaultRateLimitBurst = 100
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
)

// AuthEnabled reports whether write routes require a bearer token.
func (c Config) AuthEnabled() bool { return c.JWTSecret != "" }

// Load reads an optional .env file, then derives configuration values from
// environment variables, falling back to defaults.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:           defaultPort,
		StoreDriver:    defaultStoreDriver,
		SQLitePath:     defaultSQLitePath,
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDB:        defaultMongoDB,
		MQTTBroker:     os.Getenv("MQTT_BROKER"),
		MQTTTopic:      defaultMQTTTopic,
		WSSendTimeout:  defaultWSSendTimeout,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiry:      defaultJWTExpiry,
		AuthUsername:   os.Getenv("AUTH_USERNAME"),
		RateLimitRPS:   defaultRateLimitRPS,
		RateLimitBurst: defaultRateLimitBurst,
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
	}
	cfg.AuthPasswordHash = os.Getenv("AUTH_PASSWORD_HASH")

	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = v
	}

	if v := os.Getenv("STORE_DRIVER"); v != "" {
		switch v {
		case DriverSQLite, DriverPostgres, DriverMongo:
			cfg.StoreDriver = v
		default:
			return Config{}, fmt.Errorf("invalid STORE_DRIVER %q: want sqlite, postgres or mongo", v)
		}
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("MONGO_DB"); v != "" {
		cfg.MongoDB = v
	}
	if v := os.Getenv("MQTT_TOPIC"); v != "" {
		cfg.MQTTTopic = v
	}

	cfg.PostgresDSN = postgresDSN()
	if cfg.StoreDriver == DriverPostgres && cfg.PostgresDSN == "" {
		return Config{}, errors.New("STORE_DRIVER=postgres needs DATABASE_URL or POSTGRES_HOST")
	}

	var err error
	if cfg.WSSendTimeout, err = durationEnv("WS_SEND_TIMEOUT", cfg.WSSendTimeout); err != nil {
		return Config{}, err
	}
	if cfg.JWTExpiry, err = durationEnv("JWT_EXPIRY", cfg.JWTExpiry); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_RPS %q", v)
		}
		cfg.RateLimitRPS = rps
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil || burst < 1 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_BURST %q", v)
		}
		cfg.RateLimitBurst = burst
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if cfg.AuthUsername != "" && cfg.AuthPasswordHash == "" {
		return Config{}, errors.New("AUTH_USERNAME is set but AUTH_PASSWORD_HASH is empty")
	}

	return cfg, nil
}

// postgresDSN prefers DATABASE_URL and otherwise assembles a URL from the
// POSTGRES_* variables. It returns "" when neither is configured.
func postgresDSN() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + os.Getenv("POSTGRES_DB"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

// loadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
