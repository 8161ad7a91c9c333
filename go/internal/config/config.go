package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Session    SessionConfig    `yaml:"session"`
	Connection ConnectionConfig `yaml:"connection"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Collection CollectionConfig `yaml:"collection"`
	Profiles   ProfilesConfig   `yaml:"profiles"`
	Database   Database         `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Debug      DebugConfig      `yaml:"debug"`
}

type ServerConfig struct {
	URL           string `yaml:"url"`
	Transport     string `yaml:"transport"`
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type SessionConfig struct {
	ID           string `yaml:"id"`
	DisplayName  string `yaml:"display_name"`
	IdentityPath string `yaml:"identity_path"`
}

type ConnectionConfig struct {
	JoinTimeout    time.Duration   `yaml:"join_timeout"`
	PingInterval   time.Duration   `yaml:"ping_interval"`
	ReportInterval time.Duration   `yaml:"report_interval"`
	Reconnect      ReconnectConfig `yaml:"reconnect"`
}

type ReconnectConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type ReconcileConfig struct {
	Rate             float64 `yaml:"rate"`
	TeleportDistance float64 `yaml:"teleport_distance"`
}

type CollectionConfig struct {
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

// ProfilesConfig selects the profile store: the REST API when BaseURL is
// set, Postgres when UseDatabase is set, nothing otherwise
type ProfilesConfig struct {
	BaseURL     string `yaml:"base_url"`
	UseDatabase bool   `yaml:"use_database"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Pretty     bool   `yaml:"pretty"`
}

type DebugConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Server: ServerConfig{
			URL:           "ws://localhost:5000/ws",
			Transport:     TransportWebSocket,
			NATSURL:       "nats://localhost:4222",
			SubjectPrefix: "voyager.sessions",
		},
		Session: SessionConfig{
			ID:           "default",
			IdentityPath: ".voyager/identity.yaml",
		},
		Connection: ConnectionConfig{
			JoinTimeout:    10 * time.Second,
			PingInterval:   30 * time.Second,
			ReportInterval: 100 * time.Millisecond,
			Reconnect: ReconnectConfig{
				Enabled:     true,
				BaseDelay:   500 * time.Millisecond,
				MaxDelay:    15 * time.Second,
				MaxAttempts: 8,
			},
		},
		Reconcile: ReconcileConfig{
			Rate:             10,
			TeleportDistance: 50,
		},
		Collection: CollectionConfig{
			ConfirmTimeout: 5 * time.Second,
		},
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Name:     "voyager",
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			Pretty:     true,
		},
		Debug: DebugConfig{
			Addr: ":8090",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file at path
// and VOYAGER_* environment variables, in that order of precedence
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.URL = getEnv("VOYAGER_SERVER_URL", c.Server.URL)
	c.Server.Transport = strings.ToLower(getEnv("VOYAGER_TRANSPORT", c.Server.Transport))
	c.Server.NATSURL = getEnv("VOYAGER_NATS_URL", c.Server.NATSURL)
	c.Server.SubjectPrefix = getEnv("VOYAGER_SUBJECT_PREFIX", c.Server.SubjectPrefix)

	c.Session.ID = getEnv("VOYAGER_SESSION_ID", c.Session.ID)
	c.Session.DisplayName = getEnv("VOYAGER_PLAYER_NAME", c.Session.DisplayName)
	c.Session.IdentityPath = getEnv("VOYAGER_IDENTITY_PATH", c.Session.IdentityPath)

	c.Connection.JoinTimeout = getEnvAsDuration("VOYAGER_JOIN_TIMEOUT", c.Connection.JoinTimeout)
	c.Connection.PingInterval = getEnvAsDuration("VOYAGER_PING_INTERVAL", c.Connection.PingInterval)
	c.Connection.ReportInterval = getEnvAsDuration("VOYAGER_REPORT_INTERVAL", c.Connection.ReportInterval)
	c.Connection.Reconnect.Enabled = getEnvAsBool("VOYAGER_RECONNECT", c.Connection.Reconnect.Enabled)
	c.Connection.Reconnect.BaseDelay = getEnvAsDuration("VOYAGER_RECONNECT_BASE_DELAY", c.Connection.Reconnect.BaseDelay)
	c.Connection.Reconnect.MaxDelay = getEnvAsDuration("VOYAGER_RECONNECT_MAX_DELAY", c.Connection.Reconnect.MaxDelay)
	c.Connection.Reconnect.MaxAttempts = getEnvAsInt("VOYAGER_RECONNECT_MAX_ATTEMPTS", c.Connection.Reconnect.MaxAttempts)

	c.Collection.ConfirmTimeout = getEnvAsDuration("VOYAGER_CONFIRM_TIMEOUT", c.Collection.ConfirmTimeout)

	c.Profiles.BaseURL = getEnv("VOYAGER_PROFILES_URL", c.Profiles.BaseURL)
	c.Profiles.UseDatabase = getEnvAsBool("VOYAGER_PROFILES_DB", c.Profiles.UseDatabase)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Log.Level = getEnv("VOYAGER_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("VOYAGER_LOG_FILE", c.Log.File)
	c.Log.Pretty = getEnvAsBool("VOYAGER_LOG_PRETTY", c.Log.Pretty)

	c.Debug.Addr = getEnv("VOYAGER_DEBUG_ADDR", c.Debug.Addr)
}

// Validate rejects configurations the client cannot run with
func (c Config) Validate() error {
	var errs []error
	switch c.Server.Transport {
	case TransportWebSocket:
		if c.Server.URL == "" {
			errs = append(errs, errors.New("server url is required for the websocket transport"))
		}
	case TransportNATS:
		if c.Server.NATSURL == "" {
			errs = append(errs, errors.New("nats url is required for the nats transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Server.Transport))
	}
	if c.Session.ID == "" {
		errs = append(errs, errors.New("session id is required"))
	}
	if c.Connection.ReportInterval <= 0 {
		errs = append(errs, errors.New("report interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-integer environment value")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-boolean environment value")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring malformed duration")
	}
	return defaultValue
}
