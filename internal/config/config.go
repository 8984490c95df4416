// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// StreamConfig holds the settings spec.md leaves to the operator: where
// to connect, how to authenticate, and the session's timing behavior.
type StreamConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	AppKey       string `mapstructure:"app_key"`
	SessionToken string `mapstructure:"session_token"`
	// LoginURL, Username, and Password are only consulted when
	// SessionToken is empty: the client exchanges them for a session
	// token via a REST login call before opening the stream.
	LoginURL           string        `mapstructure:"login_url"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	CurrencyRate       float64       `mapstructure:"currency_rate"`
	ConflateMs         int           `mapstructure:"conflate_ms"`
	HeartbeatMs        int           `mapstructure:"heartbeat_ms"`
	SegmentationOn     bool          `mapstructure:"segmentation_enabled"`
	MaxReconnects      int           `mapstructure:"max_reconnects"`
	InitialBackoff     time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// HeartbeatTimeout returns the configured heartbeat window as a Duration.
func (c *StreamConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

// ConflateInterval returns the configured conflation window as a Duration.
func (c *StreamConfig) ConflateInterval() time.Duration {
	return time.Duration(c.ConflateMs) * time.Millisecond
}

// Addr returns the host:port dial target.
func (c *StreamConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RecorderConfig holds settings for the optional raw-frame/snapshot
// recorder boundary. The recorder itself is out of scope for the core
// library; these settings only configure the illustrative implementation
// behind internal/recorder's interface.
type RecorderConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	RawFramePath   string `mapstructure:"raw_frame_path"`
	SnapshotDBPath string `mapstructure:"snapshot_db_path"`
	// SnapshotEveryFrames is how many market-change frames elapse between
	// structured snapshots for a given market; a market reaching "truly
	// complete" is always snapshotted immediately regardless of cadence.
	SnapshotEveryFrames int `mapstructure:"snapshot_every_frames"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("BETEX")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "BETEX_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "BETEX_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "BETEX_LOG_LEVEL", "LOG_LEVEL")

	// Stream
	v.BindEnv("stream.host", "BETEX_STREAM_HOST", "STREAM_HOST")
	v.BindEnv("stream.port", "BETEX_STREAM_PORT", "STREAM_PORT")
	v.BindEnv("stream.app_key", "BETEX_APP_KEY", "STREAM_APP_KEY")
	v.BindEnv("stream.session_token", "BETEX_SESSION_TOKEN", "STREAM_SESSION_TOKEN")
	v.BindEnv("stream.login_url", "BETEX_LOGIN_URL")
	v.BindEnv("stream.username", "BETEX_USERNAME")
	v.BindEnv("stream.password", "BETEX_PASSWORD")
	v.BindEnv("stream.currency_rate", "BETEX_CURRENCY_RATE")
	v.BindEnv("stream.conflate_ms", "BETEX_CONFLATE_MS")
	v.BindEnv("stream.heartbeat_ms", "BETEX_HEARTBEAT_MS")

	// Recorder
	v.BindEnv("recorder.enabled", "BETEX_RECORDER_ENABLED")
	v.BindEnv("recorder.raw_frame_path", "BETEX_RECORDER_RAW_PATH")
	v.BindEnv("recorder.snapshot_db_path", "BETEX_RECORDER_DB_PATH")

	// Telemetry
	v.BindEnv("telemetry.enabled", "BETEX_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "BETEX_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "BETEX_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "betexstream")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Stream defaults
	v.SetDefault("stream.host", "stream-api.betting-exchange.example.com")
	v.SetDefault("stream.port", 443)
	v.SetDefault("stream.currency_rate", 1.0)
	v.SetDefault("stream.conflate_ms", 0)
	v.SetDefault("stream.heartbeat_ms", 5000)
	v.SetDefault("stream.segmentation_enabled", true)
	v.SetDefault("stream.max_reconnects", 0) // infinite
	v.SetDefault("stream.initial_backoff", "1s")
	v.SetDefault("stream.max_backoff", "30s")
	v.SetDefault("stream.read_timeout", "0s")
	v.SetDefault("stream.write_timeout", "5s")
	v.SetDefault("stream.dial_timeout", "10s")

	// Recorder defaults
	v.SetDefault("recorder.enabled", false)
	v.SetDefault("recorder.raw_frame_path", "./data/raw")
	v.SetDefault("recorder.snapshot_db_path", "./data/snapshots.db")
	v.SetDefault("recorder.snapshot_every_frames", 50)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "betexstream")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Stream.Host == "" {
		return fmt.Errorf("stream.host is required")
	}
	if c.Stream.AppKey == "" {
		return fmt.Errorf("stream.app_key is required")
	}
	if c.Stream.HeartbeatMs <= 0 {
		return fmt.Errorf("stream.heartbeat_ms must be positive")
	}
	return nil
}
