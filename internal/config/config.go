package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultWindowSizeSec     = 30.0
	DefaultWindowStepSec     = 5.0
	DefaultMinPPIMs          = 300
	DefaultMaxPPIMs          = 2000
	DefaultMaxPPIDiffRatio   = 0.20
	DefaultMinQualityRatio   = 0.80
	DefaultSmoothingAlpha    = 0.3
	DefaultFatigueHorizonMin = 10.0
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = 2 * time.Second
	DefaultHTTPPort          = 8080
)

// Config is the top-level configuration for cogniflowd.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Sensor  SensorConfig  `yaml:"sensor"`
	Signal  SignalConfig  `yaml:"signal"`
	Scoring ScoringConfig `yaml:"scoring"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
}

// SensorConfig holds the sensor-gateway connection settings.
type SensorConfig struct {
	// GatewayURL is the MQTT broker the acquisition gateway publishes to,
	// e.g. "tcp://localhost:1883".
	GatewayURL string `yaml:"gateway_url"`

	// DeviceID selects which device's characteristic topics to subscribe to.
	DeviceID string `yaml:"device_id"`

	// ReconnectAttempts bounds how many connection attempts are made before
	// the link transitions to the Error state.
	ReconnectAttempts int `yaml:"reconnect_attempts"`

	// ReconnectDelay is the fixed wait between connection attempts.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// SignalConfig holds the cleaning and windowing parameters.
type SignalConfig struct {
	// WindowSizeSec is the sliding window duration in seconds.
	WindowSizeSec float64 `yaml:"window_size_sec"`

	// WindowStepSec is the processing cadence in seconds.
	WindowStepSec float64 `yaml:"window_step_sec"`

	// MinPPIMs / MaxPPIMs bound the physiologically plausible interval range.
	MinPPIMs float64 `yaml:"min_ppi_ms"`
	MaxPPIMs float64 `yaml:"max_ppi_ms"`

	// MaxPPIDiffRatio is the relative successive-difference threshold above
	// which an interval is treated as ectopic.
	MaxPPIDiffRatio float64 `yaml:"max_ppi_diff_ratio"`

	// MinQualityRatio is both the window fill fraction required before a
	// window is emitted and the quality ratio below which a window carries a
	// quality warning.
	MinQualityRatio float64 `yaml:"min_quality_ratio"`
}

// ScoringConfig holds the estimator and smoothing parameters.
type ScoringConfig struct {
	// ModelPath / ScalerPath point at the trained model artifact pair.
	// When either is empty or fails to load, the heuristic scorer is used.
	ModelPath  string `yaml:"model_path"`
	ScalerPath string `yaml:"scaler_path"`

	// SmoothingAlpha is the EMA coefficient applied to each score.
	SmoothingAlpha float64 `yaml:"score_smoothing_alpha"`

	// FatigueHorizonMin is how far ahead, in minutes, the fatigue trend is
	// projected.
	FatigueHorizonMin float64 `yaml:"fatigue_horizon_min"`
}

// ServerConfig holds the HTTP/WebSocket serving settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// ResultsTopic is the MQTT topic results are published on.
	// Empty disables MQTT result publishing.
	ResultsTopic string `yaml:"results_topic"`
}

// StorageConfig configures the session history backend.
type StorageConfig struct {
	// Path is the filesystem path of the DuckDB database file.
	// Empty selects an in-memory database (history lost on exit).
	Path string `yaml:"path"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
// Validation errors here are the only fatal configuration failures; nothing
// past startup re-validates parameters.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Sensor: SensorConfig{
			ReconnectAttempts: DefaultReconnectAttempts,
			ReconnectDelay:    DefaultReconnectDelay,
		},
		Signal: SignalConfig{
			WindowSizeSec:   DefaultWindowSizeSec,
			WindowStepSec:   DefaultWindowStepSec,
			MinPPIMs:        DefaultMinPPIMs,
			MaxPPIMs:        DefaultMaxPPIMs,
			MaxPPIDiffRatio: DefaultMaxPPIDiffRatio,
			MinQualityRatio: DefaultMinQualityRatio,
		},
		Scoring: ScoringConfig{
			SmoothingAlpha:    DefaultSmoothingAlpha,
			FatigueHorizonMin: DefaultFatigueHorizonMin,
		},
		Server: ServerConfig{
			HTTPPort:     DefaultHTTPPort,
			ResultsTopic: "cogniflow/results",
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Sensor.GatewayURL == "" {
		return fmt.Errorf("sensor.gateway_url is required")
	}
	if cfg.Sensor.ReconnectAttempts < 1 {
		return fmt.Errorf("sensor.reconnect_attempts must be at least 1")
	}
	if cfg.Sensor.ReconnectDelay <= 0 {
		return fmt.Errorf("sensor.reconnect_delay must be positive")
	}
	if cfg.Signal.WindowSizeSec <= 0 {
		return fmt.Errorf("signal.window_size_sec must be positive")
	}
	if cfg.Signal.WindowStepSec <= 0 {
		return fmt.Errorf("signal.window_step_sec must be positive")
	}
	if cfg.Signal.WindowStepSec > cfg.Signal.WindowSizeSec {
		return fmt.Errorf("signal.window_step_sec must not exceed window_size_sec")
	}
	if cfg.Signal.MinPPIMs <= 0 || cfg.Signal.MaxPPIMs <= cfg.Signal.MinPPIMs {
		return fmt.Errorf("signal ppi bounds must satisfy 0 < min_ppi_ms < max_ppi_ms")
	}
	if cfg.Signal.MaxPPIDiffRatio <= 0 {
		return fmt.Errorf("signal.max_ppi_diff_ratio must be positive")
	}
	if cfg.Signal.MinQualityRatio <= 0 || cfg.Signal.MinQualityRatio > 1 {
		return fmt.Errorf("signal.min_quality_ratio must be in (0, 1]")
	}
	if cfg.Scoring.SmoothingAlpha <= 0 || cfg.Scoring.SmoothingAlpha > 1 {
		return fmt.Errorf("scoring.score_smoothing_alpha must be in (0, 1]")
	}
	if cfg.Scoring.FatigueHorizonMin <= 0 {
		return fmt.Errorf("scoring.fatigue_horizon_min must be positive")
	}
	if (cfg.Scoring.ModelPath == "") != (cfg.Scoring.ScalerPath == "") {
		return fmt.Errorf("scoring.model_path and scaler_path must be set together")
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be a valid port")
	}
	return nil
}
