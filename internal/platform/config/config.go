package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "PIXELBOOTH"
	FileName  = "pixelbooth.yaml"
)

type Config struct {
	DataDir     string            `yaml:"-" ignored:"true"`
	DBPath      string            `yaml:"db_path" envconfig:"DB_PATH"`
	ArchiveDir  string            `yaml:"archive_dir" envconfig:"ARCHIVE_DIR"`
	Log         LogConfig         `yaml:"log" envconfig:"LOG"`
	Kiosk       KioskConfig       `yaml:"kiosk" envconfig:"KIOSK"`
	Generation  GenerationConfig  `yaml:"generation" envconfig:"GENERATION"`
	Translation TranslationConfig `yaml:"translation" envconfig:"TRANSLATION"`
	Print       PrintConfig       `yaml:"print" envconfig:"PRINT"`
	Capture     CaptureConfig     `yaml:"capture" envconfig:"CAPTURE"`
	Plugin      PluginConfig      `yaml:"plugin" envconfig:"PLUGIN"`
	HTTP        HTTPConfig        `yaml:"http" envconfig:"HTTP"`
	OTel        OTelConfig        `yaml:"otel" envconfig:"OTEL"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

type KioskConfig struct {
	IdleTimeoutSeconds int           `yaml:"idle_timeout_seconds" envconfig:"IDLE_TIMEOUT_SECONDS"`
	IdleTick           time.Duration `yaml:"idle_tick" envconfig:"IDLE_TICK"`
	GenerationPoll     time.Duration `yaml:"generation_poll" envconfig:"GENERATION_POLL"`
	ProgressInterval   time.Duration `yaml:"progress_interval" envconfig:"PROGRESS_INTERVAL"`
	PrintPoll          time.Duration `yaml:"print_poll" envconfig:"PRINT_POLL"`
	PrintGrace         time.Duration `yaml:"print_grace" envconfig:"PRINT_GRACE"`
	MaxPollAttempts    int           `yaml:"max_poll_attempts" envconfig:"MAX_POLL_ATTEMPTS"`
	CallTimeout        time.Duration `yaml:"call_timeout" envconfig:"CALL_TIMEOUT"`
}

type GenerationConfig struct {
	Backend          string        `yaml:"backend" envconfig:"BACKEND"`
	Endpoint         string        `yaml:"endpoint" envconfig:"ENDPOINT"`
	APIKey           string        `yaml:"api_key" envconfig:"API_KEY"`
	ModelID          string        `yaml:"model_id" envconfig:"MODEL_ID"`
	StyleModelID     string        `yaml:"style_model_id" envconfig:"STYLE_MODEL_ID"`
	ImageCount       int           `yaml:"image_count" envconfig:"IMAGE_COUNT"`
	Width            int           `yaml:"width" envconfig:"WIDTH"`
	Height           int           `yaml:"height" envconfig:"HEIGHT"`
	StylePoll        time.Duration `yaml:"style_poll" envconfig:"STYLE_POLL"`
	StyleMaxAttempts int           `yaml:"style_max_attempts" envconfig:"STYLE_MAX_ATTEMPTS"`
	Timeout          time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	FallbackEnabled  bool          `yaml:"fallback_enabled" envconfig:"FALLBACK_ENABLED"`
	FallbackDelay    time.Duration `yaml:"fallback_delay" envconfig:"FALLBACK_DELAY"`
	SimCompleteAfter int           `yaml:"sim_complete_after" envconfig:"SIM_COMPLETE_AFTER"`
}

type TranslationConfig struct {
	Enabled        bool   `yaml:"enabled" envconfig:"ENABLED"`
	Endpoint       string `yaml:"endpoint" envconfig:"ENDPOINT"`
	APIKey         string `yaml:"api_key" envconfig:"API_KEY"`
	Model          string `yaml:"model" envconfig:"MODEL"`
	TargetLanguage string `yaml:"target_language" envconfig:"TARGET_LANGUAGE"`
}

type PrintConfig struct {
	Backend      string        `yaml:"backend" envconfig:"BACKEND"`
	Endpoint     string        `yaml:"endpoint" envconfig:"ENDPOINT"`
	SpoolDir     string        `yaml:"spool_dir" envconfig:"SPOOL_DIR"`
	QueueDelay   time.Duration `yaml:"queue_delay" envconfig:"QUEUE_DELAY"`
	ProcessDelay time.Duration `yaml:"process_delay" envconfig:"PROCESS_DELAY"`
}

type CaptureConfig struct {
	Backend string `yaml:"backend" envconfig:"BACKEND"`
	Dir     string `yaml:"dir" envconfig:"DIR"`
}

type PluginConfig struct {
	Name         string        `yaml:"name" envconfig:"NAME"`
	Binary       string        `yaml:"binary" envconfig:"BINARY"`
	SHA256       string        `yaml:"sha256" envconfig:"SHA256"`
	StartTimeout time.Duration `yaml:"start_timeout" envconfig:"START_TIMEOUT"`
	CallTimeout  time.Duration `yaml:"call_timeout" envconfig:"CALL_TIMEOUT"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR"`
}

type OTelConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`
	Insecure bool   `yaml:"insecure" envconfig:"INSECURE"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		Log:     LogConfig{Level: "info", Format: "text"},
		Kiosk: KioskConfig{
			IdleTimeoutSeconds: 60,
			IdleTick:           time.Second,
			GenerationPoll:     3 * time.Second,
			ProgressInterval:   500 * time.Millisecond,
			PrintPoll:          2 * time.Second,
			PrintGrace:         3 * time.Second,
			MaxPollAttempts:    5,
			CallTimeout:        30 * time.Second,
		},
		Generation: GenerationConfig{
			Backend:          "sim",
			ImageCount:       4,
			Width:            1024,
			Height:           768,
			StylePoll:        2 * time.Second,
			StyleMaxAttempts: 30,
			Timeout:          30 * time.Second,
			FallbackEnabled:  true,
			FallbackDelay:    10 * time.Second,
			SimCompleteAfter: 2,
		},
		Translation: TranslationConfig{TargetLanguage: "English"},
		Print: PrintConfig{
			Backend:      "sim",
			QueueDelay:   time.Second,
			ProcessDelay: 3 * time.Second,
		},
		Capture: CaptureConfig{Backend: "file"},
		Plugin: PluginConfig{
			Name:         "devsim",
			StartTimeout: 5 * time.Second,
			CallTimeout:  10 * time.Second,
		},
	}
}

// Load layers defaults, the optional YAML file and PIXELBOOTH_* environment
// variables, then validates the result. An empty file path means
// <dataDir>/pixelbooth.yaml.
func Load(dataDir, file string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	cfg := Default(dataDir)

	if file == "" {
		file = filepath.Join(dataDir, FileName)
	}
	raw, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", file, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file %s: %w", file, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("apply environment: %w", err)
	}
	cfg.DataDir = dataDir
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "pixelbooth.db")
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = filepath.Join(c.DataDir, "sessions")
	}
	if c.Print.SpoolDir == "" {
		c.Print.SpoolDir = filepath.Join(c.DataDir, "spool")
	}
	if c.Capture.Dir == "" {
		c.Capture.Dir = filepath.Join(c.DataDir, "captures")
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Kiosk.IdleTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("kiosk.idle_timeout_seconds must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"kiosk.idle_tick":         c.Kiosk.IdleTick,
		"kiosk.generation_poll":   c.Kiosk.GenerationPoll,
		"kiosk.progress_interval": c.Kiosk.ProgressInterval,
		"kiosk.print_poll":        c.Kiosk.PrintPoll,
		"generation.style_poll":   c.Generation.StylePoll,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Kiosk.MaxPollAttempts <= 0 {
		errs = append(errs, fmt.Errorf("kiosk.max_poll_attempts must be positive"))
	}
	if c.Generation.ImageCount < 1 || c.Generation.ImageCount > 8 {
		errs = append(errs, fmt.Errorf("generation.image_count must be between 1 and 8"))
	}
	if c.Generation.Width <= 0 || c.Generation.Height <= 0 {
		errs = append(errs, fmt.Errorf("generation.width and generation.height must be positive"))
	}
	if c.Generation.FallbackDelay < 0 {
		errs = append(errs, fmt.Errorf("generation.fallback_delay must not be negative"))
	}
	switch c.Generation.Backend {
	case "sim":
	case "rest":
		if c.Generation.Endpoint == "" {
			errs = append(errs, fmt.Errorf("generation.endpoint is required for the rest backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown generation backend %q", c.Generation.Backend))
	}
	if c.Translation.Enabled && c.Translation.Endpoint == "" {
		errs = append(errs, fmt.Errorf("translation.endpoint is required when translation is enabled"))
	}
	switch c.Print.Backend {
	case "sim":
	case "http":
		if c.Print.Endpoint == "" {
			errs = append(errs, fmt.Errorf("print.endpoint is required for the http backend"))
		}
	case "plugin":
		if c.Plugin.Binary == "" {
			errs = append(errs, fmt.Errorf("plugin.binary is required for the plugin print backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown print backend %q", c.Print.Backend))
	}
	switch c.Capture.Backend {
	case "file":
	case "plugin":
		if c.Plugin.Binary == "" {
			errs = append(errs, fmt.Errorf("plugin.binary is required for the plugin capture backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown capture backend %q", c.Capture.Backend))
	}
	if c.OTel.Enabled && c.OTel.Endpoint == "" {
		errs = append(errs, fmt.Errorf("otel.endpoint is required when otel is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
