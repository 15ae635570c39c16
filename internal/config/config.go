// Package config loads service configuration from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

type Config struct {
	Server  Server  `yaml:"server"`
	Log     Log     `yaml:"log"`
	Solver  Solver  `yaml:"solver"`
	Handoff Handoff `yaml:"handoff"`
	Capture Capture `yaml:"capture"`
}

type Server struct {
	Addr              string        `yaml:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gte=0"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes" validate:"gt=0"`
}

type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type Solver struct {
	Kind    string        `yaml:"kind" validate:"oneof=mock remote"`
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	Delay   time.Duration `yaml:"delay" validate:"gte=0"`
	Rate    float64       `yaml:"rate" validate:"gte=0"`
	Burst   int           `yaml:"burst" validate:"gte=0"`
}

type Handoff struct {
	Backend  string        `yaml:"backend" validate:"oneof=memory fs sqlite redis badger"`
	Path     string        `yaml:"path" validate:"required_if=Backend fs,required_if=Backend sqlite"`
	RedisURL string        `yaml:"redis_url" validate:"required_if=Backend redis"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
	MaxBytes int           `yaml:"max_bytes" validate:"gte=0"`
}

type Capture struct {
	ManualColor    string `yaml:"manual_color" validate:"rgbhex"`
	ExtractWorkers int    `yaml:"extract_workers" validate:"gte=0,lte=64"`
}

// ManualFill parses Capture.ManualColor. Load has already validated it.
func (c Capture) ManualFill() domain.Color {
	col, err := domain.ParseColor(c.ManualColor)
	if err != nil {
		return domain.Red
	}
	return col
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", ReadHeaderTimeout: 5 * time.Second, MaxUploadBytes: 32 << 20},
		Log:    Log{Level: "info", Format: "text"},
		Solver: Solver{Kind: "mock", Timeout: 30 * time.Second, Delay: 1500 * time.Millisecond, Rate: 5, Burst: 5},
		Handoff: Handoff{
			Backend:  "memory",
			TTL:      24 * time.Hour,
			MaxBytes: 256 << 10,
		},
		Capture: Capture{ManualColor: "#FF0000"},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("rgbhex", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseColor(fl.Field().String())
		return err == nil
	})
	return v
}

// Load reads the YAML file at path (if non-empty) over the defaults, then
// applies CUBEBUDDY_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse reads YAML from data over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(bytes.NewReader(data), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Solver.Kind == "remote" && c.Solver.URL == "" {
		return errors.New("invalid config: solver.url is required for the remote solver")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Server.Addr = getEnv("CUBEBUDDY_ADDR", cfg.Server.Addr)
	cfg.Log.Level = getEnv("CUBEBUDDY_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("CUBEBUDDY_LOG_FORMAT", cfg.Log.Format)
	cfg.Solver.Kind = getEnv("CUBEBUDDY_SOLVER", cfg.Solver.Kind)
	cfg.Solver.URL = getEnv("CUBEBUDDY_SOLVER_URL", cfg.Solver.URL)
	cfg.Handoff.Backend = getEnv("CUBEBUDDY_HANDOFF", cfg.Handoff.Backend)
	cfg.Handoff.Path = getEnv("CUBEBUDDY_HANDOFF_PATH", cfg.Handoff.Path)
	cfg.Handoff.RedisURL = getEnv("CUBEBUDDY_REDIS_URL", cfg.Handoff.RedisURL)

	var err error
	if cfg.Solver.Timeout, err = getDuration("CUBEBUDDY_SOLVER_TIMEOUT", cfg.Solver.Timeout); err != nil {
		return err
	}
	if cfg.Solver.Delay, err = getDuration("CUBEBUDDY_SOLVER_DELAY", cfg.Solver.Delay); err != nil {
		return err
	}
	if cfg.Handoff.TTL, err = getDuration("CUBEBUDDY_HANDOFF_TTL", cfg.Handoff.TTL); err != nil {
		return err
	}
	if v := os.Getenv("CUBEBUDDY_EXTRACT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CUBEBUDDY_EXTRACT_WORKERS: %w", err)
		}
		cfg.Capture.ExtractWorkers = n
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
