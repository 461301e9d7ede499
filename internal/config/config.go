// Package config loads quantiz settings from defaults, an optional YAML
// file and QUANTIZ_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/quantiz/internal/itempool"
	"github.com/abhisek/quantiz/internal/selection"
	"github.com/abhisek/quantiz/internal/session"
	"github.com/abhisek/quantiz/internal/solver"
)

// Config is the complete runtime configuration.
type Config struct {
	// DB is a SQLite path or a postgres:// URL. Empty means the default
	// XDG data path.
	DB string `yaml:"db"`

	Session   SessionConfig   `yaml:"session"`
	Selection SelectionConfig `yaml:"selection"`
	Bank      BankConfig      `yaml:"bank"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// SessionConfig is the test rubric.
type SessionConfig struct {
	TotalBlocks       int     `yaml:"total_blocks" validate:"gte=1,lte=100"`
	QuestionsPerBlock int     `yaml:"questions_per_block" validate:"gte=1,lte=20"`
	BaseTarget        int     `yaml:"base_target" validate:"gte=1"`
	MinDifficulty     int     `yaml:"min_difficulty" validate:"gte=1"`
	MaxDifficulty     int     `yaml:"max_difficulty" validate:"gte=1"`
	RaiseThreshold    float64 `yaml:"raise_threshold" validate:"gt=0,lte=1"`
	LowerThreshold    float64 `yaml:"lower_threshold" validate:"gte=0,lt=1"`
}

// SelectionConfig tunes the optimizer and the relaxation loop.
type SelectionConfig struct {
	BaseMargin        int     `yaml:"base_margin" validate:"gte=0"`
	MaxAttempts       int     `yaml:"max_attempts" validate:"gte=1,lte=50"`
	MaxExposureWeight float64 `yaml:"max_exposure_weight" validate:"gte=0"`
	DiversityBonus    float64 `yaml:"diversity_bonus" validate:"gte=0"`
	RecentCellWindow  int     `yaml:"recent_cell_window" validate:"gte=0"`
	SolverMaxNodes    int     `yaml:"solver_max_nodes" validate:"gte=0"`

	// SolveTimeout bounds one block generation. Zero disables the guard.
	SolveTimeout time.Duration `yaml:"solve_timeout" validate:"gte=0"`
}

// BankConfig controls the generated demo bank.
type BankConfig struct {
	Seed          uint64 `yaml:"seed"`
	CellsPerTopic int    `yaml:"cells_per_topic" validate:"gte=1"`
	ItemsPerCell  int    `yaml:"items_per_cell" validate:"gte=1"`
	MaxExposure   int    `yaml:"max_exposure" validate:"gte=0"`
}

// ServerConfig configures `quantiz serve`.
type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,required"`

	// RateLimit is the sustained request rate per client, in requests per
	// second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" validate:"gte=1"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable it only behind a proxy that sets those headers.
	TrustProxy bool `yaml:"trust_proxy"`

	MaxSessions     int           `yaml:"max_sessions" validate:"gte=1"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`

	// File redirects log output. The TUI always logs to a file.
	File string `yaml:"file"`
}

// Default returns the reference configuration.
func Default() Config {
	s := session.DefaultSettings()
	b := itempool.DefaultBankConfig()
	return Config{
		Session: SessionConfig{
			TotalBlocks:       s.TotalBlocks,
			QuestionsPerBlock: s.QuestionsPerBlock,
			BaseTarget:        s.BaseTarget,
			MinDifficulty:     s.MinDifficulty,
			MaxDifficulty:     s.MaxDifficulty,
			RaiseThreshold:    s.RaiseThreshold,
			LowerThreshold:    s.LowerThreshold,
		},
		Selection: SelectionConfig{
			BaseMargin:        selection.DefaultBaseMargin,
			MaxAttempts:       selection.DefaultMaxAttempts,
			MaxExposureWeight: selection.DefaultMaxExposureWeight,
			DiversityBonus:    selection.DefaultDiversityBonus,
			RecentCellWindow:  selection.DefaultRecentCellWindow,
			SolverMaxNodes:    solver.DefaultMaxNodes,
			SolveTimeout:      10 * time.Second,
		},
		Bank: BankConfig{
			Seed:          b.Seed,
			CellsPerTopic: b.CellsPerTopic,
			ItemsPerCell:  b.ItemsPerCell,
			MaxExposure:   b.MaxExposure,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			RateLimit:       20,
			RateBurst:       40,
			MaxSessions:     1000,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from defaults, then the YAML file at path (if path is
// non-empty), then environment variables, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := Decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode overlays YAML from r onto cfg. Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv overlays QUANTIZ_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("QUANTIZ_DB"); v != "" {
		c.DB = v
	}
	if v := os.Getenv("QUANTIZ_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("QUANTIZ_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("QUANTIZ_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("QUANTIZ_BANK_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("QUANTIZ_BANK_SEED: %w", err)
		}
		c.Bank.Seed = seed
	}
	return nil
}

var validate = validator.New()

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks field ranges and the cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Session.MinDifficulty > c.Session.MaxDifficulty {
		return fmt.Errorf("%w: min_difficulty %d above max_difficulty %d",
			ErrInvalidConfig, c.Session.MinDifficulty, c.Session.MaxDifficulty)
	}
	if c.Session.LowerThreshold >= c.Session.RaiseThreshold {
		return fmt.Errorf("%w: lower_threshold %.2f not below raise_threshold %.2f",
			ErrInvalidConfig, c.Session.LowerThreshold, c.Session.RaiseThreshold)
	}
	return nil
}

// Settings converts the rubric for the session engine.
func (c Config) Settings() session.Settings {
	return session.Settings{
		TotalBlocks:       c.Session.TotalBlocks,
		QuestionsPerBlock: c.Session.QuestionsPerBlock,
		BaseTarget:        c.Session.BaseTarget,
		MinDifficulty:     c.Session.MinDifficulty,
		MaxDifficulty:     c.Session.MaxDifficulty,
		RaiseThreshold:    c.Session.RaiseThreshold,
		LowerThreshold:    c.Session.LowerThreshold,
	}
}

// Weights returns the optimizer objective weights.
func (c Config) Weights() selection.Weights {
	return selection.Weights{
		MaxExposure:    c.Selection.MaxExposureWeight,
		DiversityBonus: c.Selection.DiversityBonus,
	}
}

// RelaxConfig returns the retry policy.
func (c Config) RelaxConfig() selection.RelaxConfig {
	return selection.RelaxConfig{
		BaseMargin:  c.Selection.BaseMargin,
		MaxAttempts: c.Selection.MaxAttempts,
	}
}

// BankConfig returns the demo bank layout over the default topics.
func (c Config) BankConfig() itempool.BankConfig {
	return itempool.BankConfig{
		Topics:        itempool.DefaultTopics,
		CellsPerTopic: c.Bank.CellsPerTopic,
		ItemsPerCell:  c.Bank.ItemsPerCell,
		MaxExposure:   c.Bank.MaxExposure,
		Seed:          c.Bank.Seed,
	}
}
