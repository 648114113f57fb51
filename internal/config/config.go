// Package config loads the YAML-driven hyperparameters shared by every
// cmd/morfex subcommand, overridable by CLI flags at the call site.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries every named hyperparameter from the unigram and bigram
// trainers plus the global lattice-building constants.
type Config struct {
	// Lattice / shared constants.
	BoundarySymbol string `yaml:"boundary_symbol"`
	UTF8           bool   `yaml:"utf8"`
	MaxFactorChars int    `yaml:"max_factor_chars"`
	Threads        int    `yaml:"threads"`

	// Unigram trainer.
	OneCharMinLP     float64  `yaml:"one_char_min_lp"`
	FloorLP          float64  `yaml:"floor_lp"`
	TargetVocabSize  int      `yaml:"target_vocab_size"`
	RemovalsPerIter  int      `yaml:"removals_per_iter"`
	NCandidates      int      `yaml:"n_candidates"`
	MinRemovalLength int      `yaml:"min_removal_length"`
	ForwardBackward  bool     `yaml:"forward_backward"`
	Seed             int64    `yaml:"seed"`
	Strategies       []string `yaml:"strategies"`

	// Bigram trainer.
	UseKN             bool    `yaml:"use_kn"`
	KNDiscount        float64 `yaml:"kn_discount"`
	TempVocabInterval int     `yaml:"temp_vocab_interval"`
	ResettleIters     int     `yaml:"resettle_iters"`
	DivideByDegree    bool    `yaml:"divide_by_degree"`

	// Driver.
	UnigramWarmupIters int `yaml:"unigram_warmup_iters"`
}

// DefaultOneCharMinLP is the OneCharMinLP value set by Default (spec.md
// §4.6 default -25).
const DefaultOneCharMinLP = -25.0

// Default returns a Config with spec.md's documented defaults.
func Default() Config {
	return Config{
		BoundarySymbol:   "*",
		OneCharMinLP:     DefaultOneCharMinLP,
		FloorLP:          -30,
		RemovalsPerIter:  1,
		NCandidates:      10,
		MinRemovalLength: 1,
		Threads:          1,
		ResettleIters:    0,
	}
}

// Load reads and validates a YAML config file, starting from Default()
// so any field the file omits keeps its documented default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the constraints spec.md's hyperparameters carry
// implicitly (positive sizes, a non-empty boundary symbol).
func Validate(cfg Config) error {
	if cfg.BoundarySymbol == "" {
		return fmt.Errorf("boundary_symbol must not be empty")
	}
	if cfg.TargetVocabSize < 0 {
		return fmt.Errorf("target_vocab_size must be >= 0, got %d", cfg.TargetVocabSize)
	}
	if cfg.RemovalsPerIter <= 0 {
		return fmt.Errorf("removals_per_iter must be > 0, got %d", cfg.RemovalsPerIter)
	}
	if cfg.Threads < 0 {
		return fmt.Errorf("threads must be >= 0, got %d", cfg.Threads)
	}
	if cfg.UseKN && cfg.KNDiscount <= 0 {
		return fmt.Errorf("kn_discount must be > 0 when use_kn is set, got %g", cfg.KNDiscount)
	}
	return nil
}
