package training

import (
	"crimewatch/internal/adapters/config"
	"crimewatch/pkg/errors"
)

// Options configure one training run
type Options struct {
	FromYear         int
	ToYear           int
	MinLabelSupport  int // labels need strictly more rows than this
	Candidates       []int
	TestRatio        float64
	Folds            int // < 2 disables cross-validation
	Seed             int64
	Workers          int
	AllowSingleClass bool
}

// DefaultOptions mirrors the documented defaults
func DefaultOptions() Options {
	return Options{
		FromYear:        2020,
		ToYear:          2024,
		MinLabelSupport: 50,
		Candidates:      []int{100, 200, 300},
		TestRatio:       0.2,
		Folds:           5,
		Seed:            42,
	}
}

// OptionsFromConfig maps the trainer config section
func OptionsFromConfig(cfg config.TrainerConfig) Options {
	return Options{
		FromYear:         cfg.FromYear,
		ToYear:           cfg.ToYear,
		MinLabelSupport:  cfg.MinLabelSupport,
		Candidates:       cfg.Candidates,
		TestRatio:        cfg.TestRatio,
		Folds:            cfg.Folds,
		Seed:             cfg.Seed,
		Workers:          cfg.Workers,
		AllowSingleClass: cfg.AllowSingleClass,
	}
}

func (o Options) validate() error {
	if o.FromYear > o.ToYear {
		return errors.NewValidationError("from_year", "must not exceed to_year", o.FromYear)
	}
	if len(o.Candidates) == 0 {
		return errors.NewValidationError("candidates", "at least one forest size required", o.Candidates)
	}
	for _, n := range o.Candidates {
		if n <= 0 {
			return errors.NewValidationError("candidates", "forest sizes must be positive", n)
		}
	}
	if o.TestRatio <= 0 || o.TestRatio >= 1 {
		return errors.NewValidationError("test_ratio", "must be in (0,1)", o.TestRatio)
	}
	if o.MinLabelSupport < 0 {
		return errors.NewValidationError("min_label_support", "must not be negative", o.MinLabelSupport)
	}
	return nil
}
