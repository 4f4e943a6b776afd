// Package nloptmethod registers the "slsqp" method, sequential least squares programming from
// NLopt. It needs cgo; importing the package in a no_cgo build registers nothing.
package nloptmethod

import (
	"github.com/pkg/errors"
)

// Name is the name the method is registered under.
const Name = "slsqp"

// Config are the options of the "slsqp" method.
type Config struct {
	MaxEval       int     `json:"max_eval"`
	FtolRel       float64 `json:"ftol_rel"`
	XtolRel       float64 `json:"xtol_rel"`
	ConstraintTol float64 `json:"constraint_tol"`
}

// DefaultConfig returns the defaults of the "slsqp" method.
func DefaultConfig() Config {
	return Config{
		MaxEval:       5000,
		FtolRel:       1e-12,
		XtolRel:       1e-10,
		ConstraintTol: 1e-8,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate() error {
	if cfg.MaxEval < 1 {
		return errors.Errorf("max_eval must be positive, got %d", cfg.MaxEval)
	}
	if cfg.FtolRel < 0 || cfg.XtolRel < 0 {
		return errors.New("ftol_rel and xtol_rel cannot be negative")
	}
	if cfg.ConstraintTol <= 0 {
		return errors.Errorf("constraint_tol must be positive, got %g", cfg.ConstraintTol)
	}
	return nil
}
