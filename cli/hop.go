package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/ami-iit/stepwise/internal/pointmass"
	"github.com/ami-iit/stepwise/logging"
	"github.com/ami-iit/stepwise/opti"
	"github.com/ami-iit/stepwise/optimization"
)

// fileConfig is the layout of the configuration file.
type fileConfig struct {
	Hop    map[string]any `json:"hop"`
	Solver map[string]any `json:"solver"`
}

// readConfig reads the hop and solver configuration from the config file, if any, and applies
// the flags on top of it.
func readConfig(c *cli.Context) (pointmass.Config, optimization.Config, error) {
	var raw fileConfig
	if path := c.String(generalFlagConfig); path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return pointmass.Config{}, optimization.Config{}, errors.Wrapf(err, "cannot read config file %q", path)
		}
		if err := opti.DecodeOptions(v.AllSettings(), &raw); err != nil {
			return pointmass.Config{}, optimization.Config{}, errors.Wrapf(err, "invalid config file %q", path)
		}
	}

	hopCfg, err := pointmass.DecodeConfig(raw.Hop)
	if err != nil {
		return pointmass.Config{}, optimization.Config{}, err
	}
	solverCfg, err := optimization.DecodeConfig(raw.Solver)
	if err != nil {
		return pointmass.Config{}, optimization.Config{}, err
	}

	if c.IsSet(hopFlagKnots) {
		hopCfg.Knots = c.Int(hopFlagKnots)
	}
	if c.IsSet(hopFlagHeight) {
		hopCfg.Height = c.Float64(hopFlagHeight)
	}
	if c.IsSet(hopFlagDuration) {
		hopCfg.Duration = c.Float64(hopFlagDuration)
	}
	if c.IsSet(hopFlagMass) {
		hopCfg.Mass = c.Float64(hopFlagMass)
	}
	if c.IsSet(hopFlagMethod) {
		solverCfg.InnerSolver = c.String(hopFlagMethod)
	}
	return hopCfg, solverCfg, nil
}

func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("stepwise")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	} else {
		logger.SetLevel(logging.WARN)
	}
	return logger
}

// HopAction solves the point mass hop and prints the trajectory.
func HopAction(c *cli.Context) error {
	hopCfg, solverCfg, err := readConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c)
	//nolint:errcheck
	defer logger.Sync()

	s, err := optimization.NewOptiSolver(solverCfg, logger)
	if err != nil {
		return err
	}
	sol, err := pointmass.Solve(c.Context, s, hopCfg)
	if err != nil {
		return errors.Wrap(err, "hop could not be solved")
	}
	fmt.Fprintln(c.App.Writer, sol.String())
	return nil
}

// MethodsAction lists the registered optimization methods.
func MethodsAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Method", "Default"})
	for _, method := range opti.RegisteredMethods() {
		def := ""
		if method == opti.DefaultMethod {
			def = "*"
		}
		t.AppendRow(table.Row{method, def})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}
