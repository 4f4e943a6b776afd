// Package cli contains the stepwise command line.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	generalFlagConfig = "config"
	generalFlagDebug  = "debug"

	hopFlagKnots    = "knots"
	hopFlagHeight   = "height"
	hopFlagDuration = "duration"
	hopFlagMass     = "mass"
	hopFlagMethod   = "method"
)

var app = &cli.App{
	Name:            "stepwise",
	Usage:           "solve trajectory optimization problems",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    generalFlagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE` (yaml, json or toml)",
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "hop",
			Usage:     "solve the vertical hop of a point mass",
			UsageText: "stepwise [global options] hop [--knots N] [--height M] [--duration S] [--mass KG] [--method NAME]",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  hopFlagKnots,
					Usage: "number of knots of the trajectory",
				},
				&cli.Float64Flag{
					Name:  hopFlagHeight,
					Usage: "target height in meters",
				},
				&cli.Float64Flag{
					Name:  hopFlagDuration,
					Usage: "duration of the hop in seconds",
				},
				&cli.Float64Flag{
					Name:  hopFlagMass,
					Usage: "mass in kilograms",
				},
				&cli.StringFlag{
					Name:  hopFlagMethod,
					Usage: "optimization method, see `stepwise methods`",
				},
			},
			Action: HopAction,
		},
		{
			Name:   "methods",
			Usage:  "list the available optimization methods",
			Action: MethodsAction,
		},
	},
}

// NewApp returns the app with the given outputs.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
