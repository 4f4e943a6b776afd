// Package main is the stepwise command line.
package main

import (
	"fmt"
	"os"

	// Registers the slsqp method.
	_ "github.com/ami-iit/stepwise/opti/nloptmethod"

	"github.com/ami-iit/stepwise/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
