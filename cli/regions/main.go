// Package main is the regions command itself.
package main

import (
	"os"

	"go.viam.com/regions/cli"
	"go.viam.com/regions/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.Global().Error(err)
		os.Exit(1)
	}
}
