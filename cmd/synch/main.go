// Package main is the entry point for the synch command.
package main

import (
	"os"

	"github.com/klxm/synch/cmd/synch/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
