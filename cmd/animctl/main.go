// Package main is the entry point for animctl, a terminal client for plan
// step animations.
package main

import (
	"os"

	"planner/cmd/animctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
