package main

import (
	"fmt"
	"os"

	"github.com/bitboard/bitboard-deploy/internal/cli"
)

// Set via ldflags at release time.
var version = "dev"

func main() {
	app := cli.New()
	app.SetVersion(version)

	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
