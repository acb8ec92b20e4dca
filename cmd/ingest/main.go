// Package main provides the command-line entry point for the ingest tool.
package main

import (
	"fmt"
	"os"

	"github.com/stanstork/stratum-embed/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
