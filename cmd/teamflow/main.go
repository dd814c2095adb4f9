// Package main provides the entry point for the teamflow CLI.
package main

import (
	"os"

	"github.com/teamflowhq/teamflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
