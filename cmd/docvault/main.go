// Package main provides the entry point for the docvault CLI.
package main

import (
	"os"

	"github.com/kailas-cloud/docvault/cmd/docvault/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
