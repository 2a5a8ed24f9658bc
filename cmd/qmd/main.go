// Package main provides the entry point for the qmd CLI.
package main

import (
	"os"

	"github.com/quickmd/qmd/cmd/qmd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
