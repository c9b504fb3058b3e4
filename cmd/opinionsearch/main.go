// Package main provides the entry point for the opinionsearch CLI.
package main

import (
	"os"

	"github.com/fppclabs/opinionsearch/cmd/opinionsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
