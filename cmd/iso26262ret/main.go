// Package main provides the entry point for the iso26262ret CLI.
package main

import (
	"os"

	"github.com/PLeVasseur/iso26262-retrieval/cmd/iso26262ret/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
