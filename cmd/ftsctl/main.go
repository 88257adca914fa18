// Package main provides the entry point for the ftsctl CLI.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/cmd/ftsctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
