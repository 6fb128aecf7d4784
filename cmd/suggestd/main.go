// Package main provides the entry point for the suggestd service.
package main

import (
	"os"

	"github.com/zakupnik/suggestd/cmd/suggestd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
