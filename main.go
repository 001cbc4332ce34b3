// Package main is the entry point for bulkctl, a command-line client for the
// Salesforce Bulk APIs.
package main

import (
	"bulkctl/cli/cmd"
)

// main is the entry point for bulkctl.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
