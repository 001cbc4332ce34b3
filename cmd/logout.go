// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"bulkctl/cli/internal/keychain"
	"bulkctl/cli/internal/versions"

	"github.com/spf13/cobra"
)

var logoutKeepDB bool

// logoutCmd represents the logout command for clearing authentication state.
// Salesforce sessions are not revoked remotely; they expire on their own.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved session and credentials",
	Long: `The logout command clears the stored Salesforce session from the OS keychain.

This command removes:
- The access token and instance URL
- Local login state
- Database connection credentials (unless --keep-db is set)
- Any cached API version information`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if km, err := keychain.GetManager(); err == nil {
			_ = km.ClearAuth()
			if !logoutKeepDB {
				_ = km.ClearDB()
			}
		}
		versions.ClearCache()

		fmt.Println("✅ Session and credentials have been removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&logoutKeepDB, "keep-db", false, "Keep the saved database connection")
}
