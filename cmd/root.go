// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for bulkctl.
// It implements subcommands for loading and querying Salesforce data through
// the Bulk APIs, inspecting jobs, and managing the stored session, using the
// Cobra CLI framework.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bulkctl/cli/internal/config"
	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	showVersion bool
	verbose     bool
	configPath  string
	logLevel    string

	// cfg and logger are set before any subcommand runs.
	cfg    *config.Config
	logger *pterm.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bulkctl",
	Short: "Run Salesforce Bulk API jobs from the command line",
	Long: `bulkctl creates Salesforce Bulk API 1.0 and 2.0 jobs, uploads records,
waits for the jobs to finish and collects per-record results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFromEnv(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		if verbose {
			c.LogLevel = "debug"
			os.Setenv("BULKCTL_VERBOSE", "1")
		}
		l, err := logging.New(c.LogLevel, nil)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("bulkctl %s\n", Version)

			// Report the newest API version when a session is available
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			sess, err := loadSession()
			if err != nil {
				return nil
			}
			if v, err := versionService().Latest(ctx, sess); err == nil {
				fmt.Printf("api   %s (%s)\n", v.Version, v.Label)
			}
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// Bulk job failures are explained with their stage and job id; other errors
// are printed as is.
// Ctrl-C cancels the running command; remote jobs are left as they are.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if _, ok := errors.As(err); ok {
			fmt.Fprintln(os.Stderr, logging.FormatJobError(err))
		} else {
			fmt.Fprintln(os.Stderr, logging.Mask(err.Error()))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI and latest API version information")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/bulkctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error or off")
}
