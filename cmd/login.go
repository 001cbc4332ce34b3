// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/session"
	"bulkctl/cli/internal/terminal"
	"bulkctl/cli/internal/versions"

	"github.com/spf13/cobra"
)

var (
	loginUsername    string
	loginInstanceURL string
	loginToken       string
	loginSandbox     bool
)

// loginCmd stores a Salesforce session in the OS keychain.
// With --instance-url and --token the pair is stored as given; otherwise the
// OAuth 2.0 username-password flow runs against the configured connected app.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Log in to Salesforce and store the session",
	Long: `The login command obtains a Salesforce session and stores it securely in the
OS keychain for the other commands.

By default it runs the OAuth 2.0 username-password flow. The connected app's
client id comes from login.client_id in the config file (or BULKCTL_CLIENT_ID)
and its secret from BULKCTL_CLIENT_SECRET. The password and security token are
read from BULKCTL_PASSWORD and BULKCTL_SECURITY_TOKEN or prompted for.

An existing session can be stored instead with --instance-url and --token.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		store := sessionStore()
		if store == nil {
			return errors.New(errors.Configuration, "secure storage is not available on this system; set BULKCTL_ACCESS_TOKEN and BULKCTL_INSTANCE_URL instead")
		}

		var (
			sess  *session.Session
			state session.State
			err   error
		)
		if loginToken != "" || loginInstanceURL != "" {
			sess, err = session.New(loginToken, loginInstanceURL)
			if err != nil {
				return err
			}
			state.Method = "token"
		} else {
			sess, err = passwordLogin(ctx)
			if err != nil {
				return err
			}
			state.Method = "password"
			state.Username = loginUsername
		}

		// Check the session before saving it
		stopSpinner := startInlineSpinner(os.Stdout, "verifying session", spinnerFrames, 120*time.Millisecond)
		versions.ClearCache()
		latest, err := versionService().Latest(ctx, sess)
		stopSpinner()
		if err != nil {
			return explain(err, "verifying the session", sess.InstanceURL())
		}

		state.LoginAt = time.Now().UTC()
		if err := session.Save(store, sess, state); err != nil {
			return err
		}

		who := state.Username
		if who == "" {
			who = sess.InstanceURL()
		}
		fmt.Printf("✅ Logged in as %s\n", who)
		fmt.Printf("   Instance %s, API %s available\n", sess.InstanceURL(), latest.Version)
		return nil
	},
}

func passwordLogin(ctx context.Context) (*session.Session, error) {
	lc := session.LoginConfig{
		LoginURL:      cfg.Login.URL,
		ClientID:      cfg.Login.ClientID,
		ClientSecret:  os.Getenv("BULKCTL_CLIENT_SECRET"),
		Username:      loginUsername,
		Password:      os.Getenv("BULKCTL_PASSWORD"),
		SecurityToken: os.Getenv("BULKCTL_SECURITY_TOKEN"),
	}
	if loginSandbox {
		lc.LoginURL = "https://test.salesforce.com"
	}
	if lc.ClientID == "" {
		return nil, errors.New(errors.Configuration, "no connected app configured. Set login.client_id or BULKCTL_CLIENT_ID")
	}

	var err error
	if lc.Username == "" {
		if lc.Username, err = terminal.ReadLine("Username: "); err != nil {
			return nil, err
		}
		loginUsername = lc.Username
	}
	if lc.Password == "" {
		if !terminal.IsInteractive() {
			return nil, errors.New(errors.Configuration, "no password given. Set BULKCTL_PASSWORD or run in a terminal")
		}
		if lc.Password, err = terminal.ReadSecret("Password: "); err != nil {
			return nil, err
		}
		if lc.SecurityToken == "" {
			if lc.SecurityToken, err = terminal.ReadSecret("Security token (empty if not required): "); err != nil {
				return nil, err
			}
		}
	}

	stopSpinner := startInlineSpinner(os.Stdout, "logging in", spinnerFrames, 120*time.Millisecond)
	defer stopSpinner()
	sess, err := session.PasswordLogin(ctx, lc)
	if err != nil {
		return nil, explain(err, "logging in", lc.TokenURL())
	}
	return sess, nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Salesforce username")
	loginCmd.Flags().StringVar(&loginInstanceURL, "instance-url", "", "Instance URL of an existing session")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Access token of an existing session")
	loginCmd.Flags().BoolVar(&loginSandbox, "sandbox", false, "Log in to test.salesforce.com")
}
