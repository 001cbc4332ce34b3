package cmd

import (
	"context"
	"fmt"
	"time"

	"bulkctl/cli/internal/session"

	"github.com/spf13/cobra"
)

// whoamiCmd shows the stored login state and, when the session still works,
// the newest API version of the instance.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current Salesforce session",
	Long: `The whoami command displays the user and instance of the stored session.
It checks the session against the instance by listing its API versions, so an
expired token is reported here rather than in the middle of a job.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			fmt.Println("🔒 You're not logged in yet!")
			fmt.Println("   Run 'bulkctl login' to get started.")
			return nil
		}

		var st session.State
		if store := sessionStore(); store != nil {
			st, _ = session.LoadState(store)
		}
		who := st.Username
		if who == "" {
			who = "session token"
		}
		fmt.Printf("👤 Current user: %s\n", who)
		fmt.Printf("   Instance: %s\n", sess.InstanceURL())
		if !st.LoginAt.IsZero() {
			fmt.Printf("   Logged in: %s (%s)\n", st.LoginAt.Local().Format(time.DateTime), st.Method)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		latest, err := versionService().Latest(ctx, sess)
		if err != nil {
			fmt.Println("⚠️  The session could not be verified. Run 'bulkctl login' again if it has expired.")
			logger.Debug("verify session", logger.Args("error", err))
			return nil
		}
		fmt.Printf("   API: %s (%s)\n", latest.Version, latest.Label)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
