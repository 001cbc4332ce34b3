package cmd

import (
	"io"
	"os"
	"strings"

	"bulkctl/cli/internal/bulk"
	"bulkctl/cli/internal/config"
	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/progress"
	"bulkctl/cli/internal/sink"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	querySOQL   string
	queryAll    bool
	queryFormat string
	queryOut    string
)

// queryCmd runs a Bulk API 1.0 query job and prints the rows.
var queryCmd = &cobra.Command{
	Use:   "query <object>",
	Short: "Export records with a bulk query job",
	Long: `The query command runs a SOQL query as a Bulk API 1.0 job and writes the rows
as CSV or JSON. With --all, deleted and archived records are included.

Example:
  bulkctl query Account --soql "SELECT Id, Name FROM Account" --out accounts.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if strings.TrimSpace(querySOQL) == "" {
			return errors.New(errors.Configuration, "--soql is required")
		}
		format := strings.ToLower(queryFormat)
		if format != "csv" && format != "json" {
			return errors.Newf(errors.Configuration, "format must be csv or json, got %q", queryFormat)
		}

		sess, err := loadSession()
		if err != nil {
			return err
		}
		op := bulk.OpQuery
		if queryAll {
			op = bulk.OpQueryAll
		}
		req := &bulk.Request{
			Object:       args[0],
			Operation:    op,
			Query:        querySOQL,
			BatchSize:    cfg.BatchSize,
			PollInterval: cfg.PollInterval,
		}

		renderer := progress.NewRenderer(progress.NewState(string(op) + " " + req.Object))
		controller, closeLocks, err := newController(ctx, config.APIv1, sess, renderer.Observer())
		if err != nil {
			return err
		}
		defer closeLocks()

		renderer.Start()
		res, err := controller.Run(ctx, req)
		renderer.Stop()
		if err != nil {
			return explain(err, "running the query job", sess.InstanceURL())
		}

		var w io.Writer = os.Stdout
		if queryOut != "" && queryOut != "-" {
			f, err := os.OpenFile(queryOut, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if format == "json" {
			err = sink.WriteJSON(w, res.Rows)
		} else {
			err = sink.WriteRowsCSV(w, res.Rows)
		}
		if err != nil {
			return err
		}
		if w != os.Stdout {
			pterm.Success.Printfln("Job %s returned %d rows: %s", res.JobID, len(res.Rows), queryOut)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&querySOQL, "soql", "q", "", "SOQL query text")
	queryCmd.Flags().BoolVar(&queryAll, "all", false, "Include deleted and archived records (queryAll)")
	queryCmd.Flags().StringVar(&queryFormat, "format", "csv", "Output format: csv or json")
	queryCmd.Flags().StringVar(&queryOut, "out", "", "Output file (default stdout)")
}
