// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bulkctl/cli/internal/bulk"
	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/progress"
	"bulkctl/cli/internal/sink"
	"bulkctl/cli/internal/source"
	"bulkctl/cli/internal/xdg"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	loadOperation   string
	loadFile        string
	loadSQL         string
	loadAPI         string
	loadBatchSize   int
	loadPoll        time.Duration
	loadExternalID  string
	loadConcurrency string
	loadDelimiter   string
	loadLineEnding  string
	loadOutput      string
	loadJSON        bool
)

// loadCmd runs one ingest job: records in, per-record results out.
var loadCmd = &cobra.Command{
	Use:   "load <object>",
	Short: "Insert, update, upsert or delete records with a bulk job",
	Long: `The load command creates a bulk job for the given object, uploads the records,
waits until Salesforce has processed every batch and writes the per-record results.

Records come from a JSON file (an array of objects or JSON lines, '-' for stdin)
or from a SQL query against the database saved by 'bulkctl connect'. Column
names become field names; a null value clears the field.

Bulk API 2.0 results are saved as the successful, failed and unprocessed CSV
files Salesforce returns. Bulk API 1.0 results are saved as one CSV in upload
order.

Examples:
  bulkctl load Account --operation insert --file accounts.json
  bulkctl load Contact --operation upsert --external-id Ext_Id__c --sql "SELECT ..."
  bulkctl load Account --operation delete --api v1 --file ids.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		op, err := bulk.ParseOperation(loadOperation)
		if err != nil {
			return err
		}
		if op.IsQuery() {
			return errors.New(errors.Configuration, "use 'bulkctl query' for query jobs")
		}
		if (loadFile == "") == (loadSQL == "") {
			return errors.New(errors.Configuration, "exactly one of --file or --sql is required")
		}

		sess, err := loadSession()
		if err != nil {
			return err
		}

		var records []bulk.Record
		if loadFile != "" {
			records, err = source.ReadJSONFile(loadFile)
		} else {
			pool, perr := openPool(ctx)
			if perr != nil {
				return perr
			}
			records, err = source.Postgres(ctx, pool, loadSQL)
			pool.Close()
		}
		if err != nil {
			return err
		}
		logger.Debug("records read", logger.Args("count", len(records)))

		api := cfg.API
		if loadAPI != "" {
			api = loadAPI
		}
		req := &bulk.Request{
			Object:          args[0],
			Operation:       op,
			Records:         records,
			BatchSize:       cfg.BatchSize,
			PollInterval:    cfg.PollInterval,
			ExternalIDField: loadExternalID,
			ConcurrencyMode: loadConcurrency,
			ColumnDelimiter: loadDelimiter,
			LineEnding:      loadLineEnding,
		}
		if loadBatchSize > 0 {
			req.BatchSize = loadBatchSize
		}
		if loadPoll > 0 {
			req.PollInterval = loadPoll
		}

		state := progress.NewState(fmt.Sprintf("%s %s (%d records)", op, req.Object, len(records)))
		renderer := progress.NewRenderer(state)
		controller, closeLocks, err := newController(ctx, api, sess, renderer.Observer())
		if err != nil {
			return err
		}
		defer closeLocks()

		renderer.Start()
		res, err := controller.Run(ctx, req)
		renderer.Stop()
		if err != nil {
			return explain(err, "running the bulk job", sess.InstanceURL())
		}
		return writeLoadResult(res)
	},
}

func writeLoadResult(res *bulk.Result) error {
	if loadJSON {
		return sink.WriteJSON(os.Stdout, res)
	}

	dir, err := outputDir(loadOutput)
	if err != nil {
		return err
	}
	var paths []string
	if res.Backend == "v1" {
		p := filepath.Join(dir, res.JobID+"-results.csv")
		if err := writeFile(p, func(f *os.File) error { return sink.WriteRecordsCSV(f, res.Records) }); err != nil {
			return err
		}
		paths = append(paths, p)
	} else {
		paths, err = sink.WriteResultSets(dir, res.JobID, res.Successful, res.Failed, res.Unprocessed)
		if err != nil {
			return err
		}
	}

	total, failed := res.Count(), res.FailedCount()
	if failed == 0 {
		pterm.Success.Printfln("Job %s finished: %d records processed", res.JobID, total)
	} else {
		pterm.Warning.Printfln("Job %s finished: %d records, %d not processed successfully", res.JobID, total, failed)
	}
	for _, p := range paths {
		fmt.Printf("   %s\n", p)
	}
	return nil
}

// outputDir returns dir, or <state dir>/results when empty, creating it.
func outputDir(dir string) (string, error) {
	if dir == "" {
		state, err := xdg.StateDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(state, "results")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVarP(&loadOperation, "operation", "o", "insert", "insert, update, upsert, delete or hardDelete")
	loadCmd.Flags().StringVarP(&loadFile, "file", "f", "", "JSON file with the records ('-' for stdin)")
	loadCmd.Flags().StringVar(&loadSQL, "sql", "", "SQL query producing the records")
	loadCmd.Flags().StringVar(&loadAPI, "api", "", "Bulk API generation: v1 or v2 (default from config)")
	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", 0, "Records per v1 batch (default from config)")
	loadCmd.Flags().DurationVar(&loadPoll, "poll-interval", 0, "Time between status checks (default from config)")
	loadCmd.Flags().StringVar(&loadExternalID, "external-id", "", "External id field for upsert")
	loadCmd.Flags().StringVar(&loadConcurrency, "concurrency-mode", "", "v1 only: Parallel or Serial")
	loadCmd.Flags().StringVar(&loadDelimiter, "delimiter", "", "v2 only: COMMA, TAB, PIPE, SEMICOLON, CARET or BACKQUOTE")
	loadCmd.Flags().StringVar(&loadLineEnding, "line-ending", "", "v2 only: LF or CRLF")
	loadCmd.Flags().StringVar(&loadOutput, "output", "", "Directory for result files (default $XDG_STATE_HOME/bulkctl/results)")
	loadCmd.Flags().BoolVar(&loadJSON, "json", false, "Print the result as JSON instead of writing files")
}
