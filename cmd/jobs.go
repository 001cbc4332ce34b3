package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bulkctl/cli/internal/bulk"
	"bulkctl/cli/internal/config"
	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/progress"
	"bulkctl/cli/internal/session"
	"bulkctl/cli/internal/sink"
	"bulkctl/cli/internal/terminal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	jobsAPI     string
	jobsYes     bool
	jobsType    string
	jobsLocator string
	jobsOutput  string
)

// jobsCmd groups commands that inspect and control existing jobs, including
// jobs a previous run left behind after a failure or Ctrl-C.
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and control existing bulk jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List Bulk API 2.0 ingest jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, v2, err := v2Backend(ctx)
		if err != nil {
			return err
		}
		page, err := v2.ListJobs(ctx, bulk.ListFilter{JobType: jobsType, QueryLocator: jobsLocator})
		if err != nil {
			return explain(err, "listing jobs", sess.InstanceURL())
		}
		if len(page.Records) == 0 {
			fmt.Println("No jobs found")
			return nil
		}

		data := pterm.TableData{{"ID", "OBJECT", "OPERATION", "STATE", "PROCESSED", "FAILED", "CREATED"}}
		for _, j := range page.Records {
			data = append(data, []string{
				j.ID,
				j.Object,
				j.Operation,
				j.State,
				strconv.FormatInt(j.RecordsProcessed, 10),
				strconv.FormatInt(j.RecordsFailed, 10),
				j.CreatedDate,
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		if !page.Done && page.NextRecordsURL != "" {
			if i := strings.LastIndex(page.NextRecordsURL, "queryLocator="); i >= 0 {
				fmt.Printf("\nMore jobs: bulkctl jobs list --locator %s\n", page.NextRecordsURL[i+len("queryLocator="):])
			}
		}
		return nil
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the current status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, backend, err := jobsBackend(ctx)
		if err != nil {
			return err
		}
		info, err := backend.Status(ctx, args[0])
		if err != nil {
			return explain(err, "fetching the job status", sess.InstanceURL())
		}
		printJob(info)
		return nil
	},
}

var jobsAbortCmd = &cobra.Command{
	Use:   "abort <job-id>",
	Short: "Abort a job; records already processed stay processed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !confirm(fmt.Sprintf("Abort job %s? [y/N]: ", args[0])) {
			fmt.Println("Cancelled")
			return nil
		}
		sess, backend, err := jobsBackend(ctx)
		if err != nil {
			return err
		}
		info, err := backend.AbortJob(ctx, args[0])
		if err != nil {
			return explain(err, "aborting the job", sess.InstanceURL())
		}
		pterm.Success.Printfln("Job %s is %s", info.ID, info.State)
		return nil
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a finished Bulk API 2.0 job and its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !confirm(fmt.Sprintf("Delete job %s and its results? [y/N]: ", args[0])) {
			fmt.Println("Cancelled")
			return nil
		}
		sess, v2, err := v2Backend(ctx)
		if err != nil {
			return err
		}
		if err := v2.DeleteJob(ctx, args[0]); err != nil {
			return explain(err, "deleting the job", sess.InstanceURL())
		}
		pterm.Success.Printfln("Job %s deleted", args[0])
		return nil
	},
}

var jobsResultsCmd = &cobra.Command{
	Use:   "results <job-id>",
	Short: "Wait for a job and download its results",
	Long: `The results command waits until an existing job is finished and stable, then
downloads its results the same way 'bulkctl load' does. Use it to pick up a job
after a lost connection or an interrupted run.

Bulk API 1.0 results cannot be checked against the submitted records here, so
per-batch record counts are taken as reported.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID := args[0]
		sess, err := loadSession()
		if err != nil {
			return err
		}
		renderer := progress.NewRenderer(progress.NewState("job " + jobID))
		controller, closeLocks, err := newController(ctx, jobsAPIOrDefault(), sess, renderer.Observer())
		if err != nil {
			return err
		}
		defer closeLocks()
		backend := controller.Backend()

		info, err := backend.Status(ctx, jobID)
		if err != nil {
			return explain(err, "fetching the job status", sess.InstanceURL())
		}
		op, err := bulk.ParseOperation(info.Operation)
		if err != nil {
			return err
		}
		req := &bulk.Request{
			Object:          info.Object,
			Operation:       op,
			PollInterval:    cfg.PollInterval,
			ColumnDelimiter: info.ColumnDelimiter,
		}

		var batchIDs []string
		if v1, ok := backend.(*bulk.V1Backend); ok {
			batches, err := v1.ListBatches(ctx, jobID)
			if err != nil {
				return explain(err, "listing batches", sess.InstanceURL())
			}
			for _, b := range batches {
				batchIDs = append(batchIDs, b.ID)
			}
		}

		renderer.Start()
		res, err := controller.Resume(ctx, jobID, req, batchIDs)
		renderer.Stop()
		if err != nil {
			return explain(err, "collecting results", sess.InstanceURL())
		}

		if op.IsQuery() {
			dir, err := outputDir(jobsOutput)
			if err != nil {
				return err
			}
			p := filepath.Join(dir, jobID+"-rows.csv")
			if err := writeFile(p, func(f *os.File) error { return sink.WriteRowsCSV(f, res.Rows) }); err != nil {
				return err
			}
			pterm.Success.Printfln("Job %s returned %d rows: %s", jobID, len(res.Rows), p)
			return nil
		}
		loadOutput = jobsOutput
		return writeLoadResult(res)
	},
}

func jobsAPIOrDefault() string {
	if jobsAPI != "" {
		return jobsAPI
	}
	return cfg.API
}

func jobsBackend(ctx context.Context) (*session.Session, bulk.JobBackend, error) {
	sess, err := loadSession()
	if err != nil {
		return nil, nil, err
	}
	backend, err := backendFor(ctx, jobsAPIOrDefault(), sess)
	if err != nil {
		return nil, nil, explain(err, "resolving the API version", sess.InstanceURL())
	}
	return sess, backend, nil
}

func v2Backend(ctx context.Context) (*session.Session, *bulk.V2Backend, error) {
	if jobsAPI != "" && jobsAPI != config.APIv2 {
		return nil, nil, errors.New(errors.Configuration, "this command needs Bulk API 2.0 (--api v2)")
	}
	sess, err := loadSession()
	if err != nil {
		return nil, nil, err
	}
	backend, err := backendFor(ctx, config.APIv2, sess)
	if err != nil {
		return nil, nil, explain(err, "resolving the API version", sess.InstanceURL())
	}
	return sess, backend.(*bulk.V2Backend), nil
}

func printJob(info *bulk.JobInfo) {
	rows := [][]string{
		{"Job", info.ID},
		{"Object", info.Object},
		{"Operation", info.Operation},
		{"State", info.State},
		{"Processed", strconv.FormatInt(info.RecordsProcessed, 10)},
		{"Failed", strconv.FormatInt(info.RecordsFailed, 10)},
	}
	if info.BatchesTotal > 0 {
		rows = append(rows, []string{"Batches", fmt.Sprintf("%d/%d completed, %d failed",
			info.BatchesCompleted, info.BatchesTotal, info.BatchesFailed)})
	}
	if info.ErrorMessage != "" {
		rows = append(rows, []string{"Error", info.ErrorMessage})
	}
	if info.Terminal {
		rows = append(rows, []string{"Finished", "yes"})
	}
	_ = pterm.DefaultTable.WithData(pterm.TableData(rows)).Render()
}

// confirm asks a yes/no question unless --yes is set. Without a terminal the
// answer is no.
func confirm(prompt string) bool {
	if jobsYes {
		return true
	}
	if !terminal.IsInteractive() {
		return false
	}
	ans, err := terminal.ReadLine(prompt)
	terminal.ClearPreviousLines(len(prompt) + len(ans))
	if err != nil {
		return false
	}
	ans = strings.ToLower(ans)
	return ans == "y" || ans == "yes"
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsStatusCmd, jobsAbortCmd, jobsDeleteCmd, jobsResultsCmd)

	jobsCmd.PersistentFlags().StringVar(&jobsAPI, "api", "", "Bulk API generation of the job: v1 or v2 (default from config)")
	jobsAbortCmd.Flags().BoolVarP(&jobsYes, "yes", "y", false, "Do not ask for confirmation")
	jobsDeleteCmd.Flags().BoolVarP(&jobsYes, "yes", "y", false, "Do not ask for confirmation")
	jobsListCmd.Flags().StringVar(&jobsType, "type", "", "Filter by job type: BigObjectIngest, Classic or V2Ingest")
	jobsListCmd.Flags().StringVar(&jobsLocator, "locator", "", "Query locator of the next page")
	jobsResultsCmd.Flags().StringVar(&jobsOutput, "output", "", "Directory for result files (default $XDG_STATE_HOME/bulkctl/results)")
	jobsResultsCmd.Flags().BoolVar(&loadJSON, "json", false, "Print the result as JSON instead of writing files")
}
