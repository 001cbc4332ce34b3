// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"net/http"
	"strings"

	"bulkctl/cli/internal/errors"

	"github.com/pterm/pterm"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

var stageTitles = map[errors.Stage]string{
	errors.StageValidate: "Request rejected",
	errors.StageCreate:   "Could not create the job",
	errors.StageUpload:   "Upload failed",
	errors.StageClose:    "Could not close the job",
	errors.StagePoll:     "Lost track of the job",
	errors.StageCollect:  "Could not collect results",
}

// FormatJobError explains a bulk job failure: what went wrong, where, and
// what to do about a job that may still exist on the server.
func FormatJobError(err error) string {
	if err == nil {
		return ""
	}
	e, ok := errors.As(err)
	if !ok {
		e = &errors.E{Kind: errors.Internal, Message: err.Error()}
	}

	var b strings.Builder
	title := stageTitles[e.Stage]
	if title == "" {
		title = "Command failed"
	}
	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(title))
	b.WriteString("\n\n")

	switch e.Kind {
	case errors.Configuration:
		b.WriteString("The request is invalid; nothing was sent to Salesforce.\n")
	case errors.Transport:
		b.WriteString("Salesforce could not be reached.\n")
		b.WriteString("  • Check your network connection and the instance URL\n")
	case errors.RemoteRequest:
		b.WriteString(fmt.Sprintf("Salesforce answered with HTTP %d.\n", e.StatusCode))
		if e.StatusCode == http.StatusUnauthorized {
			b.WriteString("  • Your session has expired. Run 'bulkctl login' again\n")
		}
	case errors.Protocol:
		b.WriteString("Salesforce returned a response bulkctl did not expect.\n")
	case errors.Cancelled:
		b.WriteString("The wait was cancelled. The job keeps running on the server.\n")
	case errors.PollerConflict:
		b.WriteString("Another bulkctl process is already waiting on this job.\n")
	case errors.AuthFailed:
		b.WriteString("Authentication failed.\n")
		b.WriteString("  • Run 'bulkctl login' or set BULKCTL_ACCESS_TOKEN and BULKCTL_INSTANCE_URL\n")
	default:
		b.WriteString("An unexpected error occurred.\n")
	}

	if e.JobID != "" && e.Stage != errors.StageCollect {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Job %s was left on the server.\n", e.JobID))
		b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprintf("→ Inspect it with 'bulkctl jobs status %s'", e.JobID))
		b.WriteString("\n")
		b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprintf("→ Abort it with 'bulkctl jobs abort %s'", e.JobID))
		b.WriteString("\n")
	} else if e.JobID != "" {
		b.WriteString("\n")
		b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprintf("→ Retry collection with 'bulkctl jobs results %s'", e.JobID))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	return b.String()
}

// PresentJobError prints FormatJobError to stdout.
func PresentJobError(err error) {
	fmt.Println()
	fmt.Println(FormatJobError(err))
	fmt.Println()
}
