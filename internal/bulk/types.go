// Package bulk drives asynchronous bulk jobs against Salesforce Bulk API 1.0
// and 2.0. A Controller runs one job end to end: it validates the request,
// splits records into batches, creates the job, uploads, closes, polls until
// the job is terminal and stable, then collects the per-record results.
// Protocol differences live behind the JobBackend interface.
package bulk

import (
	"strings"
	"time"

	"bulkctl/cli/internal/errors"
)

// Record is one row of data: field name to value.
type Record map[string]any

// Operation is the processing operation of a job.
type Operation string

const (
	OpInsert     Operation = "insert"
	OpUpdate     Operation = "update"
	OpUpsert     Operation = "upsert"
	OpDelete     Operation = "delete"
	OpHardDelete Operation = "hardDelete"
	OpQuery      Operation = "query"
	OpQueryAll   Operation = "queryAll"
)

var operations = []Operation{OpInsert, OpUpdate, OpUpsert, OpDelete, OpHardDelete, OpQuery, OpQueryAll}

// ParseOperation matches s case-insensitively against the known operations.
func ParseOperation(s string) (Operation, error) {
	for _, op := range operations {
		if strings.EqualFold(string(op), s) {
			return op, nil
		}
	}
	return "", errors.Newf(errors.Configuration, "unknown operation %q", s)
}

// IsQuery reports whether the operation reads rather than writes.
func (o Operation) IsQuery() bool { return o == OpQuery || o == OpQueryAll }

// DefaultPollInterval is used when a request leaves the poll interval unset.
const DefaultPollInterval = 5 * time.Second

// Request describes one bulk job.
type Request struct {
	Object    string
	Operation Operation
	Records   []Record
	// Query is the SOQL text for query and queryAll jobs.
	Query string

	BatchSize    int
	PollInterval time.Duration

	ExternalIDField string
	ConcurrencyMode string // Parallel or Serial, v1 only
	ColumnDelimiter string // v2 only
	LineEnding      string // v2 only
}

// Validate checks backend-independent invariants. It never touches the network.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Object) == "" {
		return errors.New(errors.Configuration, "object name is required")
	}
	if _, err := ParseOperation(string(r.Operation)); err != nil {
		return err
	}
	if r.BatchSize <= 0 {
		return errors.Newf(errors.Configuration, "batch size must be positive, got %d", r.BatchSize)
	}
	if r.PollInterval < 0 {
		return errors.Newf(errors.Configuration, "poll interval must not be negative, got %s", r.PollInterval)
	}
	if r.Operation == OpUpsert && r.ExternalIDField == "" {
		return errors.New(errors.Configuration, "upsert requires an external id field")
	}
	if r.Operation != OpUpsert && r.ExternalIDField != "" {
		return errors.Newf(errors.Configuration, "external id field is only valid for upsert, not %s", r.Operation)
	}
	if r.Operation.IsQuery() {
		if strings.TrimSpace(r.Query) == "" {
			return errors.Newf(errors.Configuration, "%s requires a query", r.Operation)
		}
		if len(r.Records) > 0 {
			return errors.Newf(errors.Configuration, "%s does not take records", r.Operation)
		}
		return nil
	}
	if len(r.Records) == 0 {
		return errors.New(errors.Configuration, "no records to process")
	}
	if r.Query != "" {
		return errors.Newf(errors.Configuration, "query text is not valid for %s", r.Operation)
	}
	return nil
}

func (r *Request) pollInterval() time.Duration {
	if r.PollInterval == 0 {
		return DefaultPollInterval
	}
	return r.PollInterval
}

// Job lifecycle states as reported by the service.
const (
	StateOpen           = "Open"
	StateClosed         = "Closed"
	StateUploadComplete = "UploadComplete"
	StateInProgress     = "InProgress"
	StateJobComplete    = "JobComplete"
	StateAborted        = "Aborted"
	StateFailed         = "Failed"
)

// JobInfo is a status snapshot of a remote job. Both API generations use the
// same field names on the wire; batch counters are only filled by v1.
type JobInfo struct {
	ID              string  `json:"id"`
	Object          string  `json:"object"`
	Operation       string  `json:"operation"`
	State           string  `json:"state"`
	CreatedDate     string  `json:"createdDate,omitempty"`
	APIVersion      float64 `json:"apiVersion,omitempty"`
	ConcurrencyMode string  `json:"concurrencyMode,omitempty"`
	ContentType     string  `json:"contentType,omitempty"`
	ColumnDelimiter string  `json:"columnDelimiter,omitempty"`
	LineEnding      string  `json:"lineEnding,omitempty"`
	JobType         string  `json:"jobType,omitempty"`
	ExternalIDField string  `json:"externalIdFieldName,omitempty"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`

	BatchesTotal      int `json:"numberBatchesTotal"`
	BatchesCompleted  int `json:"numberBatchesCompleted"`
	BatchesFailed     int `json:"numberBatchesFailed"`
	BatchesQueued     int `json:"numberBatchesQueued"`
	BatchesInProgress int `json:"numberBatchesInProgress"`

	RecordsProcessed int64 `json:"numberRecordsProcessed"`
	RecordsFailed    int64 `json:"numberRecordsFailed"`

	// Terminal is computed by the backend that fetched the snapshot.
	Terminal bool `json:"-"`
}

// Category sorts v2 results; v1 records are success or failed.
type Category string

const (
	CategorySuccess     Category = "success"
	CategoryFailed      Category = "failed"
	CategoryUnprocessed Category = "unprocessed"
)

// ResultError is one error reported for a record.
type ResultError struct {
	StatusCode string   `json:"statusCode,omitempty"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields,omitempty"`
}

// ResultRecord is the outcome for one submitted record.
type ResultRecord struct {
	// Index is the position in upload order (v1) or the row within its category (v2).
	Index    int               `json:"index"`
	Category Category          `json:"category"`
	Success  bool              `json:"success"`
	Created  bool              `json:"created"`
	ID       string            `json:"id,omitempty"`
	Errors   []ResultError     `json:"errors,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Result is everything collected from a finished job.
type Result struct {
	JobID   string   `json:"jobId"`
	Backend string   `json:"backend"`
	Job     *JobInfo `json:"job"`

	// Records holds v1 ingest outcomes in upload order.
	Records []ResultRecord `json:"records,omitempty"`
	// Rows holds v1 query output.
	Rows []Record `json:"rows,omitempty"`

	// Successful, Failed and Unprocessed hold the v2 result streams.
	Successful  *ResultSet `json:"successful,omitempty"`
	Failed      *ResultSet `json:"failed,omitempty"`
	Unprocessed *ResultSet `json:"unprocessed,omitempty"`
}

// Count returns the number of result records or rows across all categories.
func (r *Result) Count() int {
	n := len(r.Records) + len(r.Rows)
	for _, s := range []*ResultSet{r.Successful, r.Failed, r.Unprocessed} {
		if s != nil {
			n += len(s.Rows)
		}
	}
	return n
}

// FailedCount returns how many records did not succeed.
func (r *Result) FailedCount() int {
	n := 0
	for _, rec := range r.Records {
		if !rec.Success {
			n++
		}
	}
	if r.Failed != nil {
		n += len(r.Failed.Rows)
	}
	if r.Unprocessed != nil {
		n += len(r.Unprocessed.Rows)
	}
	return n
}
