package bulk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/transport"
)

// V2Config configures a Bulk API 2.0 ingest backend.
type V2Config struct {
	Session    Session
	Transport  transport.Doer
	APIVersion string
}

// V2Backend speaks Bulk API 2.0 ingest: one CSV upload per job and three
// result streams.
type V2Backend struct {
	client
}

// NewV2 creates a Bulk API 2.0 backend.
func NewV2(cfg V2Config) *V2Backend {
	return &V2Backend{
		client: client{
			session:   cfg.Session,
			transport: cfg.Transport,
			version:   apiVersion(cfg.APIVersion),
			auth: func(h http.Header, token string) {
				h.Set("Authorization", "Bearer "+token)
			},
		},
	}
}

func (b *V2Backend) Name() string { return "v2" }

func (b *V2Backend) jobsURL() string {
	return instanceBase(b.session) + "/services/data/v" + b.version + "/jobs/ingest"
}

func (b *V2Backend) jobURL(jobID string) string { return b.jobsURL() + "/" + jobID }

// Validate rejects queries, v1-only options and unknown format controls.
func (b *V2Backend) Validate(req *Request) error {
	if req.Operation.IsQuery() {
		return errors.Newf(errors.Configuration, "%s is not an ingest operation; use the v1 api", req.Operation)
	}
	if req.ConcurrencyMode != "" {
		return errors.New(errors.Configuration, "concurrency mode is only supported by the v1 api")
	}
	if _, err := DelimiterRune(req.ColumnDelimiter); err != nil {
		return err
	}
	if _, err := crlf(req.LineEnding); err != nil {
		return err
	}
	return nil
}

func crlf(lineEnding string) (bool, error) {
	switch strings.ToUpper(lineEnding) {
	case "", "LF":
		return false, nil
	case "CRLF":
		return true, nil
	default:
		return false, errors.Newf(errors.Configuration, "unknown line ending %q (want LF or CRLF)", lineEnding)
	}
}

// BatchLimit is 0: the whole record set is one upload.
func (b *V2Backend) BatchLimit(*Request) int { return 0 }

type v2JobBody struct {
	Object          string `json:"object"`
	Operation       string `json:"operation"`
	ExternalIDField string `json:"externalIdFieldName,omitempty"`
	ColumnDelimiter string `json:"columnDelimiter,omitempty"`
	ContentType     string `json:"contentType"`
	LineEnding      string `json:"lineEnding,omitempty"`
}

// CreateJob opens an ingest job.
func (b *V2Backend) CreateJob(ctx context.Context, req *Request) (string, error) {
	body := v2JobBody{
		Object:          req.Object,
		Operation:       string(req.Operation),
		ExternalIDField: req.ExternalIDField,
		ColumnDelimiter: strings.ToUpper(req.ColumnDelimiter),
		ContentType:     "CSV",
		LineEnding:      strings.ToUpper(req.LineEnding),
	}
	var out JobInfo
	if err := b.callJSON(ctx, "create job", http.MethodPost, b.jobsURL(), body, &out); err != nil {
		return "", err
	}
	if err := requireID("create job", out.ID, nil); err != nil {
		return "", err
	}
	return out.ID, nil
}

// UploadData sends the full record set as one CSV payload.
func (b *V2Backend) UploadData(ctx context.Context, jobID string, records []Record, delimiter, lineEnding string) error {
	comma, err := DelimiterRune(delimiter)
	if err != nil {
		return err
	}
	useCRLF, err := crlf(lineEnding)
	if err != nil {
		return err
	}
	payload, err := EncodeCSV(records, comma, useCRLF)
	if err != nil {
		return err
	}
	_, err = b.call(ctx, "upload data", http.MethodPut, b.jobURL(jobID)+"/batches", "text/csv", payload)
	return err
}

// Upload flattens batches into the single upload the API allows.
func (b *V2Backend) Upload(ctx context.Context, jobID string, req *Request, batches [][]Record) ([]string, error) {
	var records []Record
	if len(batches) == 1 {
		records = batches[0]
	} else {
		for _, batch := range batches {
			records = append(records, batch...)
		}
	}
	if err := b.UploadData(ctx, jobID, records, req.ColumnDelimiter, req.LineEnding); err != nil {
		return nil, err
	}
	return nil, nil
}

// CloseJob moves the job to UploadComplete, queueing it for processing.
func (b *V2Backend) CloseJob(ctx context.Context, jobID string) error {
	return b.callJSON(ctx, "close job", http.MethodPatch, b.jobURL(jobID), stateBody{State: StateUploadComplete}, nil)
}

// AbortJob moves the job to Aborted.
func (b *V2Backend) AbortJob(ctx context.Context, jobID string) (*JobInfo, error) {
	var info JobInfo
	if err := b.callJSON(ctx, "abort job", http.MethodPatch, b.jobURL(jobID), stateBody{State: StateAborted}, &info); err != nil {
		return nil, err
	}
	info.Terminal = v2Terminal(info.State)
	return &info, nil
}

// DeleteJob removes a job that is UploadComplete, JobComplete, Aborted or Failed.
func (b *V2Backend) DeleteJob(ctx context.Context, jobID string) error {
	_, err := b.call(ctx, "delete job", http.MethodDelete, b.jobURL(jobID), "", nil)
	return err
}

// Status fetches the job info.
func (b *V2Backend) Status(ctx context.Context, jobID string) (*JobInfo, error) {
	info, err := b.getStatus(ctx, b.jobURL(jobID))
	if err != nil {
		return nil, err
	}
	info.Terminal = v2Terminal(info.State)
	return info, nil
}

func v2Terminal(state string) bool {
	switch state {
	case StateJobComplete, StateAborted, StateFailed:
		return true
	}
	return false
}

// CollectResults fetches the successful, failed and unprocessed streams. A
// completed job must account for every submitted record.
func (b *V2Backend) CollectResults(ctx context.Context, job *JobInfo, req *Request, _ []string) (*Result, error) {
	comma, err := DelimiterRune(req.ColumnDelimiter)
	if err != nil {
		return nil, err
	}
	res := &Result{JobID: job.ID, Backend: b.Name(), Job: job}
	streams := []struct {
		cat  Category
		path string
		dst  **ResultSet
	}{
		{CategorySuccess, "/successfulResults/", &res.Successful},
		{CategoryFailed, "/failedResults/", &res.Failed},
		{CategoryUnprocessed, "/unprocessedrecords/", &res.Unprocessed},
	}
	for _, s := range streams {
		resp, err := b.callAccept(ctx, string(s.cat)+" results", http.MethodGet, b.jobURL(job.ID)+s.path, "", "text/csv", nil)
		if err != nil {
			return nil, err
		}
		set, err := parseResultSet(s.cat, resp.Body, comma)
		if err != nil {
			return nil, err
		}
		*s.dst = set
	}

	if job.State == StateJobComplete && len(req.Records) > 0 && res.Count() != len(req.Records) {
		return nil, errors.Newf(errors.Protocol, "results cover %d of %d records", res.Count(), len(req.Records))
	}
	return res, nil
}

// ListFilter narrows ListJobs.
type ListFilter struct {
	PKChunking   bool
	JobType      string // BigObjectIngest, Classic or V2Ingest
	QueryLocator string
}

// JobList is one page of jobs.
type JobList struct {
	Done           bool      `json:"done"`
	Records        []JobInfo `json:"records"`
	NextRecordsURL string    `json:"nextRecordsUrl"`
}

// ListJobs returns one page of the org's ingest jobs.
func (b *V2Backend) ListJobs(ctx context.Context, f ListFilter) (*JobList, error) {
	q := url.Values{}
	if f.PKChunking {
		q.Set("isPkChunkingEnabled", strconv.FormatBool(true))
	}
	if f.JobType != "" {
		q.Set("jobType", f.JobType)
	}
	if f.QueryLocator != "" {
		q.Set("queryLocator", f.QueryLocator)
	}
	u := b.jobsURL()
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var out JobList
	if err := b.callJSON(ctx, "list jobs", http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Records {
		out.Records[i].Terminal = v2Terminal(out.Records[i].State)
	}
	return &out, nil
}
