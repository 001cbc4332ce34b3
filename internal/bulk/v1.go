package bulk

import (
	"context"
	"encoding/json"
	"net/http"

	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/transport"

	"golang.org/x/sync/errgroup"
)

// V1Config configures a Bulk API 1.0 backend.
type V1Config struct {
	Session    Session
	Transport  transport.Doer
	APIVersion string
	// UploadConcurrency bounds parallel batch uploads; values below 1 mean 1.
	UploadConcurrency int
}

// V1Backend speaks Bulk API 1.0 with JSON content: one POST per batch and
// per-batch result retrieval.
type V1Backend struct {
	client
	concurrency int
}

// NewV1 creates a Bulk API 1.0 backend.
func NewV1(cfg V1Config) *V1Backend {
	n := cfg.UploadConcurrency
	if n < 1 {
		n = 1
	}
	return &V1Backend{
		client: client{
			session:   cfg.Session,
			transport: cfg.Transport,
			version:   apiVersion(cfg.APIVersion),
			auth: func(h http.Header, token string) {
				h.Set("X-SFDC-Session", token)
			},
		},
		concurrency: n,
	}
}

func (b *V1Backend) Name() string { return "v1" }

func (b *V1Backend) jobsURL() string {
	return instanceBase(b.session) + "/services/async/" + b.version + "/job"
}

func (b *V1Backend) jobURL(jobID string) string { return b.jobsURL() + "/" + jobID }

func (b *V1Backend) batchURL(jobID string) string { return b.jobURL(jobID) + "/batch" }

// Validate rejects v2-only format controls and unknown concurrency modes.
func (b *V1Backend) Validate(req *Request) error {
	if req.ColumnDelimiter != "" || req.LineEnding != "" {
		return errors.New(errors.Configuration, "column delimiter and line ending are only supported by the v2 api")
	}
	switch req.ConcurrencyMode {
	case "", "Parallel", "Serial":
	default:
		return errors.Newf(errors.Configuration, "unknown concurrency mode %q (want Parallel or Serial)", req.ConcurrencyMode)
	}
	return nil
}

func (b *V1Backend) BatchLimit(req *Request) int {
	if req.Operation.IsQuery() {
		return 0
	}
	return req.BatchSize
}

type v1JobBody struct {
	Object          string `json:"object"`
	Operation       string `json:"operation"`
	ContentType     string `json:"contentType"`
	ExternalIDField string `json:"externalIdFieldName,omitempty"`
	ConcurrencyMode string `json:"concurrencyMode,omitempty"`
}

type v1IDResponse struct {
	ID string `json:"id"`
}

// CreateJob opens a job for the request's object and operation.
func (b *V1Backend) CreateJob(ctx context.Context, req *Request) (string, error) {
	body := v1JobBody{
		Object:          req.Object,
		Operation:       string(req.Operation),
		ContentType:     "JSON",
		ExternalIDField: req.ExternalIDField,
		ConcurrencyMode: req.ConcurrencyMode,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(errors.Configuration, "create job: encode request", err)
	}
	return b.postForID(ctx, "create job", b.jobsURL(), raw)
}

// UploadBatch posts one chunk of records and returns the batch id.
func (b *V1Backend) UploadBatch(ctx context.Context, jobID string, batch []Record) (string, error) {
	raw, err := json.Marshal(batch)
	if err != nil {
		return "", errors.Wrap(errors.Configuration, "upload batch: encode records", err)
	}
	return b.postForID(ctx, "upload batch", b.batchURL(jobID), raw)
}

func (b *V1Backend) postForID(ctx context.Context, what, url string, body []byte) (string, error) {
	resp, err := b.call(ctx, what, http.MethodPost, url, "application/json; charset=UTF-8", body)
	if err != nil {
		return "", err
	}
	var out v1IDResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", &errors.E{Kind: errors.Protocol, Message: what + ": decode response", Err: err, Body: resp.Body}
	}
	if err := requireID(what, out.ID, resp.Body); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Upload sends each batch as its own POST, up to the configured concurrency.
// Batch ids are returned in batch order regardless of completion order.
// Query jobs upload the query text as their single batch.
func (b *V1Backend) Upload(ctx context.Context, jobID string, req *Request, batches [][]Record) ([]string, error) {
	if req.Operation.IsQuery() {
		id, err := b.postForID(ctx, "upload query", b.batchURL(jobID), []byte(req.Query))
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}

	ids := make([]string, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			id, err := b.UploadBatch(gctx, jobID, batch)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// CloseJob marks the job Closed so no further batches are accepted.
func (b *V1Backend) CloseJob(ctx context.Context, jobID string) error {
	return b.callJSON(ctx, "close job", http.MethodPost, b.jobURL(jobID), stateBody{State: StateClosed}, nil)
}

// AbortJob stops processing of unprocessed batches.
func (b *V1Backend) AbortJob(ctx context.Context, jobID string) (*JobInfo, error) {
	var info JobInfo
	if err := b.callJSON(ctx, "abort job", http.MethodPost, b.jobURL(jobID), stateBody{State: StateAborted}, &info); err != nil {
		return nil, err
	}
	info.Terminal = v1Terminal(&info)
	return &info, nil
}

// Status fetches the job and derives the terminal condition from its batch counters.
func (b *V1Backend) Status(ctx context.Context, jobID string) (*JobInfo, error) {
	info, err := b.getStatus(ctx, b.jobURL(jobID))
	if err != nil {
		return nil, err
	}
	info.Terminal = v1Terminal(info)
	return info, nil
}

// v1Terminal holds once every batch finished one way or the other. A closed
// job with no batches is also done.
func v1Terminal(info *JobInfo) bool {
	switch info.State {
	case StateAborted, StateFailed:
		return true
	}
	if info.BatchesCompleted+info.BatchesFailed != info.BatchesTotal {
		return false
	}
	return info.BatchesTotal > 0 || info.State == StateClosed
}

// BatchInfo describes one v1 batch.
type BatchInfo struct {
	ID               string `json:"id"`
	JobID            string `json:"jobId"`
	State            string `json:"state"`
	StateMessage     string `json:"stateMessage,omitempty"`
	CreatedDate      string `json:"createdDate,omitempty"`
	RecordsProcessed int64  `json:"numberRecordsProcessed"`
	RecordsFailed    int64  `json:"numberRecordsFailed"`
}

// ListBatches returns the job's batches in the order the service reports them.
func (b *V1Backend) ListBatches(ctx context.Context, jobID string) ([]BatchInfo, error) {
	var out struct {
		BatchInfo []BatchInfo `json:"batchInfo"`
	}
	if err := b.callJSON(ctx, "list batches", http.MethodGet, b.batchURL(jobID), nil, &out); err != nil {
		return nil, err
	}
	return out.BatchInfo, nil
}

type v1Result struct {
	Success bool              `json:"success"`
	Created bool              `json:"created"`
	ID      string            `json:"id"`
	Errors  []json.RawMessage `json:"errors"`
}

// CollectResults fetches each batch's results in upload order. For query jobs
// each batch result is a list of result ids that are fetched in turn.
func (b *V1Backend) CollectResults(ctx context.Context, job *JobInfo, req *Request, batchIDs []string) (*Result, error) {
	res := &Result{JobID: job.ID, Backend: b.Name(), Job: job}

	if req.Operation.IsQuery() {
		for _, bid := range batchIDs {
			var resultIDs []string
			if err := b.callJSON(ctx, "batch result", http.MethodGet, b.resultURL(job.ID, bid), nil, &resultIDs); err != nil {
				return nil, err
			}
			for _, rid := range resultIDs {
				var rows []Record
				if err := b.callJSON(ctx, "query result", http.MethodGet, b.resultURL(job.ID, bid)+"/"+rid, nil, &rows); err != nil {
					return nil, err
				}
				res.Rows = append(res.Rows, rows...)
			}
		}
		return res, nil
	}

	var expected []int
	if len(req.Records) > 0 {
		chunks, err := Split(req.Records, req.BatchSize)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			expected = append(expected, len(c))
		}
		if len(expected) != len(batchIDs) {
			return nil, errors.Newf(errors.Protocol, "have %d batch ids for %d batches", len(batchIDs), len(expected))
		}
	}

	for i, bid := range batchIDs {
		var rows []v1Result
		if err := b.callJSON(ctx, "batch result", http.MethodGet, b.resultURL(job.ID, bid), nil, &rows); err != nil {
			return nil, err
		}
		if expected != nil && len(rows) != expected[i] {
			return nil, errors.Newf(errors.Protocol, "batch %s returned %d results for %d records", bid, len(rows), expected[i])
		}
		for _, r := range rows {
			rec := ResultRecord{
				Index:    len(res.Records),
				Category: CategorySuccess,
				Success:  r.Success,
				Created:  r.Created,
				ID:       r.ID,
				Errors:   parseV1Errors(r.Errors),
			}
			if !r.Success {
				rec.Category = CategoryFailed
			}
			res.Records = append(res.Records, rec)
		}
	}
	return res, nil
}

func (b *V1Backend) resultURL(jobID, batchID string) string {
	return b.batchURL(jobID) + "/" + batchID + "/result"
}

// parseV1Errors accepts error entries as objects or plain strings.
func parseV1Errors(raw []json.RawMessage) []ResultError {
	if len(raw) == 0 {
		return nil
	}
	out := make([]ResultError, 0, len(raw))
	for _, r := range raw {
		var e ResultError
		if err := json.Unmarshal(r, &e); err == nil {
			out = append(out, e)
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, ResultError{Message: s})
			continue
		}
		out = append(out, ResultError{Message: string(r)})
	}
	return out
}
