package bulk

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/transport"
)

// DefaultAPIVersion is the API version used when none is configured.
const DefaultAPIVersion = "50.0"

// Session supplies credentials. The bulk package neither refreshes nor
// validates them.
type Session interface {
	AccessToken() string
	InstanceURL() string
}

// StatusSource fetches job status snapshots.
type StatusSource interface {
	Status(ctx context.Context, jobID string) (*JobInfo, error)
}

// JobBackend is one API generation's implementation of the job lifecycle.
type JobBackend interface {
	StatusSource

	// Name identifies the backend ("v1" or "v2").
	Name() string
	// Validate rejects requests the backend cannot run.
	Validate(req *Request) error
	// BatchLimit is the chunk size for uploads, or 0 when the whole payload is
	// sent as one upload.
	BatchLimit(req *Request) int

	CreateJob(ctx context.Context, req *Request) (string, error)
	// Upload sends every batch and returns the batch ids in batch order.
	// Backends without a batch concept return nil ids.
	Upload(ctx context.Context, jobID string, req *Request, batches [][]Record) ([]string, error)
	CloseJob(ctx context.Context, jobID string) error
	CollectResults(ctx context.Context, job *JobInfo, req *Request, batchIDs []string) (*Result, error)
	AbortJob(ctx context.Context, jobID string) (*JobInfo, error)
}

type stateBody struct {
	State string `json:"state"`
}

// client holds what both backends need to talk to the service.
type client struct {
	session   Session
	transport transport.Doer
	version   string
	auth      func(h http.Header, token string)
}

func (c *client) header(contentType, accept string) http.Header {
	h := http.Header{}
	c.auth(h, c.session.AccessToken())
	h.Set("Accept", accept)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return h
}

// call issues the request and turns non-2xx statuses into RemoteRequest errors.
func (c *client) call(ctx context.Context, what, method, url, contentType string, body []byte) (*transport.Response, error) {
	return c.callAccept(ctx, what, method, url, contentType, "application/json", body)
}

func (c *client) callAccept(ctx context.Context, what, method, url, contentType, accept string, body []byte) (*transport.Response, error) {
	resp, err := c.transport.Do(ctx, &transport.Request{
		Method: method,
		URL:    url,
		Header: c.header(contentType, accept),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, errors.Remote(what, resp.StatusCode, resp.Body)
	}
	return resp, nil
}

// callJSON marshals in (when non-nil), calls, and decodes the response into out
// (when non-nil).
func (c *client) callJSON(ctx context.Context, what, method, url string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(errors.Configuration, what+": encode request", err)
		}
		body = b
	}
	contentType := ""
	if body != nil {
		contentType = "application/json; charset=UTF-8"
	}
	resp, err := c.call(ctx, what, method, url, contentType, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &errors.E{Kind: errors.Protocol, Message: what + ": decode response", Err: err, Body: resp.Body}
	}
	return nil
}

func instanceBase(s Session) string {
	return strings.TrimRight(s.InstanceURL(), "/")
}

func apiVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return DefaultAPIVersion
	}
	return v
}

func requireID(what, id string, body []byte) error {
	if strings.TrimSpace(id) == "" {
		return &errors.E{Kind: errors.Protocol, Message: what + ": response has no id", Body: body}
	}
	return nil
}

// getStatus fetches and decodes a JobInfo at url.
func (c *client) getStatus(ctx context.Context, url string) (*JobInfo, error) {
	resp, err := c.call(ctx, "job status", http.MethodGet, url, "", nil)
	if err != nil {
		return nil, err
	}
	var info JobInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, &errors.E{Kind: errors.Protocol, Message: "job status: decode response", Err: err, Body: resp.Body}
	}
	if info.State == "" {
		return nil, &errors.E{Kind: errors.Protocol, Message: "job status: response has no state", Body: resp.Body}
	}
	return &info, nil
}
