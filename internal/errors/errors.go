// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages. Bulk job failures additionally carry the lifecycle
// stage that failed and the remote job id, so an abandoned job can be inspected later.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// making it easier to handle different types of failures appropriately.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// Configuration indicates an invalid request caught before any remote call.
	Configuration Kind = "configuration_error"
	// Transport indicates a connection, DNS or TLS failure.
	Transport Kind = "transport_error"
	// RemoteRequest indicates a non-success HTTP status from a well-formed request.
	RemoteRequest Kind = "remote_request_error"
	// Protocol indicates a 2xx response missing expected fields.
	Protocol Kind = "protocol_error"
	// Cancelled indicates the caller aborted a wait.
	Cancelled Kind = "cancelled"
	// PollerConflict indicates another poller already owns the job.
	PollerConflict Kind = "poller_conflict"
	// AuthFailed indicates login or session loading failure.
	AuthFailed Kind = "auth_failed"
	// Internal is used for errors that carry no kind of their own.
	Internal Kind = "internal_error"
)

// Stage names a step of the bulk job lifecycle.
type Stage string

const (
	StageValidate Stage = "validate"
	StageCreate   Stage = "create"
	StageUpload   Stage = "upload"
	StageClose    Stage = "close"
	StagePoll     Stage = "poll"
	StageCollect  Stage = "collect"
)

// maxBodyInMessage bounds how much of a remote body ends up in Error().
const maxBodyInMessage = 512

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error

	// Stage and JobID are set by the controller once the failing step is known.
	Stage Stage
	JobID string

	// StatusCode and Body are populated for RemoteRequest errors.
	StatusCode int
	Body       []byte
}

func (e *E) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" || e.JobID != "" {
		b.WriteString(" [")
		if e.Stage != "" {
			b.WriteString("stage=" + string(e.Stage))
		}
		if e.JobID != "" {
			if e.Stage != "" {
				b.WriteString(" ")
			}
			b.WriteString("job=" + e.JobID)
		}
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if len(e.Body) > 0 {
		body := strings.TrimSpace(string(e.Body))
		if len(body) > maxBodyInMessage {
			body = body[:maxBodyInMessage] + "..."
		}
		b.WriteString(": " + body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf formats msg like fmt.Sprintf.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Remote builds a RemoteRequest error for a non-success response.
func Remote(msg string, status int, body []byte) *E {
	return &E{Kind: RemoteRequest, Message: msg, StatusCode: status, Body: body}
}

// As returns the first *E in err's chain.
func As(err error) (*E, bool) {
	var e *E
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *E in err's chain, or Internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// AtStage annotates err with a lifecycle stage and job id.
// Values already present on the error are kept. Errors without a kind are
// wrapped as Internal.
func AtStage(err error, stage Stage, jobID string) error {
	if err == nil {
		return nil
	}
	e, ok := As(err)
	if !ok {
		return &E{Kind: Internal, Message: "unexpected failure", Err: err, Stage: stage, JobID: jobID}
	}
	out := *e
	if out.Stage == "" {
		out.Stage = stage
	}
	if out.JobID == "" {
		out.JobID = jobID
	}
	return &out
}
