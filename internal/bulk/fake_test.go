package bulk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"bulkctl/cli/internal/transport"
)

const testInstance = "https://example.my.salesforce.com"

type fakeSession struct{}

func (fakeSession) AccessToken() string { return "00Dxx!token" }
func (fakeSession) InstanceURL() string { return testInstance + "/" }

type recordedCall struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// fakeTransport records every request and answers through handler.
type fakeTransport struct {
	t       *testing.T
	mu      sync.Mutex
	calls   []recordedCall
	handler func(c recordedCall) (*transport.Response, error)
}

func newFakeTransport(t *testing.T, handler func(c recordedCall) (*transport.Response, error)) *fakeTransport {
	return &fakeTransport{t: t, handler: handler}
}

func (f *fakeTransport) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		f.t.Fatalf("bad url %q: %v", req.URL, err)
	}
	if !strings.HasPrefix(req.URL, testInstance) {
		f.t.Errorf("request outside instance: %s", req.URL)
	}
	c := recordedCall{Method: req.Method, Path: u.Path, Query: u.Query(), Header: req.Header, Body: req.Body}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if f.handler == nil {
		f.t.Errorf("unexpected call %s %s", c.Method, c.Path)
		return respond(http.StatusNotFound, nil), nil
	}
	return f.handler(c)
}

func (f *fakeTransport) all() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

// count returns the number of calls with method whose path ends with suffix.
func (f *fakeTransport) count(method, suffix string) int {
	n := 0
	for _, c := range f.all() {
		if c.Method == method && strings.HasSuffix(c.Path, suffix) {
			n++
		}
	}
	return n
}

func respond(status int, body []byte) *transport.Response {
	return &transport.Response{StatusCode: status, Header: http.Header{}, Body: body}
}

func respondJSON(status int, v any) *transport.Response {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return respond(status, b)
}

// scriptedStatus replays snapshots; the last one repeats.
type scriptedStatus struct {
	mu     sync.Mutex
	infos  []JobInfo
	calls  int
	onCall func(n int)
}

func (s *scriptedStatus) Status(ctx context.Context, jobID string) (*JobInfo, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	info := s.infos[min(n-1, len(s.infos)-1)]
	s.mu.Unlock()
	if s.onCall != nil {
		s.onCall(n)
	}
	info.ID = jobID
	return &info, nil
}

func (s *scriptedStatus) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
