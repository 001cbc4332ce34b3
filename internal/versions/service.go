package versions

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/transport"
)

// Latest is the api_version value that resolves to the newest version.
const Latest = "latest"

// Session supplies the instance and token.
type Session interface {
	AccessToken() string
	InstanceURL() string
}

// Service lists versions through a transport and caches them per instance.
type Service struct {
	doer transport.Doer
}

// NewService creates a Service.
func NewService(doer transport.Doer) *Service {
	return &Service{doer: doer}
}

// List returns the instance's versions, oldest first, using the RAM cache if
// available.
func (s *Service) List(ctx context.Context, sess Session) ([]Version, error) {
	instance := strings.TrimRight(sess.InstanceURL(), "/")
	if cached := getCached(instance); cached != nil {
		return cached, nil
	}

	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Authorization", "Bearer "+sess.AccessToken())
	resp, err := s.doer.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    instance + "/services/data/",
		Header: h,
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, errors.Remote("list api versions", resp.StatusCode, resp.Body)
	}
	var out []Version
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, &errors.E{Kind: errors.Protocol, Message: "list api versions: decode response", Err: err, Body: resp.Body}
	}
	if len(out) == 0 {
		return nil, &errors.E{Kind: errors.Protocol, Message: "list api versions: empty response", Body: resp.Body}
	}
	slices.SortFunc(out, func(a, b Version) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	setCached(instance, out)
	return out, nil
}

// Latest returns the newest version.
func (s *Service) Latest(ctx context.Context, sess Session) (Version, error) {
	all, err := s.List(ctx, sess)
	if err != nil {
		return Version{}, err
	}
	return all[len(all)-1], nil
}

// Resolve maps want to a concrete version number. Only "latest" needs the
// network; anything else is returned as given.
func (s *Service) Resolve(ctx context.Context, sess Session, want string) (string, error) {
	if !strings.EqualFold(want, Latest) {
		return want, nil
	}
	v, err := s.Latest(ctx, sess)
	if err != nil {
		return "", err
	}
	return v.Version, nil
}
