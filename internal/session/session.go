// Package session provides the Salesforce session used by every bulk command:
// an access token and the instance URL it is valid for.
//
// Sessions come from the environment (BULKCTL_ACCESS_TOKEN and
// BULKCTL_INSTANCE_URL) or from the OS keychain, where `bulkctl login` puts
// them. Nothing here refreshes a token; an expired session surfaces as a
// remote 401 and the user logs in again.
package session

import (
	stderrors "errors"
	"net/url"
	"os"
	"strings"

	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/keychain"
)

// Env variables that override the stored session.
const (
	EnvAccessToken = "BULKCTL_ACCESS_TOKEN"
	EnvInstanceURL = "BULKCTL_INSTANCE_URL"
)

// Store is the subset of the keychain the session needs.
type Store interface {
	SaveSession(accessToken, instanceURL string) error
	LoadSession() (accessToken, instanceURL string, err error)
	SaveAuthState(data []byte) error
	LoadAuthState() ([]byte, error)
	ClearAuth() error
}

// Session is an access token bound to an instance.
type Session struct {
	Token    string
	Instance string
}

func (s *Session) AccessToken() string { return s.Token }
func (s *Session) InstanceURL() string { return s.Instance }

// New validates the pair and returns a session.
func New(token, instance string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New(errors.AuthFailed, "access token is empty")
	}
	instance = strings.TrimRight(strings.TrimSpace(instance), "/")
	u, err := url.Parse(instance)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, errors.Newf(errors.AuthFailed, "invalid instance url %q", instance)
	}
	return &Session{Token: token, Instance: instance}, nil
}

// Load returns the session from the environment when both variables are set,
// otherwise from store.
func Load(store Store) (*Session, error) {
	token, instance := os.Getenv(EnvAccessToken), os.Getenv(EnvInstanceURL)
	if token != "" && instance != "" {
		return New(token, instance)
	}
	if store == nil {
		return nil, errors.New(errors.AuthFailed, "not logged in. Run `bulkctl login` or set "+EnvAccessToken+" and "+EnvInstanceURL)
	}
	token, instance, err := store.LoadSession()
	if stderrors.Is(err, keychain.ErrNotFound) {
		return nil, errors.New(errors.AuthFailed, "not logged in. Run `bulkctl login`")
	}
	if err != nil {
		return nil, errors.Wrap(errors.AuthFailed, "read session from keychain", err)
	}
	return New(token, instance)
}

// Save persists the session and marks the state logged in.
func Save(store Store, s *Session, st State) error {
	if err := store.SaveSession(s.Token, s.Instance); err != nil {
		return errors.Wrap(errors.AuthFailed, "store session", err)
	}
	st.LoggedIn = true
	st.InstanceURL = s.Instance
	return SaveState(store, st)
}

// Clear removes the stored session and state.
func Clear(store Store) error {
	return store.ClearAuth()
}
