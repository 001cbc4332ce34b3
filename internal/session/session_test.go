package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/keychain"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *keychain.Manager {
	return keychain.NewWithRing(keyring.NewArrayKeyring(nil))
}

func TestNewValidates(t *testing.T) {
	s, err := New(" tok ", "https://acme.my.salesforce.com/")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.AccessToken())
	assert.Equal(t, "https://acme.my.salesforce.com", s.InstanceURL())

	_, err = New("", "https://acme.my.salesforce.com")
	assert.True(t, errors.Is(err, errors.AuthFailed))
	_, err = New("tok", "acme.my.salesforce.com")
	assert.True(t, errors.Is(err, errors.AuthFailed))
}

func TestLoadPrefersEnvironment(t *testing.T) {
	t.Setenv(EnvAccessToken, "env-token")
	t.Setenv(EnvInstanceURL, "https://env.my.salesforce.com")
	store := newStore()
	require.NoError(t, store.SaveSession("stored", "https://stored.my.salesforce.com"))

	s, err := Load(store)
	require.NoError(t, err)
	assert.Equal(t, "env-token", s.Token)
}

func TestLoadFromStore(t *testing.T) {
	t.Setenv(EnvAccessToken, "")
	t.Setenv(EnvInstanceURL, "")
	store := newStore()

	_, err := Load(store)
	assert.True(t, errors.Is(err, errors.AuthFailed))

	in := &Session{Token: "00D!abc", Instance: "https://acme.my.salesforce.com"}
	require.NoError(t, Save(store, in, State{Username: "admin@acme.com", Method: "password"}))

	s, err := Load(store)
	require.NoError(t, err)
	assert.Equal(t, in, s)

	st, err := LoadState(store)
	require.NoError(t, err)
	assert.True(t, st.LoggedIn)
	assert.Equal(t, "admin@acme.com", st.Username)
	assert.Equal(t, in.Instance, st.InstanceURL)

	require.NoError(t, Clear(store))
	st, err = LoadState(store)
	require.NoError(t, err)
	assert.False(t, st.LoggedIn)
}

func TestPasswordLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "admin@acme.com", r.PostForm.Get("username"))
		assert.Equal(t, "hunter2TOKEN", r.PostForm.Get("password"))
		assert.Equal(t, "3MVG9", r.PostForm.Get("client_id"))
		assert.Equal(t, "shh", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "00Dxx!session",
			"instance_url": "https://acme.my.salesforce.com",
			"token_type":   "Bearer",
			"issued_at":    "1700000000000",
		})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := PasswordLogin(ctx, LoginConfig{
		LoginURL:      srv.URL + "/",
		ClientID:      "3MVG9",
		ClientSecret:  "shh",
		Username:      "admin@acme.com",
		Password:      "hunter2",
		SecurityToken: "TOKEN",
		HTTPClient:    srv.Client(),
	})
	require.NoError(t, err)
	assert.Equal(t, "00Dxx!session", s.Token)
	assert.Equal(t, "https://acme.my.salesforce.com", s.Instance)
}

func TestPasswordLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"authentication failure"}`))
	}))
	defer srv.Close()

	_, err := PasswordLogin(context.Background(), LoginConfig{
		LoginURL: srv.URL,
		ClientID: "3MVG9",
		Username: "admin@acme.com",
	})
	require.Error(t, err)
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.AuthFailed, e.Kind)
	assert.Equal(t, http.StatusBadRequest, e.StatusCode)
	assert.Contains(t, string(e.Body), "invalid_grant")
}

func TestPasswordLoginNeedsClientID(t *testing.T) {
	_, err := PasswordLogin(context.Background(), LoginConfig{Username: "u"})
	assert.True(t, errors.Is(err, errors.Configuration))
}
