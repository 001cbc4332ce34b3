package session

import (
	"encoding/json"
	stderrors "errors"
	"time"

	"bulkctl/cli/internal/keychain"
)

// State is what `whoami` shows without a network call.
type State struct {
	LoggedIn    bool      `json:"logged_in"`
	Username    string    `json:"username,omitempty"`
	InstanceURL string    `json:"instance_url,omitempty"`
	Method      string    `json:"method,omitempty"` // password or token
	LoginAt     time.Time `json:"login_at"`
}

// LoadState reads the persisted state. Missing state yields the zero value.
func LoadState(store Store) (State, error) {
	var s State
	data, err := store.LoadAuthState()
	if stderrors.Is(err, keychain.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

// SaveState writes the state.
func SaveState(store Store, s State) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return store.SaveAuthState(b)
}
