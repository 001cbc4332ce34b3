// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for bulkctl.
// It stores the Salesforce session (access token and instance URL), the
// persisted login state and the Postgres DSN used as a record source.
//
// macOS uses the security command with a keyring fallback; Windows uses the
// Credential Manager; Linux uses Secret Service, KWallet or pass.
package keychain

import (
	stderrors "errors"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

var (
	globalManager *Manager
	mu            sync.Mutex
)

// ErrNotFound is returned when a key is absent or empty.
var ErrNotFound = stderrors.New("keychain: item not found")

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu    sync.RWMutex
	store store
}

type store interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "bulkctl"

// Keys used for storing secrets in the OS keychain.
const (
	KeyAccessToken = "sf_access_token"
	KeyInstanceURL = "sf_instance_url"
	KeyAuthState   = "auth_state"
	KeyDBDSN       = "db_dsn"
)

var authKeys = []string{KeyAccessToken, KeyInstanceURL, KeyAuthState}

// NewManager creates a manager backed by the platform credential store.
func NewManager() (*Manager, error) {
	if runtime.GOOS == "darwin" {
		if backend, err := newSecurityBackend(); err == nil {
			return &Manager{store: backend}, nil
		}
	}
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return NewWithRing(ring), nil
}

// NewWithRing wraps an already opened keyring.
func NewWithRing(ring keyring.Keyring) *Manager {
	return &Manager{store: ringStore{ring}}
}

// GetManager returns the global keychain manager instance, creating it on
// first use. A failed initialization is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return globalManager, nil
}

func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	case "linux", "freebsd", "openbsd":
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, stderrors.New("secure storage not supported on " + runtime.GOOS)
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:             ServiceName,
		AllowedBackends:         allowed,
		PassPrefix:              ServiceName,
		WinCredPrefix:           ServiceName,
		KWalletAppID:            ServiceName,
		KWalletFolder:           ServiceName,
		LibSecretCollectionName: "login",
	})
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, stderrors.New("macOS Keychain unavailable. Install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}
	return ring, nil
}

type ringStore struct{ ring keyring.Keyring }

func (r ringStore) Set(key, value string) error {
	return r.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

func (r ringStore) Get(key string) (string, error) {
	it, err := r.ring.Get(key)
	if stderrors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(it.Data), nil
}

func (r ringStore) Delete(key string) error {
	err := r.ring.Remove(key)
	if stderrors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (m *Manager) get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, err := m.store.Get(key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Manager) clear(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		_ = m.store.Delete(k)
	}
}

// SaveSession stores the access token and instance URL together.
func (m *Manager) SaveSession(accessToken, instanceURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Set(KeyAccessToken, accessToken); err != nil {
		return err
	}
	return m.store.Set(KeyInstanceURL, instanceURL)
}

// LoadSession returns the stored access token and instance URL.
func (m *Manager) LoadSession() (accessToken, instanceURL string, err error) {
	if accessToken, err = m.get(KeyAccessToken); err != nil {
		return "", "", err
	}
	if instanceURL, err = m.get(KeyInstanceURL); err != nil {
		return "", "", err
	}
	return accessToken, instanceURL, nil
}

// SaveAuthState stores serialized auth state in the keychain.
func (m *Manager) SaveAuthState(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Set(KeyAuthState, string(data))
}

// LoadAuthState retrieves serialized auth state from the keychain.
func (m *Manager) LoadAuthState() ([]byte, error) {
	v, err := m.get(KeyAuthState)
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

// ClearAuth removes the session and auth state.
func (m *Manager) ClearAuth() error {
	m.clear(authKeys...)
	return nil
}

// SaveDBDSN stores the database DSN in the keychain.
func (m *Manager) SaveDBDSN(dsn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Set(KeyDBDSN, dsn)
}

// LoadDBDSN retrieves the database DSN from the keychain.
func (m *Manager) LoadDBDSN() (string, error) {
	return m.get(KeyDBDSN)
}

// ClearDB removes DB-related secrets from the keychain.
func (m *Manager) ClearDB() error {
	m.clear(KeyDBDSN)
	return nil
}

// ClearAll removes every bulkctl secret from the keychain.
func (m *Manager) ClearAll() error {
	m.clear(append(authKeys, KeyDBDSN)...)
	return nil
}
