// Package auth keeps the tokens used to authenticate against remote catalogs.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNoCredentials is returned when no token is stored for a catalog.
var ErrNoCredentials = errors.New("no credentials stored for catalog")

// Credential is the token stored for one catalog.
type Credential struct {
	Token     string `json:"token"`
	Username  string `json:"username,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Credentials is the on-disk layout, keyed by normalized catalog URL.
type Credentials struct {
	Catalogs map[string]Credential `json:"catalogs"`
}

// Manager manages stored catalog tokens.
type Manager struct {
	configDir   string
	credentials *Credentials
	mu          sync.RWMutex
}

// NewManager creates a manager storing its file in configDir.
func NewManager(configDir string) (*Manager, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configDir:   configDir,
		credentials: &Credentials{Catalogs: map[string]Credential{}},
	}

	// Try to load existing credentials
	if err := m.loadCredentials(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return m, nil
}

// Login stores token for the catalog at url.
func (m *Manager) Login(url, token, username string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}

	m.mu.Lock()
	m.credentials.Catalogs[normalize(url)] = Credential{
		Token:     token,
		Username:  username,
		CreatedAt: time.Now().Unix(),
	}
	m.mu.Unlock()

	if err := m.saveCredentials(); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Logout forgets the token for url.
func (m *Manager) Logout(url string) error {
	m.mu.Lock()
	delete(m.credentials.Catalogs, normalize(url))
	m.mu.Unlock()

	return m.saveCredentials()
}

// Get returns the credential stored for url.
func (m *Manager) Get(url string) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.credentials.Catalogs[normalize(url)]
	if !ok {
		return Credential{}, ErrNoCredentials
	}
	return c, nil
}

// Token picks the token for url: explicit wins over the stored one.
func (m *Manager) Token(url, explicit string) string {
	if explicit != "" {
		return explicit
	}
	c, err := m.Get(url)
	if err != nil {
		return ""
	}
	return c.Token
}

// credentialsPath returns the path to the credentials file.
func (m *Manager) credentialsPath() string {
	return filepath.Join(m.configDir, "credentials.json")
}

// loadCredentials loads credentials from disk.
func (m *Manager) loadCredentials() error {
	data, err := os.ReadFile(m.credentialsPath())
	if err != nil {
		return err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return err
	}
	if creds.Catalogs == nil {
		creds.Catalogs = map[string]Credential{}
	}

	m.mu.Lock()
	m.credentials = &creds
	m.mu.Unlock()

	return nil
}

// saveCredentials saves credentials to disk.
func (m *Manager) saveCredentials() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.credentials, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	return os.WriteFile(m.credentialsPath(), data, 0600)
}

func normalize(url string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(url)), "/")
}
