package openai

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
)

const (
	EnvAPIKey = "OPENAI_API_KEY"
	EnvOrgID  = "OPENAI_ORG_ID"
)

// Credential is an immutable snapshot of the API key and organization.
// It is never serialized.
type Credential struct {
	token        []byte
	Organization string
}

func NewCredential(token, organization string) *Credential {
	return &Credential{
		token:        []byte(strings.TrimSpace(token)),
		Organization: strings.TrimSpace(organization),
	}
}

func (c *Credential) Valid() bool {
	return c != nil && len(c.token) > 0
}

func (c *Credential) String() string {
	return "Credential{redacted}"
}

func (c *Credential) MarshalJSON() ([]byte, error) {
	return []byte(`"[redacted]"`), nil
}

// withToken hands fn a transient copy of the token and wipes it afterwards.
func (c *Credential) withToken(fn func(token []byte)) {
	buf := make([]byte, len(c.token))
	copy(buf, c.token)
	defer func() {
		for i := range buf {
			buf[i] = 0
		}
	}()
	fn(buf)
}

// CredentialStore hands out credential snapshots without locking. Set is
// meant to be called before concurrent work starts.
type CredentialStore struct {
	current atomic.Pointer[Credential]
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

func (s *CredentialStore) Set(token, organization string) {
	s.current.Store(NewCredential(token, organization))
}

func (s *CredentialStore) Clear() {
	s.current.Store(nil)
}

// Snapshot returns the current credential, nil when none is configured.
func (s *CredentialStore) Snapshot() *Credential {
	return s.current.Load()
}

// LoadFromEnv fills the store from OPENAI_API_KEY / OPENAI_ORG_ID, loading
// the given .env files first. It is a no-op once a key has been set.
// Missing .env files are ignored.
func (s *CredentialStore) LoadFromEnv(envFiles ...string) bool {
	if s.Snapshot().Valid() {
		return true
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
	token := os.Getenv(EnvAPIKey)
	if strings.TrimSpace(token) == "" {
		return false
	}
	s.Set(token, os.Getenv(EnvOrgID))
	return true
}
