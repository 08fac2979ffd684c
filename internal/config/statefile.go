package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Statefile is the local application configuration persisted between runs:
// the last selected identity and, for the envelope backend, the encrypted
// vault blob per identity. Writes are atomic (temp file + rename).
//
// Methods are safe for concurrent use: envelope saves run on background
// workers while the event loop may update the last user.
type Statefile struct {
	path string

	mu  sync.Mutex
	doc stateDoc
}

type stateDoc struct {
	LastUser string            `json:"last_user,omitempty"`
	Secrets  map[string][]byte `json:"secrets,omitempty"`
}

const statefileName = "state.json"

// OpenStatefile resolves the state directory (OS user config dir when dir is
// empty), creates it, and loads the existing state file if any. Failure to
// obtain a writable location is the one startup error the application treats
// as fatal.
func OpenStatefile(dir string) (*Statefile, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve user config dir: %w", err)
		}
		dir = filepath.Join(base, "keyfob")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}

	s := &Statefile{path: filepath.Join(dir, statefileName)}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: probe writability now so a read-only location fails
		// at startup instead of at the first save.
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return s, nil
}

// LastUser returns the identity selected in the previous session, if any.
func (s *Statefile) LastUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.LastUser
}

// SetLastUser persists the identity. Written on every identity change.
func (s *Statefile) SetLastUser(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.LastUser = identity
	return s.persistLocked()
}

// SecretBlob returns the encrypted vault blob stored for identity.
func (s *Statefile) SecretBlob(identity string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.doc.Secrets[identity]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, true
}

// SetSecretBlob stores the encrypted vault blob for identity and persists.
func (s *Statefile) SetSecretBlob(identity string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Secrets == nil {
		s.doc.Secrets = make(map[string][]byte)
	}
	stored := make([]byte, len(blob))
	copy(stored, blob)
	s.doc.Secrets[identity] = stored
	return s.persistLocked()
}

func (s *Statefile) persistLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
