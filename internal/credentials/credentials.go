// Package credentials persists the API credential with its premium flag and
// the local auth role.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	statusFile = "credentials.yaml"
	roleFile   = "auth.yaml"
)

// Premium records whether the credential may use premium features.
type Premium string

const (
	PremiumUnknown Premium = "unknown"
	PremiumYes     Premium = "yes"
	PremiumNo      Premium = "no"
)

func (p Premium) valid() bool {
	return p == PremiumUnknown || p == PremiumYes || p == PremiumNo
}

// Status is the stored credential.
type Status struct {
	Key     string  `yaml:"api_key"`
	Premium Premium `yaml:"premium"`
}

// Role is the local access level.
type Role string

const (
	RoleOwner Role = "owner"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// ParseRole accepts owner, user or guest.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleOwner, RoleUser, RoleGuest:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

type roleRecord struct {
	Type Role `yaml:"type"`
}

// Store keeps both records as YAML files in one directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore uses dir, which is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Status returns the stored credential, or nil when none is stored. A
// malformed record is removed and treated as absent.
func (s *Store) Status() (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

func (s *Store) status() (*Status, error) {
	var st Status
	ok, err := s.read(statusFile, &st)
	if err != nil || !ok {
		return nil, err
	}
	if st.Key == "" || !st.Premium.valid() {
		return nil, s.remove(statusFile)
	}
	return &st, nil
}

// Key returns the stored credential or "".
func (s *Store) Key() string {
	st, err := s.Status()
	if err != nil || st == nil {
		return ""
	}
	return st.Key
}

// SetKey stores a new credential with an unknown premium flag.
func (s *Store) SetKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(statusFile, Status{Key: key, Premium: PremiumUnknown})
}

// SetPremium updates the flag of the stored credential. Without a stored
// credential it does nothing.
func (s *Store) SetPremium(p Premium) error {
	if !p.valid() {
		return fmt.Errorf("invalid premium state %q", p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.status()
	if err != nil || st == nil || st.Premium == p {
		return err
	}
	st.Premium = p
	return s.write(statusFile, *st)
}

// Clear removes the stored credential.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(statusFile)
}

// Role returns the stored role, or "" when none is stored.
func (s *Store) Role() (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec roleRecord
	ok, err := s.read(roleFile, &rec)
	if err != nil || !ok {
		return "", err
	}
	r, err := ParseRole(string(rec.Type))
	if err != nil {
		return "", s.remove(roleFile)
	}
	return r, nil
}

// SetRole stores r.
func (s *Store) SetRole(r Role) error {
	if _, err := ParseRole(string(r)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(roleFile, roleRecord{Type: r})
}

// ClearRole removes the stored role.
func (s *Store) ClearRole() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(roleFile)
}

func (s *Store) read(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}

	if err := yaml.Unmarshal(data, v); err != nil {
		return false, s.remove(name)
	}
	return true, nil
}

func (s *Store) write(name string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (s *Store) remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
