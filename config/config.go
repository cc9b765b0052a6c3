// Package config owns the persisted configuration document: the activation
// flag, the target list, the recipient, the delegated sender session health
// fields and the cached balance. The engine treats it as an external
// key-value document with last-write-wins semantics, so every read goes back
// to disk and every write rewrites the whole file atomically.
package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUpdateInterval is the base poll sweep interval.
	DefaultUpdateInterval = 45 * time.Second

	filePermissions = 0o644
)

// Target is one operator-configured gift to hunt: a gift type id, a display
// name, a price ceiling and an enabled flag. Owned by the menu layer; the
// engine only reads it.
type Target struct {
	GiftID   int64  `yaml:"gift_id"`
	Name     string `yaml:"name"`
	MaxPrice int64  `yaml:"max_price"`
	Enabled  bool   `yaml:"enabled"`
}

// Sender holds the delegated account session health fields and the cached
// balance. Credentials are collected by the onboarding layer; the engine
// reads Enabled and Balance and writes Balance.
type Sender struct {
	APIID          int           `yaml:"api_id,omitempty"`
	APIHash        string        `yaml:"api_hash,omitempty"`
	Phone          string        `yaml:"phone,omitempty"`
	UserID         int64         `yaml:"user_id,omitempty"`
	Username       string        `yaml:"username,omitempty"`
	FirstName      string        `yaml:"first_name,omitempty"`
	Balance        int64         `yaml:"balance"`
	Enabled        bool          `yaml:"enabled"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// Configured reports whether the delegated session credentials are present.
func (s Sender) Configured() bool {
	return s.APIID != 0 && s.APIHash != "" && s.Phone != ""
}

// Config is the whole persisted document.
type Config struct {
	Active           bool     `yaml:"active"`
	RecipientUserID  int64    `yaml:"recipient_user_id,omitempty"`
	RecipientChannel string   `yaml:"recipient_channel,omitempty"`
	Targets          []Target `yaml:"targets"`
	Sender           Sender   `yaml:"sender"`
}

// IndexedTarget is a target together with its position in the configured list.
type IndexedTarget struct {
	Index  int
	Target Target
}

// EnabledTargets returns enabled targets paired with their index in the full
// list. The index is the target's identity for the listing cache.
func (c Config) EnabledTargets() []IndexedTarget {
	var out []IndexedTarget
	for i, t := range c.Targets {
		if t.Enabled {
			out = append(out, IndexedTarget{Index: i, Target: t})
		}
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Sender: Sender{
			Enabled:        true,
			UpdateInterval: DefaultUpdateInterval,
		},
	}
}

// Store reads and writes the configuration document. Concurrent external
// rewrites between a Load and a Save are tolerated: the last writer wins.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for the given path and makes sure the document
// exists, seeding it with defaults when absent.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.Save(defaultConfig()); err != nil {
			return nil, errors.Wrap(err, "failed to seed config document")
		}
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to stat config document %s", path)
	}
	return s, nil
}

// Load reads the document from disk, filling missing fields with defaults.
func (s *Store) Load() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Config, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config document %s", s.path)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config document")
	}
	if cfg.Sender.UpdateInterval <= 0 {
		cfg.Sender.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.Sender.Balance < 0 {
		cfg.Sender.Balance = 0
	}
	return cfg, nil
}

// Save rewrites the whole document via a temp file and rename, so partially
// written documents are never observed.
func (s *Store) Save(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(cfg)
}

func (s *Store) save(cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config document")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.yaml")
	if err != nil {
		return errors.Wrap(err, "failed to create temp config file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write temp config file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close temp config file")
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to chmod temp config file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to replace config document %s", s.path)
	}
	return nil
}

// Update applies fn to a freshly loaded document and persists the result.
// The read-modify-write runs under the store lock, but an external writer may
// still interleave between processes; that race resolves last-write-wins.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return err
	}
	fn(&cfg)
	return s.save(cfg)
}
