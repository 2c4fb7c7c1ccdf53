// Package cli is the demonstration CLI's own configuration store: named
// node profiles (connect type, host/port, topic) persisted as YAML files
// under the OS config directory, one file per profile. The edge library
// itself takes no dependency on this package.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

const appDir = "edgenodectl"

// Profile is one saved node configuration.
type Profile struct {
	ID          string `yaml:"id"`
	ConnectType string `yaml:"connect_type"`
	NodeType    string `yaml:"node_type"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	DestHost    string `yaml:"dest_host,omitempty"`
	DestPort    int    `yaml:"dest_port,omitempty"`
	Topic       string `yaml:"topic,omitempty"`
}

// Store is a directory of saved profiles.
type Store struct {
	Dir string
}

// Open returns a Store rooted at the OS-default config directory.
func Open() (*Store, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine config directory: %w", err)
	}
	return &Store{Dir: filepath.Join(base, appDir, "profiles")}, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("profile name %q must not contain path separators", name)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name+".yaml")
}

// Save writes p under name, creating the profile directory if needed.
func (s *Store) Save(name string, p *Profile) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile %q: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("write profile %q: %w", name, err)
	}
	return nil
}

// Load reads the profile named name.
func (s *Store) Load(name string) (*Profile, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("profile %q not found (expected %s)", name, s.path(name))
		}
		return nil, fmt.Errorf("read profile %q: %w", name, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}
	return &p, nil
}

// List returns the names of every saved profile.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}
	return names, nil
}
