package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/estop-monitor/internal/logic"
)

// SaveHook is called after settings were accepted.
type SaveHook func(logic.PinConfig)

// Store holds the current settings and notifies on save.
type Store struct {
	// save serialises Save so hooks run in the order settings were stored.
	save sync.Mutex

	mu       sync.Mutex
	settings Settings
	path     string
	hook     SaveHook
}

// NewStore creates a Store. If path is non-empty, saved settings are
// written there as YAML.
func NewStore(initial Settings, path string) *Store {
	return &Store{settings: initial, path: path}
}

// OnSave registers the settings-save hook.
func (s *Store) OnSave(hook SaveHook) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// PinConfig returns the current settings as a switch configuration.
func (s *Store) PinConfig() (logic.PinConfig, error) {
	return s.Get().PinConfig()
}

// Save validates and replaces the settings, persists them, and then runs
// the save hook. Invalid settings leave the store unchanged.
func (s *Store) Save(next Settings) error {
	cfg, err := next.PinConfig()
	if err != nil {
		return err
	}

	s.save.Lock()
	defer s.save.Unlock()

	s.mu.Lock()
	if s.path != "" {
		if err := writeSettings(s.path, next); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.settings = next
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		hook(cfg)
	}
	return nil
}

func writeSettings(path string, st Settings) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
