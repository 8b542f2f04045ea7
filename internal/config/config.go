// Package config loads daemon configuration from YAML and holds the
// switch settings that can be replaced at runtime.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/estop-monitor/internal/gpio"
	"github.com/sweeney/estop-monitor/internal/logic"
)

// ErrInvalidSettings is returned for settings outside the accepted schema.
var ErrInvalidSettings = errors.New("config: invalid settings")

// Settings is the persisted switch configuration: {pin, switch, action}.
// Switch 0 is active-low (pull-up), 1 is active-high (pull-down).
// Action 0 sends the emergency stop, 1 cancels the print.
type Settings struct {
	Pin    int    `yaml:"pin" json:"pin"`
	Switch int    `yaml:"switch" json:"switch"`
	Action int    `yaml:"action" json:"action"`
	Pull   string `yaml:"pull,omitempty" json:"pull,omitempty"` // auto, up, down, none
}

// DefaultSettings leaves the switch unconfigured.
func DefaultSettings() Settings {
	return Settings{Pin: logic.UnconfiguredPin, Switch: 0, Action: 0}
}

// Validate checks the settings against the schema.
func (s Settings) Validate() error {
	if s.Pin < logic.UnconfiguredPin {
		return fmt.Errorf("%w: pin %d (use -1 to disable)", ErrInvalidSettings, s.Pin)
	}
	if s.Switch != 0 && s.Switch != 1 {
		return fmt.Errorf("%w: switch must be 0 or 1, got %d", ErrInvalidSettings, s.Switch)
	}
	if s.Action != 0 && s.Action != 1 {
		return fmt.Errorf("%w: action must be 0 or 1, got %d", ErrInvalidSettings, s.Action)
	}
	if _, err := parsePull(s.Pull); err != nil {
		return err
	}
	return nil
}

// PinConfig converts validated settings to the switch configuration.
func (s Settings) PinConfig() (logic.PinConfig, error) {
	if err := s.Validate(); err != nil {
		return logic.Unconfigured(), err
	}
	pull, _ := parsePull(s.Pull)

	cfg := logic.PinConfig{
		Pin:      s.Pin,
		Polarity: logic.ActiveLow,
		Action:   logic.ImmediateHalt,
		Pull:     pull,
	}
	if s.Switch == 1 {
		cfg.Polarity = logic.ActiveHigh
	}
	if s.Action == 1 {
		cfg.Action = logic.GracefulCancel
	}
	return cfg, nil
}

func parsePull(s string) (logic.Pull, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return logic.PullAuto, nil
	case "up":
		return logic.PullUp, nil
	case "down":
		return logic.PullDown, nil
	case "none", "disabled":
		return logic.PullNone, nil
	}
	return logic.PullAuto, fmt.Errorf("%w: pull must be auto, up, down or none, got %q", ErrInvalidSettings, s)
}

// GPIOConfig selects the input backend.
type GPIOConfig struct {
	Backend string `yaml:"backend"` // gpiocdev or periph
	Chip    string `yaml:"chip"`
	// Debounce is the software quiet window between accepted edges.
	Debounce time.Duration `yaml:"debounce"`
	// HardwareDebounce is passed to the driver; 0 disables it.
	HardwareDebounce time.Duration `yaml:"hardware_debounce"`
}

// MQTTConfig describes the host bridge.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// SerialConfig describes an optional direct link to the machine controller.
type SerialConfig struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	CancelCommand string `yaml:"cancel_command"`
}

// Config is the daemon configuration.
type Config struct {
	Settings       Settings      `yaml:"settings"`
	GPIO           GPIOConfig    `yaml:"gpio"`
	MQTT           MQTTConfig    `yaml:"mqtt"`
	Serial         SerialConfig  `yaml:"serial"`
	HTTP           string        `yaml:"http"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
	StatusInterval time.Duration `yaml:"status_interval"`
	// SettingsFile receives saved settings; empty keeps them in memory.
	SettingsFile string `yaml:"settings_file"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Settings: DefaultSettings(),
		GPIO: GPIOConfig{
			Backend:  "gpiocdev",
			Chip:     gpio.DefaultChip,
			Debounce: logic.DefaultQuietWindow,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "estop-monitor",
			TopicPrefix: "octoprint/estop",
		},
		Serial: SerialConfig{
			Baud:          115200,
			CancelCommand: "M524",
		},
		HTTP:           ":8080",
		Heartbeat:      15 * time.Minute,
		StatusInterval: time.Second,
	}
}

// Load reads the YAML file at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.SettingsFile != "" {
		s, err := loadSettingsFile(cfg.SettingsFile)
		if err != nil {
			return nil, err
		}
		if s != nil {
			cfg.Settings = *s
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the whole configuration.
func Validate(cfg *Config) error {
	if err := cfg.Settings.Validate(); err != nil {
		return err
	}
	switch cfg.GPIO.Backend {
	case "gpiocdev", "periph":
	default:
		return fmt.Errorf("config: unknown gpio backend %q", cfg.GPIO.Backend)
	}
	if cfg.GPIO.Debounce < 0 || cfg.GPIO.HardwareDebounce < 0 {
		return errors.New("config: debounce must not be negative")
	}
	if cfg.Serial.Device != "" && cfg.Serial.Baud <= 0 {
		return fmt.Errorf("config: invalid serial baud %d", cfg.Serial.Baud)
	}
	return nil
}

func loadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return &s, nil
}
