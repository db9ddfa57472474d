// Package config loads and persists the service configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/depthcast/depthcast/internal/logger"
)

// StreamConfig describes one video capture stream.
type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
	Bitrate int    `yaml:"bitrate"`
}

// AudioConfig describes the microphone stream.
type AudioConfig struct {
	Enabled    bool `yaml:"enabled"`
	SampleRate int  `yaml:"sample_rate"`
	Bitrate    int  `yaml:"bitrate"`
}

// RTSPConfig describes the downstream RTSP server mounts are published to.
type RTSPConfig struct {
	// BaseURL is the server prefix; mount names are appended, e.g.
	// rtsp://127.0.0.1:8554 publishes to rtsp://127.0.0.1:8554/infrared.
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the full service configuration.
type Config struct {
	ServerPort int    `yaml:"server_port"`
	LogLevel   string `yaml:"log_level"`
	LogPretty  bool   `yaml:"log_pretty"`

	// Publish toggles the RTSP output; with it off the service still runs
	// capture, the HTTP API and the preview stream.
	Publish bool `yaml:"publish"`

	// Synthetic replaces the camera with generated test sources.
	Synthetic bool `yaml:"synthetic"`

	RTSP RTSPConfig `yaml:"rtsp"`

	// TuningFile is the infrared tone-mapping parameter file watched at
	// runtime.
	TuningFile           string `yaml:"tuning_file"`
	TuningPollIntervalMS int    `yaml:"tuning_poll_interval_ms"`
	EnginePollIntervalMS int    `yaml:"engine_poll_interval_ms"`

	Infrared StreamConfig `yaml:"infrared"`
	Color    StreamConfig `yaml:"color"`
	Audio    AudioConfig  `yaml:"audio"`
}

// DefaultConfig returns the built-in configuration. The infrared geometry
// matches the Kinect v2 IR sensor.
func DefaultConfig() *Config {
	return &Config{
		ServerPort:           8080,
		LogLevel:             "info",
		LogPretty:            false,
		Publish:              true,
		Synthetic:            false,
		RTSP:                 RTSPConfig{BaseURL: "rtsp://127.0.0.1:8554"},
		TuningFile:           "infrared_tuning.json",
		TuningPollIntervalMS: 1000,
		EnginePollIntervalMS: 500,
		Infrared:             StreamConfig{Enabled: true, Device: "/dev/video1", Width: 512, Height: 424, FPS: 30, Bitrate: 2000},
		Color:                StreamConfig{Enabled: true, Device: "/dev/video0", Width: 1920, Height: 1080, FPS: 30, Bitrate: 4000},
		Audio:                AudioConfig{Enabled: true, SampleRate: 16000, Bitrate: 96000},
	}
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "depthcast", "config.yaml")
}

// Manager loads the configuration once and hands out copies.
type Manager struct {
	path string

	mu     sync.RWMutex
	config *Config
}

// NewManager loads the configuration at path, falling back to defaults when
// the file does not exist. An empty path means DefaultPath.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		path = DefaultPath()
	}
	m := &Manager{path: path}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	log := logger.WithComponent("config")

	cfg := DefaultConfig()
	raw, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		log.Info().Str("path", m.path).Msg("No configuration file, using defaults")
		m.config = cfg
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", m.path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", m.path, err)
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("config %s: %w", m.path, err)
	}
	log.Info().Str("path", m.path).Msg("Configuration loaded")
	m.config = cfg
	return nil
}

func (c *Config) validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port %d out of range", c.ServerPort)
	}
	for name, s := range map[string]StreamConfig{"infrared": c.Infrared, "color": c.Color} {
		if !s.Enabled {
			continue
		}
		if s.Width < 1 || s.Height < 1 {
			return fmt.Errorf("%s: invalid geometry %dx%d", name, s.Width, s.Height)
		}
		if s.FPS < 1 {
			return fmt.Errorf("%s: invalid fps %d", name, s.FPS)
		}
	}
	if c.Audio.Enabled && c.Audio.SampleRate < 1 {
		return fmt.Errorf("audio: invalid sample_rate %d", c.Audio.SampleRate)
	}
	if c.TuningPollIntervalMS < 1 || c.EnginePollIntervalMS < 1 {
		return fmt.Errorf("poll intervals must be positive")
	}
	return nil
}

// Get returns a copy of the configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// Path returns the configuration file location.
func (m *Manager) Path() string {
	return m.path
}

// Save writes the current configuration back to disk, creating parent
// directories as needed.
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", m.path, err)
	}
	return nil
}
