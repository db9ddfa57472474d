package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewManagerMissingFileUsesDefaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Get()
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.Infrared.Width != 512 || cfg.Infrared.Height != 424 {
		t.Errorf("infrared geometry = %dx%d, want 512x424", cfg.Infrared.Width, cfg.Infrared.Height)
	}
	if cfg.TuningFile != "infrared_tuning.json" {
		t.Errorf("TuningFile = %q", cfg.TuningFile)
	}
}

func TestNewManagerOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server_port: 9090
log_level: debug
synthetic: true
rtsp:
  base_url: rtsp://10.0.0.5:8554
  username: cam
  password: secret
infrared:
  enabled: true
  width: 640
  height: 480
  fps: 15
  bitrate: 1500
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Get()
	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want 9090", cfg.ServerPort)
	}
	if !cfg.Synthetic {
		t.Error("Synthetic = false, want true")
	}
	if cfg.RTSP.BaseURL != "rtsp://10.0.0.5:8554" || cfg.RTSP.Username != "cam" {
		t.Errorf("RTSP = %+v", cfg.RTSP)
	}
	if cfg.Infrared.FPS != 15 {
		t.Errorf("Infrared.FPS = %d, want 15", cfg.Infrared.FPS)
	}
	// Untouched sections keep their defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Audio.SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
}

func TestNewManagerRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad port":     "server_port: 0\n",
		"bad geometry": "infrared:\n  enabled: true\n  width: 0\n  height: 424\n  fps: 30\n",
		"bad yaml":     "server_port: [\n",
		"bad interval": "tuning_poll_interval_ms: -5\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewManager(path); err == nil {
				t.Error("NewManager accepted invalid configuration")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got, want := reloaded.Get(), m.Get(); got != want {
		t.Errorf("reloaded config differs:\n got %+v\nwant %+v", got, want)
	}
}
