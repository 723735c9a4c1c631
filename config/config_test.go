package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "antcmp.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
station:
  callsign: AK6MJ
  grid: CM98kq
paths:
  decode_log: /var/log/wsjtx/ALL.TXT
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Station.Callsign != "AK6MJ" || cfg.Station.Grid != "CM98kq" {
		t.Fatalf("station = %+v", cfg.Station)
	}
	if cfg.Station.Mode != "FT8" {
		t.Fatalf("default mode = %q, want FT8", cfg.Station.Mode)
	}
	if cfg.Paths.DataDir != "data" {
		t.Fatalf("default data dir = %q", cfg.Paths.DataDir)
	}
	if cfg.Control.Port != 7310 || cfg.Control.BindAddress != "127.0.0.1" {
		t.Fatalf("control defaults = %+v", cfg.Control)
	}
	if cfg.SessionLogPath() != filepath.Join("data", "antenna_log.json") {
		t.Fatalf("SessionLogPath = %q", cfg.SessionLogPath())
	}
	if cfg.SpotCacheDir() != filepath.Join("data", "psk_cache") {
		t.Fatalf("SpotCacheDir = %q", cfg.SpotCacheDir())
	}
	if cfg.Logging.Dir != filepath.Join("data", "logs") || cfg.Logging.RetentionDays != 7 {
		t.Fatalf("logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadRequiresStationIdentity(t *testing.T) {
	path := writeConfig(t, `
station:
  callsign: AK6MJ
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing grid")
	}
	path = writeConfig(t, `
paths:
  data_dir: /tmp/x
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing callsign")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
station:
  callsign: AK6MJ
  grid: CM98
  mode: FT4
paths:
  data_dir: /srv/antcmp
pskreporter:
  base_url: http://localhost:9999/query
control:
  enabled: true
  port: 7000
live:
  enabled: true
  broker: test.mosquitto.org
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Station.Mode != "FT4" {
		t.Fatalf("mode = %q", cfg.Station.Mode)
	}
	if cfg.PSKReporter.BaseURL != "http://localhost:9999/query" {
		t.Fatalf("base_url = %q", cfg.PSKReporter.BaseURL)
	}
	if !cfg.Control.Enabled || cfg.Control.Port != 7000 {
		t.Fatalf("control = %+v", cfg.Control)
	}
	if cfg.Live.Broker != "test.mosquitto.org" || cfg.Live.Port != 1883 {
		t.Fatalf("live = %+v", cfg.Live)
	}
	if cfg.Paths.GridDB != filepath.Join("/srv/antcmp", "grids.pebble") {
		t.Fatalf("grid db default = %q", cfg.Paths.GridDB)
	}
}
