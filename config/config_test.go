package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Provider != "whispercpp" {
		t.Errorf("expected whispercpp default provider, got %q", cfg.Provider)
	}
	if cfg.ASR.Timeout != 5*time.Minute {
		t.Errorf("expected 5m default timeout, got %v", cfg.ASR.Timeout)
	}
	if cfg.Whisper.Language != "auto" {
		t.Errorf("expected auto language, got %q", cfg.Whisper.Language)
	}
	if cfg.Download.AudioFormat != "mp3" || cfg.Download.AudioQuality != 192 {
		t.Errorf("unexpected download defaults: %+v", cfg.Download)
	}
	if cfg.Limits.Calls != 10 || cfg.Limits.Period != time.Minute {
		t.Errorf("unexpected limit defaults: %+v", cfg.Limits)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		cfg.ApplyDefaults()
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := valid()
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Provider = "dictaphone"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for unknown provider")
		}
	})

	t.Run("inverted time window rejected", func(t *testing.T) {
		cfg := valid()
		cfg.ASR.StartTimeMs = 5000
		cfg.ASR.EndTimeMs = 1000
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "end_time_ms") {
			t.Fatalf("expected window error, got %v", err)
		}
	})

	t.Run("bad base url rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Bcut.BaseURL = "not a url"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for malformed base url")
		}
	})

	t.Run("out of range port rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 70000
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for invalid port")
		}
	})
}

func TestLoad_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
provider: bcut
whisper:
  model: models/ggml-small.bin
  language: en
download:
  audio_format: m4a
  audio_quality: 128
storage:
  temp_dir: /tmp/scribe-test
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	var cfg Config
	if err := Load(&cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "bcut" {
		t.Errorf("expected bcut, got %q", cfg.Provider)
	}
	if cfg.Whisper.Model != "models/ggml-small.bin" || cfg.Whisper.Language != "en" {
		t.Errorf("whisper section not loaded: %+v", cfg.Whisper)
	}
	if cfg.Download.AudioFormat != "m4a" || cfg.Download.AudioQuality != 128 {
		t.Errorf("download section not loaded: %+v", cfg.Download)
	}
	if cfg.Storage.TempDir != "/tmp/scribe-test" {
		t.Errorf("storage section not loaded: %+v", cfg.Storage)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
whisper:
  model: models/ggml-base.bin
download:
  audio_format: mp3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("WHISPER_MODEL", "models/ggml-large.bin")
	t.Setenv("DOWNLOAD_AUDIO_FORMAT", "wav")

	var cfg Config
	if err := Load(&cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Whisper.Model != "models/ggml-large.bin" {
		t.Errorf("WHISPER_MODEL did not override, got %q", cfg.Whisper.Model)
	}
	if cfg.Download.AudioFormat != "wav" {
		t.Errorf("DOWNLOAD_AUDIO_FORMAT did not override, got %q", cfg.Download.AudioFormat)
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	var cfg Config
	if err := Load(&cfg, WithConfigFile("/nonexistent/config.yaml")); err != nil {
		t.Fatalf("expected success with missing file, got %v", err)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("PROVIDER=kuaishou\n"), 0o644); err != nil {
		t.Fatalf("writing .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("PROVIDER") })

	var cfg Config
	if err := Load(&cfg, WithEnvFile(envPath)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "kuaishou" {
		t.Errorf(".env PROVIDER not applied, got %q", cfg.Provider)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	variants := envKeyVariants("DOWNLOAD_AUDIO_FORMAT")
	want := map[string]bool{
		"download.audio_format": false,
		"download.audio.format": false,
	}
	for _, v := range variants {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for key, found := range want {
		if !found {
			t.Errorf("expected variant %q in %v", key, variants)
		}
	}
}
