package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillsenselab/scribe/logger"
)

// Config is the full configuration surface of the service.
type Config struct {
	// Provider selects the recognition backend.
	Provider string `yaml:"provider" mapstructure:"provider" validate:"oneof=whispercpp bcut kuaishou"`

	Logging  logger.Config  `yaml:"logging" mapstructure:"logging"`
	ASR      ASRConfig      `yaml:"asr" mapstructure:"asr"`
	Whisper  WhisperConfig  `yaml:"whisper" mapstructure:"whisper"`
	Bcut     RemoteConfig   `yaml:"bcut" mapstructure:"bcut"`
	Kuaishou RemoteConfig   `yaml:"kuaishou" mapstructure:"kuaishou"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Limits   LimitsConfig   `yaml:"limits" mapstructure:"limits"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
}

// ASRConfig holds per-request recognition defaults.
type ASRConfig struct {
	UseCache       bool `yaml:"use_cache" mapstructure:"use_cache"`
	WordTimestamps bool `yaml:"word_timestamps" mapstructure:"word_timestamps"`
	// StartTimeMs and EndTimeMs scope remote recognition to a window.
	StartTimeMs int64 `yaml:"start_time_ms" mapstructure:"start_time_ms" validate:"gte=0"`
	EndTimeMs   int64 `yaml:"end_time_ms" mapstructure:"end_time_ms" validate:"gte=0"`
	// Timeout bounds one whole invocation, download through transcript.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// WhisperConfig configures the local whisper backend.
type WhisperConfig struct {
	Model    string `yaml:"model" mapstructure:"model"`
	Language string `yaml:"language" mapstructure:"language"`
	Threads  uint   `yaml:"threads" mapstructure:"threads"`
}

// RemoteConfig configures one hosted recognition backend.
type RemoteConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Token        string        `yaml:"token" mapstructure:"token"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	PollRetries  int           `yaml:"poll_retries" mapstructure:"poll_retries" validate:"gte=0"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DownloadConfig configures the yt-dlp collaborator.
type DownloadConfig struct {
	AudioFormat     string        `yaml:"audio_format" mapstructure:"audio_format"`
	AudioQuality    int           `yaml:"audio_quality" mapstructure:"audio_quality" validate:"gte=0"`
	Retries         int           `yaml:"retries" mapstructure:"retries" validate:"gte=0"`
	FragmentRetries int           `yaml:"fragment_retries" mapstructure:"fragment_retries" validate:"gte=0"`
	SocketTimeout   time.Duration `yaml:"socket_timeout" mapstructure:"socket_timeout"`
}

// StorageConfig holds the filesystem locations the service writes to.
type StorageConfig struct {
	// TempDir receives downloaded media and extracted audio.
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
	// CacheDir enables the on-disk transcript cache when set; empty keeps
	// the cache in memory.
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// LimitsConfig configures the per-provider rate limit window.
type LimitsConfig struct {
	Calls  int           `yaml:"calls" mapstructure:"calls" validate:"gte=0"`
	Period time.Duration `yaml:"period" mapstructure:"period"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
}

// ApplyDefaults fills unset fields with the standard values.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "whispercpp"
	}
	c.Logging.ApplyDefaults()
	if c.ASR.Timeout <= 0 {
		c.ASR.Timeout = 5 * time.Minute
	}
	if c.Whisper.Model == "" {
		c.Whisper.Model = "models/ggml-base.bin"
	}
	if c.Whisper.Language == "" {
		c.Whisper.Language = "auto"
	}
	if c.Download.AudioFormat == "" {
		c.Download.AudioFormat = "mp3"
	}
	if c.Download.AudioQuality <= 0 {
		c.Download.AudioQuality = 192
	}
	if c.Download.Retries <= 0 {
		c.Download.Retries = 3
	}
	if c.Download.FragmentRetries <= 0 {
		c.Download.FragmentRetries = 5
	}
	if c.Download.SocketTimeout <= 0 {
		c.Download.SocketTimeout = 60 * time.Second
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = filepath.Join(os.TempDir(), "scribe")
	}
	if c.Limits.Calls <= 0 {
		c.Limits.Calls = 10
	}
	if c.Limits.Period <= 0 {
		c.Limits.Period = time.Minute
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// Validate checks field constraints and cross-field consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	if c.ASR.EndTimeMs != 0 && c.ASR.EndTimeMs < c.ASR.StartTimeMs {
		return fmt.Errorf("asr.end_time_ms must not precede asr.start_time_ms")
	}
	return nil
}
