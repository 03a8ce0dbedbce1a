// Package media wraps the external collaborators at the pipeline boundary:
// yt-dlp for fetching platform media and ffmpeg for converting it into the
// audio format recognition expects. Both run as subprocesses.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/logger"
)

// runner executes an external command and returns its combined output.
// Swappable in tests.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// DownloaderConfig configures the yt-dlp collaborator.
type DownloaderConfig struct {
	// Binary is the yt-dlp executable name or path.
	Binary string `json:"binary" yaml:"binary"`
	// TempDir receives downloaded files.
	TempDir string `json:"temp_dir" yaml:"temp_dir"`
	// AudioFormat is the target codec for audio downloads, e.g. mp3.
	AudioFormat string `json:"audio_format" yaml:"audio_format"`
	// AudioQuality is the target bitrate for audio downloads in kbit/s.
	AudioQuality int `json:"audio_quality" yaml:"audio_quality"`
	// Retries is passed to yt-dlp for whole-file retries.
	Retries int `json:"retries" yaml:"retries"`
	// FragmentRetries is passed to yt-dlp for per-fragment retries.
	FragmentRetries int `json:"fragment_retries" yaml:"fragment_retries"`
	// SocketTimeout bounds individual network operations inside yt-dlp.
	SocketTimeout time.Duration `json:"socket_timeout" yaml:"socket_timeout"`
}

// ApplyDefaults fills unset fields with the standard values.
func (c *DownloaderConfig) ApplyDefaults() {
	if c.Binary == "" {
		c.Binary = "yt-dlp"
	}
	if c.TempDir == "" {
		c.TempDir = filepath.Join(os.TempDir(), "scribe")
	}
	if c.AudioFormat == "" {
		c.AudioFormat = "mp3"
	}
	if c.AudioQuality <= 0 {
		c.AudioQuality = 192
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.FragmentRetries <= 0 {
		c.FragmentRetries = 5
	}
	if c.SocketTimeout <= 0 {
		c.SocketTimeout = 60 * time.Second
	}
}

// Downloader fetches media from video platforms through yt-dlp. Each
// download lands in the temp directory under a fresh uuid filename so
// concurrent downloads never collide.
type Downloader struct {
	cfg DownloaderConfig
	run runner
	log *logger.Logger
}

// NewDownloader creates a Downloader and ensures the temp directory exists.
func NewDownloader(cfg DownloaderConfig, log *logger.Logger) (*Downloader, error) {
	cfg.ApplyDefaults()
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Downloader{
		cfg: cfg,
		run: execRunner,
		log: log.WithComponent("media.downloader"),
	}, nil
}

// DownloadAudio fetches the best audio stream and converts it to the
// configured codec. Returns the path of the finished file.
func (d *Downloader) DownloadAudio(ctx context.Context, url string) (string, error) {
	id := uuid.NewString()
	outPath := filepath.Join(d.cfg.TempDir, id+"."+d.cfg.AudioFormat)

	args := append(d.commonArgs(),
		"-f", "bestaudio",
		"--extract-audio",
		"--audio-format", d.cfg.AudioFormat,
		"--audio-quality", strconv.Itoa(d.cfg.AudioQuality),
		"-o", filepath.Join(d.cfg.TempDir, id+".%(ext)s"),
		url,
	)
	return d.download(ctx, url, outPath, args)
}

// DownloadVideo fetches the best video+audio streams merged into one mp4.
// Returns the path of the finished file.
func (d *Downloader) DownloadVideo(ctx context.Context, url string) (string, error) {
	id := uuid.NewString()
	outPath := filepath.Join(d.cfg.TempDir, id+".mp4")

	args := append(d.commonArgs(),
		"-f", "bestvideo+bestaudio/best",
		"--merge-output-format", "mp4",
		"-o", filepath.Join(d.cfg.TempDir, id+".%(ext)s"),
		url,
	)
	return d.download(ctx, url, outPath, args)
}

func (d *Downloader) download(ctx context.Context, url, outPath string, args []string) (string, error) {
	d.log.Info("downloading", map[string]interface{}{"url": url})

	output, err := d.run(ctx, d.cfg.Binary, args...)
	if err != nil {
		return "", apperrors.Download(url, fmt.Errorf("%w: %s", err, truncate(output)))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", apperrors.Download(url, fmt.Errorf("expected output file missing: %w", err))
	}

	d.log.Info("download finished", map[string]interface{}{"path": outPath})
	return outPath, nil
}

func (d *Downloader) commonArgs() []string {
	return []string{
		"--no-warnings",
		"--no-check-certificates",
		"--retries", strconv.Itoa(d.cfg.Retries),
		"--fragment-retries", strconv.Itoa(d.cfg.FragmentRetries),
		"--socket-timeout", strconv.Itoa(int(d.cfg.SocketTimeout.Seconds())),
	}
}

// truncate caps subprocess output carried inside error causes.
func truncate(output []byte) string {
	const limit = 1024
	if len(output) > limit {
		output = output[len(output)-limit:]
	}
	return string(output)
}
