package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	apperrors "github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/logger"
)

// ExtractorConfig configures the ffmpeg collaborator.
type ExtractorConfig struct {
	// Binary is the ffmpeg executable name or path.
	Binary string `json:"binary" yaml:"binary"`
	// TempDir receives extracted audio files.
	TempDir string `json:"temp_dir" yaml:"temp_dir"`
}

// Extractor converts downloaded media into the 16 kHz mono WAV the
// recognition backends consume.
type Extractor struct {
	cfg ExtractorConfig
	run runner
	log *logger.Logger
}

// NewExtractor creates an Extractor and ensures the temp directory exists.
func NewExtractor(cfg ExtractorConfig, log *logger.Logger) (*Extractor, error) {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "scribe")
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		cfg: cfg,
		run: execRunner,
		log: log.WithComponent("media.extractor"),
	}, nil
}

// ExtractAudio transcodes mediaPath to a 16 kHz mono PCM16 WAV file and
// returns its path.
func (e *Extractor) ExtractAudio(ctx context.Context, mediaPath string) (string, error) {
	outPath := filepath.Join(e.cfg.TempDir, uuid.NewString()+".wav")

	args := []string{
		"-y",
		"-i", mediaPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outPath,
	}

	e.log.Debug("extracting audio", map[string]interface{}{"input": mediaPath})

	output, err := e.run(ctx, e.cfg.Binary, args...)
	if err != nil {
		return "", apperrors.Transcode(mediaPath, fmt.Errorf("%w: %s", err, truncate(output)))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", apperrors.Transcode(mediaPath, fmt.Errorf("expected output file missing: %w", err))
	}
	return outPath, nil
}
