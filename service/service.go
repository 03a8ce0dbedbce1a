// Package service orchestrates the transcription pipeline: fetch media,
// extract audio, run recognition through the selected backend, and clean up
// every temporary artifact regardless of outcome.
package service

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/skillsenselab/scribe/asr"
	"github.com/skillsenselab/scribe/asr/bcut"
	"github.com/skillsenselab/scribe/asr/kuaishou"
	"github.com/skillsenselab/scribe/asr/whispercpp"
	"github.com/skillsenselab/scribe/cache"
	"github.com/skillsenselab/scribe/config"
	apperrors "github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/media"
	"github.com/skillsenselab/scribe/provider"
	"github.com/skillsenselab/scribe/resilience"
	"github.com/skillsenselab/scribe/transcript"
)

// Downloader fetches platform media to a local file.
type Downloader interface {
	DownloadAudio(ctx context.Context, url string) (string, error)
	DownloadVideo(ctx context.Context, url string) (string, error)
}

// Extractor converts a media file into recognition-ready audio.
type Extractor interface {
	ExtractAudio(ctx context.Context, mediaPath string) (string, error)
}

// Orchestrator owns the provider registry, the per-provider rate limiters
// and the transcript cache, and drives whole invocations under one deadline.
type Orchestrator struct {
	cfg        *config.Config
	log        *logger.Logger
	registry   *provider.Registry[asr.Backend]
	limiters   *resilience.LimiterSet
	store      cache.Store
	downloader Downloader
	extractor  Extractor
}

// New wires the orchestrator from configuration. The registry holds the
// closed mapping of provider identifiers; nothing outside it can be
// selected at runtime.
func New(cfg *config.Config, log *logger.Logger) (*Orchestrator, error) {
	if log == nil {
		log = logger.Nop()
	}

	downloader, err := media.NewDownloader(media.DownloaderConfig{
		TempDir:         cfg.Storage.TempDir,
		AudioFormat:     cfg.Download.AudioFormat,
		AudioQuality:    cfg.Download.AudioQuality,
		Retries:         cfg.Download.Retries,
		FragmentRetries: cfg.Download.FragmentRetries,
		SocketTimeout:   cfg.Download.SocketTimeout,
	}, log)
	if err != nil {
		return nil, apperrors.Configuration(err.Error())
	}

	extractor, err := media.NewExtractor(media.ExtractorConfig{
		TempDir: cfg.Storage.TempDir,
	}, log)
	if err != nil {
		return nil, apperrors.Configuration(err.Error())
	}

	var store cache.Store
	if cfg.Storage.CacheDir != "" {
		disk, err := cache.NewDisk(cfg.Storage.CacheDir)
		if err != nil {
			return nil, apperrors.Configuration(err.Error())
		}
		store = disk
	} else {
		store = cache.NewMemory()
	}

	registry := provider.NewRegistry[asr.Backend]()
	registry.RegisterFactory(bcut.ProviderName, bcut.Factory())
	registry.RegisterFactory(kuaishou.ProviderName, kuaishou.Factory())
	registry.RegisterFactory(whispercpp.ProviderName, whispercpp.Factory())

	limiters := resilience.NewLimiterSet(func(name string) resilience.RateLimiterConfig {
		return resilience.WindowConfig(name, cfg.Limits.Calls, cfg.Limits.Period)
	})

	return &Orchestrator{
		cfg:        cfg,
		log:        log.WithComponent("service"),
		registry:   registry,
		limiters:   limiters,
		store:      store,
		downloader: downloader,
		extractor:  extractor,
	}, nil
}

// Close releases provider-held resources such as the resident local model.
func (o *Orchestrator) Close() error {
	return o.registry.Close()
}

// engine resolves the configured provider into a ready engine. An unknown
// identifier fails here, before any I/O.
func (o *Orchestrator) engine() (*asr.Engine, error) {
	name := o.cfg.Provider
	if !o.registry.Registered(name) {
		return nil, apperrors.UnknownProvider(name)
	}

	backend, err := o.registry.GetOrCreate(name, o.backendConfig(name))
	if err != nil {
		return nil, apperrors.Configuration(err.Error())
	}
	return asr.NewEngine(backend, o.store, o.limiters.Get(name), o.log), nil
}

// backendConfig maps the typed configuration onto the factory config map
// for one provider.
func (o *Orchestrator) backendConfig(name string) map[string]any {
	switch name {
	case bcut.ProviderName:
		return map[string]any{
			"base_url":      o.cfg.Bcut.BaseURL,
			"poll_interval": o.cfg.Bcut.PollInterval,
			"poll_retries":  o.cfg.Bcut.PollRetries,
			"timeout":       o.cfg.Bcut.Timeout,
		}
	case kuaishou.ProviderName:
		return map[string]any{
			"base_url":      o.cfg.Kuaishou.BaseURL,
			"token":         o.cfg.Kuaishou.Token,
			"poll_interval": o.cfg.Kuaishou.PollInterval,
			"poll_retries":  o.cfg.Kuaishou.PollRetries,
			"timeout":       o.cfg.Kuaishou.Timeout,
		}
	case whispercpp.ProviderName:
		return map[string]any{
			"model_path": o.cfg.Whisper.Model,
			"language":   o.cfg.Whisper.Language,
			"threads":    o.cfg.Whisper.Threads,
		}
	default:
		return nil
	}
}

// deadline applies the configured invocation timeout.
func (o *Orchestrator) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := o.cfg.ASR.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return context.WithTimeout(ctx, timeout)
}

// mapTimeout converts a blown deadline into the typed timeout error while
// leaving other failures untouched.
func mapTimeout(ctx context.Context, operation string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout(operation)
	}
	return err
}

// request builds the recognition request from configuration defaults.
func (o *Orchestrator) request(audioPath string, onProgress asr.ProgressFunc) asr.Request {
	return asr.Request{
		AudioPath:      audioPath,
		Language:       o.cfg.Whisper.Language,
		WordTimestamps: o.cfg.ASR.WordTimestamps,
		StartMs:        o.cfg.ASR.StartTimeMs,
		EndMs:          o.cfg.ASR.EndTimeMs,
		UseCache:       o.cfg.ASR.UseCache,
		OnProgress:     onProgress,
	}
}

// Transcribe recognizes a local audio file with the configured provider.
func (o *Orchestrator) Transcribe(ctx context.Context, audioPath string, onProgress asr.ProgressFunc) (*transcript.Transcript, error) {
	engine, err := o.engine()
	if err != nil {
		return nil, err
	}

	ctx, cancel := o.deadline(ctx)
	defer cancel()

	result, err := engine.Transcribe(ctx, o.request(audioPath, onProgress))
	return result, mapTimeout(ctx, "transcription", err)
}

// DownloadAudio fetches the audio track of a platform URL and returns the
// local file path. The caller owns the file.
func (o *Orchestrator) DownloadAudio(ctx context.Context, url string) (string, error) {
	ctx, cancel := o.deadline(ctx)
	defer cancel()

	path, err := o.downloader.DownloadAudio(ctx, url)
	return path, mapTimeout(ctx, "audio download", err)
}

// DownloadVideo fetches the full video of a platform URL and returns the
// local file path. The caller owns the file.
func (o *Orchestrator) DownloadVideo(ctx context.Context, url string) (string, error) {
	ctx, cancel := o.deadline(ctx)
	defer cancel()

	path, err := o.downloader.DownloadVideo(ctx, url)
	return path, mapTimeout(ctx, "video download", err)
}

// ProcessURL runs the whole pipeline for one URL: download the audio track,
// convert it for recognition, transcribe, and remove every intermediate
// file no matter how the invocation ends.
func (o *Orchestrator) ProcessURL(ctx context.Context, url string, onProgress asr.ProgressFunc) (*transcript.Transcript, error) {
	// Resolve the provider before touching the network.
	engine, err := o.engine()
	if err != nil {
		return nil, err
	}

	ctx, cancel := o.deadline(ctx)
	defer cancel()

	mediaPath, err := o.downloader.DownloadAudio(ctx, url)
	if err != nil {
		return nil, mapTimeout(ctx, "audio download", err)
	}
	defer o.remove(mediaPath)

	audioPath, err := o.extractor.ExtractAudio(ctx, mediaPath)
	if err != nil {
		return nil, mapTimeout(ctx, "audio extraction", err)
	}
	defer o.remove(audioPath)

	result, err := engine.Transcribe(ctx, o.request(audioPath, onProgress))
	return result, mapTimeout(ctx, "transcription", err)
}

// remove deletes a temporary file, logging rather than failing when the
// file is already gone.
func (o *Orchestrator) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		o.log.Warn("temp file cleanup failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
}
