// Package whispercpp implements local in-process recognition over the
// whisper.cpp bindings. There is no upload or poll phase, the invocation
// moves straight from Transcribing to its terminal state, and the rate
// limiter slot stays unconsulted because there is no external quota.
package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/skillsenselab/scribe/asr"
	apperrors "github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/provider"
	"github.com/skillsenselab/scribe/transcript"
)

// ProviderName is the registered name for the local whisper backend.
const ProviderName = "whispercpp"

// Config holds configuration for the local whisper backend.
type Config struct {
	// ModelPath points at a ggml model file, e.g. ggml-base.bin.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// Language is a language code or "auto" for detection.
	Language string `json:"language" yaml:"language"`
	// Threads caps inference threads, 0 lets the model decide.
	Threads uint `json:"threads" yaml:"threads"`
}

// transcriber is the seam between the provider and the native model, so
// tests can exercise the backend without loading a ggml file.
type transcriber interface {
	transcribe(samples []float32, language string, threads uint) ([]transcript.Segment, error)
	close() error
}

// Provider implements asr.Backend over an in-process whisper model.
type Provider struct {
	cfg   Config
	model transcriber
}

// NewProvider loads the configured model and returns a local backend. The
// model stays resident until Close.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("whispercpp model path not configured")
	}
	model, err := whisper.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}
	return &Provider{cfg: cfg, model: &nativeModel{model: model}}, nil
}

func newProviderWith(cfg Config, model transcriber) *Provider {
	return &Provider{cfg: cfg, model: model}
}

// Factory returns a provider.Factory creating local whisper backends from a
// generic config map.
func Factory() provider.Factory[asr.Backend] {
	return func(cfg map[string]any) (asr.Backend, error) {
		wc := Config{}
		if v, ok := cfg["model_path"].(string); ok {
			wc.ModelPath = v
		}
		if v, ok := cfg["language"].(string); ok {
			wc.Language = v
		}
		if v, ok := cfg["threads"].(uint); ok {
			wc.Threads = v
		}
		return NewProvider(wc)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether the model is loaded.
func (p *Provider) IsAvailable(_ context.Context) bool { return p.model != nil }

// Close releases the resident model.
func (p *Provider) Close() error {
	if p.model == nil {
		return nil
	}
	return p.model.close()
}

// Joiner concatenates raw segment text without a separator, whisper
// segments carry their own leading whitespace.
func (p *Provider) Joiner() string { return "" }

// Run decodes the audio and runs inference synchronously. The context is
// consulted before and after the native call, inference itself is not
// interruptible.
func (p *Provider) Run(ctx context.Context, task *asr.Task) (json.RawMessage, error) {
	task.Report(asr.StatusTranscribing)

	samples, err := decodeWAV(task.Audio)
	if err != nil {
		return nil, apperrors.Recognition(ProviderName, fmt.Errorf("decode audio: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	language := task.Request.Language
	if language == "" {
		language = p.cfg.Language
	}
	segments, err := p.model.transcribe(samples, language, p.cfg.Threads)
	if err != nil {
		return nil, apperrors.Recognition(ProviderName, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(segments)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return raw, nil
}

// MakeSegments decodes the segment list produced by Run.
func (p *Provider) MakeSegments(raw json.RawMessage) ([]transcript.Segment, error) {
	var segments []transcript.Segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return segments, nil
}

// nativeModel adapts a loaded whisper.Model to the transcriber seam.
type nativeModel struct {
	model whisper.Model
}

func (m *nativeModel) transcribe(samples []float32, language string, threads uint) ([]transcript.Segment, error) {
	wctx, err := m.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create whisper context: %w", err)
	}

	if language != "" {
		if err := wctx.SetLanguage(language); err != nil && language != "auto" {
			return nil, fmt.Errorf("set language %q: %w", language, err)
		}
	}
	if threads > 0 {
		wctx.SetThreads(threads)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper process: %w", err)
	}

	var segments []transcript.Segment
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read segment: %w", err)
		}
		segments = append(segments, transcript.Segment{
			Text:    segment.Text,
			StartMs: segment.Start.Milliseconds(),
			EndMs:   segment.End.Milliseconds(),
		})
	}
	return segments, nil
}

func (m *nativeModel) close() error {
	return m.model.Close()
}
