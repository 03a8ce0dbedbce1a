// Package asr defines the transcription contract shared by every
// recognition backend and the engine that drives them uniformly.
package asr

import (
	"context"
	"encoding/json"

	"github.com/skillsenselab/scribe/provider"
	"github.com/skillsenselab/scribe/resilience"
	"github.com/skillsenselab/scribe/transcript"
)

// DefaultJoiner separates segment texts in FullText unless a backend
// overrides it.
const DefaultJoiner = "\n"

// Request describes one transcription invocation.
type Request struct {
	// AudioPath is the path to the audio file. Ignored when Audio is set.
	AudioPath string
	// Audio holds the raw audio bytes, already in the format the backend
	// expects.
	Audio []byte
	// Language hints the spoken language, or "auto" for detection.
	Language string
	// WordTimestamps requests word-level rather than phrase-level segments
	// on backends that support it.
	WordTimestamps bool
	// StartMs and EndMs bound the portion of the audio to recognize.
	// Zero values mean the whole file.
	StartMs, EndMs int64
	// UseCache consults and populates the transcript cache.
	UseCache bool
	// OnProgress, if set, receives status transitions for this invocation.
	OnProgress ProgressFunc
}

// Service transcribes audio to a time-aligned transcript.
type Service interface {
	Transcribe(ctx context.Context, req Request) (*transcript.Transcript, error)
}

// Backend is one recognition implementation behind the engine. Run performs
// the provider-specific work and returns the raw result payload;
// MakeSegments converts that payload to the uniform segment model.
type Backend interface {
	provider.Provider
	Run(ctx context.Context, task *Task) (json.RawMessage, error)
	MakeSegments(raw json.RawMessage) ([]transcript.Segment, error)
}

// Joiner is optionally implemented by backends whose FullText should be
// assembled with something other than DefaultJoiner.
type Joiner interface {
	Joiner() string
}

// Task carries the per-invocation state a backend needs while running.
type Task struct {
	// Audio is the audio payload to recognize.
	Audio []byte
	// Request is the originating request, for language and window options.
	Request Request

	limiter *resilience.RateLimiter
	tracker *tracker
}

// Report records a status transition for this invocation.
func (t *Task) Report(s Status) {
	if t.tracker != nil {
		t.tracker.report(s)
	}
}

// Throttle blocks until the backend's rate limiter admits one network call
// or ctx is done. Backends call it once per network call, including calls
// made by retries. Backends without a limiter pass immediately.
func (t *Task) Throttle(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
