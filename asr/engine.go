package asr

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/skillsenselab/scribe/cache"
	apperrors "github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/resilience"
	"github.com/skillsenselab/scribe/transcript"
)

// Engine composes one Backend with the cross-cutting transcription policy:
// cache lookup and best-effort write, per-provider rate limiting, status
// reporting, and transcript assembly. Every backend runs behind an Engine so
// the policy is identical regardless of where recognition happens.
type Engine struct {
	backend Backend
	store   cache.Store
	limiter *resilience.RateLimiter
	log     *logger.Logger
}

// NewEngine wires a backend to its cache store and rate limiter. store and
// limiter may be nil, disabling caching and throttling respectively.
func NewEngine(backend Backend, store cache.Store, limiter *resilience.RateLimiter, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		backend: backend,
		store:   store,
		limiter: limiter,
		log:     log.WithComponent("asr." + backend.Name()),
	}
}

// Name returns the underlying backend's name.
func (e *Engine) Name() string { return e.backend.Name() }

// IsAvailable reports whether the underlying backend can take requests.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	return e.backend.IsAvailable(ctx)
}

// Transcribe runs one invocation end to end. On success the invocation
// finishes Completed at 100 percent; on error it finishes Failed and the
// returned error carries the stage where it stopped.
func (e *Engine) Transcribe(ctx context.Context, req Request) (*transcript.Transcript, error) {
	audio := req.Audio
	if audio == nil {
		data, err := os.ReadFile(req.AudioPath)
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("reading audio file: %w", err))
		}
		audio = data
	}

	track := newTracker(req.OnProgress)
	key := cache.Key(e.backend.Name(), audio, cacheParams(req)...)

	if req.UseCache && e.store != nil {
		cached, ok, err := e.store.Get(ctx, key)
		if err != nil {
			// Cache failures never fail the invocation, recognition proceeds
			// as if it were a miss.
			e.log.Warn("cache read failed", map[string]interface{}{
				"key":   key,
				"error": apperrors.Cache(err).Error(),
			})
		} else if ok {
			e.log.Debug("cache hit", map[string]interface{}{"key": key})
			track.report(StatusCompleted)
			return cached, nil
		}
	}

	task := &Task{
		Audio:   audio,
		Request: req,
		limiter: e.limiter,
		tracker: track,
	}

	raw, err := e.backend.Run(ctx, task)
	if err != nil {
		track.report(StatusFailed)
		return nil, e.classify(err)
	}

	segments, err := e.backend.MakeSegments(raw)
	if err != nil {
		track.report(StatusFailed)
		return nil, apperrors.Recognition(e.backend.Name(), err)
	}

	joiner := DefaultJoiner
	if j, ok := e.backend.(Joiner); ok {
		joiner = j.Joiner()
	}
	result, err := transcript.New(segments, joiner)
	if err != nil {
		track.report(StatusFailed)
		return nil, apperrors.Recognition(e.backend.Name(), err)
	}

	track.report(StatusCompleted)

	if req.UseCache && e.store != nil {
		if err := e.store.Put(ctx, key, result); err != nil {
			e.log.Warn("cache write failed", map[string]interface{}{
				"key":   key,
				"error": apperrors.Cache(err).Error(),
			})
		}
	}

	return result, nil
}

// classify maps a backend failure to the typed taxonomy. Errors already
// carrying a stage code pass through, a blown deadline becomes a timeout,
// anything else is a recognition failure.
func (e *Engine) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout("transcribe")
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	return apperrors.Recognition(e.backend.Name(), err)
}

// cacheParams lists the request options that change recognition output.
// They become part of the cache key so differing options never collide.
func cacheParams(req Request) []string {
	var params []string
	if req.Language != "" && req.Language != "auto" {
		params = append(params, "lang="+req.Language)
	}
	if req.WordTimestamps {
		params = append(params, "words")
	}
	if req.StartMs != 0 || req.EndMs != 0 {
		params = append(params, fmt.Sprintf("win=%d-%d", req.StartMs, req.EndMs))
	}
	return params
}
