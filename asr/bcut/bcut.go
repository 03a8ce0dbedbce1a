// Package bcut implements the bcut hosted recognition backend. The protocol
// is upload, submit with an optional time window, poll until the task
// settles, then parse the utterance payload returned by the final poll.
package bcut

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/skillsenselab/scribe/asr"
	apperrors "github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/provider"
	"github.com/skillsenselab/scribe/resilience"
	"github.com/skillsenselab/scribe/transcript"
)

const (
	// ProviderName is the registered name for the bcut backend.
	ProviderName = "bcut"

	defaultBaseURL      = "https://member.bilibili.tv/x/asr"
	defaultPollInterval = time.Second
	defaultPollRetries  = 3
	defaultTimeout      = 60 * time.Second
)

// Config holds configuration for the bcut backend.
type Config struct {
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	// PollRetries bounds consecutive transient poll failures before the
	// task is declared failed.
	PollRetries int           `json:"poll_retries" yaml:"poll_retries"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// Provider implements asr.Backend against the bcut recognition API.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a bcut backend.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollRetries <= 0 {
		cfg.PollRetries = defaultPollRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Factory returns a provider.Factory creating bcut backends from a generic
// config map.
func Factory() provider.Factory[asr.Backend] {
	return func(cfg map[string]any) (asr.Backend, error) {
		bc := Config{}
		if v, ok := cfg["base_url"].(string); ok {
			bc.BaseURL = v
		}
		if v, ok := cfg["poll_interval"].(time.Duration); ok {
			bc.PollInterval = v
		}
		if v, ok := cfg["poll_retries"].(int); ok {
			bc.PollRetries = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			bc.Timeout = v
		}
		return NewProvider(bc), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the bcut API is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Run drives one recognition task through upload, submit and poll. The raw
// utterance payload of the completed task is returned for MakeSegments.
func (p *Provider) Run(ctx context.Context, task *asr.Task) (json.RawMessage, error) {
	task.Report(asr.StatusUploading)
	resourceID, err := p.upload(ctx, task)
	if err != nil {
		return nil, apperrors.Upload(ProviderName, err)
	}

	task.Report(asr.StatusSubmitting)
	taskID, err := p.submit(ctx, task, resourceID)
	if err != nil {
		return nil, apperrors.Submit(ProviderName, err)
	}

	task.Report(asr.StatusQueryingResult)
	return p.poll(ctx, task, taskID)
}

// upload sends the audio bytes to the ingestion endpoint. Transient
// failures are retried, each attempt is rate limited.
func (p *Provider) upload(ctx context.Context, task *asr.Task) (string, error) {
	return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() (string, error) {
		if err := task.Throttle(ctx); err != nil {
			return "", err
		}

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("audio", "audio.wav")
		if err != nil {
			return "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(task.Audio); err != nil {
			return "", fmt.Errorf("write audio data: %w", err)
		}
		writer.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/upload", &buf)
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())

		var result struct {
			ResourceID string `json:"resource_id"`
		}
		if err := p.do(req, &result); err != nil {
			return "", err
		}
		if result.ResourceID == "" {
			return "", fmt.Errorf("upload response missing resource_id")
		}
		return result.ResourceID, nil
	})
}

// submit starts a recognition job against the uploaded resource, scoped to
// the request's time window when one is set.
func (p *Provider) submit(ctx context.Context, task *asr.Task, resourceID string) (string, error) {
	return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() (string, error) {
		if err := task.Throttle(ctx); err != nil {
			return "", err
		}

		payload := map[string]any{
			"resource_id":     resourceID,
			"word_timestamps": task.Request.WordTimestamps,
		}
		if task.Request.StartMs != 0 || task.Request.EndMs != 0 {
			payload["start_time_ms"] = task.Request.StartMs
			payload["end_time_ms"] = task.Request.EndMs
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode submit payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/task", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		var result struct {
			TaskID string `json:"task_id"`
		}
		if err := p.do(req, &result); err != nil {
			return "", err
		}
		if result.TaskID == "" {
			return "", fmt.Errorf("submit response missing task_id")
		}
		return result.TaskID, nil
	})
}

// poll queries the task until it settles or ctx is done. Consecutive
// transient failures beyond the configured bound fail the task.
func (p *Provider) poll(ctx context.Context, task *asr.Task, taskID string) (json.RawMessage, error) {
	failures := 0
	for {
		if err := task.Throttle(ctx); err != nil {
			return nil, err
		}

		state, result, err := p.queryTask(ctx, taskID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			if failures > p.cfg.PollRetries {
				return nil, apperrors.RemoteTask(ProviderName, fmt.Errorf("poll retries exhausted: %w", err))
			}
		case state == "error":
			return nil, apperrors.RemoteTask(ProviderName, fmt.Errorf("task %s failed on the backend", taskID))
		case state == "complete":
			return result, nil
		default:
			failures = 0
			task.Report(asr.StatusQueryingResult)
		}

		timer := time.NewTimer(p.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Provider) queryTask(ctx context.Context, taskID string) (string, json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/task/"+taskID, nil)
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}

	var result struct {
		State  string          `json:"state"`
		Result json.RawMessage `json:"result"`
	}
	if err := p.do(req, &result); err != nil {
		return "", nil, err
	}
	return result.State, result.Result, nil
}

// do executes a request and decodes the bcut response envelope into out.
func (p *Provider) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("bcut request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bcut error (status %d): %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode bcut response: %w", err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("bcut error code %d: %s", envelope.Code, envelope.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode bcut payload: %w", err)
		}
	}
	return nil
}

// --- bcut result payload ---

type utterance struct {
	Transcript string `json:"transcript"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time"`
}

type resultPayload struct {
	Utterances []utterance `json:"utterances"`
}

// MakeSegments parses the utterance payload into the uniform segment model.
// Timestamps are already in milliseconds.
func (p *Provider) MakeSegments(raw json.RawMessage) ([]transcript.Segment, error) {
	var payload resultPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode utterances: %w", err)
	}

	segments := make([]transcript.Segment, len(payload.Utterances))
	for i, u := range payload.Utterances {
		segments[i] = transcript.Segment{
			Text:    u.Transcript,
			StartMs: u.StartTime,
			EndMs:   u.EndTime,
		}
	}
	return segments, nil
}
