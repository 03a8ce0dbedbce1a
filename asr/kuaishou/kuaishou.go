// Package kuaishou implements the kuaishou hosted recognition backend.
// Unlike bcut the task result is fetched from a dedicated endpoint after
// the status poll reports success, and timestamps arrive as float seconds.
package kuaishou

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/skillsenselab/scribe/asr"
	apperrors "github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/provider"
	"github.com/skillsenselab/scribe/resilience"
	"github.com/skillsenselab/scribe/transcript"
)

const (
	// ProviderName is the registered name for the kuaishou backend.
	ProviderName = "kuaishou"

	defaultBaseURL      = "https://ai.kuaishou.com/api/effects/subtitle_generate"
	defaultPollInterval = time.Second
	defaultPollRetries  = 3
	defaultTimeout      = 60 * time.Second
)

// Config holds configuration for the kuaishou backend.
type Config struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	// Token is the API token used to sign each request.
	Token        string        `json:"token" yaml:"token"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	PollRetries  int           `json:"poll_retries" yaml:"poll_retries"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

// Provider implements asr.Backend against the kuaishou recognition API.
type Provider struct {
	cfg    Config
	client *http.Client

	// now is swappable for deterministic signing in tests.
	now func() time.Time
}

// NewProvider creates a kuaishou backend.
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
		now:    time.Now,
	}
}

// Factory returns a provider.Factory creating kuaishou backends from a
// generic config map.
func Factory() provider.Factory[asr.Backend] {
	return func(cfg map[string]any) (asr.Backend, error) {
		kc := Config{}
		if v, ok := cfg["base_url"].(string); ok {
			kc.BaseURL = v
		}
		if v, ok := cfg["token"].(string); ok {
			kc.Token = v
		}
		if v, ok := cfg["poll_interval"].(time.Duration); ok {
			kc.PollInterval = v
		}
		if v, ok := cfg["poll_retries"].(int); ok {
			kc.PollRetries = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			kc.Timeout = v
		}
		return NewProvider(kc), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the kuaishou API is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/ping", nil)
	if err != nil {
		return false
	}
	p.sign(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// sign attaches the token and a timestamped digest to a request. The
// backend verifies md5(token + timestamp) against the signature header.
func (p *Provider) sign(req *http.Request) {
	ts := strconv.FormatInt(p.now().Unix(), 10)
	sum := md5.Sum([]byte(p.cfg.Token + ts))
	req.Header.Set("X-Kss-Token", p.cfg.Token)
	req.Header.Set("X-Kss-Timestamp", ts)
	req.Header.Set("X-Kss-Signature", hex.EncodeToString(sum[:]))
}

// Run drives one recognition task through upload, task creation, status
// polling and the final result fetch.
func (p *Provider) Run(ctx context.Context, task *asr.Task) (json.RawMessage, error) {
	task.Report(asr.StatusUploading)
	uploadID, err := p.upload(ctx, task)
	if err != nil {
		return nil, apperrors.Upload(ProviderName, err)
	}

	task.Report(asr.StatusCreatingTask)
	taskID, err := p.createTask(ctx, task, uploadID)
	if err != nil {
		return nil, apperrors.Submit(ProviderName, err)
	}

	task.Report(asr.StatusTranscribing)
	if err := p.awaitTask(ctx, task, taskID); err != nil {
		return nil, err
	}

	if err := task.Throttle(ctx); err != nil {
		return nil, err
	}
	result, err := p.fetchResult(ctx, taskID)
	if err != nil {
		return nil, apperrors.RemoteTask(ProviderName, err)
	}
	return result, nil
}

func (p *Provider) upload(ctx context.Context, task *asr.Task) (string, error) {
	return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() (string, error) {
		if err := task.Throttle(ctx); err != nil {
			return "", err
		}

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("file", "audio.wav")
		if err != nil {
			return "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(task.Audio); err != nil {
			return "", fmt.Errorf("write audio data: %w", err)
		}
		writer.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/upload", &buf)
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		p.sign(req)

		var result struct {
			UploadID string `json:"uploadId"`
		}
		if err := p.do(req, &result); err != nil {
			return "", err
		}
		if result.UploadID == "" {
			return "", fmt.Errorf("upload response missing uploadId")
		}
		return result.UploadID, nil
	})
}

func (p *Provider) createTask(ctx context.Context, task *asr.Task, uploadID string) (string, error) {
	return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() (string, error) {
		if err := task.Throttle(ctx); err != nil {
			return "", err
		}

		payload := map[string]any{
			"uploadId": uploadID,
		}
		if lang := task.Request.Language; lang != "" && lang != "auto" {
			payload["language"] = lang
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode task payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/task/create", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		p.sign(req)

		var result struct {
			TaskID string `json:"taskId"`
		}
		if err := p.do(req, &result); err != nil {
			return "", err
		}
		if result.TaskID == "" {
			return "", fmt.Errorf("create task response missing taskId")
		}
		return result.TaskID, nil
	})
}

// awaitTask polls the status endpoint until the task succeeds, fails, or
// ctx is done.
func (p *Provider) awaitTask(ctx context.Context, task *asr.Task, taskID string) error {
	failures := 0
	for {
		if err := task.Throttle(ctx); err != nil {
			return err
		}

		status, err := p.queryStatus(ctx, taskID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if failures > p.cfg.PollRetries {
				return apperrors.RemoteTask(ProviderName, fmt.Errorf("poll retries exhausted: %w", err))
			}
		case status == "FAILED":
			return apperrors.RemoteTask(ProviderName, fmt.Errorf("task %s failed on the backend", taskID))
		case status == "SUCCESS":
			return nil
		default:
			failures = 0
			task.Report(asr.StatusTranscribing)
		}

		timer := time.NewTimer(p.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Provider) queryStatus(ctx context.Context, taskID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/task/status?taskId="+taskID, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	p.sign(req)

	var result struct {
		Status string `json:"status"`
	}
	if err := p.do(req, &result); err != nil {
		return "", err
	}
	return result.Status, nil
}

func (p *Provider) fetchResult(ctx context.Context, taskID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/task/result?taskId="+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.sign(req)

	var raw json.RawMessage
	if err := p.do(req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// do executes a request and decodes the kuaishou response body into out.
// The kuaishou API reports failure through HTTP status codes and an error
// object, there is no numeric envelope.
func (p *Provider) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("kuaishou request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("kuaishou error (status %d): %s", resp.StatusCode, string(body))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode kuaishou response: %w", err)
		}
	}
	return nil
}

// --- kuaishou result payload ---

type textEntry struct {
	Content   string  `json:"content"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

type resultPayload struct {
	Text []textEntry `json:"text"`
}

// MakeSegments parses the result payload into the uniform segment model,
// converting float seconds to millisecond timestamps.
func (p *Provider) MakeSegments(raw json.RawMessage) ([]transcript.Segment, error) {
	var payload resultPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode result payload: %w", err)
	}

	segments := make([]transcript.Segment, len(payload.Text))
	for i, e := range payload.Text {
		segments[i] = transcript.Segment{
			Text:    e.Content,
			StartMs: int64(e.StartTime * 1000),
			EndMs:   int64(e.EndTime * 1000),
		}
	}
	return segments, nil
}
