package bcut

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skillsenselab/scribe/asr"
	apperrors "github.com/skillsenselab/scribe/errors"
)

func envelope(data string) string {
	return fmt.Sprintf(`{"code":0,"message":"ok","data":%s}`, data)
}

// fakeBackend simulates the bcut API. polls counts status queries; the task
// completes after pollsUntilDone queries.
type fakeBackend struct {
	t              *testing.T
	polls          atomic.Int32
	pollsUntilDone int32
	failTask       bool
	submitBody     atomic.Value
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/upload", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f.t.Errorf("upload must be multipart, got %q", r.Header.Get("Content-Type"))
		}
		fmt.Fprint(w, envelope(`{"resource_id":"res-1"}`))
	})
	mux.HandleFunc("POST /v1/task", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.submitBody.Store(body)
		fmt.Fprint(w, envelope(`{"task_id":"task-1"}`))
	})
	mux.HandleFunc("GET /v1/task/task-1", func(w http.ResponseWriter, r *http.Request) {
		n := f.polls.Add(1)
		switch {
		case f.failTask:
			fmt.Fprint(w, envelope(`{"state":"error"}`))
		case n >= f.pollsUntilDone:
			fmt.Fprint(w, envelope(`{"state":"complete","result":{"utterances":[{"transcript":"hello","start_time":0,"end_time":900},{"transcript":"world","start_time":1000,"end_time":1800}]}}`))
		default:
			fmt.Fprint(w, envelope(`{"state":"running"}`))
		}
	})
	return mux
}

func newTestProvider(url string) *Provider {
	return NewProvider(Config{
		BaseURL:      url,
		PollInterval: 5 * time.Millisecond,
		PollRetries:  2,
	})
}

func TestProvider_FullProtocolAndProgress(t *testing.T) {
	fake := &fakeBackend{t: t, pollsUntilDone: 2}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	engine := asr.NewEngine(newTestProvider(srv.URL), nil, nil, nil)

	var percents []int
	result, err := engine.Transcribe(context.Background(), asr.Request{
		Audio: []byte("audio"),
		OnProgress: func(_ asr.Status, pct int) {
			percents = append(percents, pct)
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.FullText != "hello\nworld" {
		t.Fatalf("unexpected transcript: %q", result.FullText)
	}
	if len(result.Segments) != 2 || result.Segments[1].StartMs != 1000 {
		t.Fatalf("unexpected segments: %+v", result.Segments)
	}

	want := []int{20, 40, 60, 60, 100}
	if len(percents) != len(want) {
		t.Fatalf("expected progress %v, got %v", want, percents)
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Fatalf("expected progress %v, got %v", want, percents)
		}
	}
}

func TestProvider_TimeWindowForwarded(t *testing.T) {
	fake := &fakeBackend{t: t, pollsUntilDone: 1}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	engine := asr.NewEngine(newTestProvider(srv.URL), nil, nil, nil)
	_, err := engine.Transcribe(context.Background(), asr.Request{
		Audio:   []byte("audio"),
		StartMs: 1500,
		EndMs:   9000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body, _ := fake.submitBody.Load().(map[string]any)
	if body == nil {
		t.Fatal("submit body not captured")
	}
	if body["start_time_ms"] != float64(1500) || body["end_time_ms"] != float64(9000) {
		t.Fatalf("time window not forwarded: %v", body)
	}
}

func TestProvider_BackendTaskFailure(t *testing.T) {
	fake := &fakeBackend{t: t, failTask: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	engine := asr.NewEngine(newTestProvider(srv.URL), nil, nil, nil)
	_, err := engine.Transcribe(context.Background(), asr.Request{Audio: []byte("audio")})
	if !apperrors.HasCode(err, apperrors.ErrCodeRemoteTask) {
		t.Fatalf("expected remote task error, got %v", err)
	}
}

func TestProvider_UploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine := asr.NewEngine(newTestProvider(srv.URL), nil, nil, nil)
	_, err := engine.Transcribe(context.Background(), asr.Request{Audio: []byte("audio")})
	if !apperrors.HasCode(err, apperrors.ErrCodeUpload) {
		t.Fatalf("expected upload error, got %v", err)
	}
}

func TestProvider_DeadlineDuringPolling(t *testing.T) {
	fake := &fakeBackend{t: t, pollsUntilDone: 1 << 30}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	engine := asr.NewEngine(newTestProvider(srv.URL), nil, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	_, err := engine.Transcribe(ctx, asr.Request{Audio: []byte("audio")})
	if !apperrors.HasCode(err, apperrors.ErrCodeTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestProvider_PollRetriesExhausted(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/upload", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope(`{"resource_id":"res-1"}`))
	})
	mux.HandleFunc("POST /v1/task", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope(`{"task_id":"task-1"}`))
	})
	mux.HandleFunc("GET /v1/task/task-1", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		http.Error(w, "flaky", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := asr.NewEngine(newTestProvider(srv.URL), nil, nil, nil)
	_, err := engine.Transcribe(context.Background(), asr.Request{Audio: []byte("audio")})
	if !apperrors.HasCode(err, apperrors.ErrCodeRemoteTask) {
		t.Fatalf("expected remote task error after exhausted polls, got %v", err)
	}
	if got := polls.Load(); got != 3 {
		t.Fatalf("expected 3 poll attempts (1 + 2 retries), got %d", got)
	}
}

func TestMakeSegments_BadPayload(t *testing.T) {
	p := NewProvider(Config{})
	if _, err := p.MakeSegments(json.RawMessage(`{not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
