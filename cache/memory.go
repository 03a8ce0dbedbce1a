package cache

import (
	"context"
	"sync"

	"github.com/skillsenselab/scribe/transcript"
)

// Memory is an in-process Store. It holds transcripts for the lifetime of
// the process and is the default when no cache directory is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*transcript.Transcript
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*transcript.Transcript)}
}

func (m *Memory) Get(_ context.Context, key string) (*transcript.Transcript, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.entries[key]
	return t, ok, nil
}

func (m *Memory) Put(_ context.Context, key string, t *transcript.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = t
	return nil
}

// Len returns the number of cached transcripts.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
