package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skillsenselab/scribe/transcript"
)

// Disk persists transcripts as JSON files under a directory, one file per
// key. Writes go through a temp file and rename so a concurrent reader
// never observes a partial entry.
type Disk struct {
	dir string
}

// NewDisk creates a disk store rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) Get(_ context.Context, key string) (*transcript.Transcript, bool, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	var t transcript.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		// A corrupt entry is treated as a miss so recognition can rebuild it.
		return nil, false, fmt.Errorf("decoding cache entry %q: %w", key, err)
	}
	return &t, true, nil
}

func (d *Disk) Put(_ context.Context, key string, t *transcript.Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing cache temp file: %w", err)
	}
	if err := os.Rename(tmpName, d.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing cache entry: %w", err)
	}
	return nil
}

// path maps a key to a file name, replacing separators that would escape
// the cache directory.
func (d *Disk) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, key)
	return filepath.Join(d.dir, safe+".json")
}
