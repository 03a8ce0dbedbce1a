// Package transcript defines the uniform transcription result types shared
// by every recognition backend.
package transcript

import (
	"fmt"
	"sort"
	"strings"
)

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
	// StartMs is the segment start time in milliseconds.
	StartMs int64 `json:"start_ms"`
	// EndMs is the segment end time in milliseconds.
	EndMs int64 `json:"end_ms"`
}

// Transcript holds the full recognition result: the complete text plus the
// ordered time-aligned segments it was assembled from.
type Transcript struct {
	// FullText is the complete transcription text, the ordered join of all
	// segment texts.
	FullText string `json:"full_text"`
	// Segments contains the time-aligned segments ordered by start time.
	Segments []Segment `json:"segments"`
}

// New assembles a Transcript from segments. Segments are sorted by start
// time and FullText is derived by joining segment texts with joiner.
// An empty segment slice yields an empty transcript.
func New(segments []Segment, joiner string) (*Transcript, error) {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartMs < sorted[j].StartMs
	})

	for i, seg := range sorted {
		if seg.StartMs > seg.EndMs {
			return nil, fmt.Errorf("transcript: segment %d has start %dms after end %dms", i, seg.StartMs, seg.EndMs)
		}
		if i > 0 && seg.StartMs < sorted[i-1].EndMs {
			return nil, fmt.Errorf("transcript: segment %d overlaps previous segment (starts %dms, previous ends %dms)",
				i, seg.StartMs, sorted[i-1].EndMs)
		}
	}

	texts := make([]string, len(sorted))
	for i, seg := range sorted {
		texts[i] = seg.Text
	}

	return &Transcript{
		FullText: strings.Join(texts, joiner),
		Segments: sorted,
	}, nil
}

// Empty reports whether the transcript contains no segments.
func (t *Transcript) Empty() bool {
	return len(t.Segments) == 0
}

// DurationMs returns the end time of the last segment, or zero for an empty
// transcript.
func (t *Transcript) DurationMs() int64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].EndMs
}
