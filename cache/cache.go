// Package cache stores completed transcripts keyed by audio content, so
// repeated requests for the same media skip recognition entirely.
package cache

import (
	"context"
	"fmt"
	"hash/crc32"

	"github.com/skillsenselab/scribe/transcript"
)

// Store is the transcript cache contract. Implementations must be safe for
// concurrent use. A miss is reported via the ok result, not an error; errors
// signal infrastructure failure and callers are expected to degrade to a miss.
type Store interface {
	Get(ctx context.Context, key string) (*transcript.Transcript, bool, error)
	Put(ctx context.Context, key string, t *transcript.Transcript) error
}

// Key derives the cache key for one recognition request. It combines the
// provider name, a checksum of the raw audio bytes, and any parameters that
// change the output, so two requests collide only when they would produce
// the same transcript.
func Key(provider string, audio []byte, params ...string) string {
	sum := crc32.ChecksumIEEE(audio)
	key := fmt.Sprintf("%s-%08x", provider, sum)
	for _, p := range params {
		if p != "" {
			key += "-" + p
		}
	}
	return key
}
