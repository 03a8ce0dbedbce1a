package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skillsenselab/scribe/transcript"
)

func sampleTranscript(t *testing.T) *transcript.Transcript {
	t.Helper()
	tr, err := transcript.New([]transcript.Segment{
		{Text: "hello", StartMs: 0, EndMs: 900},
		{Text: "world", StartMs: 1000, EndMs: 1800},
	}, "\n")
	if err != nil {
		t.Fatalf("building transcript: %v", err)
	}
	return tr
}

func TestKey_SameAudioSameKey(t *testing.T) {
	audio := []byte("pcm data")
	a := Key("bcut", audio)
	b := Key("bcut", audio)
	if a != b {
		t.Fatalf("identical inputs produced %q and %q", a, b)
	}
}

func TestKey_DiffersByProviderAndAudio(t *testing.T) {
	audio := []byte("pcm data")
	if Key("bcut", audio) == Key("kuaishou", audio) {
		t.Fatal("different providers must produce different keys")
	}
	if Key("bcut", audio) == Key("bcut", []byte("other data")) {
		t.Fatal("different audio must produce different keys")
	}
}

func TestKey_ParamsAffectKey(t *testing.T) {
	audio := []byte("pcm data")
	plain := Key("whispercpp", audio)
	withLang := Key("whispercpp", audio, "lang=zh")
	if plain == withLang {
		t.Fatal("output-affecting params must change the key")
	}
	// Empty params are ignored rather than producing trailing separators.
	if plain != Key("whispercpp", audio, "") {
		t.Fatal("empty params must not change the key")
	}
}

func TestKey_Format(t *testing.T) {
	key := Key("bcut", []byte("x"))
	if !strings.HasPrefix(key, "bcut-") {
		t.Fatalf("expected provider prefix, got %q", key)
	}
	if len(key) != len("bcut-")+8 {
		t.Fatalf("expected 8 hex digits of checksum, got %q", key)
	}
}

func TestMemory_RoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	want := sampleTranscript(t)
	if err := store.Put(ctx, "k", want); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.FullText != want.FullText {
		t.Fatalf("expected %q, got %q", want.FullText, got.FullText)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", store.Len())
	}
}

func TestDisk_RoundTrip(t *testing.T) {
	store, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	want := sampleTranscript(t)
	if err := store.Put(ctx, "bcut-deadbeef", want); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, ok, err := store.Get(ctx, "bcut-deadbeef")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.FullText != want.FullText {
		t.Fatalf("expected %q, got %q", want.FullText, got.FullText)
	}
	if len(got.Segments) != 2 || got.Segments[1].StartMs != 1000 {
		t.Fatalf("segments did not survive the round trip: %+v", got.Segments)
	}
}

func TestDisk_CorruptEntryIsErrorNotHit(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDisk(dir)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seeding corrupt entry: %v", err)
	}

	_, ok, err := store.Get(context.Background(), "bad")
	if ok {
		t.Fatal("corrupt entry must not be a hit")
	}
	if err == nil {
		t.Fatal("corrupt entry must surface an error")
	}
}

func TestDisk_KeyWithSeparatorsStaysInDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDisk(dir)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	ctx := context.Background()

	key := "bcut/../escape"
	if err := store.Put(ctx, key, sampleTranscript(t)); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if _, ok, err := store.Get(ctx, key); !ok || err != nil {
		t.Fatalf("expected hit through the same key, got ok=%v err=%v", ok, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading cache dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file inside the cache dir, got %d", len(entries))
	}
}

func TestDisk_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDisk(dir)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if err := store.Put(context.Background(), "k", sampleTranscript(t)); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading cache dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".cache-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
