package internal

import (
	"encoding/base64"
	"math/rand"
	"testing"
)

func withDeterministicRNG(t *testing.T, seed int64, fn func()) {
	t.Helper()
	rngMu.Lock()
	old := rng
	rng = rand.New(rand.NewSource(seed))
	rngMu.Unlock()
	t.Cleanup(func() {
		rngMu.Lock()
		rng = old
		rngMu.Unlock()
	})
	fn()
}

func TestHandshakeKey_Decodes(t *testing.T) {
	key := handshakeKey()
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		t.Fatalf("key %q is not valid base64: %v", key, err)
	}
	if len(raw) != 16 {
		t.Fatalf("expected 16 key bytes, got %d", len(raw))
	}
}

func TestHandshakeKey_Varies(t *testing.T) {
	if a, b := handshakeKey(), handshakeKey(); a == b {
		t.Fatalf("two successive keys are identical: %q", a)
	}
}

func TestHandshakeKey_Deterministic(t *testing.T) {
	var first, second string
	withDeterministicRNG(t, 42, func() {
		first = handshakeKey()
	})
	withDeterministicRNG(t, 42, func() {
		second = handshakeKey()
	})
	if first != second {
		t.Fatalf("same seed gave different keys: %q vs %q", first, second)
	}
}

func TestFrameMask_Varies(t *testing.T) {
	seen := make(map[[4]byte]bool)
	for i := 0; i < 16; i++ {
		seen[frameMask()] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected varying masks, got %d distinct in 16 draws", len(seen))
	}
}
