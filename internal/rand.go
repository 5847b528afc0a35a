package internal

import (
	"encoding/base64"
	"math/rand"
	"sync"
	"time"
)

// Process-wide random source for handshake keys and frame masks. RFC 6455
// only needs these to be unpredictable enough for masking; they carry no
// security weight, so a seeded math/rand source is sufficient.
var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// handshakeKey returns the Sec-WebSocket-Key value for one upgrade attempt:
// 16 random bytes, base64-encoded.
func handshakeKey() string {
	var b [16]byte
	rngMu.Lock()
	rng.Read(b[:])
	rngMu.Unlock()
	return base64.StdEncoding.EncodeToString(b[:])
}

// frameMask returns a fresh 4-byte masking key for one outbound frame.
func frameMask() [4]byte {
	var m [4]byte
	rngMu.Lock()
	rng.Read(m[:])
	rngMu.Unlock()
	return m
}
