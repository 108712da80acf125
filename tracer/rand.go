package tracer

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"
)

func newSeed() int64 {
	var seed int64
	if err := binary.Read(crand.Reader, binary.BigEndian, &seed); err != nil {
		// fallback to timestamp
		seed = time.Now().UnixNano()
	}
	return seed
}

var (
	globalRandMu sync.Mutex
	globalRand   = rand.New(rand.NewSource(newSeed()))
)

// randomJitter returns a random duration in [0, max).
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	globalRandMu.Lock()
	defer globalRandMu.Unlock()
	return time.Duration(globalRand.Int63n(int64(max)))
}
