package worker

import (
	"hash/fnv"
	"math/rand"
	"time"
)

// JitterSource provides deterministic per-worker start offsets so analyzers
// sharing a manifest do not all fetch it in the same instant.
type JitterSource struct {
	configSeed int64
}

// NewJitterSource creates a jitter source with the given seed.
func NewJitterSource(configSeed int64) *JitterSource {
	return &JitterSource{configSeed: configSeed}
}

// ForWorker returns a generator seeded for the named worker.
// The same name and seed always produce the same sequence.
func (j *JitterSource) ForWorker(name string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(name))
	seed := int64(h.Sum64()) ^ j.configSeed
	return rand.New(rand.NewSource(seed))
}

// StartDelay returns a delay within [0, maxJitter) for the named worker.
func (j *JitterSource) StartDelay(name string, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	return time.Duration(j.ForWorker(name).Int63n(int64(maxJitter)))
}
