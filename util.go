package main

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"

	"github.com/google/uuid"
)

// newTraceID returns a random id used to correlate log lines of one connection
func newTraceID() string {
	return uuid.NewString()
}

// newRand returns a PRNG for food placement. A zero seed draws one from crypto/rand.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		var b [8]byte
		crand.Read(b[:])
		seed = binary.LittleEndian.Uint64(b[:])
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
