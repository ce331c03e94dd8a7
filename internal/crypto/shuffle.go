package crypto

import (
	"encoding/binary"
	"math/rand/v2"
)

const seedExponent = 42

// Seed derives the permutation seed from a vault path: the first and last
// eight bytes of the path, read as little-endian integers, summed and raised
// to the 42nd power, all modulo 2^64.
func Seed(path string) uint64 {
	b := []byte(path)

	head := b[:min(8, len(b))]
	tail := b[max(0, len(b)-8):]

	base := le64(head) + le64(tail)

	seed := uint64(1)
	for range seedExponent {
		seed *= base
	}
	return seed
}

// le64 reads up to eight bytes as a little-endian integer, zero-extending short input.
func le64(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

// permutation returns a deterministic permutation of [0, n). PCG is a fixed,
// documented algorithm, so the same seed yields the same order across releases.
func permutation(n int, seed uint64) []int {
	return rand.New(rand.NewPCG(seed, seed)).Perm(n)
}

// Shuffle returns out where out[i] = data[perm[i]].
func Shuffle(data []byte, seed uint64) []byte {
	perm := permutation(len(data), seed)
	out := make([]byte, len(data))
	for i, j := range perm {
		out[i] = data[j]
	}
	return out
}

// Unshuffle inverts Shuffle for the same seed.
func Unshuffle(data []byte, seed uint64) []byte {
	perm := permutation(len(data), seed)
	out := make([]byte, len(data))
	for i, j := range perm {
		out[j] = data[i]
	}
	return out
}
