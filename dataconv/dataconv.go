// Package dataconv converts values to and from the byte layouts used in BLE
// characteristic payloads, and generates the random strings the peripheral
// publishes.
package dataconv

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

// Alphabet is the set of characters RandomString draws from
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ErrInvalidArgument is returned for negative lengths
var ErrInvalidArgument = errors.New("dataconv: invalid argument")

// IntToBytes encodes value as little-endian (BLE byte order) into a slice of
// exactly length bytes.
//
// For length >= 4 the four value bytes are followed by zero padding.
// For length < 4 only the low-order length bytes are kept and the rest of
// the value is silently dropped: IntToBytes(0x11223344, 2) is {0x44, 0x33}.
func IntToBytes(value int32, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidArgument, length)
	}

	var full [4]byte
	binary.LittleEndian.PutUint32(full[:], uint32(value))

	buf := make([]byte, length)
	copy(buf, full[:])
	return buf, nil
}

// BytesToInt decodes up to the first four bytes of b as a little-endian int32.
// Shorter input is treated as zero-extended.
func BytesToInt(b []byte) int32 {
	var full [4]byte
	copy(full[:], b)
	return int32(binary.LittleEndian.Uint32(full[:]))
}

// BytesToHex renders b as space-separated hex pairs for debug output
func BytesToHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	parts := make([]string, len(b))
	for i := range b {
		parts[i] = hex.EncodeToString(b[i : i+1])
	}
	return strings.Join(parts, " ")
}

// Generator produces random strings from Alphabet. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a Generator backed by src. A nil src uses a randomly
// seeded PCG source.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{rng: rand.New(src)}
}

// IntN returns a uniform int in [0, n). n must be positive.
func (g *Generator) IntN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

// RandomString returns exactly length characters drawn uniformly, with
// replacement, from Alphabet.
func (g *Generator) RandomString(length int) (string, error) {
	if length < 0 {
		return "", fmt.Errorf("%w: length %d", ErrInvalidArgument, length)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		sb.WriteByte(Alphabet[g.rng.IntN(len(Alphabet))])
	}
	return sb.String(), nil
}

var defaultGenerator = NewGenerator(nil)

// RandomString is Generator.RandomString on a package-level generator
func RandomString(length int) (string, error) {
	return defaultGenerator.RandomString(length)
}
