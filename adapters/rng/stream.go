// Package rng provides deterministic named random streams. Two operations
// with different names draw from independent streams even under the same
// seed, so adding a draw to one stage never perturbs another.
package rng

import (
	"context"
	"hash/fnv"
	"math/rand"

	"gopower/ports"
)

// Source implements ports.RNGPort.
type Source struct{}

// NewSource creates a stream source
func NewSource() *Source { return &Source{} }

var _ ports.RNGPort = (*Source)(nil)

// SeededStream derives a stream for the operation name from the caller seed.
func (s *Source) SeededStream(_ context.Context, name string, seed int64) (*rand.Rand, error) {
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64()))), nil
}
