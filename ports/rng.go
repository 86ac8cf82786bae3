package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic draws.
// The exact-moment synthesizer only needs the base draw to be reproducible;
// the realized moments are exact regardless of the stream.
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)
}
