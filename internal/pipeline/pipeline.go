// Package pipeline abstracts the generative compute capability. The
// worker treats it as opaque: given a validated prompt and a step count
// it yields an image or fails.
package pipeline

import (
	"context"
	"image"
)

// Pipeline is the opaque compute capability.
type Pipeline interface {
	// Generate produces one image for the prompt. It blocks for the
	// duration of inference; cancellation comes from ctx.
	Generate(ctx context.Context, prompt string, steps int) (image.Image, error)

	// Reclaim releases transient device memory held after a generation,
	// successful or not. Safe to call when nothing is held.
	Reclaim(ctx context.Context) error
}
