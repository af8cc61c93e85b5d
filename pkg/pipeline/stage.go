// Package pipeline holds the poster pipeline's shared types and the Stage abstraction
// every processing step implements.
package pipeline

import (
	"context"
)

// Stage is one step of the poster pipeline.
type Stage[In, Out any] interface {
	// Execute runs the stage with the given input and returns the output.
	Execute(ctx context.Context, input In) (Out, error)
}

// StageFunc adapts a plain function to Stage.
type StageFunc[In, Out any] func(ctx context.Context, input In) (Out, error)

// Execute implements Stage.
func (f StageFunc[In, Out]) Execute(ctx context.Context, input In) (Out, error) {
	return f(ctx, input)
}
