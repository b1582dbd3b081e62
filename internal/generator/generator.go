package generator

import "context"

// Generator produces an alternative natural-language rendering of a post.
// Callers must treat any error or unusable output as a signal to fall back
// to the deterministic template.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
