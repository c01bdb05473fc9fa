// Package assistant is the bridge to the external generative-text service
// behind the forum chat. It composes prompts, validates replies and supplies
// a canned keyword-based reply when no generator is available.
package assistant

import (
	"context"
	"errors"
)

// ErrEmptyReply is returned by generators that received no usable text.
var ErrEmptyReply = errors.New("assistant: empty reply")

// Generator turns a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
