package actions

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// EditInput is what an image generator receives for refine/touchup.
type EditInput struct {
	Source     []byte
	SourceMIME string

	// Mask is a PNG where painted pixels mark the region to edit. Empty for refine.
	Mask []byte

	Instruction string
	Model       string
	Size        string
	AspectRatio string
}

// Generator is the opaque AI call behind refine and touchup. It returns encoded image
// bytes (PNG or JPEG).
type Generator interface {
	Edit(ctx context.Context, in EditInput) ([]byte, error)
}

// CopyGenerator returns the source unchanged. It stands in for a real model when none
// is configured, so edit flows still produce new version-chain nodes.
type CopyGenerator struct{}

func (CopyGenerator) Edit(ctx context.Context, in EditInput) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(in.Source) == 0 {
		return nil, errors.New("empty source image")
	}
	out := make([]byte, len(in.Source))
	copy(out, in.Source)
	return out, nil
}

// Limited throttles calls to an underlying generator.
type Limited struct {
	Gen     Generator
	Limiter *rate.Limiter
}

// NewLimited allows perMinute calls with a burst of one. A non-positive rate disables throttling.
func NewLimited(gen Generator, perMinute int) Generator {
	if perMinute <= 0 {
		return gen
	}
	return &Limited{Gen: gen, Limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)}
}

func (l *Limited) Edit(ctx context.Context, in EditInput) ([]byte, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Gen.Edit(ctx, in)
}
