// Package engine is the boundary to the external face-embedding extractor.
package engine

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
)

// ErrUnavailable means extraction could not run: no engine deployed, the
// engine is unreachable, or the call timed out.
var ErrUnavailable = errors.New("engine: extraction unavailable")

// Face is one detection: its bounding box in probe coordinates and its
// descriptor.
type Face struct {
	Box        image.Rectangle
	Descriptor model.Descriptor
}

// Extractor returns zero or more faces for an image. Zero faces with a nil
// error means the engine ran and found nothing.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) ([]Face, error)
}

type timeoutExtractor struct {
	next    Extractor
	timeout time.Duration
}

// WithTimeout bounds every Extract call. A deadline hit is reported as
// ErrUnavailable. d <= 0 returns next unchanged.
func WithTimeout(next Extractor, d time.Duration) Extractor {
	if d <= 0 {
		return next
	}
	return &timeoutExtractor{next: next, timeout: d}
}

func (t *timeoutExtractor) Extract(ctx context.Context, img image.Image) ([]Face, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		faces []Face
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		faces, err := t.next.Extract(ctx, img)
		ch <- result{faces, err}
	}()

	// The extractor may ignore ctx; the buffered channel lets it finish
	// without leaking a blocked goroutine.
	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, errors.Join(ErrUnavailable, r.err)
		}
		return r.faces, r.err
	case <-ctx.Done():
		return nil, errors.Join(ErrUnavailable, ctx.Err())
	}
}

// First returns the first detected face, if any.
func First(faces []Face) (Face, bool) {
	if len(faces) == 0 {
		return Face{}, false
	}
	return faces[0], true
}
