// Package detect defines the wake-word detection capability boundary.
//
// An Engine scores fixed-size frames of 16-bit mono PCM audio against one
// keyword model. Engines are stateful and expensive to construct (a model
// file is loaded from disk), but cheap to reuse; see internal/cache for the
// pooling layer that amortizes construction across connections.
//
// An Engine is never safe for concurrent use. At any instant it is owned by
// exactly one caller.
package detect

import "fmt"

// Engine is a model-bound wake-word scorer.
type Engine interface {
	// Process scores one frame of audio. The frame must contain exactly
	// FrameLength samples. It returns the index of the matched keyword
	// (>= 0) or a negative value when nothing matched.
	Process(frame []int16) (int, error)

	// FrameLength is the number of samples consumed per Process call.
	// Fixed at construction.
	FrameLength() int

	// Close releases the underlying model resources. The Engine must not
	// be used afterwards.
	Close() error
}

// BuildError reports a failed engine construction: a bad model or library
// path, a rejected access key, or a native initialisation failure.
type BuildError struct {
	Keyword string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("detect: build engine for keyword %q: %v", e.Keyword, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
