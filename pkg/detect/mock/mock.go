// Package mock provides a scripted test double for detect.Engine.
//
// Use Frames to inspect exactly which frames were scored and MatchAt to
// control which Process calls report a detection.
package mock

import (
	"sync"

	"github.com/kestrelaudio/wakeserve/pkg/detect"
)

// Compile-time assertion that Engine satisfies detect.Engine.
var _ detect.Engine = (*Engine)(nil)

// Engine is a mock detect.Engine that records every frame it is fed.
type Engine struct {
	mu sync.Mutex

	// Length is the value returned by FrameLength. Defaults to 512 when
	// zero, matching the native engine's frame size.
	Length int

	// MatchAt holds 1-based Process call numbers that report a match
	// (index 0). All other calls report -1.
	MatchAt map[int]bool

	// ProcessErr, if non-nil, is returned by every Process call.
	ProcessErr error

	// Frames records a copy of every frame passed to Process, in order.
	Frames [][]int16

	// Closed reports whether Close has been called.
	Closed bool
}

// Process records the frame and returns 0 on scripted matches, -1 otherwise.
func (e *Engine) Process(frame []int16) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]int16, len(frame))
	copy(cp, frame)
	e.Frames = append(e.Frames, cp)
	if e.ProcessErr != nil {
		return -1, e.ProcessErr
	}
	if e.MatchAt[len(e.Frames)] {
		return 0, nil
	}
	return -1, nil
}

// FrameLength returns Length, defaulting to 512.
func (e *Engine) FrameLength() int {
	if e.Length == 0 {
		return 512
	}
	return e.Length
}

// Close marks the engine closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Closed = true
	return nil
}

// CallCount returns the number of Process calls recorded so far.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Frames)
}
