// Package porcupine implements detect.Engine using the Picovoice Porcupine
// CGO bindings. Each Engine owns one native Porcupine handle bound to a
// single keyword model (.ppn) and language parameter file (.pv).
package porcupine

import (
	"errors"
	"fmt"

	pv "github.com/Picovoice/porcupine/binding/go/v3"

	"github.com/kestrelaudio/wakeserve/pkg/detect"
)

// SampleRate is the PCM sample rate (Hz) Porcupine models consume.
const SampleRate = 16000

// Compile-time assertion that Engine satisfies detect.Engine.
var _ detect.Engine = (*Engine)(nil)

// Engine wraps one native Porcupine instance.
type Engine struct {
	handle      pv.Porcupine
	frameLength int
	closed      bool
}

// Config holds the inputs for constructing an [Engine].
type Config struct {
	// AccessKey is the Picovoice access key used to authorise the native
	// library.
	AccessKey string

	// ModelPath is the path to the per-language parameter file
	// (porcupine_params*.pv).
	ModelPath string

	// KeywordPath is the path to the keyword model file (.ppn).
	KeywordPath string

	// Sensitivity trades miss rate against false alarms, in [0, 1].
	Sensitivity float32
}

// New creates an Engine for the given keyword model. The native library
// loads the model synchronously; callers treat this as a blocking,
// CPU/IO-bound call and must not invoke it while holding locks shared with
// other connections.
func New(cfg Config) (*Engine, error) {
	if cfg.AccessKey == "" {
		return nil, errors.New("porcupine: access key must not be empty")
	}
	if cfg.KeywordPath == "" {
		return nil, errors.New("porcupine: keyword path must not be empty")
	}
	if cfg.Sensitivity < 0 || cfg.Sensitivity > 1 {
		return nil, fmt.Errorf("porcupine: sensitivity %v out of range [0, 1]", cfg.Sensitivity)
	}

	handle := pv.Porcupine{
		AccessKey:     cfg.AccessKey,
		ModelPath:     cfg.ModelPath,
		KeywordPaths:  []string{cfg.KeywordPath},
		Sensitivities: []float32{cfg.Sensitivity},
	}
	if err := handle.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init keyword %q: %w", cfg.KeywordPath, err)
	}

	return &Engine{
		handle:      handle,
		frameLength: pv.FrameLength,
	}, nil
}

// Process scores one frame of 16-bit mono PCM. Returns 0 when the keyword
// matched, -1 otherwise.
func (e *Engine) Process(frame []int16) (int, error) {
	if e.closed {
		return -1, errors.New("porcupine: engine is closed")
	}
	if len(frame) != e.frameLength {
		return -1, fmt.Errorf("porcupine: frame has %d samples, want %d", len(frame), e.frameLength)
	}
	idx, err := e.handle.Process(frame)
	if err != nil {
		return -1, fmt.Errorf("porcupine: process: %w", err)
	}
	return idx, nil
}

// FrameLength returns the number of samples per Process call.
func (e *Engine) FrameLength() int { return e.frameLength }

// Close releases the native handle. Safe to call once.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.handle.Delete()
}
