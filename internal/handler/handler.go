// Package handler implements the per-connection wake session: the event
// state machine that turns an inbound Wyoming event stream into detector
// frame processing and outbound detection events.
//
// A session is IDLE until its first detect request or audio chunk binds a
// detector, then ARMED while buffering audio. Each session owns at most one
// detector at a time; the detector is returned to the cache when the
// session ends, which is the sole path by which detectors re-enter the
// idle set.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/kestrelaudio/wakeserve/internal/cache"
	"github.com/kestrelaudio/wakeserve/internal/keyword"
	"github.com/kestrelaudio/wakeserve/internal/observe"
	"github.com/kestrelaudio/wakeserve/internal/wyoming"
	"github.com/kestrelaudio/wakeserve/pkg/audio"
)

// detectorFormat is the PCM format every detector engine consumes.
var detectorFormat = audio.Format{Rate: 16000, Width: 2, Channels: 1}

// Config carries the shared collaborators a session needs. The same Config
// is handed to every session; all fields are read-only or internally
// synchronized.
type Config struct {
	// InfoEvent is the pre-framed service-info event sent in reply to
	// describe requests. Built once at startup.
	InfoEvent wyoming.Event

	// Keywords is the discovered keyword catalogue.
	Keywords *keyword.Set

	// Cache is the process-wide detector pool.
	Cache *cache.Cache

	// Sensitivity is applied to every detector this server builds.
	Sensitivity float32

	// Metrics receives session and detection instrumentation.
	Metrics *observe.Metrics
}

// Session is the per-connection protocol state machine. Not safe for
// concurrent use; each connection runs one session on one goroutine.
type Session struct {
	cfg  Config
	conn *wyoming.Conn

	clientID string

	converter audio.FormatConverter
	buffer    []byte

	detector      *cache.Detector
	keywordName   string
	bytesPerFrame int

	// detected reports whether the current utterance has matched yet.
	// Reset on each audio-start.
	detected bool
}

// New creates a session for conn. The client id is derived from the
// monotonic clock, matching the uniqueness guarantee the protocol expects.
func New(conn *wyoming.Conn, cfg Config) *Session {
	s := &Session{
		cfg:       cfg,
		conn:      conn,
		clientID:  strconv.FormatInt(time.Now().UnixNano(), 10),
		converter: audio.FormatConverter{Target: detectorFormat},
	}
	slog.Debug("client connected", "client_id", s.clientID)
	return s
}

// Serve consumes events until the client stops the utterance, disconnects,
// or a terminal error occurs. The bound detector, if any, is always
// returned to the cache before Serve returns.
func (s *Session) Serve(ctx context.Context) error {
	s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	defer s.cfg.Metrics.ActiveSessions.Add(ctx, -1)
	defer s.disconnect()

	for {
		ev, err := s.conn.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Stream desync or transport failure; treat as disconnect.
			s.cfg.Metrics.SessionErrors.Add(ctx, 1)
			return fmt.Errorf("handler: client %s: %w", s.clientID, err)
		}

		cont, err := s.HandleEvent(ctx, ev)
		if err != nil {
			s.cfg.Metrics.SessionErrors.Add(ctx, 1)
			return fmt.Errorf("handler: client %s: %w", s.clientID, err)
		}
		if !cont {
			return nil
		}
	}
}

// HandleEvent processes one inbound event and reports whether the session
// continues. Errors are fatal to this session only; no events are written
// after an error is returned.
func (s *Session) HandleEvent(ctx context.Context, ev wyoming.Event) (bool, error) {
	in, err := wyoming.DecodeInbound(ev)
	if err != nil {
		return false, err
	}

	switch e := in.(type) {
	case wyoming.Describe:
		if err := s.conn.WriteEvent(s.cfg.InfoEvent); err != nil {
			return false, err
		}
		slog.Debug("sent info", "client_id", s.clientID)

	case wyoming.Detect:
		// Only the first requested name is honoured; the remainder of the
		// list is accepted but ignored.
		if len(e.Names) > 0 {
			if err := s.bind(ctx, e.Names[0]); err != nil {
				return false, err
			}
		}

	case wyoming.AudioStart:
		s.detected = false

	case wyoming.AudioChunk:
		if err := s.processChunk(ctx, e); err != nil {
			return false, err
		}

	case wyoming.AudioStop:
		if !s.detected {
			if err := s.conn.WriteEvent(wyoming.NotDetectedEvent()); err != nil {
				return false, err
			}
			slog.Debug("audio stopped without detection", "client_id", s.clientID)
		}
		// One utterance per connection; the caller closes the stream.
		return false, nil

	case wyoming.Unknown:
		slog.Debug("unexpected event",
			"client_id", s.clientID,
			"type", e.Type,
		)
	}

	return true, nil
}

// processChunk converts one audio chunk to the detector format, appends it
// to the frame buffer, and scores every complete frame. Detection events
// are emitted for every matching frame; repeats within an utterance are not
// suppressed.
func (s *Session) processChunk(ctx context.Context, chunk wyoming.AudioChunk) error {
	if s.detector == nil {
		if err := s.bind(ctx, keyword.DefaultName); err != nil {
			return err
		}
	}

	converted := s.converter.Convert(audio.Frame{
		Data: chunk.Audio,
		Format: audio.Format{
			Rate:     chunk.Rate,
			Width:    chunk.Width,
			Channels: chunk.Channels,
		},
		Timestamp: chunk.Timestamp,
	})
	s.buffer = append(s.buffer, converted.Data...)

	for len(s.buffer) >= s.bytesPerFrame {
		frame := audio.BytesToInt16(s.buffer[:s.bytesPerFrame])
		idx, err := s.detector.Engine.Process(frame)
		if err != nil {
			return fmt.Errorf("process frame: %w", err)
		}
		s.cfg.Metrics.FramesProcessed.Add(ctx, 1)

		if idx >= 0 {
			s.detected = true
			s.cfg.Metrics.RecordDetection(ctx, s.keywordName)
			slog.Debug("detected keyword",
				"keyword", s.keywordName,
				"client_id", s.clientID,
			)
			det := wyoming.Detection{Name: s.keywordName, Timestamp: chunk.Timestamp}
			detEv, err := det.Event()
			if err != nil {
				return err
			}
			if err := s.conn.WriteEvent(detEv); err != nil {
				return err
			}
		}

		s.buffer = s.buffer[s.bytesPerFrame:]
	}

	return nil
}

// bind acquires a detector for name, releasing any previously bound
// detector first so it is never leaked. Rebinding discards buffered audio:
// frame alignment may differ between keywords.
func (s *Session) bind(ctx context.Context, name string) error {
	kw, err := s.cfg.Keywords.Get(name)
	if err != nil {
		return err
	}

	if s.detector != nil {
		s.cfg.Cache.Release(s.keywordName, s.detector)
		s.detector = nil
		s.buffer = nil
	}

	d, err := s.cfg.Cache.Acquire(ctx, kw, s.cfg.Sensitivity)
	if err != nil {
		return err
	}

	s.detector = d
	s.keywordName = name
	s.bytesPerFrame = d.Engine.FrameLength() * 2
	return nil
}

// disconnect returns the bound detector to the cache, if any. This is the
// only legitimate detector return path.
func (s *Session) disconnect() {
	slog.Debug("client disconnected", "client_id", s.clientID)

	if s.detector != nil {
		s.cfg.Cache.Release(s.keywordName, s.detector)
		s.detector = nil
	}
}
