// Package wyoming implements the Wyoming event protocol: self-describing
// frames carrying a type name, a structured JSON payload, and an optional
// raw binary payload, exchanged over a duplex byte stream.
//
// Wire format per event: one JSON header line terminated by '\n' holding the
// type and the byte lengths of the two trailing sections, followed by
// exactly data_length bytes of JSON data and payload_length bytes of raw
// payload. The reader also accepts headers that inline small data objects
// directly under "data" with no trailing section.
package wyoming

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrMalformedEvent reports a header that could not be decoded. The stream
// is desynchronised afterwards and must be treated as disconnected.
var ErrMalformedEvent = errors.New("wyoming: malformed event")

// Event is one protocol frame. Data is the raw JSON of the structured
// payload (nil when the event type carries none); Payload is the raw binary
// section.
type Event struct {
	Type    string
	Data    json.RawMessage
	Payload []byte
}

// header is the JSON line that precedes the data and payload sections.
type header struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	DataLength    int             `json:"data_length,omitempty"`
	PayloadLength int             `json:"payload_length,omitempty"`
}

// maxSectionLength bounds the data and payload sections of a single event.
// Audio chunks are small (tens of milliseconds); anything larger indicates a
// desynchronised or hostile stream.
const maxSectionLength = 1 << 24

// Conn frames events over a duplex byte stream. Reads are single-consumer;
// writes are serialized internally so event emission is atomic.
type Conn struct {
	r *bufio.Reader

	wmu sync.Mutex
	w   *bufio.Writer
}

// NewConn wraps rw in a Conn. The Conn does not own the underlying stream;
// closing it remains the caller's responsibility.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		r: bufio.NewReader(rw),
		w: bufio.NewWriter(rw),
	}
}

// ReadEvent reads the next event. It returns io.EOF on clean end-of-stream
// and wraps [ErrMalformedEvent] when the header cannot be decoded.
func (c *Conn) ReadEvent() (Event, error) {
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return Event{}, io.EOF
		}
		return Event{}, fmt.Errorf("wyoming: read header: %w", err)
	}

	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if h.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	if h.DataLength < 0 || h.DataLength > maxSectionLength ||
		h.PayloadLength < 0 || h.PayloadLength > maxSectionLength {
		return Event{}, fmt.Errorf("%w: section length out of range", ErrMalformedEvent)
	}

	ev := Event{Type: h.Type, Data: h.Data}

	if h.DataLength > 0 {
		data := make([]byte, h.DataLength)
		if _, err := io.ReadFull(c.r, data); err != nil {
			return Event{}, fmt.Errorf("wyoming: read data section: %w", err)
		}
		ev.Data = data
	}
	if h.PayloadLength > 0 {
		payload := make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(c.r, payload); err != nil {
			return Event{}, fmt.Errorf("wyoming: read payload section: %w", err)
		}
		ev.Payload = payload
	}

	return ev, nil
}

// WriteEvent frames and flushes ev. Either the whole event reaches the
// stream or an error is returned; no partial events are emitted between
// concurrent writers.
func (c *Conn) WriteEvent(ev Event) error {
	h := header{
		Type:          ev.Type,
		DataLength:    len(ev.Data),
		PayloadLength: len(ev.Payload),
	}
	line, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("wyoming: marshal header: %w", err)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.w.Write(line); err != nil {
		return fmt.Errorf("wyoming: write header: %w", err)
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("wyoming: write header: %w", err)
	}
	if len(ev.Data) > 0 {
		if _, err := c.w.Write(ev.Data); err != nil {
			return fmt.Errorf("wyoming: write data section: %w", err)
		}
	}
	if len(ev.Payload) > 0 {
		if _, err := c.w.Write(ev.Payload); err != nil {
			return fmt.Errorf("wyoming: write payload section: %w", err)
		}
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("wyoming: flush: %w", err)
	}
	return nil
}
