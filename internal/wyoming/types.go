package wyoming

import (
	"encoding/json"
	"fmt"
)

// Event type names.
const (
	TypeDescribe    = "describe"
	TypeInfo        = "info"
	TypeDetect      = "detect"
	TypeAudioStart  = "audio-start"
	TypeAudioChunk  = "audio-chunk"
	TypeAudioStop   = "audio-stop"
	TypeDetection   = "detection"
	TypeNotDetected = "not-detected"
)

// Inbound is the closed set of event kinds a wake session consumes. Events
// are decoded once at the transport boundary by [DecodeInbound]; the session
// state machine switches exhaustively over the variants.
type Inbound interface {
	isInbound()
}

// Describe asks for the service info event.
type Describe struct{}

// Detect selects the keywords to listen for. Names is the full ordered list
// as sent by the client; only the first is honoured, but the list is kept
// intact at the boundary.
type Detect struct {
	Names []string `json:"names"`
}

// AudioStart opens an utterance.
type AudioStart struct {
	Rate      int    `json:"rate"`
	Width     int    `json:"width"`
	Channels  int    `json:"channels"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// AudioChunk carries one span of PCM audio. Audio holds the raw payload
// section of the frame.
type AudioChunk struct {
	Rate      int    `json:"rate"`
	Width     int    `json:"width"`
	Channels  int    `json:"channels"`
	Timestamp *int64 `json:"timestamp,omitempty"`
	Audio     []byte `json:"-"`
}

// AudioStop closes an utterance.
type AudioStop struct {
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// Unknown preserves events of types outside the wake protocol. Sessions log
// and ignore them.
type Unknown struct {
	Type string
	Data json.RawMessage
}

func (Describe) isInbound()   {}
func (Detect) isInbound()     {}
func (AudioStart) isInbound() {}
func (AudioChunk) isInbound() {}
func (AudioStop) isInbound()  {}
func (Unknown) isInbound()    {}

// DecodeInbound turns a raw event into its typed variant. A decode failure
// on a known type wraps [ErrMalformedEvent]; unrecognised types come back as
// [Unknown].
func DecodeInbound(ev Event) (Inbound, error) {
	switch ev.Type {
	case TypeDescribe:
		return Describe{}, nil
	case TypeDetect:
		var d Detect
		if err := decodeData(ev, &d); err != nil {
			return nil, err
		}
		return d, nil
	case TypeAudioStart:
		var a AudioStart
		if err := decodeData(ev, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeAudioChunk:
		var a AudioChunk
		if err := decodeData(ev, &a); err != nil {
			return nil, err
		}
		a.Audio = ev.Payload
		return a, nil
	case TypeAudioStop:
		var a AudioStop
		if err := decodeData(ev, &a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return Unknown{Type: ev.Type, Data: ev.Data}, nil
	}
}

func decodeData(ev Event, v any) error {
	if len(ev.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return fmt.Errorf("%w: decode %s data: %v", ErrMalformedEvent, ev.Type, err)
	}
	return nil
}

// ---- Outbound events ----

// Attribution credits the origin of a program or model.
type Attribution struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// WakeModel describes one advertised keyword model.
type WakeModel struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Languages   []string    `json:"languages"`
}

// WakeProgram describes a wake-word service and its models.
type WakeProgram struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Models      []WakeModel `json:"models"`
}

// Info is the static service-info payload sent in reply to Describe.
type Info struct {
	Wake []WakeProgram `json:"wake"`
}

// Event frames the info payload.
func (i Info) Event() (Event, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return Event{}, fmt.Errorf("wyoming: marshal info: %w", err)
	}
	return Event{Type: TypeInfo, Data: data}, nil
}

// Detection reports a matched keyword. Timestamp is the stream timestamp of
// the chunk that completed the matching frame, when the client supplied one.
type Detection struct {
	Name      string `json:"name"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// Event frames the detection.
func (d Detection) Event() (Event, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return Event{}, fmt.Errorf("wyoming: marshal detection: %w", err)
	}
	return Event{Type: TypeDetection, Data: data}, nil
}

// NotDetectedEvent reports an utterance that ended without a detection.
func NotDetectedEvent() Event {
	return Event{Type: TypeNotDetected}
}

// DescribeEvent builds a service-info request. Used by clients and tests.
func DescribeEvent() Event {
	return Event{Type: TypeDescribe}
}
