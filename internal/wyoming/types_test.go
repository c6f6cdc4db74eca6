package wyoming

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeInbound_Variants(t *testing.T) {
	ts := int64(1500)

	tests := []struct {
		name  string
		ev    Event
		check func(t *testing.T, in Inbound)
	}{
		{
			name: "describe",
			ev:   Event{Type: TypeDescribe},
			check: func(t *testing.T, in Inbound) {
				if _, ok := in.(Describe); !ok {
					t.Errorf("got %T, want Describe", in)
				}
			},
		},
		{
			name: "detect keeps full name list",
			ev:   Event{Type: TypeDetect, Data: json.RawMessage(`{"names":["ok home","porcupine"]}`)},
			check: func(t *testing.T, in Inbound) {
				d, ok := in.(Detect)
				if !ok {
					t.Fatalf("got %T, want Detect", in)
				}
				if len(d.Names) != 2 || d.Names[0] != "ok home" || d.Names[1] != "porcupine" {
					t.Errorf("names = %v, want [ok home porcupine]", d.Names)
				}
			},
		},
		{
			name: "audio start",
			ev:   Event{Type: TypeAudioStart, Data: json.RawMessage(`{"rate":44100,"width":2,"channels":2}`)},
			check: func(t *testing.T, in Inbound) {
				a, ok := in.(AudioStart)
				if !ok {
					t.Fatalf("got %T, want AudioStart", in)
				}
				if a.Rate != 44100 || a.Width != 2 || a.Channels != 2 {
					t.Errorf("got %+v", a)
				}
			},
		},
		{
			name: "audio chunk carries payload and timestamp",
			ev: Event{
				Type:    TypeAudioChunk,
				Data:    json.RawMessage(`{"rate":16000,"width":2,"channels":1,"timestamp":1500}`),
				Payload: []byte{1, 2, 3, 4},
			},
			check: func(t *testing.T, in Inbound) {
				a, ok := in.(AudioChunk)
				if !ok {
					t.Fatalf("got %T, want AudioChunk", in)
				}
				if len(a.Audio) != 4 {
					t.Errorf("audio length = %d, want 4", len(a.Audio))
				}
				if a.Timestamp == nil || *a.Timestamp != ts {
					t.Errorf("timestamp = %v, want %d", a.Timestamp, ts)
				}
			},
		},
		{
			name: "audio stop",
			ev:   Event{Type: TypeAudioStop},
			check: func(t *testing.T, in Inbound) {
				if _, ok := in.(AudioStop); !ok {
					t.Errorf("got %T, want AudioStop", in)
				}
			},
		},
		{
			name: "unknown type preserved",
			ev:   Event{Type: "transcribe", Data: json.RawMessage(`{}`)},
			check: func(t *testing.T, in Inbound) {
				u, ok := in.(Unknown)
				if !ok {
					t.Fatalf("got %T, want Unknown", in)
				}
				if u.Type != "transcribe" {
					t.Errorf("type = %q, want transcribe", u.Type)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInbound(tt.ev)
			if err != nil {
				t.Fatalf("DecodeInbound: %v", err)
			}
			tt.check(t, in)
		})
	}
}

func TestDecodeInbound_BadData(t *testing.T) {
	ev := Event{Type: TypeDetect, Data: json.RawMessage(`{"names":`)}
	if _, err := DecodeInbound(ev); !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("err = %v, want ErrMalformedEvent", err)
	}
}

func TestInfo_Event(t *testing.T) {
	info := Info{
		Wake: []WakeProgram{{
			Name:        "porcupine",
			Description: "On-device wake word detection powered by deep learning",
			Attribution: Attribution{Name: "Picovoice", URL: "https://github.com/Picovoice/porcupine"},
			Installed:   true,
			Models: []WakeModel{{
				Name:        "ok home",
				Description: "ok home (en)",
				Attribution: Attribution{Name: "Picovoice", URL: "https://github.com/Picovoice/porcupine"},
				Installed:   true,
				Languages:   []string{"en"},
			}},
		}},
	}

	ev, err := info.Event()
	if err != nil {
		t.Fatalf("Event: %v", err)
	}
	if ev.Type != TypeInfo {
		t.Errorf("type = %q, want %q", ev.Type, TypeInfo)
	}

	var decoded Info
	if err := json.Unmarshal(ev.Data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Wake) != 1 || len(decoded.Wake[0].Models) != 1 {
		t.Fatalf("decoded = %+v", decoded)
	}
	model := decoded.Wake[0].Models[0]
	if model.Name != "ok home" || model.Description != "ok home (en)" {
		t.Errorf("model = %+v", model)
	}
}

func TestDetection_Event(t *testing.T) {
	ts := int64(2000)
	ev, err := Detection{Name: "porcupine", Timestamp: &ts}.Event()
	if err != nil {
		t.Fatalf("Event: %v", err)
	}
	if ev.Type != TypeDetection {
		t.Errorf("type = %q, want %q", ev.Type, TypeDetection)
	}

	var d Detection
	if err := json.Unmarshal(ev.Data, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Name != "porcupine" || d.Timestamp == nil || *d.Timestamp != ts {
		t.Errorf("detection = %+v", d)
	}
}
