package wyoming

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
)

// duplex pairs separate read and write buffers into one stream for Conn.
type duplex struct {
	io.Reader
	io.Writer
}

func TestConn_WriteThenRead(t *testing.T) {
	var wire bytes.Buffer

	out := NewConn(duplex{Reader: strings.NewReader(""), Writer: &wire})
	want := Event{
		Type:    TypeAudioChunk,
		Data:    json.RawMessage(`{"rate":16000,"width":2,"channels":1}`),
		Payload: []byte{0x01, 0x02, 0x03, 0x04},
	}
	if err := out.WriteEvent(want); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}

	in := NewConn(duplex{Reader: &wire, Writer: io.Discard})
	got, err := in.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent: %v", err)
	}

	if got.Type != want.Type {
		t.Errorf("type = %q, want %q", got.Type, want.Type)
	}
	if !bytes.Equal(got.Data, want.Data) {
		t.Errorf("data = %s, want %s", got.Data, want.Data)
	}
	if !bytes.Equal(got.Payload, want.Payload) {
		t.Errorf("payload = %v, want %v", got.Payload, want.Payload)
	}
}

func TestConn_ReadInlineData(t *testing.T) {
	// Headers may inline small data objects with no trailing section.
	wire := `{"type":"detect","data":{"names":["ok home"]}}` + "\n"
	c := NewConn(duplex{Reader: strings.NewReader(wire), Writer: io.Discard})

	ev, err := c.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent: %v", err)
	}
	if ev.Type != TypeDetect {
		t.Errorf("type = %q, want %q", ev.Type, TypeDetect)
	}

	var d Detect
	if err := json.Unmarshal(ev.Data, &d); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(d.Names) != 1 || d.Names[0] != "ok home" {
		t.Errorf("names = %v, want [ok home]", d.Names)
	}
}

func TestConn_ReadEOF(t *testing.T) {
	c := NewConn(duplex{Reader: strings.NewReader(""), Writer: io.Discard})
	if _, err := c.ReadEvent(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestConn_ReadMalformedHeader(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"not json", "garbage\n"},
		{"missing type", `{"data_length":4}` + "\n"},
		{"negative length", `{"type":"describe","payload_length":-1}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConn(duplex{Reader: strings.NewReader(tt.wire), Writer: io.Discard})
			_, err := c.ReadEvent()
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("err = %v, want ErrMalformedEvent", err)
			}
		})
	}
}

func TestConn_ReadTruncatedPayload(t *testing.T) {
	wire := `{"type":"audio-chunk","payload_length":10}` + "\n" + "abc"
	c := NewConn(duplex{Reader: strings.NewReader(wire), Writer: io.Discard})
	if _, err := c.ReadEvent(); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestConn_WriteMultipleEvents(t *testing.T) {
	var wire bytes.Buffer
	out := NewConn(duplex{Reader: strings.NewReader(""), Writer: &wire})

	events := []Event{
		DescribeEvent(),
		{Type: TypeAudioStart, Data: json.RawMessage(`{"rate":16000,"width":2,"channels":1}`)},
		{Type: TypeAudioChunk, Data: json.RawMessage(`{"rate":16000,"width":2,"channels":1}`), Payload: make([]byte, 32)},
		{Type: TypeAudioStop},
	}
	for _, ev := range events {
		if err := out.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent(%s): %v", ev.Type, err)
		}
	}

	in := NewConn(duplex{Reader: &wire, Writer: io.Discard})
	for i, want := range events {
		got, err := in.ReadEvent()
		if err != nil {
			t.Fatalf("ReadEvent %d: %v", i, err)
		}
		if got.Type != want.Type {
			t.Errorf("event %d: type = %q, want %q", i, got.Type, want.Type)
		}
		if len(got.Payload) != len(want.Payload) {
			t.Errorf("event %d: payload length = %d, want %d", i, len(got.Payload), len(want.Payload))
		}
	}
	if _, err := in.ReadEvent(); err != io.EOF {
		t.Errorf("after last event: err = %v, want io.EOF", err)
	}
}
