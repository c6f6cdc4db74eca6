// Package audio provides PCM audio types and format conversion for the
// wake-word pipeline. All byte-level PCM is little-endian.
package audio

import "fmt"

// Format describes raw PCM audio: sample rate in Hz, sample width in bytes,
// and channel count.
type Format struct {
	Rate     int
	Width    int
	Channels int
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%d-bit/%dch", f.Rate, f.Width*8, f.Channels)
}

// Frame is one span of PCM audio with its format. Timestamp is the client's
// stream timestamp in milliseconds, when provided.
type Frame struct {
	Data      []byte
	Format    Format
	Timestamp *int64
}

// BytesToInt16 decodes little-endian 16-bit PCM into samples. The input
// length must be even.
func BytesToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}
