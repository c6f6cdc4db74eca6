package audio

import (
	"log/slog"
	"sync"
)

// FormatConverter converts Frames to a target format. It logs a warning on
// the first format mismatch and validates PCM data alignment.
// Create one per stream; not designed for shared use across goroutines.
type FormatConverter struct {
	Target         Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert converts a frame to the target format. If the source format
// already matches the target, the frame is returned unchanged (zero
// allocation). Conversion order: widen/narrow samples to the target width,
// resample, then channel convert.
func (c *FormatConverter) Convert(frame Frame) Frame {
	width := frame.Format.Width
	if width == 0 {
		width = 2
	}

	if len(frame.Data)%width != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio format converter: misaligned PCM data, dropping frame",
				"bytes", len(frame.Data),
				"format", frame.Format,
			)
		})
		return Frame{Format: c.Target, Timestamp: frame.Timestamp}
	}

	// Fast path: source matches target.
	if frame.Format == c.Target {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", frame.Format,
			"to", c.Target,
		)
	})

	pcm := frame.Data
	cur := frame.Format
	cur.Width = width

	// Step 1: Sample width. The rest of the pipeline works on 16-bit PCM.
	if cur.Width != c.Target.Width {
		switch cur.Width {
		case 1:
			pcm = Lin8To16(pcm)
		case 4:
			pcm = Lin32To16(pcm)
		}
		cur.Width = c.Target.Width
	}

	// Step 2: Resample first (avoids resampling stereo when target is mono).
	if cur.Rate != c.Target.Rate {
		if cur.Channels == 1 {
			pcm = ResampleMono16(pcm, cur.Rate, c.Target.Rate)
		} else {
			pcm = ResampleStereo16(pcm, cur.Rate, c.Target.Rate)
		}
		cur.Rate = c.Target.Rate
	}

	// Step 3: Channel conversion.
	if cur.Channels != c.Target.Channels {
		if cur.Channels == 1 && c.Target.Channels == 2 {
			pcm = MonoToStereo(pcm)
		} else if cur.Channels == 2 && c.Target.Channels == 1 {
			pcm = StereoToMono(pcm)
		}
		cur.Channels = c.Target.Channels
	}

	return Frame{
		Data:      pcm,
		Format:    cur,
		Timestamp: frame.Timestamp,
	}
}

// Lin8To16 widens signed 8-bit PCM to 16-bit by shifting into the high byte.
func Lin8To16(pcm []byte) []byte {
	out := make([]byte, len(pcm)*2)
	for i, b := range pcm {
		s := int16(int8(b)) << 8
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Lin32To16 narrows signed 32-bit PCM to 16-bit by keeping the high word.
// Input length must be a multiple of 4.
func Lin32To16(pcm []byte) []byte {
	samples := len(pcm) / 4
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		// Little-endian: the two high bytes of each 32-bit sample.
		out[i*2] = pcm[i*4+2]
		out[i*2+1] = pcm[i*4+3]
	}
	return out
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
// Input must be little-endian int16 PCM (2 bytes per sample).
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono
// output. Uses int32 arithmetic to prevent overflow and clamps to int16
// range.
func StereoToMono(pcm []byte) []byte {
	// Each stereo frame is 4 bytes (2 bytes L + 2 bytes R).
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		// Clamp to int16 range.
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. The input must be little-endian int16 samples. If
// srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := 0; i < dstSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// ResampleStereo16 resamples 16-bit stereo PCM from srcRate to dstRate using
// linear interpolation. Each stereo frame is 4 bytes (L+R interleaved).
// If srcRate == dstRate, the input is returned unchanged.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 4 {
		return pcm
	}
	srcFrames := len(pcm) / 4
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*4)
	ratio := float64(srcRate) / float64(dstRate)

	for i := 0; i < dstFrames; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		l0 := int16(pcm[srcIdx*4]) | int16(pcm[srcIdx*4+1])<<8
		r0 := int16(pcm[srcIdx*4+2]) | int16(pcm[srcIdx*4+3])<<8

		var l1, r1 int16
		if srcIdx+1 < srcFrames {
			l1 = int16(pcm[(srcIdx+1)*4]) | int16(pcm[(srcIdx+1)*4+1])<<8
			r1 = int16(pcm[(srcIdx+1)*4+2]) | int16(pcm[(srcIdx+1)*4+3])<<8
		} else {
			l1, r1 = l0, r0
		}

		li := int16(float64(l0)*(1-frac) + float64(l1)*frac)
		ri := int16(float64(r0)*(1-frac) + float64(r1)*frac)
		out[i*4] = byte(li)
		out[i*4+1] = byte(li >> 8)
		out[i*4+2] = byte(ri)
		out[i*4+3] = byte(ri >> 8)
	}
	return out
}
