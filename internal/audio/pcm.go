package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyAudio is returned when asked to play nothing.
	ErrEmptyAudio = errors.New("audio data is empty")
	// ErrClosed is returned by a closed output.
	ErrClosed = errors.New("audio output is closed")
)

// Format describes signed little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is what the speech engines produce: 22.05 kHz, 16-bit mono.
func DefaultFormat() Format {
	return Format{SampleRate: 22050, Channels: 1, BitDepth: 16}
}

// FrameSize returns the number of bytes per frame.
func (f Format) FrameSize() int {
	return f.BitDepth / 8 * f.Channels
}

// Duration returns how long n bytes take to play.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate == 0 || f.FrameSize() == 0 {
		return 0
	}
	frames := n / f.FrameSize()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Silence returns d worth of silent audio.
func (f Format) Silence(d time.Duration) []byte {
	frames := int(d.Seconds() * float64(f.SampleRate))
	return make([]byte, frames*f.FrameSize())
}

// Validate checks that pcm is non-empty and frame aligned.
func (f Format) Validate(pcm []byte) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}
	if f.FrameSize() == 0 || len(pcm)%f.FrameSize() != 0 {
		return fmt.Errorf("pcm length %d is not aligned to %d-byte frames", len(pcm), f.FrameSize())
	}
	return nil
}

// Resample converts 16-bit pcm between sample rates by linear
// interpolation. Channel count and bit depth must match.
func Resample(pcm []byte, from, to Format) ([]byte, error) {
	if from.Channels != to.Channels || from.BitDepth != to.BitDepth {
		return nil, errors.New("only sample rate conversion is supported")
	}
	if from.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", from.BitDepth)
	}
	if from.SampleRate == to.SampleRate || len(pcm) == 0 {
		return pcm, nil
	}

	ch := from.Channels
	in := len(pcm) / from.FrameSize()
	ratio := float64(to.SampleRate) / float64(from.SampleRate)
	outFrames := int(float64(in) * ratio)
	out := make([]byte, outFrames*to.FrameSize())

	sample := func(frame, c int) float64 {
		off := (frame*ch + c) * 2
		return float64(int16(binary.LittleEndian.Uint16(pcm[off:])))
	}

	for i := 0; i < outFrames; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		frac := pos - float64(idx)
		for c := 0; c < ch; c++ {
			var v float64
			if idx >= in-1 {
				v = sample(in-1, c)
			} else {
				v = sample(idx, c)*(1-frac) + sample(idx+1, c)*frac
			}
			binary.LittleEndian.PutUint16(out[(i*ch+c)*2:], uint16(int16(v)))
		}
	}
	return out, nil
}
