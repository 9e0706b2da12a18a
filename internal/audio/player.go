package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// pollInterval is how often a playback checks whether oto has drained it.
const pollInterval = 20 * time.Millisecond

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int // Hz
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // only 16 is supported
	BufferSize time.Duration
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	f := DefaultFormat()
	return PlayerConfig{
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		BitDepth:   f.BitDepth,
		BufferSize: 100 * time.Millisecond,
	}
}

// validateConfig validates the player configuration.
func validateConfig(config PlayerConfig) error {
	switch config.SampleRate {
	case 8000, 16000, 22050, 24000, 44100, 48000:
	default:
		return fmt.Errorf("unsupported sample rate %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", config.BitDepth)
	}
	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	return nil
}

// Player is an Output backed by the system audio device. oto allows one
// context per process, so create one Player and share it.
type Player struct {
	context *oto.Context
	format  Format

	mu     sync.Mutex
	active map[*otoPlayback]struct{}
	closed bool
}

// NewPlayer opens the audio device.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   config.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	log.Debug("audio device ready", "rate", config.SampleRate, "channels", config.Channels)
	return &Player{
		context: ctx,
		format: Format{
			SampleRate: config.SampleRate,
			Channels:   config.Channels,
			BitDepth:   config.BitDepth,
		},
		active: make(map[*otoPlayback]struct{}),
	}, nil
}

// Format returns the format the device was opened with.
func (p *Player) Format() Format {
	return p.format
}

// Play starts pcm and returns its handle.
func (p *Player) Play(pcm []byte) (Playback, error) {
	if err := p.format.Validate(pcm); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	// oto reads the buffer while it plays, so the handle owns its own copy.
	data := make([]byte, len(pcm))
	copy(data, pcm)

	pb := &otoPlayback{
		player:   p.context.NewPlayer(bytes.NewReader(data)),
		data:     data,
		done:     make(chan struct{}),
		duration: p.format.Duration(len(data)),
	}
	pb.onFinish = func() {
		p.mu.Lock()
		delete(p.active, pb)
		p.mu.Unlock()
	}
	p.active[pb] = struct{}{}

	pb.player.Play()
	go pb.watch()
	return pb, nil
}

// Close stops every active playback. The device itself stays open until
// the process exits.
func (p *Player) Close() error {
	p.mu.Lock()
	p.closed = true
	active := make([]*otoPlayback, 0, len(p.active))
	for pb := range p.active {
		active = append(active, pb)
	}
	p.mu.Unlock()

	for _, pb := range active {
		pb.Stop()
	}
	return nil
}

type otoPlayback struct {
	player   *oto.Player
	data     []byte
	duration time.Duration
	onFinish func()

	mu      sync.Mutex
	paused  bool
	stopped bool

	done chan struct{}
	once sync.Once
}

func (pb *otoPlayback) Pause() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.stopped || pb.paused {
		return
	}
	pb.paused = true
	pb.player.Pause()
}

func (pb *otoPlayback) Resume() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.stopped || !pb.paused {
		return
	}
	pb.paused = false
	pb.player.Play()
}

func (pb *otoPlayback) Stop() {
	pb.mu.Lock()
	pb.stopped = true
	pb.player.Pause()
	pb.mu.Unlock()
	pb.finish()
}

func (pb *otoPlayback) Done() <-chan struct{} {
	return pb.done
}

// watch closes done once oto has played everything. A paused player also
// reports !IsPlaying, so pauses are excluded.
func (pb *otoPlayback) watch() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pb.done:
			return
		case <-ticker.C:
			pb.mu.Lock()
			drained := !pb.paused && !pb.player.IsPlaying()
			pb.mu.Unlock()
			if drained {
				if err := pb.player.Err(); err != nil {
					log.Warn("playback error", "err", err)
				}
				pb.finish()
				return
			}
		}
	}
}

func (pb *otoPlayback) finish() {
	pb.once.Do(func() {
		if err := pb.player.Close(); err != nil {
			log.Debug("closing oto player", "err", err)
		}
		pb.data = nil
		close(pb.done)
		if pb.onFinish != nil {
			pb.onFinish()
		}
	})
}
