package engines

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/chatreader/internal/audio"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

// fallbackAfter is how many consecutive failures make New's fallback
// engine switch over for good.
const fallbackAfter = 3

// FallbackEngine wraps a primary engine with automatic fallback to a
// secondary engine when the primary fails consistently. Audio always comes
// out in the primary's format.
type FallbackEngine struct {
	primary     Engine
	fallback    Engine
	maxFailures int

	mu            sync.Mutex
	failures      int
	usingFallback bool
	known         map[string]bool // fallback voice IDs, loaded on switch
}

// NewFallbackEngine creates a new engine with automatic fallback
// capability. maxFailures below 1 is treated as 1.
func NewFallbackEngine(primary, fallback Engine, maxFailures int) *FallbackEngine {
	return &FallbackEngine{
		primary:     primary,
		fallback:    fallback,
		maxFailures: max(maxFailures, 1),
	}
}

func (f *FallbackEngine) active() Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usingFallback {
		return f.fallback
	}
	return f.primary
}

// UsingFallback reports whether the fallback engine has taken over.
func (f *FallbackEngine) UsingFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usingFallback
}

// Name implements Engine. It names the engine currently speaking.
func (f *FallbackEngine) Name() string { return f.active().Name() }

// Format implements Engine.
func (f *FallbackEngine) Format() audio.Format { return f.primary.Format() }

// TextLimit implements Engine.
func (f *FallbackEngine) TextLimit() int { return f.active().TextLimit() }

// Voices implements Engine. Voices are listed from the primary until it
// has been replaced.
func (f *FallbackEngine) Voices(ctx context.Context) ([]voice.Voice, error) {
	if !f.UsingFallback() {
		voices, err := f.primary.Voices(ctx)
		if err == nil {
			return voices, nil
		}
		log.Warn("primary engine cannot list voices", "engine", f.primary.Name(), "err", err)
	}
	return f.fallback.Voices(ctx)
}

// Synthesize implements Engine.
func (f *FallbackEngine) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if !f.UsingFallback() {
		pcm, err := f.primary.Synthesize(ctx, req)
		if err == nil {
			f.recovered()
			return pcm, nil
		}
		if !f.countFailure(ctx, err) {
			return nil, err
		}
	}

	req.Voice = f.fallbackVoice(ctx, req.Voice)
	pcm, err := f.fallback.Synthesize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fallback %s: %w", f.fallback.Name(), err)
	}
	return audio.Resample(pcm, f.fallback.Format(), f.primary.Format())
}

func (f *FallbackEngine) recovered() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		log.Info("primary engine recovered", "engine", f.primary.Name(), "failures", f.failures)
		f.failures = 0
	}
}

// countFailure records a primary failure and reports whether the request
// should go to the fallback. Cancellation and bad requests are not the
// engine's fault.
func (f *FallbackEngine) countFailure(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrEmptyText) || errors.Is(err, ErrTextTooLong) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
	log.Warn("primary engine failed", "engine", f.primary.Name(),
		"attempt", f.failures, "max", f.maxFailures, "err", err)
	if f.failures < f.maxFailures {
		return false
	}
	if !f.usingFallback {
		log.Warn("switching to fallback engine", "from", f.primary.Name(), "to", f.fallback.Name())
		f.usingFallback = true
	}
	return true
}

// fallbackVoice keeps id when the fallback engine knows it and drops it
// otherwise, so the fallback speaks with its default voice.
func (f *FallbackEngine) fallbackVoice(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	f.mu.Lock()
	known := f.known
	f.mu.Unlock()

	if known == nil {
		voices, err := f.fallback.Voices(ctx)
		if err != nil {
			return ""
		}
		known = make(map[string]bool, len(voices))
		for _, v := range voices {
			known[v.ID] = true
		}
		f.mu.Lock()
		f.known = known
		f.mu.Unlock()
	}
	if known[id] {
		return id
	}
	return ""
}

// Close implements Engine.
func (f *FallbackEngine) Close() error {
	return errors.Join(f.primary.Close(), f.fallback.Close())
}
