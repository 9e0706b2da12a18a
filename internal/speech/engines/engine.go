// Package engines provides the text-to-speech backends.
//
// Every engine turns text into raw signed 16-bit little-endian mono PCM in
// its own sample rate. Engines are stateless per request and safe for
// concurrent use.
package engines

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/chatreader/internal/audio"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

const (
	// EnginePiper is the offline neural engine.
	EnginePiper = "piper"
	// EngineGTTS is the Google Translate engine.
	EngineGTTS = "gtts"
	// EngineMock produces silence and is used for dry runs and tests.
	EngineMock = "mock"
)

var (
	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("text is empty")
	// ErrTextTooLong is returned when text exceeds an engine's limit.
	ErrTextTooLong = errors.New("text too long")
	// ErrUnknownEngine is returned by New for an unsupported engine name.
	ErrUnknownEngine = errors.New("unknown engine")
	// ErrNoAudio is returned when an engine exits without producing audio.
	ErrNoAudio = errors.New("engine produced no audio")
)

// Request is one utterance to synthesize.
type Request struct {
	Text  string
	Voice string  // voice ID, empty for the engine default
	Rate  float64 // 1.0 is normal speed
}

// Engine synthesizes speech.
type Engine interface {
	Name() string
	// Format is the PCM format of everything Synthesize returns.
	Format() audio.Format
	// TextLimit is the longest text, in bytes, Synthesize accepts. 0 means
	// no limit.
	TextLimit() int
	Voices(ctx context.Context) ([]voice.Voice, error)
	Synthesize(ctx context.Context, req Request) ([]byte, error)
	Close() error
}

// Config selects and configures an engine.
type Config struct {
	Engine string
	// Fallback names an engine that takes over when Engine is unavailable
	// or keeps failing. Empty disables fallback.
	Fallback string
	Piper    PiperConfig
	GTTS     GTTSConfig
	Mock     MockConfig
}

// New creates the engine named by cfg.Engine, wrapped with cfg.Fallback
// when one is configured.
func New(cfg Config) (Engine, error) {
	primary, err := newEngine(cfg.Engine, cfg)
	if cfg.Fallback == "" || strings.EqualFold(cfg.Fallback, cfg.Engine) {
		return primary, err
	}
	if errors.Is(err, ErrUnknownEngine) {
		return nil, err
	}

	secondary, ferr := newEngine(cfg.Fallback, cfg)
	switch {
	case ferr != nil && err != nil:
		return nil, errors.Join(err, fmt.Errorf("fallback: %w", ferr))
	case ferr != nil:
		log.Warn("fallback engine unavailable", "engine", cfg.Fallback, "err", ferr)
		return primary, nil
	case err != nil:
		log.Warn("engine unavailable, using fallback", "engine", cfg.Engine, "fallback", cfg.Fallback, "err", err)
		return secondary, nil
	}
	return NewFallbackEngine(primary, secondary, fallbackAfter), nil
}

func newEngine(name string, cfg Config) (Engine, error) {
	switch strings.ToLower(name) {
	case EnginePiper:
		e, err := NewPiperEngine(cfg.Piper)
		if err != nil {
			return nil, err
		}
		return e, nil
	case EngineGTTS:
		e, err := NewGTTSEngine(cfg.GTTS)
		if err != nil {
			return nil, err
		}
		return e, nil
	case EngineMock:
		return NewMockEngine(cfg.Mock), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s, %s, %s)",
			ErrUnknownEngine, name, EnginePiper, EngineGTTS, EngineMock)
	}
}

func validateRequest(req Request, limit int) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	if limit > 0 && len(req.Text) > limit {
		return fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, len(req.Text), limit)
	}
	return nil
}

func normalizeRate(rate float64) float64 {
	if rate <= 0 {
		return 1
	}
	return rate
}
