package engines

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgnsrekt/chatreader/internal/audio"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

// MockConfig configures the mock engine.
type MockConfig struct {
	Delay          time.Duration // simulated synthesis time
	WordsPerMinute int           // defaults to 150
	MaxText        int           // 0 accepts any length
}

// MockEngine produces silence as long as the text would take to say.
type MockEngine struct {
	delay  time.Duration
	wpm    int
	limit  int
	format audio.Format

	mu        sync.Mutex
	failure   error
	callCount int
	requests  []Request
}

// NewMockEngine returns a mock engine.
func NewMockEngine(cfg MockConfig) *MockEngine {
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = 150
	}
	return &MockEngine{
		delay:  cfg.Delay,
		wpm:    cfg.WordsPerMinute,
		limit:  cfg.MaxText,
		format: audio.DefaultFormat(),
	}
}

// Name implements Engine.
func (e *MockEngine) Name() string { return EngineMock }

// Format implements Engine.
func (e *MockEngine) Format() audio.Format { return e.format }

// TextLimit implements Engine.
func (e *MockEngine) TextLimit() int { return e.limit }

// Voices implements Engine.
func (e *MockEngine) Voices(_ context.Context) ([]voice.Voice, error) {
	return []voice.Voice{
		{ID: "mock-voice-1", Name: "Mock Voice 1", Language: "en-US", Gender: "neutral"},
		{ID: "mock-voice-2", Name: "Mock Voice 2", Language: "en-GB", Gender: "female"},
		{ID: "mock-voice-3", Name: "Mock Voice 3", Language: "en-US", Gender: "male"},
	}, nil
}

// Synthesize implements Engine.
func (e *MockEngine) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := validateRequest(req, e.limit); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.callCount++
	e.requests = append(e.requests, req)
	failure := e.failure
	e.mu.Unlock()

	if failure != nil {
		return nil, failure
	}

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("mock synthesis: %w", ctx.Err())
		}
	}
	return e.format.Silence(e.Duration(req.Text, req.Rate)), nil
}

// Duration estimates how long text takes to say at rate.
func (e *MockEngine) Duration(text string, rate float64) time.Duration {
	words := len(text) / 5 // ~5 characters per word
	if words < 1 {
		words = 1
	}
	seconds := float64(words) * 60.0 / float64(e.wpm) / normalizeRate(rate)
	return time.Duration(seconds * float64(time.Second))
}

// Close implements Engine.
func (e *MockEngine) Close() error { return nil }

// SetFailure makes every following Synthesize call fail with err. A nil
// err restores normal operation.
func (e *MockEngine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failure = err
}

// CallCount returns the number of Synthesize calls.
func (e *MockEngine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// Requests returns the requests seen so far.
func (e *MockEngine) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Request(nil), e.requests...)
}
