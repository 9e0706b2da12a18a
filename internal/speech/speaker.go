// Package speech turns playback requests into sound: it synthesizes text
// with an engine, caches the PCM and plays it on an audio output.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/chatreader/internal/audio"
	"github.com/dgnsrekt/chatreader/internal/cache"
	"github.com/dgnsrekt/chatreader/internal/playback"
	"github.com/dgnsrekt/chatreader/internal/speech/engines"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

// Cache stores synthesized PCM. *cache.Manager implements it.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Speaker implements playback.Synthesizer.
type Speaker struct {
	engine engines.Engine
	out    audio.Output
	cache  Cache

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ playback.Synthesizer = (*Speaker)(nil)

// NewSpeaker returns a Speaker. c may be nil to disable caching.
func NewSpeaker(engine engines.Engine, out audio.Output, c Cache) *Speaker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Speaker{
		engine: engine,
		out:    out,
		cache:  c,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Engine returns the speaker's engine.
func (s *Speaker) Engine() engines.Engine { return s.engine }

// Voices lists the engine's voices. It is a voice.Loader.
func (s *Speaker) Voices(ctx context.Context) ([]voice.Voice, error) {
	return s.engine.Voices(ctx)
}

// Speak starts synthesizing and playing req in the background. onEnd runs
// once the audio has finished, or after a synthesis or playback error. It
// never runs for a cancelled task.
func (s *Speaker) Speak(req playback.Request, onEnd func()) playback.Task {
	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(t, req, onEnd)
	}()
	return t
}

func (s *Speaker) run(t *task, req playback.Request, onEnd func()) {
	voiceID := ""
	if req.HasVoice {
		voiceID = req.Voice.ID
	}
	log.Debug("speaking", "node", req.Node, "user", req.Username, "voice", voiceID, "rate", req.Rate)

	pcm, err := s.Synthesize(t.ctx, req.Text, voiceID, req.Rate)
	if err != nil {
		if t.ctx.Err() != nil {
			return
		}
		log.Error("synthesis failed", "node", req.Node, "err", err)
		t.finish(onEnd)
		return
	}

	pb, ok := t.start(s.out, pcm)
	if !ok {
		return
	}
	if pb == nil {
		// Playback failed and was logged; move on.
		t.finish(onEnd)
		return
	}

	select {
	case <-pb.Done():
		t.finish(onEnd)
	case <-t.ctx.Done():
		pb.Stop()
	}
}

// Synthesize returns the PCM for text in the output's format, from the
// cache when possible.
func (s *Speaker) Synthesize(ctx context.Context, text, voiceID string, rate float64) ([]byte, error) {
	outFormat := s.out.Format()
	key := cache.Key(s.engine.Name()+"@"+strconv.Itoa(outFormat.SampleRate), voiceID, rate, text)
	if s.cache != nil {
		if pcm, ok := s.cache.Get(key); ok {
			log.Debug("audio cache hit", "key", key[:12])
			return pcm, nil
		}
	}

	// Text beyond the engine's limit is spoken sentence by sentence.
	var pcm []byte
	parts := chunks(text, s.engine.TextLimit())
	for i, part := range parts {
		raw, err := s.engine.Synthesize(ctx, engines.Request{Text: part, Voice: voiceID, Rate: rate})
		if err != nil {
			if len(parts) > 1 {
				return nil, fmt.Errorf("part %d of %d: %w", i+1, len(parts), err)
			}
			return nil, err
		}
		out, err := audio.Resample(raw, s.engine.Format(), outFormat)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s audio: %w", s.engine.Name(), err)
		}
		pcm = append(pcm, out...)
	}

	if s.cache != nil {
		if err := s.cache.Put(key, pcm); err != nil && !errors.Is(err, cache.ErrItemTooLarge) {
			log.Warn("unable to cache audio", "err", err)
		}
	}
	return pcm, nil
}

// Close cancels every task, waits for them to exit and closes the engine.
// The output belongs to the caller.
func (s *Speaker) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.engine.Close()
}

// task is one utterance. Playback starts once synthesis is done and the
// task is not paused.
type task struct {
	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}

	mu        sync.Mutex
	paused    bool
	cancelled bool
	pb        audio.Playback
}

// start waits until the task is unpaused and starts playback. ok is false
// when the task was cancelled; pb is nil when playback failed.
func (t *task) start(out audio.Output, pcm []byte) (pb audio.Playback, ok bool) {
	for {
		t.mu.Lock()
		if t.cancelled {
			t.mu.Unlock()
			return nil, false
		}
		if !t.paused {
			var err error
			t.pb, err = out.Play(pcm)
			t.mu.Unlock()
			if err != nil {
				log.Error("playback failed", "err", err)
				return nil, true
			}
			return t.pb, true
		}
		t.mu.Unlock()

		select {
		case <-t.wake:
		case <-t.ctx.Done():
			return nil, false
		}
	}
}

func (t *task) finish(onEnd func()) {
	t.mu.Lock()
	cancelled := t.cancelled
	t.mu.Unlock()
	if !cancelled && onEnd != nil {
		onEnd()
	}
}

func (t *task) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = true
	if t.pb != nil {
		t.pb.Pause()
	}
}

func (t *task) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
	if t.pb != nil {
		t.pb.Resume()
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	if t.pb != nil {
		t.pb.Stop()
	}
	t.mu.Unlock()
	t.cancel()
}
