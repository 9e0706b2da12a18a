package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// MockOutput is an Output that produces no sound. Each playback finishes
// after its audio duration scaled by Speed; a zero Speed finishes playback
// as soon as it starts. It records everything played.
type MockOutput struct {
	Speed float64

	format Format

	mu     sync.Mutex
	played [][]byte
	closed bool

	playCount atomic.Int64
	stopCount atomic.Int64
}

// NewMockOutput returns a mock output in the default format.
func NewMockOutput(speed float64) *MockOutput {
	return &MockOutput{Speed: speed, format: DefaultFormat()}
}

// Format returns the mock's format.
func (m *MockOutput) Format() Format {
	return m.format
}

// Play records pcm and simulates playing it.
func (m *MockOutput) Play(pcm []byte) (Playback, error) {
	if err := m.format.Validate(pcm); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.played = append(m.played, append([]byte(nil), pcm...))
	m.playCount.Add(1)

	d := time.Duration(float64(m.format.Duration(len(pcm))) * m.Speed)
	pb := &mockPlayback{
		remaining: d,
		started:   time.Now(),
		done:      make(chan struct{}),
		stopCount: &m.stopCount,
	}
	pb.timer = time.AfterFunc(d, pb.finish)
	return pb, nil
}

// Played returns copies of every buffer played so far.
func (m *MockOutput) Played() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.played...)
}

// PlayCount returns the number of Play calls that succeeded.
func (m *MockOutput) PlayCount() int { return int(m.playCount.Load()) }

// StopCount returns the number of playbacks stopped early.
func (m *MockOutput) StopCount() int { return int(m.stopCount.Load()) }

// Close makes further Play calls fail.
func (m *MockOutput) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type mockPlayback struct {
	mu        sync.Mutex
	timer     *time.Timer
	remaining time.Duration
	started   time.Time
	paused    bool
	stopCount *atomic.Int64

	done chan struct{}
	once sync.Once
}

func (pb *mockPlayback) Pause() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.paused || !pb.timer.Stop() {
		return
	}
	pb.paused = true
	pb.remaining -= time.Since(pb.started)
	if pb.remaining < 0 {
		pb.remaining = 0
	}
}

func (pb *mockPlayback) Resume() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if !pb.paused {
		return
	}
	pb.paused = false
	pb.started = time.Now()
	pb.timer = time.AfterFunc(pb.remaining, pb.finish)
}

func (pb *mockPlayback) Stop() {
	pb.mu.Lock()
	pb.timer.Stop()
	pb.mu.Unlock()

	select {
	case <-pb.done:
	default:
		pb.stopCount.Add(1)
	}
	pb.finish()
}

func (pb *mockPlayback) Done() <-chan struct{} {
	return pb.done
}

func (pb *mockPlayback) finish() {
	pb.once.Do(func() { close(pb.done) })
}
