package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/chatreader/internal/dom"
	"github.com/dgnsrekt/chatreader/internal/playback"
	"github.com/dgnsrekt/chatreader/internal/source"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

const (
	head = `<html><body><ol>
<li id="chat-messages-1"><h3><span id="message-username-1">bob</span></h3><div id="message-content-1">hi</div></li>
<li id="chat-messages-2"><div id="message-content-2">there</div></li>
<li class="divider">Today</li>
<li id="chat-messages-3"><h3><span id="message-username-3">alice</span></h3><div id="message-content-3">see https://example.com/a/b</div></li>`
	more = `
<li id="chat-messages-4"><div id="message-content-4">also this</div></li>
<li id="chat-messages-5"><h3><span id="message-username-5">carol</span></h3><div id="message-content-5">new here</div></li>`
	tail = `</ol></body></html>`
)

type fakeTask struct{ onEnd func() }

func (fakeTask) Pause()  {}
func (fakeTask) Resume() {}
func (fakeTask) Cancel() {}

type fakeSynth struct {
	mu    sync.Mutex
	reqs  []playback.Request
	tasks []fakeTask
}

func (f *fakeSynth) Speak(req playback.Request, onEnd func()) playback.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := fakeTask{onEnd: onEnd}
	f.reqs = append(f.reqs, req)
	f.tasks = append(f.tasks, t)
	return t
}

// finishLast completes the most recent task outside the engine lock.
func (f *fakeSynth) finishLast() {
	f.mu.Lock()
	t := f.tasks[len(f.tasks)-1]
	f.mu.Unlock()
	t.onEnd()
}

func (f *fakeSynth) requests() []playback.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]playback.Request(nil), f.reqs...)
}

func writeTranscript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func load(t *testing.T, body string) (*source.Transcript, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.html")
	writeTranscript(t, path, body)
	tr, err := source.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	return tr, path
}

func threeVoices(context.Context) ([]voice.Voice, error) {
	return []voice.Voice{{ID: "a"}, {ID: "b"}, {ID: "c"}}, nil
}

func TestEntries(t *testing.T) {
	tr, _ := load(t, head+tail)
	r, err := New(context.Background(), tr, &fakeSynth{}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}

	got := r.Entries()
	want := []Entry{
		{Node: "chat-messages-1", Username: "bob", Text: "hi"},
		{Node: "chat-messages-2", Username: "bob", Text: "there"},
		{Node: "chat-messages-3", Username: "alice", Text: "see example.com"},
	}
	if len(got) != len(want) {
		t.Fatalf("Entries() = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if r.Name() != "chat.html" {
		t.Errorf("Name() = %q", r.Name())
	}
}

func TestNoMessages(t *testing.T) {
	tr, _ := load(t, "<p>nothing to see</p>")
	if _, err := New(context.Background(), tr, &fakeSynth{}, nil, Options{}); !errors.Is(err, ErrNoMessages) {
		t.Errorf("New() = %v, want ErrNoMessages", err)
	}
}

func TestStartAssignsVoices(t *testing.T) {
	tr, _ := load(t, head+tail)
	synth := &fakeSynth{}
	r, err := New(context.Background(), tr, synth, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	r.Catalog().Set([]voice.Voice{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	r.Start("chat-messages-1")
	if got, _ := r.Marks().Get("chat-messages-1"); got != dom.MarkActive {
		t.Errorf("first message mark = %q", got)
	}
	if got, _ := r.Marks().Get("chat-messages-2"); got != dom.MarkOnDeck {
		t.Errorf("second message mark = %q", got)
	}

	synth.finishLast()
	synth.finishLast()
	reqs := synth.requests()
	if len(reqs) != 3 {
		t.Fatalf("requests = %+v", reqs)
	}
	// hash("bob") % 3 == 1
	if reqs[0].Voice.ID != "b" || reqs[1].Voice.ID != "b" {
		t.Errorf("bob's voices = %q, %q", reqs[0].Voice.ID, reqs[1].Voice.ID)
	}
	if reqs[0].Text != "bob says: hi" || reqs[1].Text != "there" {
		t.Errorf("texts = %q, %q", reqs[0].Text, reqs[1].Text)
	}

	script := r.Script("chat-messages-2")
	if len(script) != 2 || script[0].Text != "there" {
		t.Errorf("Script() = %+v", script)
	}
}

func TestPinnedVoice(t *testing.T) {
	tr, _ := load(t, head+tail)
	synth := &fakeSynth{}
	r, err := New(context.Background(), tr, synth, threeVoices, Options{Voice: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Catalog().Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	r.Start("chat-messages-3")
	if reqs := synth.requests(); len(reqs) != 1 || reqs[0].Voice.ID != "c" || !reqs[0].HasVoice {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestReloadAppends(t *testing.T) {
	tr, path := load(t, head+tail)
	synth := &fakeSynth{}
	r, err := New(context.Background(), tr, synth, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}

	r.Start("chat-messages-3")
	writeTranscript(t, path, head+more+tail)
	if err := r.Reload(); err != nil {
		t.Fatal(err)
	}

	p := r.Engine().Snapshot()
	if p.Remaining != 2 || p.Next == nil || p.Next.Node != "chat-messages-4" {
		t.Fatalf("panel after reload = %+v", p)
	}
	if len(r.Entries()) != 5 {
		t.Errorf("entries = %d, want 5", len(r.Entries()))
	}

	synth.finishLast()
	synth.finishLast()
	reqs := synth.requests()
	// The continuation keeps alice's identity from the first walk.
	if reqs[1].Text != "also this" || reqs[1].Username != "alice" {
		t.Errorf("continuation = %+v", reqs[1])
	}
	if reqs[2].Text != "carol says: new here" {
		t.Errorf("new speaker = %q", reqs[2].Text)
	}

	// A stopped session does not pick up new messages.
	r.Stop()
	writeTranscript(t, path, head+more+more+tail)
	if err := r.Reload(); err != nil {
		t.Fatal(err)
	}
	if n := len(synth.requests()); n != 3 {
		t.Errorf("requests after stop = %d, want 3", n)
	}
}

func TestReloadWhenIdleAdvances(t *testing.T) {
	tr, path := load(t, head+tail)
	synth := &fakeSynth{}
	r, err := New(context.Background(), tr, synth, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}

	r.Start("chat-messages-3")
	synth.finishLast()
	if p := r.Engine().Snapshot(); p.State != playback.StateIdle || !p.Visible {
		t.Fatalf("panel = %+v", p)
	}

	writeTranscript(t, path, head+more+tail)
	if err := r.Reload(); err != nil {
		t.Fatal(err)
	}
	if p := r.Engine().Snapshot(); p.Current == nil || p.Current.Node != "chat-messages-4" {
		t.Errorf("idle session should start on new messages, panel = %+v", p)
	}
}

func TestFollow(t *testing.T) {
	tr, path := load(t, head+tail)
	synth := &fakeSynth{}
	r, err := New(context.Background(), tr, synth, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 4)
	if err := r.Follow(ctx, func() { reloaded <- struct{}{} }); err != nil {
		t.Fatal(err)
	}
	r.Start("chat-messages-3")

	writeTranscript(t, path, head+more+tail)
	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-reloaded:
		case <-deadline:
			t.Fatal("transcript was not reloaded")
		}
		if len(r.Entries()) == 5 {
			break
		}
	}
	if p := r.Engine().Snapshot(); p.Remaining != 2 {
		t.Errorf("remaining = %d, want 2", p.Remaining)
	}
}

func TestFollowNeedsLocalFile(t *testing.T) {
	tr := &source.Transcript{Name: "stdin", Body: []byte(head + tail)}
	r, err := New(context.Background(), tr, &fakeSynth{}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Follow(context.Background(), nil); err == nil {
		t.Error("stdin transcripts cannot be followed")
	}
}
