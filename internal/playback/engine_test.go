package playback

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dgnsrekt/chatreader/internal/chat"
	"github.com/dgnsrekt/chatreader/internal/dom"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

type fakeTask struct {
	req       Request
	onEnd     func()
	paused    bool
	resumed   bool
	cancelled bool
}

func (t *fakeTask) Pause()  { t.paused = true }
func (t *fakeTask) Resume() { t.resumed = true }
func (t *fakeTask) Cancel() { t.cancelled = true }

// finish simulates the audio reaching its end. Cancelled tasks still call
// back here so the stale guard is exercised.
func (t *fakeTask) finish() { t.onEnd() }

type fakeSynth struct {
	tasks []*fakeTask
}

func (f *fakeSynth) Speak(req Request, onEnd func()) Task {
	t := &fakeTask{req: req, onEnd: onEnd}
	f.tasks = append(f.tasks, t)
	return t
}

func (f *fakeSynth) last() *fakeTask {
	return f.tasks[len(f.tasks)-1]
}

type countingPolicy struct {
	assigns int
	resets  int
}

func (p *countingPolicy) Assign(username string) (voice.Voice, bool) {
	p.assigns++
	return voice.Voice{ID: "voice-" + username}, username != ""
}

func (p *countingPolicy) Reset() { p.resets++ }

var (
	u1 = chat.Record{Node: "m1", Text: "bob says: hi", Username: "bob"}
	u2 = chat.Record{Node: "m2", Text: "there", Username: "bob"}
	u3 = chat.Record{Node: "m3", Text: "alice says: yo", Username: "alice", Avatar: "https://example.com/a.png"}
)

func newTestEngine() (*Engine, *fakeSynth, *countingPolicy, *dom.Marks) {
	synth := &fakeSynth{}
	policy := &countingPolicy{}
	marks := dom.NewMarks()
	return NewEngine(DefaultConfig(), synth, policy, marks), synth, policy, marks
}

func currentText(t *testing.T, e *Engine) string {
	t.Helper()
	p := e.Snapshot()
	if p.Current == nil {
		return ""
	}
	return p.Current.Text
}

func TestEngineSequencing(t *testing.T) {
	e, synth, _, marks := newTestEngine()
	e.Load([]chat.Record{u1, u2, u3})
	e.Advance()

	if mark, _ := marks.Get("m1"); mark != dom.MarkActive {
		t.Errorf("m1 mark = %q, want active", mark)
	}
	if mark, _ := marks.Get("m2"); mark != dom.MarkOnDeck {
		t.Errorf("m2 mark = %q, want on-deck", mark)
	}

	var seq []string
	for i := 0; i < 3; i++ {
		seq = append(seq, currentText(t, e))
		synth.last().finish()
	}

	want := []string{u1.Text, u2.Text, u3.Text}
	if strings.Join(seq, "|") != strings.Join(want, "|") {
		t.Errorf("sequence = %q, want %q", seq, want)
	}

	p := e.Snapshot()
	if p.State != StateIdle || p.Current != nil || p.Remaining != 0 {
		t.Errorf("expected drained idle engine, got %+v", p)
	}
	if p.LastSpoken == nil || p.LastSpoken.Node != "m3" {
		t.Errorf("last spoken = %+v", p.LastSpoken)
	}
	if p.Username != "alice" || p.Avatar != u3.Avatar {
		t.Errorf("idle panel should show the last speaker, got %q %q", p.Username, p.Avatar)
	}
	if marks.Count(dom.MarkActive) != 0 || marks.Count(dom.MarkOnDeck) != 0 {
		t.Error("marks left behind after the queue drained")
	}
	if len(synth.tasks) != 3 {
		t.Errorf("issued %d tasks, want 3", len(synth.tasks))
	}
}

func TestEngineRewind(t *testing.T) {
	e, synth, _, marks := newTestEngine()
	e.StartRecords([]chat.Record{u1, u2, u3})
	synth.last().finish()

	if got := currentText(t, e); got != u2.Text {
		t.Fatalf("current = %q, want U2", got)
	}
	before := e.Snapshot().LastSpoken
	interrupted := synth.last()

	e.Rewind()

	if !interrupted.cancelled {
		t.Error("rewind should cancel the utterance in flight")
	}
	p := e.Snapshot()
	if p.Current == nil || *p.Current != *before {
		t.Fatalf("current after rewind = %+v, want %+v", p.Current, before)
	}
	if p.Next == nil || p.Next.Node != "m2" {
		t.Errorf("interrupted record should follow, next = %+v", p.Next)
	}
	if synth.last().req.Text != u1.Text {
		t.Errorf("re-spoke %q", synth.last().req.Text)
	}
	if mark, _ := marks.Get("m2"); mark != dom.MarkOnDeck {
		t.Errorf("m2 mark = %q, want on-deck", mark)
	}

	// The cancelled task may still report completion; it must not move the
	// queue.
	interrupted.finish()
	if got := currentText(t, e); got != u1.Text {
		t.Errorf("stale completion advanced the queue to %q", got)
	}
}

func TestEngineRewindRestartsFirstRecord(t *testing.T) {
	e, synth, _, _ := newTestEngine()
	e.StartRecords([]chat.Record{u1, u2})
	first := synth.last()

	e.Rewind()

	if !first.cancelled {
		t.Error("expected the first task to be cancelled")
	}
	if len(synth.tasks) != 2 || synth.last().req.Text != u1.Text {
		t.Errorf("expected U1 to start over, tasks = %d", len(synth.tasks))
	}
	if p := e.Snapshot(); p.Remaining != 1 {
		t.Errorf("remaining = %d, want 1", p.Remaining)
	}
}

func TestEngineSkip(t *testing.T) {
	e, synth, _, _ := newTestEngine()
	e.StartRecords([]chat.Record{u1, u2, u3})
	first := synth.last()

	e.Skip()

	if !first.cancelled {
		t.Error("skip should cancel U1")
	}
	if got := currentText(t, e); got != u2.Text {
		t.Fatalf("current = %q, want U2", got)
	}

	synth.last().finish()
	synth.last().finish()
	for _, task := range synth.tasks[1:] {
		if task.req.Node == "m1" {
			t.Error("skipped record was spoken again")
		}
	}
	if e.Snapshot().State != StateIdle {
		t.Error("expected idle after the queue drained")
	}
}

func TestEnginePauseResume(t *testing.T) {
	e, synth, policy, _ := newTestEngine()
	e.StartRecords([]chat.Record{u1, u2})
	task := synth.last()
	assigns := policy.assigns

	e.Pause()
	p := e.Snapshot()
	if p.State != StatePaused || p.Current == nil || p.Current.Node != "m1" {
		t.Fatalf("paused panel = %+v", p)
	}
	if !task.paused {
		t.Error("task was not paused")
	}

	// Completion is impossible while paused, but Advance must also refuse.
	e.Advance()
	if got := currentText(t, e); got != u1.Text {
		t.Errorf("advance while paused moved to %q", got)
	}

	e.Play()
	if !task.resumed {
		t.Error("task was not resumed")
	}
	if len(synth.tasks) != 1 {
		t.Errorf("resume issued %d tasks", len(synth.tasks))
	}
	if policy.assigns != assigns {
		t.Error("resume reassigned a voice")
	}
	if e.Snapshot().State != StateSpeaking {
		t.Error("expected speaking after resume")
	}
}

func TestEnginePlay(t *testing.T) {
	e, synth, _, _ := newTestEngine()

	// Paused while idle: play clears the flag and starts the queue.
	e.Pause()
	e.Load([]chat.Record{u1, u2})
	e.Play()
	if got := currentText(t, e); got != u1.Text {
		t.Fatalf("current = %q, want U1", got)
	}

	// Play while speaking does not start a second utterance.
	e.Play()
	if len(synth.tasks) != 1 {
		t.Errorf("play while speaking issued %d tasks", len(synth.tasks))
	}

	e.TogglePause()
	if e.Snapshot().State != StatePaused {
		t.Error("toggle should pause a speaking engine")
	}
	e.TogglePause()
	if e.Snapshot().State != StateSpeaking {
		t.Error("toggle should resume a paused engine")
	}
}

func TestEngineStop(t *testing.T) {
	e, synth, policy, marks := newTestEngine()

	var last Panel
	e.OnChange(func(p Panel) { last = p })

	e.StartRecords([]chat.Record{u1, u2, u3})
	if !last.Visible || last.SessionID == "" {
		t.Fatalf("panel should be shown with a session id, got %+v", last)
	}
	task := synth.last()

	e.Stop()

	if !task.cancelled {
		t.Error("stop should cancel the task")
	}
	if last.Visible || last.Current != nil || last.Remaining != 0 || last.LastSpoken != nil {
		t.Errorf("panel after stop = %+v", last)
	}
	if marks.Count(dom.MarkActive)+marks.Count(dom.MarkOnDeck) != 0 {
		t.Error("marks survived stop")
	}
	if policy.resets != 2 {
		// once for the stop inside StartRecords, once for Stop
		t.Errorf("policy resets = %d, want 2", policy.resets)
	}

	task.finish()
	if e.Snapshot().Current != nil {
		t.Error("stale completion after stop restarted playback")
	}
}

func TestEngineSetRate(t *testing.T) {
	e, synth, _, _ := newTestEngine()

	if err := e.SetRate(3); !errors.Is(err, ErrRateOutOfRange) {
		t.Errorf("SetRate(3) error = %v", err)
	}

	e.StartRecords([]chat.Record{u1, u2})
	if err := e.SetRate(1.5); err != nil {
		t.Fatalf("SetRate(1.5): %v", err)
	}
	if r := synth.last().req.Rate; r != 1.0 {
		t.Errorf("in-flight rate changed to %v", r)
	}

	synth.last().finish()
	if r := synth.last().req.Rate; r != 1.5 {
		t.Errorf("next utterance rate = %v, want 1.5", r)
	}

	e.Faster()
	if r := e.Snapshot().Rate; r != 1.75 {
		t.Errorf("rate after Faster = %v", r)
	}
}

func TestEngineProgress(t *testing.T) {
	e, synth, _, _ := newTestEngine()
	e.StartRecords([]chat.Record{u1, u2, u3})

	p := e.Snapshot()
	if p.Done != 1 || p.Total != 3 || p.Progress() != "1/3" {
		t.Errorf("progress = %d/%d", p.Done, p.Total)
	}
	if p.Fraction < 0.333 || p.Fraction > 0.334 {
		t.Errorf("fraction = %v", p.Fraction)
	}

	synth.last().finish()
	synth.last().finish()
	synth.last().finish()
	if p := e.Snapshot(); p.Done != 0 || p.Total != 1 || p.Fraction != 0 {
		t.Errorf("drained progress = %d/%d (%v)", p.Done, p.Total, p.Fraction)
	}
}

func TestEngineAppend(t *testing.T) {
	e, synth, _, marks := newTestEngine()

	e.Append([]chat.Record{u1})
	if p := e.Snapshot(); p.Remaining != 0 || len(synth.tasks) != 0 {
		t.Fatal("append without a session should be ignored")
	}

	e.StartRecords([]chat.Record{u1})
	e.Append([]chat.Record{u2})
	if mark, _ := marks.Get("m2"); mark != dom.MarkOnDeck {
		t.Errorf("appended head mark = %q, want on-deck", mark)
	}

	synth.last().finish()
	synth.last().finish()
	if e.Snapshot().State != StateIdle {
		t.Fatal("expected idle after the queue drained")
	}

	// An idle session starts on new messages.
	e.Append([]chat.Record{u3})
	if got := currentText(t, e); got != u3.Text {
		t.Errorf("current = %q, want U3", got)
	}
}

func TestEngineStart(t *testing.T) {
	doc, err := dom.ParseString(`<ol>
<li id="chat-messages-1"><span id="message-username-1">bob</span><div id="message-content-1">hi</div></li>
<li id="chat-messages-2"><div id="message-content-2">there</div></li>
</ol>`)
	if err != nil {
		t.Fatal(err)
	}

	catalog := voice.NewCatalog(nil)
	catalog.Set([]voice.Voice{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	synth := &fakeSynth{}
	e := NewEngine(Config{}, synth, voice.NewHashPolicy(catalog), nil)

	e.Start("chat-messages-1")
	if len(synth.tasks) != 0 {
		t.Fatal("start without a builder should do nothing")
	}

	e.SetBuilder(chat.NewBuilder(doc, chat.Selectors{}, nil))
	e.Start("chat-messages-1")

	req := synth.last().req
	if req.Text != "bob says: hi" {
		t.Errorf("text = %q", req.Text)
	}
	if !req.HasVoice || req.Voice.ID != "b" {
		t.Errorf("voice = %+v, %v", req.Voice, req.HasVoice)
	}
	if p := e.Snapshot(); p.Total != 2 || !p.Visible {
		t.Errorf("panel = %+v", p)
	}
}

func TestEngineRewindAfterSkip(t *testing.T) {
	e, synth, _, _ := newTestEngine()
	e.StartRecords([]chat.Record{u1, u2, u3})
	synth.last().finish()
	e.Skip()

	// Skipped records are not history: rewinding from U3 goes back to U1.
	e.Rewind()
	if got := currentText(t, e); got != u1.Text {
		t.Fatalf("current = %q, want U1", got)
	}
	synth.last().finish()
	if got := currentText(t, e); got != u3.Text {
		t.Errorf("after U1 = %q, want U3", got)
	}
}

func TestEngineNotifySeq(t *testing.T) {
	e, synth, _, _ := newTestEngine()
	e.StartRecords([]chat.Record{u1, u2})
	first := synth.last()

	var (
		mu     sync.Mutex
		panels []Panel
	)
	held := make(chan struct{})
	release := make(chan struct{})
	e.OnChange(func(p Panel) {
		if p.State == StateSpeaking && p.Current != nil && p.Current.Node == u2.Node {
			close(held)
			<-release
		}
		mu.Lock()
		panels = append(panels, p)
		mu.Unlock()
	})

	// The completion's notification is held back while a pause lands.
	done := make(chan struct{})
	go func() {
		first.finish()
		close(done)
	}()
	<-held
	e.Pause()
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(panels) != 2 {
		t.Fatalf("got %d panels, want 2", len(panels))
	}
	if panels[1].State != StateSpeaking {
		t.Fatalf("expected the speaking panel to arrive last, got %v", panels[1].State)
	}
	latest := panels[0]
	for _, p := range panels[1:] {
		if p.Seq > latest.Seq {
			latest = p
		}
	}
	if latest.State != StatePaused {
		t.Errorf("latest panel by Seq = %v, want paused", latest.State)
	}
	if latest.Seq != e.Snapshot().Seq {
		t.Errorf("latest Seq = %d, engine at %d", latest.Seq, e.Snapshot().Seq)
	}
}
