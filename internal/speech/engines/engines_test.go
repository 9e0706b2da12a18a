package engines

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	if _, err := New(Config{Engine: "espeak"}); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("New(espeak) = %v, want ErrUnknownEngine", err)
	}
	e, err := New(Config{Engine: "MOCK"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Name() != EngineMock {
		t.Errorf("Name() = %q", e.Name())
	}
}

func TestMockEngine(t *testing.T) {
	e := NewMockEngine(MockConfig{})
	ctx := context.Background()

	voices, err := e.Voices(ctx)
	if err != nil || len(voices) != 3 {
		t.Fatalf("Voices() = %v, %v", voices, err)
	}

	if _, err := e.Synthesize(ctx, Request{Text: "   "}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("blank text error = %v", err)
	}

	text := strings.Repeat("hello ", 25) // 30 words, 12s at 150 wpm
	normal, err := e.Synthesize(ctx, Request{Text: text, Rate: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Format().Duration(len(normal)); got != 12*time.Second {
		t.Errorf("duration = %v, want 12s", got)
	}
	fast, _ := e.Synthesize(ctx, Request{Text: text, Rate: 2})
	if len(fast)*2 != len(normal) {
		t.Errorf("double rate should halve the audio: %d vs %d", len(fast), len(normal))
	}

	boom := errors.New("boom")
	e.SetFailure(boom)
	if _, err := e.Synthesize(ctx, Request{Text: "hi"}); !errors.Is(err, boom) {
		t.Errorf("failure not returned: %v", err)
	}
	e.SetFailure(nil)

	if e.CallCount() != 3 || len(e.Requests()) != 3 {
		t.Errorf("CallCount() = %d", e.CallCount())
	}
}

func TestMockEngineCancel(t *testing.T) {
	e := NewMockEngine(MockConfig{Delay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Synthesize(ctx, Request{Text: "hi"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Synthesize() = %v, want context.Canceled", err)
	}
}

func TestGTTSArgs(t *testing.T) {
	got := gttsArgs("en", "co.uk")
	want := []string{"-l", "en", "--tld", "co.uk", "-o", "-", "-"}
	if !slices.Equal(got, want) {
		t.Errorf("gttsArgs() = %v, want %v", got, want)
	}
	if slices.Contains(gttsArgs("en", ""), "--tld") {
		t.Error("default voice should not pass --tld")
	}
}

func TestFFmpegArgs(t *testing.T) {
	tests := []struct {
		speed  float64
		filter string
	}{
		{1.0, ""},
		{0, ""},
		{1.5, "atempo=1.50"},
		{3.0, "atempo=2.00"},
		{0.25, "atempo=0.50"},
	}
	for _, tt := range tests {
		args := ffmpegArgs(22050, tt.speed)
		i := slices.Index(args, "-filter:a")
		switch {
		case tt.filter == "" && i >= 0:
			t.Errorf("speed %v: unexpected filter %v", tt.speed, args)
		case tt.filter != "" && (i < 0 || args[i+1] != tt.filter):
			t.Errorf("speed %v: args %v, want %s", tt.speed, args, tt.filter)
		}
		if !slices.Contains(args, "22050") || args[len(args)-1] != "pipe:1" {
			t.Errorf("speed %v: args %v", tt.speed, args)
		}
	}
}

func TestGTTSVoices(t *testing.T) {
	en := gttsVoices("en")
	if len(en) != len(englishAccents) || en[1].ID != "co.uk" || en[1].Language != "en-GB" {
		t.Errorf("english voices = %v", en)
	}
	if fr := gttsVoices("fr"); len(fr) != 1 || fr[0].ID != "com" {
		t.Errorf("french voices = %v", fr)
	}
}

// fakePiper writes a script that records its arguments and stdin and
// prints four bytes of "audio".
func fakePiper(t *testing.T, dir string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	script := filepath.Join(dir, "piper")
	body := "#!/bin/sh\n" +
		"echo \"$@\" > " + filepath.Join(dir, "args") + "\n" +
		"cat > " + filepath.Join(dir, "stdin") + "\n" +
		"printf ABCD\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func writeModel(t *testing.T, dir, name, config string) {
	t.Helper()
	path := filepath.Join(dir, name+modelExt)
	if err := os.WriteFile(path, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	if config != "" {
		if err := os.WriteFile(path+".json", []byte(config), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPiperEngine(t *testing.T) {
	bin := t.TempDir()
	data := t.TempDir()
	script := fakePiper(t, bin)

	writeModel(t, data, "en_US-amy-medium",
		`{"audio":{"sample_rate":22050},"language":{"code":"en_US"},"num_speakers":1}`)
	writeModel(t, data, "en_US-libritts-high",
		`{"audio":{"sample_rate":22050},"num_speakers":3,"speaker_id_map":{"p3":2,"p1":0,"p2":1}}`)

	e, err := NewPiperEngine(PiperConfig{Binary: script, DataDir: data, Speakers: 2})
	if err != nil {
		t.Fatal(err)
	}
	if e.Format().SampleRate != 22050 {
		t.Errorf("Format() = %+v", e.Format())
	}

	voices, err := e.Voices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, v := range voices {
		ids = append(ids, v.ID)
	}
	want := []string{"en_US-amy-medium", "en_US-libritts-high:0", "en_US-libritts-high:1"}
	if !slices.Equal(ids, want) {
		t.Errorf("voice ids = %v, want %v", ids, want)
	}
	if voices[0].Language != "en-US" || voices[2].Name != "en_US-libritts-high p2" {
		t.Errorf("voices = %+v", voices)
	}

	pcm, err := e.Synthesize(context.Background(), Request{
		Text:  "hello\nworld",
		Voice: "en_US-libritts-high:1",
		Rate:  2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(pcm) != "ABCD" {
		t.Errorf("pcm = %q", pcm)
	}

	args, _ := os.ReadFile(filepath.Join(bin, "args"))
	for _, part := range []string{"--output-raw", "--length_scale 0.50", "--speaker 1", "en_US-libritts-high.onnx"} {
		if !strings.Contains(string(args), part) {
			t.Errorf("args %q missing %q", args, part)
		}
	}
	stdin, _ := os.ReadFile(filepath.Join(bin, "stdin"))
	if string(stdin) != "hello world\n" {
		t.Errorf("stdin = %q", stdin)
	}

	if _, err := e.Synthesize(context.Background(), Request{Text: "hi", Voice: "nope"}); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("unknown voice error = %v", err)
	}
	if _, err := e.Synthesize(context.Background(), Request{Text: strings.Repeat("x", piperTextLimit+1)}); !errors.Is(err, ErrTextTooLong) {
		t.Errorf("long text error = %v", err)
	}
}

func TestPiperEngineConfig(t *testing.T) {
	bin := t.TempDir()
	script := fakePiper(t, bin)

	if _, err := NewPiperEngine(PiperConfig{Binary: script, DataDir: t.TempDir()}); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("empty data dir error = %v", err)
	}
	if _, err := NewPiperEngine(PiperConfig{Binary: script, Model: "/non/existent/model.onnx"}); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("missing model error = %v", err)
	}
	if _, err := NewPiperEngine(PiperConfig{Binary: filepath.Join(bin, "missing")}); err == nil {
		t.Error("missing binary should fail")
	}

	// A model without a config is a single speaker at the default rate.
	data := t.TempDir()
	writeModel(t, data, "bare", "")
	e, err := NewPiperEngine(PiperConfig{Binary: script, Model: filepath.Join(data, "bare.onnx")})
	if err != nil {
		t.Fatal(err)
	}
	voices, _ := e.Voices(context.Background())
	if len(voices) != 1 || voices[0].ID != "bare" {
		t.Errorf("voices = %v", voices)
	}
	if args := piperArgs(e.models["bare"], -1, 0.5); slices.Contains(args, "--speaker") || !slices.Contains(args, "2.00") {
		t.Errorf("piperArgs() = %v", args)
	}
}

func TestNewWithFallback(t *testing.T) {
	// A missing piper binary hands over to the fallback.
	e, err := New(Config{Engine: EnginePiper, Fallback: EngineMock, Piper: PiperConfig{Binary: "piper-not-installed"}})
	if err != nil {
		t.Fatal(err)
	}
	if e.Name() != EngineMock {
		t.Errorf("Name() = %q, want the fallback", e.Name())
	}

	e, err = New(Config{Engine: EngineMock, Fallback: EngineMock})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*MockEngine); !ok {
		t.Errorf("same engine as fallback should not be wrapped: %T", e)
	}

	if _, err := New(Config{Engine: "espeak", Fallback: EngineMock}); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("unknown primary = %v", err)
	}
}

func TestFallbackEngine(t *testing.T) {
	ctx := context.Background()
	primary := NewMockEngine(MockConfig{})
	secondary := NewMockEngine(MockConfig{})
	f := NewFallbackEngine(primary, secondary, 2)

	if _, err := f.Synthesize(ctx, Request{Text: "one"}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	primary.SetFailure(boom)
	if _, err := f.Synthesize(ctx, Request{Text: "two"}); !errors.Is(err, boom) {
		t.Fatalf("first failure should surface: %v", err)
	}
	if f.UsingFallback() {
		t.Fatal("switched after one failure")
	}

	// A request that could never succeed does not count.
	if _, err := f.Synthesize(ctx, Request{Text: " "}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("empty text = %v", err)
	}
	if f.UsingFallback() {
		t.Fatal("empty text counted as an engine failure")
	}

	pcm, err := f.Synthesize(ctx, Request{Text: "three", Voice: "mock-voice-2"})
	if err != nil {
		t.Fatalf("second failure should fall back: %v", err)
	}
	if len(pcm) == 0 || !f.UsingFallback() {
		t.Fatalf("fallback not used: %d bytes, using %v", len(pcm), f.UsingFallback())
	}
	if got := secondary.Requests()[0].Voice; got != "mock-voice-2" {
		t.Errorf("known voice dropped: %q", got)
	}

	// Once switched, the primary is no longer tried.
	primary.SetFailure(nil)
	calls := primary.CallCount()
	if _, err := f.Synthesize(ctx, Request{Text: "four", Voice: "piper:amy"}); err != nil {
		t.Fatal(err)
	}
	if primary.CallCount() != calls {
		t.Error("primary used after switching")
	}
	if got := secondary.Requests()[1].Voice; got != "" {
		t.Errorf("unknown voice passed to fallback: %q", got)
	}
	if f.Name() != EngineMock || f.Format() != primary.Format() {
		t.Errorf("Name/Format = %q/%v", f.Name(), f.Format())
	}
}
