package speech

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/dgnsrekt/chatreader/internal/audio"
	"github.com/dgnsrekt/chatreader/internal/speech/engines"
)

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "Hello there. How are you? Fine!", []string{"Hello there.", "How are you?", "Fine!"}},
		{"abbreviation", "Dr. Smith is in. Mr. Jones left.", []string{"Dr. Smith is in.", "Mr. Jones left."}},
		{"decimal", "Pi is 3.14. Nice.", []string{"Pi is 3.14.", "Nice."}},
		{"initials", "J. R. Tolkien wrote it.", []string{"J. R. Tolkien wrote it."}},
		{"quote", `He said "stop." Then left.`, []string{`He said "stop."`, "Then left."}},
		{"lowercase after period", "see fig. two for details", []string{"see fig. two for details"}},
		{"no punctuation", "just words", []string{"just words"}},
		{"empty", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sentences(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("sentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestChunks(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{"no limit", "One. Two.", 0, []string{"One. Two."}},
		{"fits", "One. Two.", 20, []string{"One. Two."}},
		{"packs sentences", "One. Two. Three.", 10, []string{"One. Two.", "Three."}},
		{"long sentence", "aaa bbb ccc ddd.", 8, []string{"aaa bbb", "ccc ddd."}},
		{"long word", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"multibyte", "ééééé", 4, []string{"éé", "éé", "é"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunks(tt.in, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("chunks(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
			for _, c := range got {
				if tt.limit > 0 && len(c) > tt.limit {
					t.Errorf("chunk %q exceeds %d bytes", c, tt.limit)
				}
			}
		})
	}
}

func TestSynthesizeSplitsLongText(t *testing.T) {
	eng := engines.NewMockEngine(engines.MockConfig{MaxText: 20})
	s := NewSpeaker(eng, audio.NewMockOutput(0), nil)
	defer s.Close()

	text := "First sentence here. Second one follows. Third."
	pcm, err := s.Synthesize(context.Background(), text, "", 1)
	if err != nil {
		t.Fatal(err)
	}

	reqs := eng.Requests()
	if len(reqs) != 3 {
		t.Fatalf("engine called %d times, want 3: %+v", len(reqs), reqs)
	}
	var joined []string
	for _, r := range reqs {
		if len(r.Text) > 20 {
			t.Errorf("request %q exceeds the engine limit", r.Text)
		}
		joined = append(joined, r.Text)
	}
	if strings.Join(joined, " ") != text {
		t.Errorf("parts = %q", joined)
	}

	var want int
	f := audio.DefaultFormat()
	for _, r := range reqs {
		want += len(f.Silence(eng.Duration(r.Text, 1)))
	}
	if len(pcm) != want {
		t.Errorf("len(pcm) = %d, want %d", len(pcm), want)
	}
}
