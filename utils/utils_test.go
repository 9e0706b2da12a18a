package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsTranscriptFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"", true},
		{"chat.html", true},
		{"CHAT.HTM", true},
		{"export.xhtml", true},
		{"notes.md", false},
		{"archive", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTranscriptFile(tt.name); got != tt.want {
				t.Errorf("IsTranscriptFile(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got := ExpandPath("~/transcripts")
	want := filepath.Join(home, "transcripts")
	if got != want {
		t.Errorf("ExpandPath = %q, want %q", got, want)
	}

	t.Setenv("CHATREADER_TEST_DIR", "/tmp/x")
	if got := ExpandPath("$CHATREADER_TEST_DIR/a"); got != "/tmp/x/a" {
		t.Errorf("ExpandPath env = %q", got)
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace("  hello \n\t world  "); got != "hello world" {
		t.Errorf("CollapseSpace = %q", got)
	}
}
