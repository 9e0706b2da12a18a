// Package utils provides small helpers shared by the CLI and the UI.
package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// TranscriptExtensions are the glob patterns of files we treat as chat
// transcripts.
var TranscriptExtensions = []string{"*.html", "*.htm", "*.xhtml"}

var whitespace = regexp.MustCompile(`\s+`)

// ExpandPath returns the path with the home directory and any environment
// variables expanded.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}

// IsTranscriptFile reports whether the file name looks like an HTML
// transcript. An empty name (stdin) counts as a transcript.
func IsTranscriptFile(name string) bool {
	if name == "" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, pattern := range TranscriptExtensions {
		if ext == strings.TrimPrefix(pattern, "*") {
			return true
		}
	}
	return false
}

// CollapseSpace replaces every run of whitespace with a single space and
// trims the result.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
