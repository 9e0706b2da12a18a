// Package source loads chat transcripts from files, directories, URLs and
// stdin, and watches local transcripts for new messages.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"

	"github.com/dgnsrekt/chatreader/internal/dom"
	"github.com/dgnsrekt/chatreader/utils"
)

// maxBody caps how much of a transcript is read.
const maxBody = 64 << 20

var (
	// ErrNoTranscript is returned when a directory holds no transcript.
	ErrNoTranscript = errors.New("missing transcript source")
	// ErrUnsupportedScheme is returned for URLs other than http(s).
	ErrUnsupportedScheme = errors.New("unsupported protocol")
	// ErrNotTranscript is returned for files that are not HTML.
	ErrNotTranscript = errors.New("not an html transcript")
)

// Transcript is a loaded chat page.
type Transcript struct {
	Name string // what to call it in the UI
	Path string // absolute local path, empty for URLs and stdin
	Base string // base URL for resolving relative links
	Body []byte
}

// Document parses the transcript.
func (t *Transcript) Document() (*dom.Document, error) {
	return dom.Parse(bytes.NewReader(t.Body), t.Base)
}

// Reload reads a local transcript again.
func (t *Transcript) Reload() error {
	if t.Path == "" {
		return errors.New("only local transcripts can be reloaded")
	}
	body, err := readFile(t.Path)
	if err != nil {
		return err
	}
	t.Body = body
	return nil
}

// Load reads the transcript named by arg: "-" for stdin, an http(s) URL,
// a directory (its most recently modified transcript is used) or a file.
func Load(ctx context.Context, arg string) (*Transcript, error) {
	if arg == "-" {
		body, err := io.ReadAll(io.LimitReader(os.Stdin, maxBody))
		if err != nil {
			return nil, fmt.Errorf("unable to read stdin: %w", err)
		}
		return &Transcript{Name: "stdin", Body: body}, nil
	}

	if strings.Contains(arg, "://") {
		u, err := url.ParseRequestURI(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid url: %w", err)
		}
		return fetch(ctx, u)
	}

	if arg == "" {
		arg = "."
	}
	arg = utils.ExpandPath(arg)
	st, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	if st.IsDir() {
		arg, err = Discover(arg)
		if err != nil {
			return nil, err
		}
	}
	if !utils.IsTranscriptFile(arg) {
		return nil, fmt.Errorf("%w: %s", ErrNotTranscript, arg)
	}
	return loadFile(arg)
}

func loadFile(path string) (*Transcript, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}
	body, err := readFile(abs)
	if err != nil {
		return nil, err
	}
	return &Transcript{
		Name: filepath.Base(abs),
		Path: abs,
		Base: (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		Body: body,
	}, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	defer f.Close() //nolint:errcheck
	body, err := io.ReadAll(io.LimitReader(f, maxBody))
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %w", err)
	}
	return body, nil
}

func fetch(ctx context.Context, u *url.URL) (*Transcript, error) {
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to get url: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to get url: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("unable to read response: %w", err)
	}
	log.Debug("fetched transcript", "url", u.String(), "bytes", len(body))

	// Links resolve against the final URL after redirects.
	base := u.String()
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL.String()
	}
	return &Transcript{Name: u.String(), Base: base, Body: body}, nil
}

// Discover returns the most recently modified transcript below dir,
// honouring .gitignore files.
func Discover(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("unable to get absolute path: %w", err)
	}
	ch, err := gitcha.FindFilesExcept(abs, utils.TranscriptExtensions, nil)
	if err != nil {
		return "", fmt.Errorf("error finding transcripts: %w", err)
	}

	var newest gitcha.SearchResult
	for res := range ch {
		if newest.Info == nil || res.Info.ModTime().After(newest.Info.ModTime()) {
			newest = res
		}
	}
	if newest.Info == nil {
		return "", fmt.Errorf("%w in %s", ErrNoTranscript, dir)
	}
	log.Debug("discovered transcript", "path", newest.Path)
	return newest.Path, nil
}
