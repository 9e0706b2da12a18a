package voice

import (
	"sync"
	"unicode/utf16"
)

// Policy picks the voice a speaker is read with. ok is false when the
// caller should fall back to the engine's default voice.
type Policy interface {
	Assign(username string) (v Voice, ok bool)
	Reset()
}

// HashPolicy spreads speakers over the catalog with a string hash and keeps
// each speaker's voice for the rest of the session.
type HashPolicy struct {
	catalog *Catalog

	mu    sync.Mutex
	cache map[string]Voice
}

// NewHashPolicy returns a hash policy over catalog.
func NewHashPolicy(catalog *Catalog) *HashPolicy {
	return &HashPolicy{
		catalog: catalog,
		cache:   make(map[string]Voice),
	}
}

// Assign returns the voice of username. Assignments made while the catalog
// was smaller stay in place after it grows.
func (p *HashPolicy) Assign(username string) (Voice, bool) {
	if username == "" {
		return Voice{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.cache[username]; ok {
		return v, true
	}
	voices := p.catalog.Voices()
	if len(voices) == 0 {
		return Voice{}, false
	}
	v := voices[Index(username, len(voices))]
	p.cache[username] = v
	return v, true
}

// Reset forgets every assignment.
func (p *HashPolicy) Reset() {
	p.mu.Lock()
	p.cache = make(map[string]Voice)
	p.mu.Unlock()
}

// Hash is the 31-multiplier rolling hash over the UTF-16 code units of s,
// the shift wrapped to int32 like JavaScript's << operator, so values agree
// with `hash = c + ((hash << 5) - hash)` evaluated in a browser.
func Hash(s string) int64 {
	var h int64
	for _, c := range utf16.Encode([]rune(s)) {
		h = int64(c) + (int64(int32(h)<<5) - h)
	}
	return h
}

// Index maps s onto [0, n).
func Index(s string, n int) int {
	if n <= 0 {
		return 0
	}
	h := Hash(s)
	if h < 0 {
		h = -h
	}
	return int(h % int64(n))
}

// FixedPolicy reads every speaker with the same voice.
type FixedPolicy struct {
	Voice Voice
}

// Assign returns the fixed voice, if one is configured.
func (p FixedPolicy) Assign(string) (Voice, bool) {
	return p.Voice, p.Voice.ID != ""
}

// Reset is a no-op.
func (FixedPolicy) Reset() {}
