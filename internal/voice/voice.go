// Package voice holds the voices an engine offers and decides which one a
// speaker gets.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrNoVoices is returned when a catalog load yields an empty list.
var ErrNoVoices = errors.New("no voices available")

// Voice is one synthetic voice offered by an engine.
type Voice struct {
	ID       string // engine specific identifier
	Name     string // human readable name
	Language string // language code, e.g. "en-US"
	Gender   string
}

// String returns the most descriptive label available.
func (v Voice) String() string {
	if v.Name != "" {
		return v.Name
	}
	return v.ID
}

// Loader enumerates the voices of an engine.
type Loader func(ctx context.Context) ([]Voice, error)

// Catalog is the list of voices currently known. Enumeration may finish
// after the first lookup; until then the catalog is empty.
type Catalog struct {
	mu     sync.RWMutex
	voices []Voice
	load   Loader
}

// NewCatalog returns an empty catalog that fills itself from load.
func NewCatalog(load Loader) *Catalog {
	return &Catalog{load: load}
}

// Voices returns a copy of the known voices.
func (c *Catalog) Voices() []Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Voice(nil), c.voices...)
}

// Len returns the number of known voices.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.voices)
}

// Set replaces the known voices.
func (c *Catalog) Set(voices []Voice) {
	c.mu.Lock()
	c.voices = append([]Voice(nil), voices...)
	c.mu.Unlock()
}

// Find returns the voice with the given id or name.
func (c *Catalog) Find(key string) (Voice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, v := range c.voices {
		if v.ID == key || v.Name == key {
			return v, true
		}
	}
	return Voice{}, false
}

// Refresh runs the loader and replaces the list on success. A failed or
// empty load keeps the previous list.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.load == nil {
		return nil
	}
	voices, err := c.load(ctx)
	if err != nil {
		return fmt.Errorf("unable to load voices: %w", err)
	}
	if len(voices) == 0 {
		return ErrNoVoices
	}
	c.Set(voices)
	log.Debug("voices loaded", "count", len(voices))
	return nil
}

// RefreshAsync runs Refresh in the background. The returned channel
// receives its result and is then closed.
func (c *Catalog) RefreshAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := c.Refresh(ctx)
		if err != nil {
			log.Warn("voice refresh failed", "err", err)
		}
		done <- err
	}()
	return done
}
