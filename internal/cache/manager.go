package cache

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Manager coordinates the memory and disk tiers. Disk hits are promoted to
// memory.
type Manager struct {
	l1 *MemoryCache
	l2 *DiskCache // nil when disk caching is disabled

	l1Hits atomic.Int64
	l2Hits atomic.Int64
	misses atomic.Int64
}

// NewManager builds the cache tiers described by cfg.
func NewManager(cfg Config) (*Manager, error) {
	l1, err := NewMemoryCache(cfg.MemoryItems, cfg.MemoryCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	m := &Manager{l1: l1}

	if cfg.Dir != "" {
		m.l2, err = NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
	}
	return m, nil
}

// Get looks key up in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if v, ok := m.l1.Get(key); ok {
		m.l1Hits.Add(1)
		return v, true
	}
	if m.l2 != nil {
		if v, ok := m.l2.Get(key); ok {
			m.l2Hits.Add(1)
			if err := m.l1.Put(key, v); err != nil && !errors.Is(err, ErrItemTooLarge) {
				log.Debug("promotion failed", "key", key, "err", err)
			}
			return v, true
		}
	}
	m.misses.Add(1)
	return nil, false
}

// Put stores value in every tier that can hold it.
func (m *Manager) Put(key string, value []byte) error {
	var errs []error
	if err := m.l1.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		errs = append(errs, fmt.Errorf("L1 put: %w", err))
	}
	if m.l2 != nil {
		if err := m.l2.Put(key, value); err != nil {
			errs = append(errs, fmt.Errorf("L2 put: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	if err := m.l1.Clear(); err != nil {
		return err
	}
	if m.l2 != nil {
		return m.l2.Clear()
	}
	return nil
}

// Stats returns the statistics of a tier. ok is false for a disabled tier.
func (m *Manager) Stats(level Level) (Stats, bool) {
	switch level {
	case LevelMemory:
		return m.l1.Stats(), true
	case LevelDisk:
		if m.l2 != nil {
			return m.l2.Stats(), true
		}
	}
	return Stats{}, false
}

// Summary is a one-line description of cache usage for logs.
func (m *Manager) Summary() string {
	s := fmt.Sprintf("memory %s in %d items",
		humanize.Bytes(uint64(m.l1.Stats().Size)), m.l1.Stats().Items)
	if m.l2 != nil {
		d := m.l2.Stats()
		s += fmt.Sprintf(", disk %s in %d items", humanize.Bytes(uint64(d.Size)), d.Items)
	}
	return fmt.Sprintf("%s (hits %d/%d, misses %d)", s, m.l1Hits.Load(), m.l2Hits.Load(), m.misses.Load())
}

// Close flushes and closes the disk tier.
func (m *Manager) Close() error {
	log.Debug("closing audio cache", "usage", m.Summary())
	if m.l2 != nil {
		if err := m.l2.Close(); err != nil {
			return fmt.Errorf("failed to close disk cache: %w", err)
		}
	}
	return nil
}
