package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
)

const (
	rawExt  = ".pcm"
	zstdExt = ".pcm.zst"
)

// DiskCache is the L2 cache. Entries are files named after their key, so
// the index is rebuilt from a directory scan on startup.
type DiskCache struct {
	dir      string
	capacity int64
	ttl      time.Duration

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu    sync.Mutex
	index map[string]*diskEntry
	size  int64
	stats Stats
}

type diskEntry struct {
	path       string
	size       int64 // bytes on disk
	lastAccess time.Time
}

// NewDiskCache opens or creates a disk cache in dir. A compression level
// of 0 stores PCM uncompressed.
func NewDiskCache(dir string, capacity int64, compressionLevel int, ttl time.Duration) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[string]*diskEntry),
	}
	dc.stats.Capacity = capacity

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Entries written with compression stay readable when it is turned off.
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	dc.decoder = decoder

	if err := dc.scan(); err != nil {
		return nil, err
	}
	if ttl > 0 {
		dc.Prune(time.Now().Add(-ttl))
	}

	log.Debug("disk cache opened", "dir", dir, "entries", len(dc.index),
		"size", humanize.Bytes(uint64(dc.size)), "capacity", humanize.Bytes(uint64(capacity)))
	return dc, nil
}

// scan rebuilds the index from the cache directory.
func (dc *DiskCache) scan() error {
	entries, err := os.ReadDir(dc.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := keyFromName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dc.index[key] = &diskEntry{
			path:       filepath.Join(dc.dir, e.Name()),
			size:       info.Size(),
			lastAccess: info.ModTime(),
		}
		dc.size += info.Size()
	}
	return nil
}

func keyFromName(name string) (string, bool) {
	switch {
	case strings.HasSuffix(name, zstdExt):
		return strings.TrimSuffix(name, zstdExt), true
	case strings.HasSuffix(name, rawExt):
		return strings.TrimSuffix(name, rawExt), true
	}
	return "", false
}

// Get retrieves a value from the disk cache.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := dc.read(entry)
	if err != nil {
		log.Debug("dropping unreadable cache entry", "key", key, "err", err)
		dc.removeLocked(key)
		dc.stats.Misses++
		return nil, false
	}

	entry.lastAccess = time.Now()
	_ = os.Chtimes(entry.path, entry.lastAccess, entry.lastAccess)
	dc.stats.Hits++
	return data, true
}

func (dc *DiskCache) read(entry *diskEntry) ([]byte, error) {
	data, err := os.ReadFile(entry.path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(entry.path, zstdExt) {
		return data, nil
	}
	out, err := dc.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	return out, nil
}

// Put stores a value, evicting least recently used files until it fits.
func (dc *DiskCache) Put(key string, value []byte) error {
	data, ext := value, rawExt
	if dc.encoder != nil {
		if compressed := dc.encoder.EncodeAll(value, nil); len(compressed) < len(value) {
			data, ext = compressed, zstdExt
		}
	}
	size := int64(len(data))
	if size > dc.capacity {
		return ErrItemTooLarge
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.removeLocked(key)
	for dc.size+size > dc.capacity && len(dc.index) > 0 {
		dc.evictOldestLocked()
	}

	path := filepath.Join(dc.dir, key+ext)
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	dc.index[key] = &diskEntry{path: path, size: size, lastAccess: time.Now()}
	dc.size += size
	return nil
}

// writeFile writes through a temporary file and renames it into place.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Delete removes an entry.
func (dc *DiskCache) Delete(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.removeLocked(key)
}

// Clear removes every entry.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key := range dc.index {
		dc.removeLocked(key)
	}
	return nil
}

// Prune removes entries last used before cutoff and returns how many were
// removed.
func (dc *DiskCache) Prune(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	n := 0
	for key, e := range dc.index {
		if e.lastAccess.Before(cutoff) {
			dc.removeLocked(key)
			n++
		}
	}
	if n > 0 {
		log.Debug("pruned disk cache", "removed", n)
	}
	return n
}

// Stats returns cache statistics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	s := dc.stats
	s.Size = dc.size
	s.Items = len(dc.index)
	return s
}

// Close releases the zstd coders.
func (dc *DiskCache) Close() error {
	if dc.encoder != nil {
		if err := dc.encoder.Close(); err != nil {
			return err
		}
	}
	dc.decoder.Close()
	return nil
}

func (dc *DiskCache) removeLocked(key string) {
	e, ok := dc.index[key]
	if !ok {
		return
	}
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		log.Debug("unable to remove cache file", "path", e.path, "err", err)
	}
	dc.size -= e.size
	delete(dc.index, key)
}

func (dc *DiskCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, e := range dc.index {
		if oldestKey == "" || e.lastAccess.Before(oldest) {
			oldestKey, oldest = key, e.lastAccess
		}
	}
	if oldestKey != "" {
		dc.removeLocked(oldestKey)
		dc.stats.Evictions++
	}
}
