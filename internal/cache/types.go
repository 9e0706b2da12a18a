package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when a cached file cannot be decoded.
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Level is a cache tier.
type Level int

const (
	// LevelMemory is the in-memory LRU.
	LevelMemory Level = iota
	// LevelDisk is the persistent disk cache.
	LevelDisk
)

// String returns the string representation of the cache level.
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "L1-Memory"
	case LevelDisk:
		return "L2-Disk"
	default:
		return "Unknown"
	}
}

// Stats holds cache counters.
type Stats struct {
	Capacity  int64 // bytes
	Size      int64 // bytes
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Cache is one cache tier.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string)
	Clear() error
	Stats() Stats
}

// Config holds configuration for the two-level cache.
type Config struct {
	MemoryItems    int   // maximum entries in L1
	MemoryCapacity int64 // maximum bytes in L1

	Dir              string        // L2 directory; empty disables L2
	DiskCapacity     int64         // maximum bytes on disk
	CompressionLevel int           // zstd level, 0 stores raw PCM
	TTL              time.Duration // age after which L2 entries are pruned, 0 keeps them
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryItems:      256,
		MemoryCapacity:   64 * 1024 * 1024,
		DiskCapacity:     512 * 1024 * 1024,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
	}
}

// Key derives the cache key of an utterance.
func Key(engine, voice string, rate float64, text string) string {
	h := sha256.New()
	h.Write([]byte(engine))
	h.Write([]byte{'|'})
	h.Write([]byte(voice))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatFloat(rate, 'f', 2, 64)))
	h.Write([]byte{'|'})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
