package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/chatreader/internal/audio"
	"github.com/dgnsrekt/chatreader/internal/cache"
	"github.com/dgnsrekt/chatreader/internal/chat"
	"github.com/dgnsrekt/chatreader/internal/speech/engines"
	"github.com/dgnsrekt/chatreader/utils"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

const megabyte = 1024 * 1024

// Config is everything read from the config file, the environment and the
// command line.
type Config struct {
	Engine        string         `mapstructure:"engine"`
	Fallback      string         `mapstructure:"fallback"`
	Rate          float64        `mapstructure:"rate"`
	Voice         string         `mapstructure:"voice"`
	Follow        bool           `mapstructure:"follow"`
	StripMarkdown bool           `mapstructure:"strip_markdown"`
	Mouse         bool           `mapstructure:"mouse"`
	Selectors     chat.Selectors `mapstructure:"selectors"`

	Cache struct {
		Dir         string        `mapstructure:"dir"`
		MaxSize     int           `mapstructure:"max_size"` // MB
		MemoryItems int           `mapstructure:"memory_items"`
		Compression int           `mapstructure:"compression"`
		TTL         time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`

	Piper struct {
		Binary   string        `mapstructure:"binary"`
		Model    string        `mapstructure:"model"`
		DataDir  string        `mapstructure:"data_dir"`
		Speakers int           `mapstructure:"speakers"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"piper"`

	GTTS struct {
		Binary            string `mapstructure:"binary"`
		FFmpeg            string `mapstructure:"ffmpeg"`
		Language          string `mapstructure:"language"`
		RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	} `mapstructure:"gtts"`

	Audio struct {
		SampleRate int `mapstructure:"sample_rate"`
	} `mapstructure:"audio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine", engines.EnginePiper)
	v.SetDefault("fallback", "")
	v.SetDefault("rate", 1.0)
	v.SetDefault("voice", "")
	v.SetDefault("follow", false)
	v.SetDefault("strip_markdown", false)
	v.SetDefault("mouse", false)

	sel := chat.DefaultSelectors()
	v.SetDefault("selectors.list_item", sel.ListItemIDPrefix)
	v.SetDefault("selectors.username", sel.UsernameIDPrefix)
	v.SetDefault("selectors.content", sel.ContentIDPrefix)
	v.SetDefault("selectors.reply", sel.ReplyClassPrefix)
	v.SetDefault("selectors.avatar_attr", sel.AvatarAttr)
	v.SetDefault("selectors.avatar_value", sel.AvatarValue)

	cc := cache.DefaultConfig()
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.max_size", int(cc.DiskCapacity/megabyte))
	v.SetDefault("cache.memory_items", cc.MemoryItems)
	v.SetDefault("cache.compression", cc.CompressionLevel)
	v.SetDefault("cache.ttl", cc.TTL)

	v.SetDefault("piper.binary", "piper")
	v.SetDefault("piper.model", "")
	v.SetDefault("piper.data_dir", "")
	v.SetDefault("piper.speakers", 0)
	v.SetDefault("piper.timeout", 30*time.Second)

	v.SetDefault("gtts.binary", "gtts-cli")
	v.SetDefault("gtts.ffmpeg", "ffmpeg")
	v.SetDefault("gtts.language", "en")
	v.SetDefault("gtts.requests_per_minute", 50)

	v.SetDefault("audio.sample_rate", audio.DefaultFormat().SampleRate)
}

// loadConfig decodes and validates the merged configuration.
func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode configuration: %w", err)
	}
	cfg.Engine = strings.ToLower(strings.TrimSpace(cfg.Engine))
	cfg.Fallback = strings.ToLower(strings.TrimSpace(cfg.Fallback))
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every value is in range.
func (c Config) Validate() error {
	switch c.Engine {
	case engines.EnginePiper, engines.EngineGTTS, engines.EngineMock:
	default:
		return fmt.Errorf("%w: %q (use piper, gtts or mock)", engines.ErrUnknownEngine, c.Engine)
	}
	switch c.Fallback {
	case "", engines.EnginePiper, engines.EngineGTTS, engines.EngineMock:
	default:
		return fmt.Errorf("%w: fallback %q (use piper, gtts or mock)", engines.ErrUnknownEngine, c.Fallback)
	}
	if c.Rate < 0.5 || c.Rate > 2.0 {
		return fmt.Errorf("rate must be between 0.5 and 2.0, got %.2f", c.Rate)
	}
	if c.Cache.MaxSize < 1 || c.Cache.MaxSize > 10000 {
		return fmt.Errorf("cache max_size must be between 1 and 10000 MB, got %d", c.Cache.MaxSize)
	}
	if c.Cache.MemoryItems < 0 {
		return fmt.Errorf("cache memory_items must not be negative, got %d", c.Cache.MemoryItems)
	}
	if c.Cache.Compression < 0 || c.Cache.Compression > 22 {
		return fmt.Errorf("cache compression must be between 0 and 22, got %d", c.Cache.Compression)
	}
	if c.Piper.Speakers < 0 {
		return fmt.Errorf("piper speakers must not be negative, got %d", c.Piper.Speakers)
	}
	if l := len(c.GTTS.Language); l < 2 || l > 5 {
		return fmt.Errorf("gtts language code must be 2-5 characters, got %q", c.GTTS.Language)
	}
	if c.GTTS.RequestsPerMinute < 1 {
		return fmt.Errorf("gtts requests_per_minute must be positive, got %d", c.GTTS.RequestsPerMinute)
	}
	return nil
}

// engineConfig maps the file layout onto the engines package.
func (c Config) engineConfig() engines.Config {
	return engines.Config{
		Engine:   c.Engine,
		Fallback: c.Fallback,
		Piper: engines.PiperConfig{
			Binary:   c.Piper.Binary,
			Model:    utils.ExpandPath(c.Piper.Model),
			DataDir:  utils.ExpandPath(c.Piper.DataDir),
			Speakers: c.Piper.Speakers,
			Timeout:  c.Piper.Timeout,
		},
		GTTS: engines.GTTSConfig{
			Binary:            c.GTTS.Binary,
			FFmpeg:            c.GTTS.FFmpeg,
			Language:          c.GTTS.Language,
			SampleRate:        c.Audio.SampleRate,
			RequestsPerMinute: c.GTTS.RequestsPerMinute,
		},
	}
}

// cacheConfig maps the file layout onto the cache package. An empty dir
// puts the disk tier in the user cache directory.
func (c Config) cacheConfig() (cache.Config, error) {
	cc := cache.DefaultConfig()
	cc.DiskCapacity = int64(c.Cache.MaxSize) * megabyte
	if c.Cache.MemoryItems > 0 {
		cc.MemoryItems = c.Cache.MemoryItems
	}
	cc.CompressionLevel = c.Cache.Compression
	cc.TTL = c.Cache.TTL

	dir := utils.ExpandPath(c.Cache.Dir)
	if dir == "" {
		base, err := gap.NewScope(gap.User, appName).CacheDir()
		if err != nil {
			return cc, fmt.Errorf("unable to find cache directory: %w", err)
		}
		dir = filepath.Join(base, "audio")
	}
	cc.Dir = dir
	return cc, nil
}

// transform is the text pipeline applied to every message.
func (c Config) transform() chat.Transform {
	if c.StripMarkdown {
		return chat.Chain(chat.StripMarkdown, chat.ShortenURLs)
	}
	return chat.ShortenURLs
}
