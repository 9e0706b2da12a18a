package engines

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/chatreader/internal/audio"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

const (
	gttsTextLimit  = 5000
	gttsTimeout    = 30 * time.Second // network bound
	ffmpegTimeout  = 15 * time.Second
	defaultGTTSRPM = 50
)

// GTTSConfig configures the Google Translate engine.
type GTTSConfig struct {
	Binary            string // defaults to "gtts-cli"
	FFmpeg            string // defaults to "ffmpeg"
	Language          string // defaults to "en"
	SampleRate        int    // defaults to 22050
	RequestsPerMinute int    // defaults to 50
}

// An accent is a Google Translate host that speaks a language with a
// regional accent.
type accent struct {
	tld    string
	name   string
	locale string
}

var englishAccents = []accent{
	{"com", "English (United States)", "en-US"},
	{"co.uk", "English (United Kingdom)", "en-GB"},
	{"com.au", "English (Australia)", "en-AU"},
	{"ca", "English (Canada)", "en-CA"},
	{"co.in", "English (India)", "en-IN"},
	{"ie", "English (Ireland)", "en-IE"},
	{"co.za", "English (South Africa)", "en-ZA"},
	{"com.ng", "English (Nigeria)", "en-NG"},
}

// GTTSEngine shells out to gtts-cli for MP3 and converts it to PCM with
// ffmpeg. Voices are the regional accents Google offers for the language.
type GTTSEngine struct {
	binary   string
	ffmpeg   string
	language string
	format   audio.Format
	limiter  *rate.Limiter
}

// NewGTTSEngine checks that gtts-cli and ffmpeg are installed.
func NewGTTSEngine(cfg GTTSConfig) (*GTTSEngine, error) {
	if cfg.Binary == "" {
		cfg.Binary = "gtts-cli"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.DefaultFormat().SampleRate
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultGTTSRPM
	}

	binary, err := lookPath(cfg.Binary)
	if err != nil {
		return nil, err
	}
	ffmpeg, err := lookPath(cfg.FFmpeg)
	if err != nil {
		return nil, err
	}

	return &GTTSEngine{
		binary:   binary,
		ffmpeg:   ffmpeg,
		language: cfg.Language,
		format:   audio.Format{SampleRate: cfg.SampleRate, Channels: 1, BitDepth: 16},
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// Name implements Engine.
func (e *GTTSEngine) Name() string { return EngineGTTS }

// Format implements Engine.
func (e *GTTSEngine) Format() audio.Format { return e.format }

// TextLimit implements Engine.
func (e *GTTSEngine) TextLimit() int { return gttsTextLimit }

// Voices implements Engine. Voice IDs are Google top level domains.
func (e *GTTSEngine) Voices(_ context.Context) ([]voice.Voice, error) {
	return gttsVoices(e.language), nil
}

func gttsVoices(language string) []voice.Voice {
	if language != "en" {
		return []voice.Voice{{ID: "com", Name: language, Language: language}}
	}
	voices := make([]voice.Voice, 0, len(englishAccents))
	for _, a := range englishAccents {
		voices = append(voices, voice.Voice{ID: a.tld, Name: a.name, Language: a.locale})
	}
	return voices
}

// Synthesize implements Engine.
func (e *GTTSEngine) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := validateRequest(req, gttsTextLimit); err != nil {
		return nil, err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	mp3, err := run(ctx, gttsTimeout, strings.NewReader(req.Text), e.binary, gttsArgs(e.language, req.Voice)...)
	if err != nil {
		return nil, fmt.Errorf("MP3 generation failed: %w", err)
	}
	if len(mp3) == 0 {
		return nil, ErrNoAudio
	}

	pcm, err := run(ctx, ffmpegTimeout, bytes.NewReader(mp3), e.ffmpeg, ffmpegArgs(e.format.SampleRate, req.Rate)...)
	if err != nil {
		return nil, fmt.Errorf("MP3 to PCM conversion failed: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}
	log.Debug("gtts synthesized", "tld", req.Voice, "chars", len(req.Text), "bytes", len(pcm))
	return pcm, nil
}

// gttsArgs reads the text from stdin so that it is never parsed as a flag.
func gttsArgs(language, tld string) []string {
	args := []string{"-l", language}
	if tld != "" {
		args = append(args, "--tld", tld)
	}
	return append(args, "-o", "-", "-")
}

func ffmpegArgs(sampleRate int, speed float64) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
	}
	// atempo accepts 0.5 to 2.0, the same range as the reading rate.
	speed = normalizeRate(speed)
	if speed != 1.0 {
		speed = min(max(speed, 0.5), 2.0)
		args = append(args, "-filter:a", "atempo="+strconv.FormatFloat(speed, 'f', 2, 64))
	}
	return append(args, "pipe:1")
}

// Close implements Engine.
func (e *GTTSEngine) Close() error { return nil }
