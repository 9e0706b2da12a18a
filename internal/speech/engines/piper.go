package engines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/chatreader/internal/audio"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

const (
	piperTextLimit = 5000
	piperTimeout   = 30 * time.Second
	modelExt       = ".onnx"
)

// ErrModelNotFound is returned when no piper model is configured or found.
var ErrModelNotFound = errors.New("piper model not found")

// PiperConfig configures the piper engine.
type PiperConfig struct {
	Binary     string // defaults to "piper"
	Model      string // default model path
	DataDir    string // directory scanned for additional .onnx models
	Speakers   int    // maximum speakers exposed per model, 0 for all
	SampleRate int    // output rate; defaults to the default model's rate
	Timeout    time.Duration
}

// PiperEngine runs the piper binary once per utterance.
type PiperEngine struct {
	binary   string
	timeout  time.Duration
	speakers int
	format   audio.Format

	mu       sync.RWMutex
	models   map[string]piperModel // keyed by model name
	defModel string
}

type piperModel struct {
	name   string
	path   string
	config piperModelConfig
}

// piperModelConfig is the part of a model's .onnx.json file we use.
type piperModelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
	NumSpeakers  int            `json:"num_speakers"`
	SpeakerIDMap map[string]int `json:"speaker_id_map"`
}

// NewPiperEngine validates the configuration and indexes the available
// models.
func NewPiperEngine(cfg PiperConfig) (*PiperEngine, error) {
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	binary, err := lookPath(cfg.Binary)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = piperTimeout
	}

	e := &PiperEngine{
		binary:   binary,
		timeout:  cfg.Timeout,
		speakers: cfg.Speakers,
		models:   make(map[string]piperModel),
	}

	if cfg.Model != "" {
		m, err := loadPiperModel(cfg.Model)
		if err != nil {
			return nil, err
		}
		e.models[m.name] = m
		e.defModel = m.name
	}
	if cfg.DataDir != "" {
		if err := e.scan(cfg.DataDir); err != nil {
			return nil, err
		}
	}
	if e.defModel == "" {
		// Fall back to the first model found, in name order.
		names := e.modelNames()
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: set piper.model or put models in %q", ErrModelNotFound, cfg.DataDir)
		}
		e.defModel = names[0]
	}

	rate := cfg.SampleRate
	if rate == 0 {
		rate = e.models[e.defModel].config.Audio.SampleRate
	}
	if rate == 0 {
		rate = audio.DefaultFormat().SampleRate
	}
	e.format = audio.Format{SampleRate: rate, Channels: 1, BitDepth: 16}

	log.Debug("piper engine ready", "binary", binary, "models", len(e.models), "default", e.defModel, "rate", rate)
	return e, nil
}

func loadPiperModel(path string) (piperModel, error) {
	if _, err := os.Stat(path); err != nil {
		return piperModel{}, fmt.Errorf("%w: %v", ErrModelNotFound, err)
	}
	m := piperModel{
		name: strings.TrimSuffix(filepath.Base(path), modelExt),
		path: path,
	}
	// The config sits next to the model. Without it piper assumes a
	// single speaker.
	data, err := os.ReadFile(path + ".json")
	if err != nil {
		log.Debug("piper model has no config", "model", path, "err", err)
		return m, nil
	}
	if err := json.Unmarshal(data, &m.config); err != nil {
		return piperModel{}, fmt.Errorf("invalid piper config %s.json: %w", path, err)
	}
	return m, nil
}

func (e *PiperEngine) scan(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+modelExt))
	if err != nil {
		return fmt.Errorf("failed to scan piper data dir: %w", err)
	}
	for _, path := range matches {
		m, err := loadPiperModel(path)
		if err != nil {
			log.Warn("skipping piper model", "path", path, "err", err)
			continue
		}
		if _, ok := e.models[m.name]; !ok {
			e.models[m.name] = m
		}
	}
	return nil
}

func (e *PiperEngine) modelNames() []string {
	names := make([]string, 0, len(e.models))
	for name := range e.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name implements Engine.
func (e *PiperEngine) Name() string { return EnginePiper }

// Format implements Engine.
func (e *PiperEngine) Format() audio.Format { return e.format }

// TextLimit implements Engine.
func (e *PiperEngine) TextLimit() int { return piperTextLimit }

// Voices lists one voice per single-speaker model and one per speaker of
// multi-speaker models. Speaker voices have IDs of the form "model:N".
func (e *PiperEngine) Voices(_ context.Context) ([]voice.Voice, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var voices []voice.Voice
	for _, name := range e.modelNames() {
		m := e.models[name]
		lang := strings.ReplaceAll(m.config.Language.Code, "_", "-")
		if m.config.NumSpeakers <= 1 {
			voices = append(voices, voice.Voice{ID: name, Name: name, Language: lang})
			continue
		}
		for _, s := range m.speakerList(e.speakers) {
			voices = append(voices, voice.Voice{
				ID:       name + ":" + strconv.Itoa(s.id),
				Name:     name + " " + s.name,
				Language: lang,
			})
		}
	}
	if len(voices) == 0 {
		return nil, voice.ErrNoVoices
	}
	return voices, nil
}

type piperSpeaker struct {
	id   int
	name string
}

// speakerList returns the model's speakers ordered by id, at most limit
// of them when limit is positive.
func (m piperModel) speakerList(limit int) []piperSpeaker {
	var list []piperSpeaker
	if len(m.config.SpeakerIDMap) > 0 {
		for name, id := range m.config.SpeakerIDMap {
			list = append(list, piperSpeaker{id: id, name: name})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	} else {
		for i := 0; i < m.config.NumSpeakers; i++ {
			list = append(list, piperSpeaker{id: i, name: "#" + strconv.Itoa(i)})
		}
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

// resolve maps a voice ID to a model and an optional speaker number.
func (e *PiperEngine) resolve(id string) (piperModel, int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if id == "" {
		return e.models[e.defModel], -1, nil
	}
	name, speaker := id, -1
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		n, err := strconv.Atoi(id[i+1:])
		if err != nil {
			return piperModel{}, 0, fmt.Errorf("invalid piper voice %q: %w", id, err)
		}
		name, speaker = id[:i], n
	}
	m, ok := e.models[name]
	if !ok {
		return piperModel{}, 0, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	return m, speaker, nil
}

// piperArgs builds the piper command line for a model.
func piperArgs(m piperModel, speaker int, rate float64) []string {
	// Piper's length scale is the inverse of speed: 0.5 means twice as fast.
	lengthScale := 1.0 / normalizeRate(rate)
	args := []string{
		"--model", m.path,
		"--output-raw",
		"--length_scale", strconv.FormatFloat(lengthScale, 'f', 2, 64),
	}
	if speaker >= 0 {
		args = append(args, "--speaker", strconv.Itoa(speaker))
	}
	return args
}

// Synthesize implements Engine.
func (e *PiperEngine) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := validateRequest(req, piperTextLimit); err != nil {
		return nil, err
	}
	m, speaker, err := e.resolve(req.Voice)
	if err != nil {
		return nil, err
	}

	// Piper reads one line per utterance.
	text := strings.ReplaceAll(req.Text, "\n", " ") + "\n"
	pcm, err := run(ctx, e.timeout, strings.NewReader(text), e.binary, piperArgs(m, speaker, req.Rate)...)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}
	pcm = pcm[:len(pcm)-len(pcm)%2]

	from := e.format
	if r := m.config.Audio.SampleRate; r != 0 {
		from.SampleRate = r
	}
	return audio.Resample(pcm, from, e.format)
}

// Close implements Engine.
func (e *PiperEngine) Close() error { return nil }
