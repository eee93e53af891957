// Package asr narrows the speech-recognition backend to the slice of
// behavior the language gate and pipeline actually need: transcribe a
// buffer of mono 16kHz samples, optionally gated by VAD and a forced
// language, and report what language the model thinks it heard.
package asr

import (
	"context"
	"sync"
)

// Segment is one contiguous span of recognized speech.
type Segment struct {
	Text        string
	AvgLogProb  float64
	Start       float64
	End         float64
}

// Options configures a single Transcribe call. ForceLanguage pins the
// decode to one language (used by the scoring fallback); an empty value
// lets the engine auto-detect.
type Options struct {
	ForceLanguage string
	VadFilter     bool
	BeamSize      int
	BestOf        int
}

// Result is what the engine returns for one Transcribe call.
type Result struct {
	Segments            []Segment
	DetectedLanguage     string
	LanguageProbability float64
}

// Engine is the narrow interface the gate and pipeline depend on. The real
// implementation lives behind a separate build (a model runtime is out of
// scope here); FakeEngine is the in-process stand-in that exercises every control
// path described in spec.md §4.3.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error)
}

// Manager owns a single lazily-constructed Engine: one model instance shared
// by every worker in the process instead of one per job.
type Manager struct {
	once   sync.Once
	engine Engine
	build  func() Engine
}

// NewManager defers construction of build until the first EnsureRunning.
func NewManager(build func() Engine) *Manager {
	return &Manager{build: build}
}

// EnsureRunning constructs the underlying engine on first use and returns it.
func (m *Manager) EnsureRunning(_ context.Context) (Engine, error) {
	m.once.Do(func() {
		m.engine = m.build()
	})
	return m.engine, nil
}
