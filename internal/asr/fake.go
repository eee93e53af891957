package asr

import (
	"context"
	"sync"
)

// FakeEngine is a deterministic stand-in for a real ASR runtime. Production
// code builds one through Manager so the worker pool, language gate and
// HTTP surface are fully exercised without a GPU or model weights; tests
// preload Responses to script exact scenarios (spec.md §8's six end-to-end
// cases).
type FakeEngine struct {
	mu sync.Mutex

	// Responses, keyed by call index, override the default for an
	// autodetect call (ForceLanguage="", with or without VadFilter); only
	// those calls advance the index. Scenario tests set Responses[0] for the
	// probe call and Responses[1] for the VAD retry call.
	Responses []Result

	// ForcedResponses returns a canned score for a forced-language scoring
	// call (the §4.3 step-6 fallback). Keyed by language.
	ForcedResponses map[string]Result

	calls   int
	history []Options
}

// NewFakeEngine builds an engine with no scripted responses; Transcribe
// falls back to a low-confidence silence result until Responses is set.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{ForcedResponses: map[string]Result{}}
}

func (f *FakeEngine) Transcribe(_ context.Context, samples []float32, opts Options) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.history = append(f.history, opts)

	if opts.ForceLanguage != "" {
		if r, ok := f.ForcedResponses[opts.ForceLanguage]; ok {
			return r, nil
		}
		return Result{DetectedLanguage: opts.ForceLanguage, LanguageProbability: 0}, nil
	}

	idx := f.calls
	f.calls++
	if idx < len(f.Responses) {
		return f.Responses[idx], nil
	}

	// No script left: report silence rather than guessing, so an
	// unconfigured engine drives the gate toward the fallback path
	// instead of a fabricated high-confidence accept.
	_ = samples
	return Result{DetectedLanguage: "und", LanguageProbability: 0}, nil
}

// CallCount returns the total number of Transcribe invocations, regardless
// of whether they were autodetect probes or forced-language calls.
func (f *FakeEngine) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history)
}

// SnippetCalls returns the Options from every forced-language Transcribe
// call. The gate's own probe and VAD-retry calls always pass
// ForceLanguage="", so they are excluded; the gate's fallback scoring calls
// force en/fr and are included alongside the pipeline's snippet
// transcription.
func (f *FakeEngine) SnippetCalls() []Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Options
	for _, opts := range f.history {
		if opts.ForceLanguage != "" {
			out = append(out, opts)
		}
	}
	return out
}
