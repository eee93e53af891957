// Package translate narrows the post-transcription translation step to
// EN<->FR, grounded on the original service's translate_en_fr_only (a
// lazily-loaded Marian model pair keyed by language direction).
package translate

import (
	"context"
	"fmt"
	"sync"
)

// Translator converts text between the two supported canonical languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// supportedPairs mirrors the two Helsinki-NLP opus-mt model directions the
// original wires up; any other pair is rejected the same way.
var supportedPairs = map[[2]string]bool{
	{"en", "fr"}: true,
	{"fr", "en"}: true,
}

// FakeTranslator is a deterministic stand-in for the Marian model pair: a
// real translation runtime is out of scope, so this implementation proves
// out the direction-routing and counter-incrementing control flow around
// it without doing real machine translation.
type FakeTranslator struct {
	mu    sync.Mutex
	Calls int
}

func NewFakeTranslator() *FakeTranslator { return &FakeTranslator{} }

func (t *FakeTranslator) Translate(_ context.Context, text, sourceLang, targetLang string) (string, error) {
	if !supportedPairs[[2]string{sourceLang, targetLang}] {
		return "", fmt.Errorf("translation from %q to %q is not supported", sourceLang, targetLang)
	}
	t.mu.Lock()
	t.Calls++
	t.mu.Unlock()
	return fmt.Sprintf("[%s->%s] %s", sourceLang, targetLang, text), nil
}
