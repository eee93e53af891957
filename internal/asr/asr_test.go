package asr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManager_EnsureRunning_BuildsEngineOnce(t *testing.T) {
	builds := 0
	mgr := NewManager(func() Engine {
		builds++
		return NewFakeEngine()
	})

	e1, err := mgr.EnsureRunning(context.Background())
	require.NoError(t, err)
	e2, err := mgr.EnsureRunning(context.Background())
	require.NoError(t, err)

	require.Same(t, e1, e2)
	require.Equal(t, 1, builds)
}

func TestFakeEngine_ReturnsScriptedResponsesInOrder(t *testing.T) {
	e := NewFakeEngine()
	e.Responses = []Result{
		{DetectedLanguage: "en", LanguageProbability: 0.9},
		{DetectedLanguage: "fr", LanguageProbability: 0.8},
	}

	r1, err := e.Transcribe(context.Background(), nil, Options{})
	require.NoError(t, err)
	require.Equal(t, "en", r1.DetectedLanguage)

	r2, err := e.Transcribe(context.Background(), nil, Options{})
	require.NoError(t, err)
	require.Equal(t, "fr", r2.DetectedLanguage)
}

func TestFakeEngine_FallsBackToSilenceWhenScriptExhausted(t *testing.T) {
	e := NewFakeEngine()
	r, err := e.Transcribe(context.Background(), nil, Options{})
	require.NoError(t, err)
	require.Equal(t, "und", r.DetectedLanguage)
	require.Zero(t, r.LanguageProbability)
}

func TestFakeEngine_ForcedLanguageUsesForcedResponses(t *testing.T) {
	e := NewFakeEngine()
	e.ForcedResponses["fr"] = Result{DetectedLanguage: "fr", LanguageProbability: 0.95}

	r, err := e.Transcribe(context.Background(), nil, Options{ForceLanguage: "fr"})
	require.NoError(t, err)
	require.Equal(t, 0.95, r.LanguageProbability)

	r, err = e.Transcribe(context.Background(), nil, Options{ForceLanguage: "de"})
	require.NoError(t, err)
	require.Equal(t, "de", r.DetectedLanguage)
	require.Zero(t, r.LanguageProbability)
}
