package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeTranslator_TranslatesSupportedPairs(t *testing.T) {
	tr := NewFakeTranslator()

	out, err := tr.Translate(context.Background(), "hello", "en", "fr")
	require.NoError(t, err)
	require.Equal(t, "[en->fr] hello", out)

	out, err = tr.Translate(context.Background(), "bonjour", "fr", "en")
	require.NoError(t, err)
	require.Equal(t, "[fr->en] bonjour", out)

	require.Equal(t, 2, tr.Calls)
}

func TestFakeTranslator_RejectsUnsupportedPair(t *testing.T) {
	tr := NewFakeTranslator()
	_, err := tr.Translate(context.Background(), "hola", "en", "es")
	require.Error(t, err)
	require.Equal(t, 0, tr.Calls)
}
