package langcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToISOCode(t *testing.T) {
	require.Equal(t, "eng", ToISOCode("en", ISO639_2B))
	require.Equal(t, "fra", ToISOCode("fr", ISO639_2T))
	require.Equal(t, "fre", ToISOCode("fr", ISO639_2B))
	require.Equal(t, "en", ToISOCode("EN", ISO639_1))
}

func TestToISOCode_UnknownCanonicalLowercasedUnchanged(t *testing.T) {
	require.Equal(t, "de", ToISOCode("DE", ISO639_3))
}

func TestFromISOCode(t *testing.T) {
	lang, ok := FromISOCode("fra", ISO639_3)
	require.True(t, ok)
	require.Equal(t, "fr", lang)

	_, ok = FromISOCode("deu", ISO639_3)
	require.False(t, ok)
}

func TestLabel(t *testing.T) {
	require.Equal(t, "English", Label("en"))
	require.Equal(t, "French", Label("FR"))
	require.Equal(t, "De", Label("de"))
	require.Equal(t, "", Label(""))
}
