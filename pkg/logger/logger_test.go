package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit_ParsesLevelNamesCaseInsensitively(t *testing.T) {
	cases := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"nonsense", LevelInfo},
	}
	for _, tc := range cases {
		Init(tc.in)
		require.Equal(t, tc.want, GetLevel(), "input %q", tc.in)
	}
}

func TestGet_InitializesLazilyWhenNeverCalled(t *testing.T) {
	defaultLogger = nil
	require.NotNil(t, Get())
}
