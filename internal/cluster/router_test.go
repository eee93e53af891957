package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseJobOwner_LongestPrefixWins(t *testing.T) {
	nodes := map[string]string{
		"node-a":      "http://a",
		"node-a-east": "http://a-east",
	}

	owner, bare, err := ParseJobOwner("node-a-east-1234", nodes)
	require.NoError(t, err)
	require.Equal(t, "node-a-east", owner)
	require.Equal(t, "1234", bare)
}

func TestParseJobOwner_FallsBackToFirstHyphen(t *testing.T) {
	owner, bare, err := ParseJobOwner("unknown-node-abc123", map[string]string{})
	require.NoError(t, err)
	require.Equal(t, "unknown", owner)
	require.Equal(t, "node-abc123", bare)
}

func TestParseJobOwner_InvalidFormat(t *testing.T) {
	_, _, err := ParseJobOwner("noseparator", map[string]string{})
	require.Error(t, err)
}

func TestIsLocal(t *testing.T) {
	nodes := map[string]string{"node-a": "http://a", "node-b": "http://b"}

	require.True(t, IsLocal("node-a-xyz", "node-a", nodes))
	require.False(t, IsLocal("node-b-xyz", "node-a", nodes))
}
