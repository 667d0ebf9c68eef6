package segment

import "testing"

import "github.com/stretchr/testify/require"

func TestInfixBloomMatchesKnownGrams(t *testing.T) {
	bits := BuildInfixBloom([][]byte{[]byte("alphanumeric"), []byte("beta")}, 8, 2)

	require.True(t, InfixMayMatch(bits, []byte("lpha"), 2))
	require.True(t, InfixMayMatch(bits, []byte("et"), 2))
	require.True(t, InfixMayMatch(bits, []byte("al"), 2))
}

func TestInfixMayMatchWithNoBloomAlwaysTrue(t *testing.T) {
	require.True(t, InfixMayMatch(nil, []byte("xx"), 2))
}
