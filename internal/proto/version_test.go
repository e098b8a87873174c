package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareVersionsSymmetry(t *testing.T) {
	cases := [][2]string{
		{"1.0.0", "1.0.1"},
		{"1.0.0", "2.0.0"},
		{"1.2.0", "1.1.9"},
		{"1.0", "1.0.0"},
		{"1.0.0.1", "1.0.0"},
	}
	for _, c := range cases {
		a, b := c[0], c[1]
		if CompareVersions(a, b) < 0 {
			require.Greater(t, CompareVersions(b, a), 0, "expected %s > %s", b, a)
		}
	}
}

func TestCompareVersionsEqualIsZero(t *testing.T) {
	for _, v := range []string{"1.0.0", "0.0.0", "1.2.3.4"} {
		require.Equal(t, 0, CompareVersions(v, v))
	}
}

func TestCompareVersionsPadsMissingFields(t *testing.T) {
	require.Equal(t, 0, CompareVersions("1.2", "1.2.0"))
	require.Equal(t, 0, CompareVersions("1.2.0.0", "1.2"))
	require.Less(t, CompareVersions("1.2", "1.2.1"), 0)
}

func TestCompareVersionsHandshakeScenario(t *testing.T) {
	// Teacher 1.2.0 vs student 1.1.0 must trigger a mandatory update.
	require.Greater(t, CompareVersions("1.2.0", "1.1.0"), 0)
}
