package regnumber

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatPadsSequence(t *testing.T) {
	require.Equal(t, "ELBA/25/SS3B/011", Format("elba", 25, "ss3b", 11))
	require.Equal(t, "ELBA/25/SS3B/001", Format("ELBA", 2025, "SS3B", 1))
}

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []Number{
		{SchoolCode: "ELBA", Year: 25, ClassCode: "SS3B", Sequence: 1},
		{SchoolCode: "ELBA", Year: 25, ClassCode: "JS1", Sequence: 999},
		{SchoolCode: "KNGS", Year: 9, ClassCode: "P5", Sequence: 42},
	}
	for _, want := range cases {
		parsed, err := Parse(want.String())
		require.NoError(t, err)
		require.Equal(t, want, parsed)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"ELBA/25/SS3B/11",
		"ELBA/25/SS3B/0011",
		"EL/25/SS3B/001",
		"ELBAA/25/SS3B/001",
		"ELBA/2025/SS3B/001",
		"elba/25/ss3b/001",
		"ELBA/25/SS3B3B/001",
	}
	for _, raw := range bad {
		require.Error(t, Validate(raw), "expected %q to be invalid", raw)
	}
}

func TestNextFailsClosed(t *testing.T) {
	_, err := Next("", 25, "SS3B", 1)
	require.Error(t, err)

	_, err = Next("ELBA", 25, "", 1)
	require.Error(t, err)

	_, err = Next("ELBA", 25, "SS3B", 0)
	require.Error(t, err)

	number, err := Next("ELBA", 25, "SS3B", 11)
	require.NoError(t, err)
	require.Equal(t, "ELBA/25/SS3B/011", number)
}
