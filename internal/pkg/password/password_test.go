package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := Hash("correct horse battery")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery", hash)

	require.NoError(t, Compare(hash, "correct horse battery"))
	require.Error(t, Compare(hash, "wrong password"))
}

func TestValidatePolicy(t *testing.T) {
	require.ErrorIs(t, Validate("short"), ErrTooShort)
	require.ErrorIs(t, Validate(strings.Repeat("p", 73)), ErrTooLong)
	require.NoError(t, Validate("exactly8"))

	_, err := Hash("short")
	require.ErrorIs(t, err, ErrTooShort)
}
