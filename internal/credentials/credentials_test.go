package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTokenPrefersLiteralToken(t *testing.T) {
	m := NewManager()
	token, err := m.ResolveToken("files", "literal-token", "SOME_ENV", func(string) string { return "env-token" })
	require.NoError(t, err)
	assert.Equal(t, "literal-token", token)
}

func TestResolveTokenFallsBackToEnvVar(t *testing.T) {
	m := NewManager()
	token, err := m.ResolveToken("files", "", "SOME_ENV", func(name string) string {
		if name == "SOME_ENV" {
			return "env-token"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)
}
