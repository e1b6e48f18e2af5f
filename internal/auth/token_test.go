package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenMinterMint(t *testing.T) {
	m, err := NewTokenMinter()
	require.NoError(t, err)

	t.Run("produces a 128-character lowercase hex string", func(t *testing.T) {
		token, err := m.Mint()

		require.NoError(t, err)
		assert.Len(t, token, 128)
		for _, r := range token {
			assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'), "unexpected rune %q", r)
		}
	})

	t.Run("mints distinct tokens on successive calls", func(t *testing.T) {
		first, err := m.Mint()
		require.NoError(t, err)

		second, err := m.Mint()
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})
}

func TestNewTokenMinterProducesIndependentKeys(t *testing.T) {
	a, err := NewTokenMinter()
	require.NoError(t, err)

	b, err := NewTokenMinter()
	require.NoError(t, err)

	assert.NotEqual(t, a.key, b.key)
}
