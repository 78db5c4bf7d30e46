package oidc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Parallel()
	t.Run("no-prefix", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		id, err := NewID("")
		require.NoError(err)
		assert.NotEmpty(id)
		// 32 bytes of entropy base64url encoded without padding
		assert.Len(id, 43)
	})
	t.Run("with-prefix", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		id, err := NewID("st")
		require.NoError(err)
		assert.True(strings.HasPrefix(id, "st_"))
	})
	t.Run("unique-over-a-large-sample", func(t *testing.T) {
		require := require.New(t)
		seen := make(map[string]bool, 10000)
		for i := 0; i < 10000; i++ {
			id, err := NewID("")
			require.NoError(err)
			require.False(seen[id], "duplicate id generated: %s", id)
			seen[id] = true
		}
	})
}
