package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

func TestDefaultConfig(t *testing.T) {
	t.Run("ReturnsSaneDefaults", func(t *testing.T) {
		cfg := DefaultConfig()

		assert.NotEmpty(t, cfg.DataFile)
		assert.Equal(t, util.PageSize, cfg.PageSize)
		assert.Greater(t, cfg.PoolSize, 0)
		assert.Greater(t, cfg.LeafMaxSize, 0)
		assert.Greater(t, cfg.InternalMaxSize, 0)
	})
}
