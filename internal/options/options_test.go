package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type encoderConfig struct {
	blockSize int
	verify    bool
	calls     []string
}

func withBlockSize(n int) Option[*encoderConfig] {
	return New(func(c *encoderConfig) error {
		if n <= 0 {
			return errors.New("block size must be positive")
		}
		c.blockSize = n
		c.calls = append(c.calls, "blockSize")

		return nil
	})
}

func withVerify(v bool) Option[*encoderConfig] {
	return NoError(func(c *encoderConfig) {
		c.verify = v
		c.calls = append(c.calls, "verify")
	})
}

func TestApply(t *testing.T) {
	t.Run("applies options in order", func(t *testing.T) {
		cfg := &encoderConfig{}
		err := Apply(cfg, withBlockSize(4096), withVerify(true))
		require.NoError(t, err)
		require.Equal(t, 4096, cfg.blockSize)
		require.True(t, cfg.verify)
		require.Equal(t, []string{"blockSize", "verify"}, cfg.calls)
	})

	t.Run("stops at first error", func(t *testing.T) {
		cfg := &encoderConfig{}
		err := Apply(cfg, withBlockSize(1152), withBlockSize(-1), withVerify(true))
		require.Error(t, err)
		require.Contains(t, err.Error(), "block size must be positive")
		require.Equal(t, 1152, cfg.blockSize)
		require.False(t, cfg.verify)
	})

	t.Run("empty and nil options", func(t *testing.T) {
		cfg := &encoderConfig{}
		require.NoError(t, Apply(cfg))
		require.NoError(t, Apply[*encoderConfig](cfg, nil))
		require.Empty(t, cfg.calls)
	})
}

func TestNoError_PrimitiveTarget(t *testing.T) {
	var n int
	err := NoError(func(p *int) { *p = 32 }).apply(&n)
	require.NoError(t, err)
	require.Equal(t, 32, n)
}
