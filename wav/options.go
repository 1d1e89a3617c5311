package wav

import (
	"fmt"

	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/internal/options"
)

const (
	defaultReadBufferSize = 64 * 1024
	minReadBufferSize     = 16
)

type config struct {
	readBufferSize int
}

// Option configures Open and NewReader.
type Option = options.Option[*config]

// WithReadBufferSize sets the size of the buffered reader wrapped around the
// source. Values below 16 bytes are rejected.
func WithReadBufferSize(size int) Option {
	return options.New(func(c *config) error {
		if size < minReadBufferSize {
			return fmt.Errorf("%w: read buffer size %d", errs.ErrParameter, size)
		}
		c.readBufferSize = size

		return nil
	})
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{readBufferSize: defaultReadBufferSize}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}
