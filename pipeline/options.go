package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/internal/options"
	"github.com/arloliu/flacore/predict"
)

const (
	DefaultBlockSize = 4096
	MinBlockSize     = 16
	MaxBlockSize     = 65535
)

type config struct {
	blockSize      int
	maxLPCOrder    int
	lpc            bool
	checksum       bool
	verify         bool
	workers        int
	lpcConcurrency int
	logger         *slog.Logger
}

// Option configures an Encoder.
type Option = options.Option[*config]

// WithBlockSize sets the number of frames per block (16..65535, default 4096).
func WithBlockSize(size int) Option {
	return options.New(func(c *config) error {
		if size < MinBlockSize || size > MaxBlockSize {
			return fmt.Errorf("%w: %d not in [%d, %d]", errs.ErrBlockSize, size, MinBlockSize, MaxBlockSize)
		}
		c.blockSize = size

		return nil
	})
}

// WithMaxLPCOrder caps the LPC order search (1..32, default 32).
func WithMaxLPCOrder(order int) Option {
	return options.New(func(c *config) error {
		if order < 1 || order > predict.MaxLPCOrder {
			return fmt.Errorf("%w: max LPC order %d", errs.ErrPredictorOrder, order)
		}
		c.maxLPCOrder = order

		return nil
	})
}

// WithLPC enables or disables the LPC candidate. Enabled by default.
func WithLPC(enabled bool) Option {
	return options.NoError(func(c *config) {
		c.lpc = enabled
	})
}

// WithChecksum stores the CRC-16 of each subblock's coded bytes.
func WithChecksum(enabled bool) Option {
	return options.NoError(func(c *config) {
		c.checksum = enabled
	})
}

// WithVerify decodes every subblock after encoding and fails with
// ErrLosslessMismatch if the samples differ.
func WithVerify(enabled bool) Option {
	return options.NoError(func(c *config) {
		c.verify = enabled
	})
}

// WithWorkers encodes up to n blocks concurrently in EncodeFile. Blocks are
// still delivered to the sink in order.
func WithWorkers(n int) Option {
	return options.New(func(c *config) error {
		if n < 1 {
			return fmt.Errorf("%w: workers %d", errs.ErrParameter, n)
		}
		c.workers = n

		return nil
	})
}

// WithLPCConcurrency runs up to n LPC order trials per subblock in parallel.
func WithLPCConcurrency(n int) Option {
	return options.NoError(func(c *config) {
		c.lpcConcurrency = max(1, n)
	})
}

// WithLogger enables debug records per block. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(c *config) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		c.logger = logger
	})
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		blockSize:      DefaultBlockSize,
		maxLPCOrder:    predict.MaxLPCOrder,
		lpc:            true,
		workers:        1,
		lpcConcurrency: 1,
		logger:         slog.New(slog.DiscardHandler),
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}
