package predict

import (
	"fmt"

	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/internal/options"
)

type searchConfig struct {
	maxOrder    int
	concurrency int
}

// SearchOption configures BestLPC.
type SearchOption = options.Option[*searchConfig]

// WithMaxOrder caps the highest LPC order tried (1..32, default 32).
func WithMaxOrder(order int) SearchOption {
	return options.New(func(c *searchConfig) error {
		if order < 1 || order > MaxLPCOrder {
			return fmt.Errorf("%w: max LPC order %d", errs.ErrPredictorOrder, order)
		}
		c.maxOrder = order

		return nil
	})
}

// WithConcurrency runs up to n order trials in parallel. n <= 1 keeps the
// search on the calling goroutine.
func WithConcurrency(n int) SearchOption {
	return options.NoError(func(c *searchConfig) {
		c.concurrency = max(1, n)
	})
}

func newSearchConfig(opts []SearchOption) (*searchConfig, error) {
	cfg := &searchConfig{maxOrder: MaxLPCOrder, concurrency: 1}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}
