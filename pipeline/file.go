package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/flacore/internal/hash"
	"github.com/arloliu/flacore/wav"
)

// Sink receives encoded blocks in block order.
type Sink func(Block) error

type job struct {
	index  uint32
	frames [][]int32
}

// EncodeFile reads f block by block, encodes each block and passes it to
// sink in order. With WithWorkers(n > 1) up to n blocks are encoded
// concurrently; sink is still called from a single goroutine.
//
// Cancelling ctx stops the run between blocks. The returned Stats cover the
// blocks delivered to sink.
func (e *Encoder) EncodeFile(ctx context.Context, f *wav.File, sink Sink) (Stats, error) {
	format := f.Format()
	sig := hash.NewSignature()

	var (
		stats Stats
		err   error
	)
	if e.cfg.workers > 1 {
		stats, err = e.encodeParallel(ctx, f, sig, sink)
	} else {
		stats, err = e.encodeSequential(ctx, f, sig, sink)
	}
	stats.Signature = sig.Sum64()
	if err != nil {
		return stats, err
	}
	if err := f.Err(); err != nil {
		return stats, err
	}

	e.cfg.logger.Info("file encoded",
		"format", format.String(),
		"blocks", stats.Blocks,
		"frames", stats.Frames,
		"fixed", stats.FixedSubblocks,
		"lpc", stats.LPCSubblocks,
		"ratio", fmt.Sprintf("%.3f", stats.Ratio()),
	)

	return stats, nil
}

func (e *Encoder) encodeSequential(ctx context.Context, f *wav.File, sig *hash.Signature, sink Sink) (Stats, error) {
	format := f.Format()

	var (
		stats Stats
		index uint32
	)
	for batch := range f.Batches(e.cfg.blockSize) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		for _, fr := range batch {
			sig.WriteFrame(fr)
		}

		block, err := e.EncodeBlock(index, batch, format)
		if err != nil {
			return stats, err
		}
		if err := sink(block); err != nil {
			return stats, err
		}
		stats.add(block, int(format.BitsPerSample), int(format.BlockAlign()))
		index++
	}

	return stats, ctx.Err()
}

func (e *Encoder) encodeParallel(ctx context.Context, f *wav.File, sig *hash.Signature, sink Sink) (Stats, error) {
	format := f.Format()
	workers := e.cfg.workers

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	jobs := make(chan job, workers)
	results := make(chan Block, workers)
	// at most workers blocks are held between read and sink
	slots := make(chan struct{}, workers)

	g.Go(func() error {
		defer close(jobs)

		var index uint32
		for batch := range f.Batches(e.cfg.blockSize) {
			for _, fr := range batch {
				sig.WriteFrame(fr)
			}
			select {
			case slots <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case jobs <- job{index: index, frames: batch}:
			case <-gctx.Done():
				return gctx.Err()
			}
			index++
		}

		return nil
	})

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				block, err := e.EncodeBlock(j.index, j.frames, format)
				if err != nil {
					return err
				}
				select {
				case results <- block:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		stats   Stats
		next    uint32
		sinkErr error
		pending = make(map[uint32]Block, workers)
	)
	for block := range results {
		if sinkErr != nil {
			continue
		}
		pending[block.Index] = block
		for {
			b, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := sink(b); err != nil {
				sinkErr = err
				cancel()

				break
			}
			stats.add(b, int(format.BitsPerSample), int(format.BlockAlign()))
			next++
			<-slots
		}
	}

	if sinkErr != nil {
		_ = g.Wait()
		return stats, sinkErr
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	return stats, nil
}
