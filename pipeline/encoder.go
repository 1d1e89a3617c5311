// Package pipeline turns PCM blocks into predictor side information and
// partitioned Rice streams.
//
// For every channel of a block the Encoder scores the best fixed predictor
// and the best LPC predictor by their estimated coded size, keeps the
// cheaper one (fixed on a tie), and Rice-codes its residuals:
//
//	enc, err := pipeline.NewEncoder(pipeline.WithVerify(true))
//	if err != nil {
//	    return err
//	}
//	stats, err := enc.EncodeFile(ctx, f, func(b pipeline.Block) error {
//	    return w.WriteBlock(b)
//	})
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/arloliu/flacore/crc"
	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/internal/pool"
	"github.com/arloliu/flacore/predict"
	"github.com/arloliu/flacore/rice"
	"github.com/arloliu/flacore/wav"
)

// Encoder encodes blocks. It holds only configuration and is safe for
// concurrent use.
type Encoder struct {
	cfg *config
}

// NewEncoder creates an Encoder.
func NewEncoder(opts ...Option) (*Encoder, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Encoder{cfg: cfg}, nil
}

// BlockSize returns the configured frames per block.
func (e *Encoder) BlockSize() int {
	return e.cfg.blockSize
}

type candidate struct {
	choice    predict.Choice
	residuals []int64
	plan      rice.Plan
	bits      uint64
}

func (e *Encoder) score(choice predict.Choice, residuals []int64, bps int) (candidate, error) {
	plan, err := rice.BestPlanWithLimit(residuals, choice.Order, rice.SearchLimit(bps))
	if err != nil {
		return candidate{}, err
	}

	side := choice.WarmupBits(bps) + choice.SideInfoBits() + plan.HeaderBits()

	return candidate{
		choice:    choice,
		residuals: residuals,
		plan:      plan,
		bits:      uint64(side) + plan.Bits, //nolint:gosec
	}, nil
}

func (e *Encoder) fixedCandidate(samples []int64, bps int) (candidate, error) {
	order, err := predict.BestFixedOrder(samples)
	if err != nil {
		return candidate{}, err
	}
	residuals, err := predict.FixedResiduals(samples, order)
	if err != nil {
		return candidate{}, err
	}

	return e.score(predict.FixedChoice(order), residuals, bps)
}

func (e *Encoder) lpcCandidate(samples []int64, bps int) (candidate, error) {
	lpc, err := predict.BestLPC(samples, bps, len(samples),
		predict.WithMaxOrder(min(e.cfg.maxLPCOrder, len(samples))),
		predict.WithConcurrency(e.cfg.lpcConcurrency),
	)
	if err != nil {
		return candidate{}, err
	}
	residuals, err := predict.LPCResiduals(samples, lpc.Coeffs, lpc.Shift)
	if err != nil {
		return candidate{}, err
	}

	return e.score(lpc.Choice(), residuals, bps)
}

// EncodeSubblock encodes one channel of one block.
//
// Parameters:
//   - samples: Channel samples; not retained
//   - bps: Source bits per sample, used for warm-up cost and LPC precision
//
// Returns:
//   - Subblock: Chosen predictor, warm-up samples, Rice plan and streams
//   - error: ErrEmptyBlock, or ErrLosslessMismatch when verification fails
func (e *Encoder) EncodeSubblock(samples []int64, bps int) (Subblock, error) {
	if len(samples) == 0 {
		return Subblock{}, errs.ErrEmptyBlock
	}

	best, err := e.fixedCandidate(samples, bps)
	if err != nil {
		return Subblock{}, fmt.Errorf("fixed predictor: %w", err)
	}

	if e.cfg.lpc {
		// a failed LPC search only removes the candidate
		if lpc, err := e.lpcCandidate(samples, bps); err == nil && lpc.bits < best.bits {
			best = lpc
		}
	}

	parts, err := rice.EncodeWithPlan(best.residuals, best.choice.Order, best.plan)
	if err != nil {
		return Subblock{}, err
	}

	sub := Subblock{
		Choice:        best.choice,
		Warmup:        slices.Clone(best.residuals[:best.choice.Order]),
		Plan:          parts.Plan,
		Streams:       parts.Streams,
		EstimatedBits: best.bits,
		Samples:       len(samples),
	}

	if e.cfg.checksum {
		var c uint16
		for _, s := range sub.Streams {
			c = crc.Update16(c, s.Bytes)
		}
		sub.CRC16 = c
	}

	if e.cfg.verify {
		if err := Verify(sub, samples); err != nil {
			return Subblock{}, err
		}
	}

	return sub, nil
}

// Reconstruct decodes a subblock back into samples.
func Reconstruct(sub Subblock) ([]int64, error) {
	coded, err := rice.DecodePartitioned(sub.Partitioned(), sub.Samples, sub.Choice.Order)
	if err != nil {
		return nil, err
	}

	residuals := make([]int64, 0, sub.Samples)
	residuals = append(residuals, sub.Warmup...)
	residuals = append(residuals, coded...)

	return sub.Choice.Restore(residuals)
}

// Verify reconstructs sub and compares it with the original samples.
func Verify(sub Subblock, samples []int64) error {
	restored, err := Reconstruct(sub)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrLosslessMismatch, err)
	}

	if idx := firstDifference(restored, samples); idx >= 0 {
		return fmt.Errorf("%w: sample %d of %d (%s)", errs.ErrLosslessMismatch, idx, len(samples), sub.Choice)
	}

	return nil
}

func firstDifference(a, b []int64) int {
	if len(a) != len(b) {
		return min(len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}

	return -1
}

// EncodeBlock encodes every channel of a block of inter-channel frames.
func (e *Encoder) EncodeBlock(index uint32, frames [][]int32, f wav.Format) (Block, error) {
	if len(frames) == 0 {
		return Block{}, errs.ErrEmptyBlock
	}

	channels := int(f.Channels)
	for i, fr := range frames {
		if len(fr) != channels {
			return Block{}, fmt.Errorf("%w: frame %d has %d samples, want %d", errs.ErrParameter, i, len(fr), channels)
		}
	}

	block := Block{Index: index, Frames: len(frames), Channels: make([]Subblock, channels)}
	samples, release := pool.GetInt64Slice(len(frames))
	defer release()

	for ch := range channels {
		for i, fr := range frames {
			samples[i] = int64(fr[ch])
		}

		sub, err := e.EncodeSubblock(samples, int(f.BitsPerSample))
		if err != nil {
			return Block{}, fmt.Errorf("block %d channel %d: %w", index, ch, err)
		}
		block.Channels[ch] = sub
	}

	if e.cfg.logger.Enabled(context.Background(), slog.LevelDebug) {
		for ch, sub := range block.Channels {
			e.cfg.logger.Debug("subblock encoded",
				"block", index,
				"channel", ch,
				"predictor", sub.Choice.String(),
				"partition_order", sub.Plan.Order,
				"estimated_bits", sub.EstimatedBits,
			)
		}
	}

	return block, nil
}
