package predict

import (
	"fmt"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/flacore/errs"
)

const (
	// MaxLPCOrder is the highest LPC order.
	MaxLPCOrder = 32
	// MaxShift is the largest quantization shift.
	MaxShift = 31
)

// LPC is a quantized linear predictor. Prediction of sample i is
// (Σ Coeffs[j]·s[i-1-j]) >> Shift; a negative Shift is recorded as-is but
// applied as 0.
type LPC struct {
	Order     int
	Coeffs    []int64
	Precision int
	Shift     int
}

// Autocorrelation returns R[0..maxLag] with R[lag] = Σ s[i]·s[i+lag]. Lags at
// or beyond len(samples) are 0.
func Autocorrelation(samples []int64, maxLag int) []float64 {
	autoc := make([]float64, maxLag+1)
	for lag := range autoc {
		var sum float64
		for i := 0; i+lag < len(samples); i++ {
			sum += float64(samples[i]) * float64(samples[i+lag])
		}
		autoc[lag] = sum
	}

	return autoc
}

// LevinsonDurbin solves for the predictor coefficients of every order from 1
// to maxOrder in a single pass over autoc. result[k-1] holds the k
// coefficients of order k, weighting s[i-1] first.
//
// Once the prediction error is no longer positive the recursion stops and the
// remaining orders repeat the last solution padded with zeros. maxOrder is
// capped at len(autoc)-1.
func LevinsonDurbin(autoc []float64, maxOrder int) [][]float64 {
	maxOrder = min(maxOrder, len(autoc)-1)
	if maxOrder < 1 {
		return nil
	}

	result := make([][]float64, maxOrder)
	a := make([]float64, maxOrder)
	prev := make([]float64, maxOrder)
	e := autoc[0]

	for i := range maxOrder {
		if e <= 0 {
			for ; i < maxOrder; i++ {
				result[i] = make([]float64, i+1)
				if i > 0 {
					copy(result[i], result[i-1])
				}
			}

			break
		}

		acc := autoc[i+1]
		for j := range i {
			acc -= a[j] * autoc[i-j]
		}
		k := acc / e

		copy(prev, a[:i])
		for j := range i {
			a[j] = prev[j] - k*prev[i-1-j]
		}
		a[i] = k
		e *= 1 - k*k

		result[i] = slices.Clone(a[:i+1])
	}

	return result
}

// QuantizeCoeffs converts coeffs to integers at the given precision.
//
// The shift is min(31, precision - floor(log2(max|c|))) and may be negative;
// it is 0 when every coefficient is 0. Rounding error is carried from each
// coefficient into the next so the quantized vector stays unbiased.
//
// Returns:
//   - []int64: Quantized coefficients
//   - int: Shift
func QuantizeCoeffs(coeffs []float64, precision int) ([]int64, int) {
	q := make([]int64, len(coeffs))

	var cmax float64
	for _, c := range coeffs {
		cmax = max(cmax, math.Abs(c))
	}
	if cmax == 0 {
		return q, 0
	}

	_, exp := math.Frexp(cmax) // cmax = frac·2^exp, frac in [0.5, 1)
	shift := min(MaxShift, precision-(exp-1))

	var carry float64
	for i, c := range coeffs {
		raw := math.Ldexp(c, shift) + carry
		r := math.Round(raw)
		q[i] = int64(r)
		carry = raw - r
	}

	return q, shift
}

func checkLPCOrder(n, order int) error {
	if n == 0 {
		return errs.ErrEmptyBlock
	}
	if order < 1 || order > MaxLPCOrder {
		return fmt.Errorf("%w: LPC order %d", errs.ErrPredictorOrder, order)
	}
	if order > n {
		return fmt.Errorf("%w: LPC order %d exceeds %d samples", errs.ErrPredictorOrder, order, n)
	}

	return nil
}

// LPCResiduals applies the quantized predictor. The first len(coeffs)
// residuals are the warm-up samples; the prediction uses an arithmetic right
// shift, so it rounds toward negative infinity.
func LPCResiduals(samples []int64, coeffs []int64, shift int) ([]int64, error) {
	order := len(coeffs)
	if err := checkLPCOrder(len(samples), order); err != nil {
		return nil, err
	}

	sh := effectiveShift(shift)
	residuals := make([]int64, len(samples))
	copy(residuals, samples[:order])
	for i := order; i < len(samples); i++ {
		residuals[i] = samples[i] - dot(coeffs, samples, i)>>sh
	}

	return residuals, nil
}

// RestoreLPC reconstructs samples from LPC residuals.
func RestoreLPC(residuals []int64, coeffs []int64, shift int) ([]int64, error) {
	order := len(coeffs)
	if err := checkLPCOrder(len(residuals), order); err != nil {
		return nil, err
	}

	sh := effectiveShift(shift)
	samples := make([]int64, len(residuals))
	copy(samples, residuals[:order])
	for i := order; i < len(residuals); i++ {
		samples[i] = residuals[i] + dot(coeffs, samples, i)>>sh
	}

	return samples, nil
}

// BestLPC searches LPC orders 1..min(32, len(samples)) and returns the one
// whose residuals have the smallest absolute sum, warm-up included. Ties go
// to the lowest order.
//
// The autocorrelation and the Levinson-Durbin pass are computed once; each
// order's quantize-and-score trial is independent and runs on up to
// WithConcurrency goroutines.
//
// Parameters:
//   - samples: One channel of one block
//   - bps: Bits per sample, selects the coefficient precision
//   - blockSize: Nominal block size, selects the coefficient precision
//   - opts: Search options
//
// Returns:
//   - LPC: Best predictor
//   - error: ErrEmptyBlock, an invalid option, or ErrPredictorOrder if no order fits
func BestLPC(samples []int64, bps int, blockSize int, opts ...SearchOption) (LPC, error) {
	cfg, err := newSearchConfig(opts)
	if err != nil {
		return LPC{}, err
	}
	if len(samples) == 0 {
		return LPC{}, errs.ErrEmptyBlock
	}

	maxOrder := min(cfg.maxOrder, len(samples))
	precision := BestPrecision(bps, blockSize)
	solutions := LevinsonDurbin(Autocorrelation(samples, maxOrder), maxOrder)
	if len(solutions) == 0 {
		return LPC{}, fmt.Errorf("%w: no LPC order fits %d samples", errs.ErrPredictorOrder, len(samples))
	}

	trials := make([]lpcTrial, len(solutions))
	run := func(idx int) {
		trials[idx] = runTrial(samples, solutions[idx], precision)
	}

	if cfg.concurrency > 1 {
		var g errgroup.Group
		g.SetLimit(cfg.concurrency)
		for idx := range solutions {
			g.Go(func() error {
				run(idx)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for idx := range solutions {
			run(idx)
		}
	}

	best := -1
	for idx, tr := range trials {
		if !tr.ok {
			continue
		}
		if best < 0 || tr.sum < trials[best].sum {
			best = idx
		}
	}
	if best < 0 {
		return LPC{}, fmt.Errorf("%w: no LPC order fits %d samples", errs.ErrPredictorOrder, len(samples))
	}

	return LPC{
		Order:     best + 1,
		Coeffs:    trials[best].coeffs,
		Precision: precision,
		Shift:     trials[best].shift,
	}, nil
}

type lpcTrial struct {
	coeffs []int64
	shift  int
	sum    uint64
	ok     bool
}

func runTrial(samples []int64, coeffs []float64, precision int) lpcTrial {
	q, shift := QuantizeCoeffs(coeffs, precision)
	if checkLPCOrder(len(samples), len(q)) != nil {
		return lpcTrial{}
	}

	return lpcTrial{coeffs: q, shift: shift, sum: lpcAbsSum(samples, q, shift), ok: true}
}

func lpcAbsSum(samples []int64, coeffs []int64, shift int) uint64 {
	sh := effectiveShift(shift)
	order := len(coeffs)

	var sum uint64
	for i, s := range samples {
		if i >= order {
			s -= dot(coeffs, samples, i) >> sh
		}
		sum += abs(s)
	}

	return sum
}

func effectiveShift(shift int) uint {
	if shift < 0 {
		return 0
	}

	return uint(shift)
}
