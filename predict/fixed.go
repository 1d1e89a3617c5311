// Package predict implements the fixed polynomial and quantized LPC
// predictors used to turn a block of samples into residuals.
//
// Both predictor families store the first Order samples of a block verbatim
// as warm-up and predict every later sample from the samples before it.
// The residual of sample i is sample[i] - prediction[i]; Restore* functions
// invert the transform exactly.
package predict

import (
	"fmt"

	"github.com/arloliu/flacore/errs"
)

// MaxFixedOrder is the highest fixed predictor order.
const MaxFixedOrder = 4

// fixedWeights[k] are the binomial weights applied to s[i-1], s[i-2], ...
var fixedWeights = [MaxFixedOrder + 1][]int64{
	{},
	{1},
	{2, -1},
	{3, -3, 1},
	{4, -6, 4, -1},
}

func checkFixedOrder(n, order int) error {
	if n == 0 {
		return errs.ErrEmptyBlock
	}
	if order < 0 || order > MaxFixedOrder {
		return fmt.Errorf("%w: fixed order %d", errs.ErrPredictorOrder, order)
	}
	if n < order {
		return fmt.Errorf("%w: fixed order %d exceeds %d samples", errs.ErrPredictorOrder, order, n)
	}

	return nil
}

// FixedResiduals applies the fixed predictor of the given order (0..4).
//
// Returns:
//   - []int64: One residual per sample; the first order entries are the samples themselves
//   - error: ErrEmptyBlock, or ErrPredictorOrder if order is out of range or exceeds len(samples)
func FixedResiduals(samples []int64, order int) ([]int64, error) {
	if err := checkFixedOrder(len(samples), order); err != nil {
		return nil, err
	}

	w := fixedWeights[order]
	residuals := make([]int64, len(samples))
	copy(residuals, samples[:order])
	for i := order; i < len(samples); i++ {
		residuals[i] = samples[i] - dot(w, samples, i)
	}

	return residuals, nil
}

// BestFixedOrder returns the fixed order with the smallest sum of absolute
// residuals. Ties go to the lowest order; orders longer than the block are
// not considered.
func BestFixedOrder(samples []int64) (int, error) {
	if len(samples) == 0 {
		return 0, errs.ErrEmptyBlock
	}

	best, bestSum := -1, uint64(0)
	for order := 0; order <= MaxFixedOrder; order++ {
		if checkFixedOrder(len(samples), order) != nil {
			continue
		}

		sum := fixedAbsSum(samples, order)
		if best < 0 || sum < bestSum {
			best, bestSum = order, sum
		}
	}

	return best, nil
}

// RestoreFixed reconstructs samples from fixed predictor residuals.
func RestoreFixed(residuals []int64, order int) ([]int64, error) {
	if err := checkFixedOrder(len(residuals), order); err != nil {
		return nil, err
	}

	w := fixedWeights[order]
	samples := make([]int64, len(residuals))
	copy(samples, residuals[:order])
	for i := order; i < len(residuals); i++ {
		samples[i] = residuals[i] + dot(w, samples, i)
	}

	return samples, nil
}

func fixedAbsSum(samples []int64, order int) uint64 {
	w := fixedWeights[order]

	var sum uint64
	for i, s := range samples {
		if i >= order {
			s -= dot(w, samples, i)
		}
		sum += abs(s)
	}

	return sum
}

// dot returns Σ w[j]·s[i-1-j].
func dot(w []int64, s []int64, i int) int64 {
	var acc int64
	for j, c := range w {
		acc += c * s[i-1-j]
	}

	return acc
}

func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-v) //nolint:gosec
	}

	return uint64(v)
}
