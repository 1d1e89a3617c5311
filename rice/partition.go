package rice

import (
	"fmt"
	"math/bits"

	"github.com/arloliu/flacore/errs"
)

const (
	// MaxPartitionOrderLimit is the largest partition order a 4-bit field holds.
	MaxPartitionOrderLimit = 15

	methodFieldBits    = 2
	orderFieldBits     = 4
	paramFieldBits     = 4
	wideParamFieldBits = 5

	// wideSampleBits is the widest sample whose residuals are searched with
	// the narrow parameter range.
	wideSampleBits = 16
)

// Plan is the chosen partitioning of one residual block.
//
// The block is split into 2^Order equal partitions; partition 0 starts after
// the predictor warm-up, so it is predictorOrder samples shorter.
type Plan struct {
	Order  int
	Params []uint8
	Bits   uint64 // estimated coded residual bits, headers excluded
}

// Partitioned is a plan together with one coded stream per partition.
type Partitioned struct {
	Plan
	Streams []Stream
}

// Partitions returns the number of partitions, 2^Order.
func (p Plan) Partitions() int {
	return 1 << p.Order
}

// HeaderBits returns the size of the residual coding header: method, order
// and one parameter field per partition.
func (p Plan) HeaderBits() int {
	return methodFieldBits + orderFieldBits + p.ParamFieldBits()*len(p.Params)
}

// ParamFieldBits returns the width of each parameter field: 4 bits while
// every parameter is at most MaxSearchParam, 5 bits otherwise.
func (p Plan) ParamFieldBits() int {
	for _, m := range p.Params {
		if m > MaxSearchParam {
			return wideParamFieldBits
		}
	}

	return paramFieldBits
}

// Bounds returns the half-open residual range of partition idx in a block of
// n residuals whose first predictorOrder entries are warm-up.
func (p Plan) Bounds(n, predictorOrder, idx int) (int, int) {
	return partitionBounds(n, predictorOrder, p.Order, idx)
}

func partitionBounds(n, predictorOrder, order, idx int) (int, int) {
	size := n >> order
	start, end := idx*size, (idx+1)*size
	if idx == 0 {
		start = predictorOrder
	}

	return start, end
}

// MaxPartitionOrder returns the largest order whose partitions evenly divide
// blockSize: its number of trailing zero bits, capped at 15.
func MaxPartitionOrder(blockSize int) int {
	if blockSize <= 0 {
		return 0
	}

	return min(MaxPartitionOrderLimit, bits.TrailingZeros(uint(blockSize)))
}

// EstimateBits approximates the coded size of k residuals whose absolute
// values sum to absSum, using parameter m: k + k·m + absSum>>m.
func EstimateBits(k int, m uint8, absSum uint64) uint64 {
	return uint64(k) + uint64(k)*uint64(m) + absSum>>m //nolint:gosec
}

// SearchLimit returns the largest parameter worth searching for residuals of
// bps-bit samples: MaxSearchParam up to 16 bits, MaxParam above.
func SearchLimit(bps int) uint8 {
	if bps > wideSampleBits {
		return MaxParam
	}

	return MaxSearchParam
}

// bestParam returns the parameter in 0..limit with the lowest estimate. Ties
// go to the lowest parameter.
func bestParam(k int, absSum uint64, limit uint8) (uint8, uint64) {
	best, bestBits := uint8(0), EstimateBits(k, 0, absSum)
	for m := uint8(1); m <= limit; m++ {
		if b := EstimateBits(k, m, absSum); b < bestBits {
			best, bestBits = m, b
		}
	}

	return best, bestBits
}

// BestPlan searches partition orders 0..MaxPartitionOrder(len(residuals)) and
// returns the one with the lowest estimated size. Ties go to the lowest order.
// Orders whose first partition would be shorter than the warm-up are skipped.
//
// Parameters:
//   - residuals: Full block of residuals including the warm-up entries
//   - predictorOrder: Number of leading warm-up entries that are never coded
//
// Returns:
//   - Plan: Chosen order, one parameter per partition, estimated bits
//   - error: ErrEmptyBlock, ErrPredictorOrder if predictorOrder is out of range,
//     or ErrPartitionOrder if no order is usable
func BestPlan(residuals []int64, predictorOrder int) (Plan, error) {
	return BestPlanWithLimit(residuals, predictorOrder, MaxSearchParam)
}

// BestPlanWithLimit is BestPlan with parameters searched over 0..maxParam.
// Wide samples need parameters above MaxSearchParam; see SearchLimit.
func BestPlanWithLimit(residuals []int64, predictorOrder int, maxParam uint8) (Plan, error) {
	if maxParam > MaxParam {
		return Plan{}, fmt.Errorf("%w: search limit %d", errs.ErrRiceParam, maxParam)
	}

	n := len(residuals)
	if n == 0 {
		return Plan{}, errs.ErrEmptyBlock
	}
	if predictorOrder < 0 || predictorOrder > n {
		return Plan{}, fmt.Errorf("%w: predictor order %d for %d residuals", errs.ErrPredictorOrder, predictorOrder, n)
	}

	prefix := make([]uint64, n+1)
	for i, r := range residuals {
		a := uint64(r)
		if r < 0 {
			a = uint64(-r)
		}
		prefix[i+1] = prefix[i] + a
	}

	var best Plan
	found := false
	for order := 0; order <= MaxPartitionOrder(n); order++ {
		plan, err := planForOrder(prefix, n, predictorOrder, order, maxParam)
		if err != nil {
			continue
		}
		if !found || plan.Bits < best.Bits {
			best, found = plan, true
		}
	}
	if !found {
		return Plan{}, fmt.Errorf("%w: no usable order for %d residuals", errs.ErrPartitionOrder, n)
	}

	return best, nil
}

func planForOrder(prefix []uint64, n, predictorOrder, order int, maxParam uint8) (Plan, error) {
	if n>>order < predictorOrder {
		return Plan{}, fmt.Errorf("%w: order %d leaves partition 0 negative", errs.ErrPartitionOrder, order)
	}

	plan := Plan{Order: order, Params: make([]uint8, 1<<order)}
	for idx := range plan.Params {
		start, end := partitionBounds(n, predictorOrder, order, idx)
		param, b := bestParam(end-start, prefix[end]-prefix[start], maxParam)
		plan.Params[idx] = param
		plan.Bits += b
	}

	return plan, nil
}

// EncodeByPartition picks the best plan and codes each partition with its
// parameter. Warm-up residuals are not coded.
func EncodeByPartition(residuals []int64, predictorOrder int) (Partitioned, error) {
	plan, err := BestPlan(residuals, predictorOrder)
	if err != nil {
		return Partitioned{}, err
	}

	return EncodeWithPlan(residuals, predictorOrder, plan)
}

// EncodeWithPlan codes residuals with an existing plan.
func EncodeWithPlan(residuals []int64, predictorOrder int, plan Plan) (Partitioned, error) {
	out := Partitioned{Plan: plan, Streams: make([]Stream, len(plan.Params))}
	for idx, param := range plan.Params {
		start, end := plan.Bounds(len(residuals), predictorOrder, idx)
		s, err := Encode(param, residuals[start:end])
		if err != nil {
			return Partitioned{}, fmt.Errorf("partition %d: %w", idx, err)
		}
		out.Streams[idx] = s
	}

	return out, nil
}

// DecodePartitioned reverses EncodeWithPlan, returning the coded residuals
// of every partition concatenated (warm-up excluded).
func DecodePartitioned(p Partitioned, n, predictorOrder int) ([]int64, error) {
	if predictorOrder < 0 || predictorOrder > n {
		return nil, fmt.Errorf("%w: predictor order %d for %d residuals", errs.ErrPredictorOrder, predictorOrder, n)
	}
	if len(p.Streams) != len(p.Params) {
		return nil, fmt.Errorf("%w: %d streams for %d partitions", errs.ErrPartitionOrder, len(p.Streams), len(p.Params))
	}

	out := make([]int64, 0, n-predictorOrder)
	for idx, s := range p.Streams {
		start, end := p.Bounds(n, predictorOrder, idx)
		vals, err := Decode(s, end-start)
		if err != nil {
			return nil, fmt.Errorf("partition %d: %w", idx, err)
		}
		out = append(out, vals...)
	}

	return out, nil
}

// CodedBits returns the total BitLen of all streams.
func (p Partitioned) CodedBits() uint64 {
	var total uint64
	for _, s := range p.Streams {
		total += uint64(s.BitLen) //nolint:gosec
	}

	return total
}
