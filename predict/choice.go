package predict

import (
	"fmt"
	"math/bits"

	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/format"
)

// Side information field widths, matching the FLAC subframe layout.
const (
	precisionFieldBits = 4
	shiftFieldBits     = 5
)

// Choice is the predictor selected for one channel of one block.
//
// Kind discriminates the variant: fixed choices only use Order, LPC choices
// also carry the quantized coefficients, their precision and the shift.
type Choice struct {
	Kind      format.PredictorKind
	Order     int
	Coeffs    []int64
	Precision int
	Shift     int
}

// FixedChoice returns the fixed predictor of the given order.
func FixedChoice(order int) Choice {
	return Choice{Kind: format.PredictorFixed, Order: order}
}

// Choice converts the LPC into a predictor choice.
func (l LPC) Choice() Choice {
	return Choice{
		Kind:      format.PredictorLPC,
		Order:     l.Order,
		Coeffs:    l.Coeffs,
		Precision: l.Precision,
		Shift:     l.Shift,
	}
}

// Residuals applies the chosen predictor to samples.
func (c Choice) Residuals(samples []int64) ([]int64, error) {
	switch c.Kind {
	case format.PredictorFixed:
		return FixedResiduals(samples, c.Order)
	case format.PredictorLPC:
		return LPCResiduals(samples, c.Coeffs, c.Shift)
	default:
		return nil, fmt.Errorf("%w: predictor kind %s", errs.ErrParameter, c.Kind)
	}
}

// Restore inverts Residuals.
func (c Choice) Restore(residuals []int64) ([]int64, error) {
	switch c.Kind {
	case format.PredictorFixed:
		return RestoreFixed(residuals, c.Order)
	case format.PredictorLPC:
		return RestoreLPC(residuals, c.Coeffs, c.Shift)
	default:
		return nil, fmt.Errorf("%w: predictor kind %s", errs.ErrParameter, c.Kind)
	}
}

// WarmupBits is the cost of storing the warm-up samples verbatim.
func (c Choice) WarmupBits(bps int) int {
	return c.Order * bps
}

// SideInfoBits is the cost of the predictor parameters beyond the warm-up:
// nothing for fixed predictors, precision and shift fields plus the
// coefficients for LPC.
func (c Choice) SideInfoBits() int {
	if c.Kind != format.PredictorLPC {
		return 0
	}

	return precisionFieldBits + shiftFieldBits + c.Order*c.CoeffBits()
}

// CoeffBits is the signed width each LPC coefficient is charged: at least
// Precision, more when a quantized coefficient needs it. QuantizeCoeffs can
// produce magnitudes up to 2^(precision+1).
func (c Choice) CoeffBits() int {
	width := c.Precision
	for _, q := range c.Coeffs {
		u := uint64(q) //nolint:gosec
		if q < 0 {
			u = ^u
		}
		width = max(width, bits.Len64(u)+1)
	}

	return width
}

func (c Choice) String() string {
	if c.Kind == format.PredictorLPC {
		return fmt.Sprintf("LPC(order=%d, precision=%d, shift=%d)", c.Order, c.Precision, c.Shift)
	}

	return fmt.Sprintf("%s(order=%d)", c.Kind, c.Order)
}
