// Package rice implements partitioned Rice coding of prediction residuals.
//
// A value v is coded with parameter m as v>>m one bits, a terminating zero
// bit, and the low m bits of v MSB-first. Signed residuals are zigzag-folded
// first (0, -1, 1, -2, 2 map to 0, 1, 2, 3, 4). Bits are packed MSB-first
// with github.com/icza/bitio; the final byte is zero-padded.
package rice

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"

	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/internal/pool"
)

const (
	// MaxParam is the largest parameter EncodeFolded accepts.
	MaxParam = 30
	// MaxSearchParam is the largest parameter the partition search tries.
	MaxSearchParam = 14
)

// Stream is one Rice-coded run of values.
type Stream struct {
	Bytes    []byte
	Param    uint8
	BitLen   int // number of coded bits
	TailBits int // valid bits in the last byte: 1..8, or 0 for an empty stream
}

// Fold maps a signed residual onto the unsigned integers.
func Fold(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63) //nolint:gosec
}

// Unfold inverts Fold.
func Unfold(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1) //nolint:gosec
}

// Encode zigzag-folds residuals and codes them with param.
func Encode(param uint8, residuals []int64) (Stream, error) {
	folded := make([]uint64, len(residuals))
	for i, r := range residuals {
		folded[i] = Fold(r)
	}

	return EncodeFolded(param, folded)
}

// EncodeFolded codes already non-negative values with param.
//
// Returns:
//   - Stream: Packed bits with the trailing byte zero-padded
//   - error: ErrRiceParam if param > MaxParam
func EncodeFolded(param uint8, values []uint64) (Stream, error) {
	if param > MaxParam {
		return Stream{}, fmt.Errorf("%w: %d", errs.ErrRiceParam, param)
	}

	buf := pool.GetStreamBuffer()
	defer pool.PutStreamBuffer(buf)
	buf.Grow(len(values)*(int(param)+2)/8 + 1)

	w := bitio.NewWriter(buf)
	mask := uint64(1)<<param - 1

	var bitLen int
	for _, v := range values {
		n, err := writeValue(w, param, mask, v)
		if err != nil {
			return Stream{}, fmt.Errorf("%w: rice pack: %w", errs.ErrIO, err)
		}
		bitLen += n
	}
	if err := w.Close(); err != nil {
		return Stream{}, fmt.Errorf("%w: rice flush: %w", errs.ErrIO, err)
	}

	tail := bitLen % 8
	if tail == 0 && bitLen > 0 {
		tail = 8
	}

	return Stream{
		Bytes:    buf.Clone(),
		Param:    param,
		BitLen:   bitLen,
		TailBits: tail,
	}, nil
}

// writeValue emits one Rice code and returns its length in bits.
func writeValue(w *bitio.Writer, param uint8, mask uint64, v uint64) (int, error) {
	q := v >> param
	n := int(q) + 1 + int(param) //nolint:gosec

	for ; q >= 32; q -= 32 {
		if err := w.WriteBits(0xFFFFFFFF, 32); err != nil {
			return 0, err
		}
	}
	// q ones followed by the terminating zero
	if err := w.WriteBits((uint64(1)<<q-1)<<1, uint8(q+1)); err != nil { //nolint:gosec
		return 0, err
	}
	if param > 0 {
		if err := w.WriteBits(v&mask, param); err != nil {
			return 0, err
		}
	}

	return n, nil
}

// Decode reads count residuals back from s.
func Decode(s Stream, count int) ([]int64, error) {
	folded, err := DecodeFolded(s, count)
	if err != nil {
		return nil, err
	}

	out := make([]int64, len(folded))
	for i, u := range folded {
		out[i] = Unfold(u)
	}

	return out, nil
}

// DecodeFolded reads count unsigned values back from s.
func DecodeFolded(s Stream, count int) ([]uint64, error) {
	if s.Param > MaxParam {
		return nil, fmt.Errorf("%w: %d", errs.ErrRiceParam, s.Param)
	}

	r := bitio.NewReader(bytes.NewReader(s.Bytes))
	out := make([]uint64, count)
	consumed := 0
	for i := range out {
		var q uint64
		for {
			if consumed >= s.BitLen {
				return nil, fmt.Errorf("%w: rice stream ends after %d of %d values", errs.ErrFormat, i, count)
			}
			bit, err := r.ReadBool()
			if err != nil {
				return nil, fmt.Errorf("%w: rice unary: %w", errs.ErrFormat, err)
			}
			consumed++
			if !bit {
				break
			}
			q++
		}

		var rem uint64
		if s.Param > 0 {
			var err error
			if rem, err = r.ReadBits(s.Param); err != nil {
				return nil, fmt.Errorf("%w: rice remainder: %w", errs.ErrFormat, err)
			}
			consumed += int(s.Param)
		}
		out[i] = q<<s.Param | rem
	}

	return out, nil
}

// ExactBits returns the exact coded size of residuals with param.
func ExactBits(param uint8, residuals []int64) uint64 {
	bits := uint64(len(residuals)) * (uint64(param) + 1)
	for _, r := range residuals {
		bits += Fold(r) >> param
	}

	return bits
}
