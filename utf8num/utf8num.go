// Package utf8num encodes unsigned integers up to 31 bits with the UTF-8
// multi-byte scheme, as FLAC frame headers do for frame and sample numbers.
//
//	| Range                  | Bytes | Lead byte |
//	|------------------------|-------|-----------|
//	| 0x00000000-0x0000007F  | 1     | 0xxxxxxx  |
//	| 0x00000080-0x000007FF  | 2     | 110xxxxx  |
//	| 0x00000800-0x0000FFFF  | 3     | 1110xxxx  |
//	| 0x00010000-0x001FFFFF  | 4     | 11110xxx  |
//	| 0x00200000-0x03FFFFFF  | 5     | 111110xx  |
//	| 0x04000000-0x7FFFFFFF  | 6     | 1111110x  |
//
// Continuation bytes are always 10xxxxxx.
package utf8num

import (
	"fmt"

	"github.com/arloliu/flacore/errs"
)

// MaxValue is the largest encodable value.
const MaxValue uint32 = 0x7FFFFFFF

// MaxLen is the longest encoding in bytes.
const MaxLen = 6

var limits = [MaxLen]uint32{0x7F, 0x7FF, 0xFFFF, 0x1FFFFF, 0x3FFFFFF, 0x7FFFFFFF}

// leadMarks[n-1] is the fixed prefix of an n-byte lead byte.
var leadMarks = [MaxLen]byte{0x00, 0xC0, 0xE0, 0xF0, 0xF8, 0xFC}

// Len returns the encoded length of n, or 0 if n exceeds MaxValue.
func Len(n uint32) int {
	for i, limit := range limits {
		if n <= limit {
			return i + 1
		}
	}

	return 0
}

// Encode returns the encoding of n.
//
// Returns:
//   - []byte: 1 to 6 bytes
//   - error: ErrVarintRange if n > MaxValue
func Encode(n uint32) ([]byte, error) {
	return Append(make([]byte, 0, MaxLen), n)
}

// Append appends the encoding of n to dst. dst is returned unchanged with
// ErrVarintRange if n > MaxValue.
func Append(dst []byte, n uint32) ([]byte, error) {
	size := Len(n)
	if size == 0 {
		return dst, fmt.Errorf("%w: %#x", errs.ErrVarintRange, n)
	}
	if size == 1 {
		return append(dst, byte(n)), nil
	}

	conts := size - 1
	dst = append(dst, leadMarks[conts]|byte(n>>(6*conts)))
	for i := conts - 1; i >= 0; i-- {
		dst = append(dst, 0x80|byte(n>>(6*i))&0x3F)
	}

	return dst, nil
}

// LenFromLead returns the total encoded length announced by a lead byte, or
// 0 if b cannot start an encoding.
func LenFromLead(b byte) int {
	if b&0x80 == 0 {
		return 1
	}
	for i := 1; i < MaxLen; i++ {
		if b&^(0xFF>>(i+2)) == leadMarks[i] {
			return i + 1
		}
	}

	return 0
}

// Decode parses one value from the start of b.
//
// Returns:
//   - uint32: Decoded value
//   - int: Number of bytes consumed
//   - error: ErrVarintMalformed on a bad lead or continuation byte,
//     truncated input, or an overlong encoding
func Decode(b []byte) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("%w: empty input", errs.ErrVarintMalformed)
	}

	lead := b[0]
	if lead&0x80 == 0 {
		return uint32(lead), 1, nil
	}

	size := LenFromLead(lead)
	if size == 0 {
		return 0, 0, fmt.Errorf("%w: lead byte %#x", errs.ErrVarintMalformed, lead)
	}
	if len(b) < size {
		return 0, 0, fmt.Errorf("%w: need %d bytes, have %d", errs.ErrVarintMalformed, size, len(b))
	}

	n := uint32(lead & (0xFF >> (size + 1)))
	for _, c := range b[1:size] {
		if c&0xC0 != 0x80 {
			return 0, 0, fmt.Errorf("%w: continuation byte %#x", errs.ErrVarintMalformed, c)
		}
		n = n<<6 | uint32(c&0x3F)
	}

	if Len(n) != size {
		return 0, 0, fmt.Errorf("%w: overlong %d-byte form of %#x", errs.ErrVarintMalformed, size, n)
	}

	return n, size, nil
}
