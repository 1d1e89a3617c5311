// Package crc implements a direct, non-reflected CRC over 8- or 16-bit
// registers.
//
// The engine takes the polynomial without its implicit leading 1 bit, starts
// from a zero register and applies no final XOR, which matches the CRC-8 and
// CRC-16 used in FLAC frame headers and footers.
package crc

import (
	"fmt"

	"github.com/arloliu/flacore/errs"
)

// Well-known polynomials.
const (
	PolyCRC8  uint16 = 0x07   // x^8 + x^2 + x + 1
	PolyCRC16 uint16 = 0x8005 // x^16 + x^15 + x^2 + 1
)

// Params is a validated (poly, width) pair.
type Params struct {
	poly  uint16
	width uint8
	mask  uint32
	top   uint32
}

// New validates width and returns the CRC parameters.
//
// Parameters:
//   - poly: Generator polynomial without its leading 1 bit
//   - width: Register width in bits, 8 or 16
//
// Returns:
//   - Params: Ready-to-use parameters
//   - error: ErrCRCWidth for any other width
func New(poly uint16, width uint8) (Params, error) {
	if width != 8 && width != 16 {
		return Params{}, fmt.Errorf("%w: got %d", errs.ErrCRCWidth, width)
	}

	mask := uint32(1)<<width - 1

	return Params{
		poly:  uint16(uint32(poly) & mask),
		width: width,
		mask:  mask,
		top:   uint32(1) << (width - 1),
	}, nil
}

// Width returns the register width in bits.
func (p Params) Width() uint8 {
	return p.width
}

// Build computes the checksum of units. Each unit is masked to the register
// width, XORed into the register, and then shifted through width rounds of
// polynomial division.
func (p Params) Build(units []uint16) uint16 {
	var reg uint32
	for _, u := range units {
		reg = p.update(reg, uint32(u)&p.mask)
	}

	return uint16(reg)
}

// Bytes computes the checksum of data fed one byte per unit. For 16-bit
// parameters each byte is XORed into the top of the register and shifted
// eight times, which is the usual byte-wise formulation.
func (p Params) Bytes(data []byte) uint16 {
	var reg uint32
	shift := p.width - 8
	for _, b := range data {
		reg ^= uint32(b) << shift
		for range 8 {
			reg = p.step(reg)
		}
	}

	return uint16(reg)
}

func (p Params) update(reg, unit uint32) uint32 {
	reg ^= unit
	for range p.width {
		reg = p.step(reg)
	}

	return reg
}

func (p Params) step(reg uint32) uint32 {
	if reg&p.top != 0 {
		return (reg<<1 ^ uint32(p.poly)) & p.mask
	}

	return reg << 1 & p.mask
}
