// Package blockio serializes encoded blocks into a simple framed stream that
// an external muxer consumes.
//
// Layout:
//
//	header:  "FLCB" | version u8 | flags u8 | channels u16 | sample rate u32 |
//	         bits per sample u16 | block size u32
//	record:  sync 0xFFF8 | block index (utf8num) | frames (uvarint) |
//	         channels u8 | per-channel side info | CRC-8 |
//	         payload length u32 | payload | CRC-16
//	trailer: "FEND" | block count u32 | signature u64
//
// Per-channel side info is: kind u8, order u8, for LPC precision u8 and
// shift i8 followed by the coefficients, the warm-up samples (all zigzag
// varints), partition order u8, one parameter byte per partition, one
// uvarint bit length per partition stream and the subblock CRC-16.
//
// The flags byte holds the byte order of multi-byte fields in bit 0 (set
// for big-endian) and the payload compression type in bits 4-7. The CRC-8
// covers the record from the sync code up to itself; the CRC-16 covers the
// stored, possibly compressed, payload.
package blockio

import (
	"fmt"

	"github.com/arloliu/flacore/endian"
	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/format"
	"github.com/arloliu/flacore/wav"
)

const (
	// Version is the stream format version written by Writer.
	Version = 1

	headerSize  = 18
	trailerSize = 16

	// maxPayloadSize bounds the stored payload of one record.
	maxPayloadSize = 1 << 28

	flagBigEndian   = 0x01
	compressionBits = 4
)

var (
	streamMagic  = [4]byte{'F', 'L', 'C', 'B'}
	trailerMagic = [4]byte{'F', 'E', 'N', 'D'}
	recordSync   = [2]byte{0xFF, 0xF8}
)

// Header describes the stream.
type Header struct {
	Format      wav.Format
	BlockSize   uint32
	Compression format.CompressionType
	BigEndian   bool
}

// Trailer closes the stream.
type Trailer struct {
	Blocks    uint32
	Signature uint64
}

func (h Header) engine() endian.EndianEngine {
	if h.BigEndian {
		return endian.GetBigEndianEngine()
	}

	return endian.GetLittleEndianEngine()
}

func (h Header) flags() byte {
	f := byte(h.Compression) << compressionBits
	if h.BigEndian {
		f |= flagBigEndian
	}

	return f
}

func (h Header) appendTo(dst []byte) []byte {
	engine := h.engine()

	dst = append(dst, streamMagic[:]...)
	dst = append(dst, Version, h.flags())
	dst = engine.AppendUint16(dst, h.Format.Channels)
	dst = engine.AppendUint32(dst, h.Format.SampleRate)
	dst = engine.AppendUint16(dst, h.Format.BitsPerSample)
	dst = engine.AppendUint32(dst, h.BlockSize)

	return dst
}

func parseHeader(b []byte) (Header, error) {
	if len(b) != headerSize || [4]byte(b[0:4]) != streamMagic {
		return Header{}, fmt.Errorf("%w: bad magic", errs.ErrInvalidStreamHeader)
	}
	if b[4] != Version {
		return Header{}, fmt.Errorf("%w: version %d", errs.ErrInvalidStreamHeader, b[4])
	}

	h := Header{
		Compression: format.CompressionType(b[5] >> compressionBits),
		BigEndian:   b[5]&flagBigEndian != 0,
	}
	engine := h.engine()
	h.Format = wav.Format{
		Channels:      engine.Uint16(b[6:8]),
		SampleRate:    engine.Uint32(b[8:12]),
		BitsPerSample: engine.Uint16(b[12:14]),
	}
	h.BlockSize = engine.Uint32(b[14:18])

	if h.Format.Channels == 0 {
		return Header{}, fmt.Errorf("%w: zero channels", errs.ErrInvalidStreamHeader)
	}

	return h, nil
}
