// Package hash computes the xxHash64 audio signature of a PCM stream.
package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Signature accumulates an xxHash64 over interleaved PCM samples. Each sample
// is hashed as 4 little-endian bytes, so the signature does not depend on the
// source bit depth's container layout.
type Signature struct {
	d   *xxhash.Digest
	tmp []byte
}

// NewSignature creates an empty signature.
func NewSignature() *Signature {
	return &Signature{d: xxhash.New(), tmp: make([]byte, 0, 4*64)}
}

// WriteFrame adds one inter-channel frame to the signature.
func (s *Signature) WriteFrame(frame []int32) {
	s.tmp = s.tmp[:0]
	for _, v := range frame {
		s.tmp = binary.LittleEndian.AppendUint32(s.tmp, uint32(v)) //nolint:gosec
	}
	_, _ = s.d.Write(s.tmp)
}

// Sum64 returns the current signature value.
func (s *Signature) Sum64() uint64 {
	return s.d.Sum64()
}
