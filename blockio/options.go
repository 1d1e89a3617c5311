package blockio

import (
	"github.com/arloliu/flacore/format"
	"github.com/arloliu/flacore/internal/options"
)

// Option configures a Writer.
type Option = options.Option[*Header]

// WithCompression compresses record payloads with the given codec.
func WithCompression(ct format.CompressionType) Option {
	return options.NoError(func(h *Header) {
		h.Compression = ct
	})
}

// WithBigEndian writes multi-byte fields big-endian.
func WithBigEndian(enabled bool) Option {
	return options.NoError(func(h *Header) {
		h.BigEndian = enabled
	})
}
