package compress

// ZstdCodec compresses block payloads with Zstandard.
//
// The pure Go implementation from klauspost/compress is used unless the
// module is built with the gozstd tag and cgo enabled.
type ZstdCodec struct{}

var _ Codec = (*ZstdCodec)(nil)

// NewZstdCodec creates a new Zstd codec with default settings.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{}
}
