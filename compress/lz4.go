package compress

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/flacore/errs"
)

// maxLZ4Payload bounds the declared decompressed size so a corrupted prefix
// cannot force a huge allocation.
const maxLZ4Payload = 128 * 1024 * 1024

var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Codec compresses block payloads with LZ4 block compression.
//
// LZ4 blocks do not record their decompressed size, so the codec prefixes
// the block with a uvarint holding size<<1 | stored. The stored bit marks
// input that LZ4 could not shrink and that follows the prefix verbatim.
type LZ4Codec struct{}

var _ Codec = (*LZ4Codec)(nil)

// NewLZ4Codec creates a new LZ4 codec.
func NewLZ4Codec() LZ4Codec {
	return LZ4Codec{}
}

// Compress compresses data using a pooled lz4.Compressor.
//
// Parameters:
//   - data: Input data to compress
//
// Returns:
//   - []byte: uvarint prefix followed by the LZ4 block or raw data (nil if input is empty)
//   - error: Compression error if any
func (c LZ4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, binary.MaxVarintLen64+lz4.CompressBlockBound(len(data)))
	size := uint64(len(data)) << 1

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst[binary.MaxVarintLen64:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 {
		out := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(data)), size|1)
		return append(out, data...), nil
	}

	hdr := binary.PutUvarint(dst, size)
	copy(dst[hdr:], dst[binary.MaxVarintLen64:binary.MaxVarintLen64+n])

	return dst[:hdr+n], nil
}

// Decompress decompresses data produced by Compress.
func (c LZ4Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	prefix, hdr := binary.Uvarint(data)
	size := prefix >> 1
	if hdr <= 0 || size > maxLZ4Payload {
		return nil, fmt.Errorf("%w: lz4 size prefix", errs.ErrFormat)
	}
	if prefix&1 == 1 {
		if uint64(len(data)-hdr) != size {
			return nil, fmt.Errorf("%w: lz4 stored block length", errs.ErrFormat)
		}

		return append([]byte(nil), data[hdr:]...), nil
	}

	buf := make([]byte, size)
	n, err := lz4.UncompressBlock(data[hdr:], buf)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	if uint64(n) != size {
		return nil, fmt.Errorf("%w: lz4 decompressed %d bytes, want %d", errs.ErrFormat, n, size)
	}

	return buf, nil
}
