// Package compress provides optional general-purpose codecs applied to the
// serialized block payloads written by package blockio.
//
// Rice coding already removes most redundancy from prediction residuals, so
// the default is format.CompressionNone. The other codecs are useful when the
// residual streams still carry structure, for example long runs of digital
// silence that pack into identical bytes.
//
// Supported algorithms:
//   - None: payload is stored as-is
//   - Zstd: best ratio; pure Go by default, cgo libzstd with the gozstd build tag
//   - S2: fast with a reasonable ratio
//   - LZ4: fastest decompression
//
// All codecs are stateless values and safe for concurrent use. Zstd and LZ4
// keep their encoders in sync.Pools internally.
//
// Example:
//
//	codec, err := compress.CreateCodec(format.CompressionZstd, "block payload")
//	if err != nil {
//	    return err
//	}
//	packed, err := codec.Compress(payload)
package compress
