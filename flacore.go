// Package flacore is the encoding core of a FLAC-style lossless audio
// encoder.
//
// It reads integer PCM from RIFF/RIFX WAVE files, splits the audio into
// blocks, picks the cheapest predictor for every channel of every block
// (fixed polynomial or quantized LPC), and Rice-codes the residuals with an
// optimal partitioning. The encoded blocks are handed to a sink, typically a
// blockio.Writer that frames them for an external muxer.
//
// # Basic Usage
//
// Encoding a file into a block stream:
//
//	in, _ := flacore.OpenWAV("take1.wav")
//	defer in.Close()
//
//	enc, _ := flacore.NewDefaultEncoder()
//	stats, err := flacore.EncodeStream(ctx, enc, in, out)
//
// Reading the block stream back:
//
//	r, _ := flacore.NewStreamReader(src)
//	for block := range r.All() {
//	    for _, sub := range block.Channels {
//	        samples, _ := pipeline.Reconstruct(sub)
//	        _ = samples
//	    }
//	}
//	if err := r.Err(); err != nil {
//	    // handle corrupt stream
//	}
//
// # Packages
//
//   - wav: PCM container reader
//   - predict: fixed and LPC predictors
//   - rice: Rice coding and partition search
//   - pipeline: block encoder and file driver
//   - blockio: block stream writer and reader
//   - crc, utf8num: checksum and integer codecs used by the muxer
//
// # Thread Safety
//
// Encoders are safe for concurrent use once built. wav.File, blockio.Writer
// and blockio.Reader are not.
package flacore

import (
	"context"
	"fmt"
	"io"

	"github.com/arloliu/flacore/blockio"
	"github.com/arloliu/flacore/format"
	"github.com/arloliu/flacore/pipeline"
	"github.com/arloliu/flacore/wav"
)

var defaultEncoderOptions = []pipeline.Option{
	pipeline.WithBlockSize(pipeline.DefaultBlockSize),
	pipeline.WithLPC(true),
	pipeline.WithChecksum(true),
}

var defaultStreamOptions = []blockio.Option{
	blockio.WithCompression(format.CompressionNone),
	blockio.WithBigEndian(false),
}

// OpenWAV opens a WAVE file for reading.
func OpenWAV(path string, opts ...wav.Option) (*wav.File, error) {
	return wav.Open(path, opts...)
}

// NewEncoder creates a block encoder from explicit options.
func NewEncoder(opts ...pipeline.Option) (*pipeline.Encoder, error) {
	return pipeline.NewEncoder(opts...)
}

// NewDefaultEncoder creates an encoder with 4096-frame blocks, LPC search
// and per-subblock checksums.
func NewDefaultEncoder() (*pipeline.Encoder, error) {
	return pipeline.NewEncoder(defaultEncoderOptions...)
}

// NewVerifyingEncoder is NewDefaultEncoder plus opts, with every subblock
// decoded and compared against its input before it is emitted.
func NewVerifyingEncoder(opts ...pipeline.Option) (*pipeline.Encoder, error) {
	allOpts := append(append(append([]pipeline.Option{}, defaultEncoderOptions...), opts...), pipeline.WithVerify(true))

	return pipeline.NewEncoder(allOpts...)
}

// NewStreamWriter writes a block stream header for f to w.
func NewStreamWriter(w io.Writer, f wav.Format, blockSize int, opts ...blockio.Option) (*blockio.Writer, error) {
	allOpts := append(append([]blockio.Option{}, defaultStreamOptions...), opts...)

	return blockio.NewWriter(w, f, blockSize, allOpts...)
}

// NewStreamReader reads a block stream header from r.
func NewStreamReader(r io.Reader) (*blockio.Reader, error) {
	return blockio.NewReader(r)
}

// EncodeStream encodes every frame of in and writes the blocks, then the
// trailer, to w. The trailer is not written when encoding fails.
//
// Returns:
//   - pipeline.Stats: Counters of the run, including the audio signature
//   - error: First error from the reader, the encoder or the stream writer
func EncodeStream(ctx context.Context, enc *pipeline.Encoder, in *wav.File, w io.Writer, opts ...blockio.Option) (pipeline.Stats, error) {
	sw, err := NewStreamWriter(w, in.Format(), enc.BlockSize(), opts...)
	if err != nil {
		return pipeline.Stats{}, err
	}

	stats, err := enc.EncodeFile(ctx, in, sw.WriteBlock)
	if err != nil {
		return stats, err
	}

	if err := sw.Close(stats.Signature); err != nil {
		return stats, fmt.Errorf("finish stream: %w", err)
	}

	return stats, nil
}
