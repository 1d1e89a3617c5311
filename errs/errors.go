// Package errs defines the sentinel errors shared by every flacore package.
//
// Errors are grouped by category. Each specific error wraps its category, so
// callers can match either the precise condition or the whole class:
//
//	if errors.Is(err, errs.ErrFormat) {
//	    // any malformed-container error
//	}
//	if errors.Is(err, errs.ErrNotWave) {
//	    // only the WAVE type tag mismatch
//	}
package errs

import (
	"errors"
	"fmt"
)

// Error categories.
var (
	// ErrFormat reports a malformed container, tag mismatch or corrupt encoding.
	ErrFormat = errors.New("format error")
	// ErrAlignment reports declared byte rate or block alignment that disagrees
	// with the values derived from the format descriptor.
	ErrAlignment = errors.New("alignment error")
	// ErrUnsupportedFormat reports well-formed input the encoder cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrIO wraps failures of the underlying reader or file.
	ErrIO = errors.New("io error")
	// ErrParameter reports an out-of-range argument. Search loops treat it as
	// "no result" for a single candidate.
	ErrParameter = errors.New("parameter error")
)

// Container errors.
var (
	ErrNotContainer        = fmt.Errorf("%w: not a RIFF/RIFX container", ErrFormat)
	ErrNotWave             = fmt.Errorf("%w: container type is not WAVE", ErrFormat)
	ErrChunkType           = fmt.Errorf("%w: unexpected chunk type", ErrFormat)
	ErrDataAlignment       = fmt.Errorf("%w: byte rate or block align mismatch", ErrAlignment)
	ErrNotPCM              = fmt.Errorf("%w: audio format is not integer PCM", ErrUnsupportedFormat)
	ErrUnsupportedBitDepth = fmt.Errorf("%w: bits per sample must be 8, 16, 24 or 32", ErrUnsupportedFormat)
)

// Predictor and entropy coder errors.
var (
	ErrEmptyBlock      = fmt.Errorf("%w: empty sample block", ErrParameter)
	ErrPredictorOrder  = fmt.Errorf("%w: predictor order out of range", ErrParameter)
	ErrRiceParam       = fmt.Errorf("%w: rice parameter out of range", ErrParameter)
	ErrPartitionOrder  = fmt.Errorf("%w: partition order out of range", ErrParameter)
	ErrBlockSize       = fmt.Errorf("%w: block size out of range", ErrParameter)
	ErrCRCWidth        = fmt.Errorf("%w: crc width must be 8 or 16", ErrParameter)
	ErrVarintRange     = fmt.Errorf("%w: value exceeds 0x7FFFFFFF", ErrParameter)
	ErrVarintMalformed = fmt.Errorf("%w: malformed variable-length integer", ErrFormat)
)

// Block stream and pipeline errors.
var (
	ErrInvalidStreamHeader = fmt.Errorf("%w: invalid block stream header", ErrFormat)
	ErrInvalidRecord       = fmt.Errorf("%w: invalid block record", ErrFormat)
	ErrChecksum            = errors.New("checksum mismatch")
	ErrLosslessMismatch    = errors.New("reconstructed samples differ from input")
	ErrEncoderClosed       = errors.New("encoder already closed")
)
