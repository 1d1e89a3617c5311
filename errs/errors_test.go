package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategories(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category error
	}{
		{"not container", ErrNotContainer, ErrFormat},
		{"not wave", ErrNotWave, ErrFormat},
		{"chunk type", ErrChunkType, ErrFormat},
		{"data alignment", ErrDataAlignment, ErrAlignment},
		{"not pcm", ErrNotPCM, ErrUnsupportedFormat},
		{"bit depth", ErrUnsupportedBitDepth, ErrUnsupportedFormat},
		{"predictor order", ErrPredictorOrder, ErrParameter},
		{"crc width", ErrCRCWidth, ErrParameter},
		{"varint range", ErrVarintRange, ErrParameter},
		{"varint malformed", ErrVarintMalformed, ErrFormat},
		{"stream header", ErrInvalidStreamHeader, ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("open test.wav: %w", tt.err)
			require.ErrorIs(t, wrapped, tt.err)
			require.ErrorIs(t, wrapped, tt.category)
		})
	}
}

func TestCategoriesAreDistinct(t *testing.T) {
	require.False(t, errors.Is(ErrNotPCM, ErrFormat))
	require.False(t, errors.Is(ErrDataAlignment, ErrFormat))
	require.False(t, errors.Is(ErrPredictorOrder, ErrFormat))
}
