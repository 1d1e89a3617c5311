package hash

import (
	"encoding/binary"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature_Vectors(t *testing.T) {
	tests := []struct {
		name   string
		frames [][]int32
		want   uint64
	}{
		{"empty", nil, 0xef46db3751d8e999},
		// one sample whose little-endian bytes spell "test"
		{"test", [][]int32{{0x74736574}}, 0x4fdcca5ddb678139},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := NewSignature()
			for _, f := range tt.frames {
				sig.WriteFrame(f)
			}
			assert.Equal(t, tt.want, sig.Sum64())
		})
	}
}

func TestSignature(t *testing.T) {
	frames := [][]int32{{1, -1}, {32767, -32768}, {0, 42}}

	sig := NewSignature()
	var raw []byte
	for _, f := range frames {
		sig.WriteFrame(f)
		for _, v := range f {
			raw = binary.LittleEndian.AppendUint32(raw, uint32(v))
		}
	}

	require.Equal(t, xxhash.Sum64(raw), sig.Sum64())
}

func TestSignature_Empty(t *testing.T) {
	require.Equal(t, xxhash.Sum64(nil), NewSignature().Sum64())
}

func BenchmarkSignature_WriteFrame(b *testing.B) {
	sig := NewSignature()
	frame := []int32{1200, -1200}
	for b.Loop() {
		sig.WriteFrame(frame)
	}
}
