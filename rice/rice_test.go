package rice

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/flacore/errs"
)

func TestFold(t *testing.T) {
	in := []int64{0, -1, 1, -2, 2, -3, 3}
	for i, v := range in {
		require.Equal(t, uint64(i), Fold(v))
		require.Equal(t, v, Unfold(uint64(i)))
	}

	for _, v := range []int64{-1 << 62, 1<<62 - 1, -1 << 40, 123456789} {
		require.Equal(t, v, Unfold(Fold(v)))
	}
}

func TestEncodeFolded_KnownBits(t *testing.T) {
	// divisor 16: quotient 1 as "10", then remainder 0010
	s, err := EncodeFolded(4, []uint64{18})
	require.NoError(t, err)
	require.Equal(t, []byte{0x88}, s.Bytes)
	require.Equal(t, uint8(4), s.Param)
	require.Equal(t, 6, s.BitLen)
	require.Equal(t, 6, s.TailBits)
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name      string
		param     uint8
		residuals []int64
		bytes     []byte
		bitLen    int
		tailBits  int
	}{
		{"single zero", 0, []int64{0}, []byte{0x00}, 1, 1},
		{"signs fold", 2, []int64{-1, 1}, []byte{0x28}, 6, 6},
		{"full byte", 1, []int64{0, 0, 0, 0}, []byte{0x00}, 8, 8},
		{"unary only", 0, []int64{1, -1}, []byte{0xD0}, 5, 5},
		{"empty", 3, nil, nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Encode(tt.param, tt.residuals)
			require.NoError(t, err)
			if tt.bytes == nil {
				require.Empty(t, s.Bytes)
			} else {
				require.Equal(t, tt.bytes, s.Bytes)
			}
			require.Equal(t, tt.bitLen, s.BitLen)
			require.Equal(t, tt.tailBits, s.TailBits)
			require.Equal(t, uint64(tt.bitLen), ExactBits(tt.param, tt.residuals))
		})
	}
}

func TestEncode_LongQuotient(t *testing.T) {
	s, err := Encode(0, []int64{100})
	require.NoError(t, err)
	require.Equal(t, 201, s.BitLen)
	require.Len(t, s.Bytes, 26)
	require.Equal(t, 1, s.TailBits)

	got, err := Decode(s, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{100}, got)
}

func TestEncode_ParamRange(t *testing.T) {
	_, err := Encode(MaxParam+1, []int64{1})
	require.ErrorIs(t, err, errs.ErrRiceParam)
	require.ErrorIs(t, err, errs.ErrParameter)

	s, err := Encode(MaxParam, []int64{-1 << 30, 1 << 30})
	require.NoError(t, err)
	got, err := Decode(s, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{-1 << 30, 1 << 30}, got)
}

func TestEncode_RoundTripAndPadding(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for param := uint8(0); param <= MaxSearchParam; param++ {
		residuals := make([]int64, 257)
		span := int64(1) << (param + 2)
		for i := range residuals {
			residuals[i] = rng.Int64N(2*span+1) - span
		}

		s, err := Encode(param, residuals)
		require.NoError(t, err)
		require.Equal(t, ExactBits(param, residuals), uint64(s.BitLen))
		require.Equal(t, (s.BitLen+7)/8, len(s.Bytes))

		padding := 8 - s.TailBits
		require.Zero(t, s.Bytes[len(s.Bytes)-1]&(1<<padding-1), "param %d padding", param)

		got, err := Decode(s, len(residuals))
		require.NoError(t, err)
		require.Equal(t, residuals, got, "param %d", param)
	}
}

func TestDecode_Truncated(t *testing.T) {
	s, err := Encode(2, []int64{3, 4, 5})
	require.NoError(t, err)

	_, err = Decode(s, 4)
	require.ErrorIs(t, err, errs.ErrFormat)

	_, err = Decode(Stream{Param: MaxParam + 1}, 1)
	require.ErrorIs(t, err, errs.ErrRiceParam)
}

func BenchmarkEncode(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 1))
	residuals := make([]int64, 4096)
	for i := range residuals {
		residuals[i] = rng.Int64N(2001) - 1000
	}
	b.SetBytes(int64(len(residuals) * 8))

	for b.Loop() {
		_, _ = Encode(9, residuals)
	}
}
