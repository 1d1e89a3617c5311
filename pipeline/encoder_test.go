package pipeline

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/flacore/crc"
	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/format"
	"github.com/arloliu/flacore/wav"
)

func sine(n int, freq, amp float64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(math.Round(amp * math.Sin(2*math.Pi*freq*float64(i)/44100)))
	}

	return out
}

func noise(seed uint64, n int, span int64) []int64 {
	rng := rand.New(rand.NewPCG(seed, ^seed))
	out := make([]int64, n)
	for i := range out {
		out[i] = rng.Int64N(2*span+1) - span
	}

	return out
}

func TestNewEncoder_Options(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)
	require.Equal(t, DefaultBlockSize, enc.BlockSize())

	tests := []struct {
		name string
		opt  Option
		want error
	}{
		{"block too small", WithBlockSize(15), errs.ErrBlockSize},
		{"block too large", WithBlockSize(65536), errs.ErrBlockSize},
		{"lpc order zero", WithMaxLPCOrder(0), errs.ErrPredictorOrder},
		{"lpc order 33", WithMaxLPCOrder(33), errs.ErrPredictorOrder},
		{"no workers", WithWorkers(0), errs.ErrParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncoder(tt.opt)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, errs.ErrParameter)
		})
	}

	enc, err = NewEncoder(WithBlockSize(1152), WithMaxLPCOrder(8), WithLogger(nil))
	require.NoError(t, err)
	require.Equal(t, 1152, enc.BlockSize())
}

func TestEncodeSubblock_Lossless(t *testing.T) {
	inputs := []struct {
		name    string
		samples []int64
		bps     int
	}{
		{"noise", noise(1, 4096, 30000), 16},
		{"sine", sine(4096, 440, 12000), 16},
		{"silence", make([]int64, 4096), 16},
		{"single sample", []int64{-32768}, 16},
		{"two samples", []int64{3, -3}, 16},
		{"odd length", noise(2, 1001, 500), 16},
		{"24-bit sine", sine(1152, 1000, 8_000_000), 24},
		{"8-bit noise", noise(3, 192, 127), 8},
	}

	for _, in := range inputs {
		for _, lpc := range []bool{true, false} {
			t.Run(in.name, func(t *testing.T) {
				enc, err := NewEncoder(WithLPC(lpc), WithVerify(true), WithLPCConcurrency(4))
				require.NoError(t, err)

				sub, err := enc.EncodeSubblock(in.samples, in.bps)
				require.NoError(t, err)
				require.Equal(t, len(in.samples), sub.Samples)
				require.Len(t, sub.Warmup, sub.Choice.Order)
				require.Len(t, sub.Streams, sub.Plan.Partitions())
				if !lpc {
					require.Equal(t, format.PredictorFixed, sub.Choice.Kind)
				}

				restored, err := Reconstruct(sub)
				require.NoError(t, err)
				require.Equal(t, in.samples, restored)
			})
		}
	}
}

func TestEncodeSubblock_Silence(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)

	sub, err := enc.EncodeSubblock(make([]int64, 4096), 16)
	require.NoError(t, err)
	require.Equal(t, format.PredictorFixed, sub.Choice.Kind)
	require.Equal(t, 0, sub.Choice.Order)
	require.Equal(t, 0, sub.Plan.Order)
	require.Equal(t, []uint8{0}, sub.Plan.Params)
	require.Equal(t, uint64(2+4+4+4096), sub.EstimatedBits)
	require.Equal(t, sub.EstimatedBits, sub.CodedBits(16))
}

func TestEncodeSubblock_WideNoise(t *testing.T) {
	enc, err := NewEncoder(WithLPC(false), WithVerify(true))
	require.NoError(t, err)

	for _, bps := range []int{24, 32} {
		t.Run(fmt.Sprintf("%d-bit", bps), func(t *testing.T) {
			span := int64(1)<<(bps-1) - 1
			samples := noise(uint64(bps), 4096, span)

			sub, err := enc.EncodeSubblock(samples, bps)
			require.NoError(t, err)

			// full-scale noise cannot compress, but must stay close to raw
			raw := uint64(len(samples) * bps)
			require.Less(t, sub.CodedBits(bps), raw+raw/8)
			require.Greater(t, sub.Plan.Params[0], uint8(14))

			restored, err := Reconstruct(sub)
			require.NoError(t, err)
			require.Equal(t, samples, restored)
		})
	}
}

func TestEncodeSubblock_SinePrefersLPC(t *testing.T) {
	samples := sine(4096, 440, 12000)

	enc, err := NewEncoder()
	require.NoError(t, err)
	sub, err := enc.EncodeSubblock(samples, 16)
	require.NoError(t, err)
	require.Equal(t, format.PredictorLPC, sub.Choice.Kind)
	require.Len(t, sub.Choice.Coeffs, sub.Choice.Order)
	require.Equal(t, 13, sub.Choice.Precision)

	fixedOnly, err := NewEncoder(WithLPC(false))
	require.NoError(t, err)
	fixed, err := fixedOnly.EncodeSubblock(samples, 16)
	require.NoError(t, err)
	require.Less(t, sub.EstimatedBits, fixed.EstimatedBits)
}

func TestEncodeSubblock_MaxLPCOrder(t *testing.T) {
	enc, err := NewEncoder(WithMaxLPCOrder(2))
	require.NoError(t, err)

	sub, err := enc.EncodeSubblock(sine(2048, 300, 9000), 16)
	require.NoError(t, err)
	if sub.Choice.Kind == format.PredictorLPC {
		require.LessOrEqual(t, sub.Choice.Order, 2)
	}
}

func TestEncodeSubblock_Checksum(t *testing.T) {
	samples := noise(4, 4096, 2000)

	enc, err := NewEncoder(WithChecksum(true))
	require.NoError(t, err)
	sub, err := enc.EncodeSubblock(samples, 16)
	require.NoError(t, err)
	require.Equal(t, crc.Sum16(sub.Payload(nil)), sub.CRC16)

	plain, err := NewEncoder()
	require.NoError(t, err)
	sub, err = plain.EncodeSubblock(samples, 16)
	require.NoError(t, err)
	require.Zero(t, sub.CRC16)
}

func TestEncodeSubblock_Empty(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)

	_, err = enc.EncodeSubblock(nil, 16)
	require.ErrorIs(t, err, errs.ErrEmptyBlock)
}

func TestVerify_DetectsMismatch(t *testing.T) {
	ramp := make([]int64, 64)
	for i := range ramp {
		ramp[i] = int64(i * 3)
	}

	enc, err := NewEncoder(WithLPC(false))
	require.NoError(t, err)
	sub, err := enc.EncodeSubblock(ramp, 16)
	require.NoError(t, err)
	require.NoError(t, Verify(sub, ramp))
	require.Positive(t, sub.Choice.Order)

	sub.Warmup[0]++
	require.ErrorIs(t, Verify(sub, ramp), errs.ErrLosslessMismatch)

	require.ErrorIs(t, Verify(sub, ramp[:10]), errs.ErrLosslessMismatch)

	sub.Streams = sub.Streams[:0]
	require.ErrorIs(t, Verify(sub, ramp), errs.ErrLosslessMismatch)
}

func TestEncodeBlock(t *testing.T) {
	f := wav.Format{Channels: 2, SampleRate: 44100, BitsPerSample: 16}
	left := sine(1024, 440, 10000)
	frames := make([][]int32, len(left))
	for i := range frames {
		frames[i] = []int32{int32(left[i]), 0}
	}

	enc, err := NewEncoder(WithVerify(true))
	require.NoError(t, err)

	block, err := enc.EncodeBlock(7, frames, f)
	require.NoError(t, err)
	require.Equal(t, uint32(7), block.Index)
	require.Equal(t, 1024, block.Frames)
	require.Len(t, block.Channels, 2)

	restored, err := Reconstruct(block.Channels[0])
	require.NoError(t, err)
	require.Equal(t, left, restored)

	right := block.Channels[1]
	require.Equal(t, format.PredictorFixed, right.Choice.Kind)
	require.Equal(t, 0, right.Choice.Order)

	require.Equal(t, block.Channels[0].CodedBits(16)+right.CodedBits(16), block.CodedBits(16))
}

func TestEncodeBlock_Errors(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)
	f := wav.Format{Channels: 2, SampleRate: 8000, BitsPerSample: 16}

	_, err = enc.EncodeBlock(0, nil, f)
	require.ErrorIs(t, err, errs.ErrEmptyBlock)

	_, err = enc.EncodeBlock(0, [][]int32{{1, 2}, {3}}, f)
	require.ErrorIs(t, err, errs.ErrParameter)
}

func BenchmarkEncodeSubblock(b *testing.B) {
	samples := sine(4096, 440, 12000)
	for i, v := range noise(5, 4096, 50) {
		samples[i] += v
	}

	for _, workers := range []int{1, 8} {
		enc, _ := NewEncoder(WithLPCConcurrency(workers))
		b.Run(fmt.Sprintf("lpc_concurrency_%d", workers), func(b *testing.B) {
			for b.Loop() {
				_, _ = enc.EncodeSubblock(samples, 16)
			}
		})
	}
}
