package flacore

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/flacore/blockio"
	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/format"
	"github.com/arloliu/flacore/pipeline"
)

// writeFixture writes a 24-bit stereo WAV of two detuned tones and returns
// the interleaved samples.
func writeFixture(t *testing.T, frames int) (string, []int) {
	t.Helper()

	data := make([]int, 0, 2*frames)
	for i := range frames {
		x := float64(i) / 48000
		data = append(data,
			int(math.Round(2_000_000*math.Sin(2*math.Pi*330*x))),
			int(math.Round(1_500_000*math.Sin(2*math.Pi*331*x+0.5))),
		)
	}

	path := filepath.Join(t.TempDir(), "tones.wav")
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	enc := gowav.NewEncoder(out, 48000, 24, 2, 1)
	require.NoError(t, enc.Write(&gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 2, SampleRate: 48000},
		Data:           data,
		SourceBitDepth: 24,
	}))
	require.NoError(t, enc.Close())

	return path, data
}

func decodeStream(t *testing.T, stream []byte) ([]int, uint64) {
	t.Helper()

	r, err := NewStreamReader(bytes.NewReader(stream))
	require.NoError(t, err)

	var got []int
	for b := range r.All() {
		channels := make([][]int64, len(b.Channels))
		for ch, sub := range b.Channels {
			channels[ch], err = pipeline.Reconstruct(sub)
			require.NoError(t, err)
		}
		for i := range b.Frames {
			for ch := range channels {
				got = append(got, int(channels[ch][i]))
			}
		}
	}
	require.NoError(t, r.Err())

	trailer, ok := r.Trailer()
	require.True(t, ok)

	return got, trailer.Signature
}

func TestEncodeStream(t *testing.T) {
	path, data := writeFixture(t, 10000)

	encoders := map[string]func() (*pipeline.Encoder, error){
		"default": NewDefaultEncoder,
		"verifying": func() (*pipeline.Encoder, error) {
			return NewVerifyingEncoder(pipeline.WithWorkers(4), pipeline.WithBlockSize(1152))
		},
		"fixed only": func() (*pipeline.Encoder, error) {
			return NewEncoder(pipeline.WithLPC(false))
		},
	}

	for name, newEnc := range encoders {
		t.Run(name, func(t *testing.T) {
			enc, err := newEnc()
			require.NoError(t, err)

			in, err := OpenWAV(path)
			require.NoError(t, err)
			defer in.Close()

			var out bytes.Buffer
			stats, err := EncodeStream(context.Background(), enc, in, &out, blockio.WithCompression(format.CompressionZstd))
			require.NoError(t, err)
			require.Equal(t, int64(10000), stats.Frames)
			require.Less(t, stats.Ratio(), 1.0)

			got, sig := decodeStream(t, out.Bytes())
			require.Equal(t, data, got)
			require.Equal(t, stats.Signature, sig)
		})
	}
}

func TestEncodeStream_Canceled(t *testing.T) {
	path, _ := writeFixture(t, 5000)

	enc, err := NewDefaultEncoder()
	require.NoError(t, err)
	in, err := OpenWAV(path)
	require.NoError(t, err)
	defer in.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, err = EncodeStream(ctx, enc, in, &out)
	require.ErrorIs(t, err, context.Canceled)

	r, err := NewStreamReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	for range r.All() {
	}
	require.ErrorIs(t, r.Err(), errs.ErrInvalidRecord)
}
