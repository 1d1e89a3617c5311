package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	gaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/flacore/internal/hash"
	"github.com/arloliu/flacore/wav"
)

// writeStereoFixture writes a 16-bit stereo WAV with a tone on the left
// channel and noise on the right, returning the interleaved samples.
func writeStereoFixture(t *testing.T, frames int) (string, []int) {
	t.Helper()

	left := sine(frames, 440, 11000)
	right := noise(99, frames, 3000)
	data := make([]int, 0, 2*frames)
	for i := range frames {
		data = append(data, int(left[i]), int(right[i]))
	}

	path := filepath.Join(t.TempDir(), "stereo.wav")
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	enc := gowav.NewEncoder(out, 44100, 16, 2, 1)
	require.NoError(t, enc.Write(&gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())

	return path, data
}

func openFixture(t *testing.T, path string) *wav.File {
	t.Helper()

	f, err := wav.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	return f
}

func signatureOf(data []int) uint64 {
	sig := hash.NewSignature()
	for i := 0; i+1 < len(data); i += 2 {
		sig.WriteFrame([]int32{int32(data[i]), int32(data[i+1])})
	}

	return sig.Sum64()
}

func TestEncodeFile(t *testing.T) {
	path, data := writeStereoFixture(t, 10000)

	var results [][]Block
	for _, workers := range []int{1, 4} {
		enc, err := NewEncoder(WithWorkers(workers), WithVerify(true), WithChecksum(true))
		require.NoError(t, err)

		var blocks []Block
		stats, err := enc.EncodeFile(context.Background(), openFixture(t, path), func(b Block) error {
			blocks = append(blocks, b)
			return nil
		})
		require.NoError(t, err)

		require.Len(t, blocks, 3)
		for i, b := range blocks {
			require.Equal(t, uint32(i), b.Index)
			require.Len(t, b.Channels, 2)
		}
		require.Equal(t, []int{4096, 4096, 1808}, []int{blocks[0].Frames, blocks[1].Frames, blocks[2].Frames})

		require.Equal(t, 3, stats.Blocks)
		require.Equal(t, int64(10000), stats.Frames)
		require.Equal(t, int64(40000), stats.InputBytes)
		require.Equal(t, 6, stats.FixedSubblocks+stats.LPCSubblocks)
		require.Equal(t, signatureOf(data), stats.Signature)
		require.Positive(t, stats.Ratio())
		require.Less(t, stats.Ratio(), 1.0)

		results = append(results, blocks)
	}

	require.Equal(t, results[0], results[1])
}

func TestEncodeFile_Reconstructs(t *testing.T) {
	path, data := writeStereoFixture(t, 5000)

	enc, err := NewEncoder(WithBlockSize(1152))
	require.NoError(t, err)

	var got []int
	_, err = enc.EncodeFile(context.Background(), openFixture(t, path), func(b Block) error {
		left, err := Reconstruct(b.Channels[0])
		if err != nil {
			return err
		}
		right, err := Reconstruct(b.Channels[1])
		if err != nil {
			return err
		}
		for i := range left {
			got = append(got, int(left[i]), int(right[i]))
		}

		return nil
	})
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestEncodeFile_SinkError(t *testing.T) {
	path, _ := writeStereoFixture(t, 9000)
	boom := errors.New("muxer full")

	for _, workers := range []int{1, 3} {
		enc, err := NewEncoder(WithWorkers(workers), WithBlockSize(1024))
		require.NoError(t, err)

		calls := 0
		stats, err := enc.EncodeFile(context.Background(), openFixture(t, path), func(Block) error {
			calls++
			if calls == 2 {
				return boom
			}

			return nil
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, 2, calls)
		require.Equal(t, 1, stats.Blocks)
	}
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))

	return n, err
}

func TestEncodeFile_BoundedReadAhead(t *testing.T) {
	const (
		blockSize = 256
		workers   = 4
	)
	path, _ := writeStereoFixture(t, 40*blockSize)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	src := &countingReader{r: bytes.NewReader(raw)}
	f, err := wav.NewReader(src, wav.WithReadBufferSize(16))
	require.NoError(t, err)

	enc, err := NewEncoder(WithWorkers(workers), WithBlockSize(blockSize))
	require.NoError(t, err)

	stats, err := enc.EncodeFile(context.Background(), f, func(b Block) error {
		if b.Index == 0 {
			time.Sleep(50 * time.Millisecond)
		}
		// blocks b.Index..b.Index+workers-1 in flight plus one batch waiting
		limit := int64(128) + int64(int(b.Index)+workers+1)*blockSize*4
		if n := src.n.Load(); n > limit {
			return fmt.Errorf("block %d: read %d bytes ahead, limit %d", b.Index, n, limit)
		}

		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 40, stats.Blocks)
}

func TestEncodeFile_Canceled(t *testing.T) {
	path, _ := writeStereoFixture(t, 9000)

	for _, workers := range []int{1, 2} {
		enc, err := NewEncoder(WithWorkers(workers), WithBlockSize(1024))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = enc.EncodeFile(ctx, openFixture(t, path), func(Block) error { return nil })
		require.ErrorIs(t, err, context.Canceled)
	}
}

func TestEncodeFile_Logging(t *testing.T) {
	path, _ := writeStereoFixture(t, 2000)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	enc, err := NewEncoder(WithLogger(logger))
	require.NoError(t, err)
	_, err = enc.EncodeFile(context.Background(), openFixture(t, path), func(Block) error { return nil })
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "subblock encoded")
	require.Contains(t, out, "file encoded")
	require.Contains(t, out, "blocks=1")
}

func TestEncodeFile_Empty(t *testing.T) {
	var raw []byte
	raw = append(raw, "RIFF"...)
	raw = binary.LittleEndian.AppendUint32(raw, 36)
	raw = append(raw, "WAVEfmt "...)
	raw = binary.LittleEndian.AppendUint32(raw, 16)
	raw = binary.LittleEndian.AppendUint16(raw, 1)
	raw = binary.LittleEndian.AppendUint16(raw, 1)
	raw = binary.LittleEndian.AppendUint32(raw, 8000)
	raw = binary.LittleEndian.AppendUint32(raw, 16000)
	raw = binary.LittleEndian.AppendUint16(raw, 2)
	raw = binary.LittleEndian.AppendUint16(raw, 16)
	raw = append(raw, "data"...)
	raw = binary.LittleEndian.AppendUint32(raw, 0)

	path := filepath.Join(t.TempDir(), "empty.wav")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	e, err := NewEncoder()
	require.NoError(t, err)
	stats, err := e.EncodeFile(context.Background(), openFixture(t, path), func(Block) error {
		t.Fatal("sink called for an empty file")
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, stats.Blocks)
	require.Zero(t, stats.Ratio())
}
