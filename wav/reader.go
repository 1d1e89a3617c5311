// Package wav reads linear PCM samples from RIFF/RIFX WAVE files.
//
// A File validates the container header and the format chunk eagerly and
// then exposes the samples as a lazy, forward-only sequence of inter-channel
// frames:
//
//	f, err := wav.Open("in.wav")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	for batch := range f.Batches(4096) {
//	    // batch[i][ch] is sample i of channel ch
//	}
//	if err := f.Err(); err != nil {
//	    return err
//	}
//
// Samples are decoded little-endian regardless of the container magic; 8-bit
// samples are unsigned and re-centred around zero.
package wav

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/arloliu/flacore/endian"
	"github.com/arloliu/flacore/errs"
)

// File is an open WAVE stream positioned at the first sample.
//
// A File is not safe for concurrent use.
type File struct {
	format   Format
	size     uint32
	engine   endian.EndianEngine
	r        *bufio.Reader
	closer   io.Closer
	name     string
	remain   int64 // bytes left in the current data chunk, or untilEOF
	pad      bool  // current data chunk has an odd declared size
	consumed bool
	eof      bool
	frames   int64
	err      error
}

// Open opens the WAVE file at path and parses its headers.
//
// The file handle is released on every error path. On success the caller
// owns the File and must Close it.
func Open(path string, opts ...Option) (*File, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrIO, err)
	}

	f, err := newFile(fh, cfg)
	if err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	f.closer = fh
	f.name = path

	return f, nil
}

// NewReader parses a WAVE stream from r. The returned File does not own r;
// Close is a no-op unless r is closed by the caller.
func NewReader(r io.Reader, opts ...Option) (*File, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	return newFile(r, cfg)
}

func newFile(src io.Reader, cfg *config) (*File, error) {
	br := bufio.NewReaderSize(src, cfg.readBufferSize)

	engine, size, err := readContainerHeader(br)
	if err != nil {
		return nil, err
	}

	format, err := readFormat(br)
	if err != nil {
		return nil, err
	}

	ch, err := readChunkHeader(br)
	if err != nil {
		return nil, headerReadError(err, errs.ErrChunkType)
	}
	if ch.id != dataTag {
		return nil, fmt.Errorf("%w: got %q after fmt, want \"data\"", errs.ErrChunkType, ch.id)
	}

	return &File{
		format: format,
		size:   size,
		engine: engine,
		r:      br,
		remain: ch.dataLength(),
		pad:    ch.size&1 == 1,
	}, nil
}

// Format returns the validated PCM format.
func (f *File) Format() Format {
	return f.format
}

// Size returns the file size declared in the container header.
func (f *File) Size() uint32 {
	return f.size
}

// BigEndian reports whether the container magic was RIFX.
func (f *File) BigEndian() bool {
	return endian.IsBigEndian(f.engine)
}

// FramesRead returns the number of frames yielded so far.
func (f *File) FramesRead() int64 {
	return f.frames
}

// Err returns the I/O error that terminated the frame sequence, if any.
// Running out of data, even mid-sample, is not an error.
func (f *File) Err() error {
	return f.err
}

// Close releases the underlying file. It is safe to call more than once.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	c := f.closer
	f.closer = nil

	if err := c.Close(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrIO, err)
	}

	return nil
}

func (f *File) String() string {
	return fmt.Sprintf("WAVE file %d bytes, %d-bit %d channels, %dHz",
		f.size, f.format.BitsPerSample, f.format.Channels, f.format.SampleRate)
}

// Frames returns the inter-channel sample frames in file order. Each yielded
// slice has one sample per channel and is owned by the receiver.
//
// The sequence is single-use: ranging over it a second time, or over a
// sequence obtained from another call, yields nothing.
func (f *File) Frames() iter.Seq[[]int32] {
	return func(yield func([]int32) bool) {
		if f.consumed {
			return
		}
		f.consumed = true

		raw := make([]byte, f.format.BlockAlign())
		for {
			if !f.fill(raw) {
				return
			}
			frame := f.decode(raw)
			f.frames++
			if !yield(frame) {
				return
			}
		}
	}
}

// Batches groups Frames into slices of n frames. The final batch may be
// shorter; an empty tail yields nothing. n <= 0 yields nothing.
func (f *File) Batches(n int) iter.Seq[[][]int32] {
	return func(yield func([][]int32) bool) {
		if n <= 0 {
			return
		}

		batch := make([][]int32, 0, n)
		for frame := range f.Frames() {
			batch = append(batch, frame)
			if len(batch) == n {
				if !yield(batch) {
					return
				}
				batch = make([][]int32, 0, n)
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}

func (f *File) decode(raw []byte) []int32 {
	width := f.format.BytesPerSample()
	frame := make([]int32, f.format.Channels)
	for ch := range frame {
		frame[ch] = decodeSample(raw[ch*width:(ch+1)*width], f.format.BitsPerSample)
	}

	return frame
}

func decodeSample(b []byte, bps uint16) int32 {
	switch bps {
	case 8:
		return int32(b[0]) - 128
	case 16:
		return int32(int16(le.Uint16(b))) //nolint:gosec
	case 24:
		return int32(uint32(b[0])|uint32(b[1])<<8|uint32(b[2])<<16) << 8 >> 8 //nolint:gosec
	default:
		return int32(le.Uint32(b)) //nolint:gosec
	}
}

// fill reads len(p) sample bytes, crossing data chunk boundaries as needed.
// It returns false at end of data or on error; a partial read is discarded.
func (f *File) fill(p []byte) bool {
	for len(p) > 0 {
		if f.eof {
			return false
		}
		if f.remain == 0 {
			if !f.nextDataChunk() {
				return false
			}
			continue
		}

		want := len(p)
		if f.remain != untilEOF && int64(want) > f.remain {
			want = int(f.remain)
		}

		n, err := f.r.Read(p[:want])
		p = p[n:]
		if f.remain != untilEOF {
			f.remain -= int64(n)
		}
		if err != nil {
			f.stop(err)
			return false
		}
	}

	return true
}

// nextDataChunk skips the pad byte and any non-data chunks after an exhausted
// data chunk.
func (f *File) nextDataChunk() bool {
	if f.pad {
		f.pad = false
		if _, err := f.r.Discard(1); err != nil {
			f.stop(err)
			return false
		}
	}

	for {
		ch, err := readChunkHeader(f.r)
		if err != nil {
			f.stop(err)
			return false
		}

		if ch.id == dataTag {
			f.remain = ch.dataLength()
			f.pad = ch.size&1 == 1

			return true
		}

		skip := int64(ch.size) + int64(ch.size&1)
		if _, err := io.CopyN(io.Discard, f.r, skip); err != nil {
			f.stop(err)
			return false
		}
	}
}

func (f *File) stop(err error) {
	f.eof = true
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return
	}
	f.err = fmt.Errorf("%w: read samples: %w", errs.ErrIO, err)
}
