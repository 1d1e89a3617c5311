package wav

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/flacore/endian"
	"github.com/arloliu/flacore/errs"
)

const (
	containerHeaderSize = 12
	chunkHeaderSize     = 8
	pcmFormatSize       = 16
	pcmAudioFormat      = 1

	// untilEOF marks a data chunk whose declared size cannot be trusted.
	untilEOF = -1
)

var (
	waveTag = [4]byte{'W', 'A', 'V', 'E'}
	fmtTag  = [4]byte{'f', 'm', 't', ' '}
	dataTag = [4]byte{'d', 'a', 't', 'a'}

	le = endian.GetLittleEndianEngine()
)

type chunkHeader struct {
	id   [4]byte
	size uint32
}

// dataLength converts a declared data chunk size into a byte budget.
func (h chunkHeader) dataLength() int64 {
	if h.size == 0 || h.size == 0xFFFFFFFF {
		return untilEOF
	}

	return int64(h.size)
}

// readContainerHeader parses the 12-byte RIFF/RIFX header.
func readContainerHeader(r io.Reader) (endian.EndianEngine, uint32, error) {
	var hdr [containerHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, 0, headerReadError(err, errs.ErrNotContainer)
	}

	engine, ok := endian.ForContainerMagic([4]byte(hdr[0:4]))
	if !ok {
		return nil, 0, fmt.Errorf("%w: magic %q", errs.ErrNotContainer, hdr[0:4])
	}
	if [4]byte(hdr[8:12]) != waveTag {
		return nil, 0, fmt.Errorf("%w: type %q", errs.ErrNotWave, hdr[8:12])
	}

	return engine, engine.Uint32(hdr[4:8]), nil
}

func readChunkHeader(r io.Reader) (chunkHeader, error) {
	var buf [chunkHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return chunkHeader{}, err
	}

	return chunkHeader{id: [4]byte(buf[0:4]), size: le.Uint32(buf[4:8])}, nil
}

// readFormat parses the "fmt " chunk and validates it against the derived
// byte rate and block alignment.
func readFormat(r *bufio.Reader) (Format, error) {
	ch, err := readChunkHeader(r)
	if err != nil {
		return Format{}, headerReadError(err, errs.ErrChunkType)
	}
	if ch.id != fmtTag {
		return Format{}, fmt.Errorf("%w: got %q, want \"fmt \"", errs.ErrChunkType, ch.id)
	}
	if ch.size < pcmFormatSize {
		return Format{}, fmt.Errorf("%w: fmt chunk is %d bytes", errs.ErrDataAlignment, ch.size)
	}

	var body [pcmFormatSize]byte
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return Format{}, headerReadError(err, errs.ErrDataAlignment)
	}
	// WAVE_FORMAT_EXTENSIBLE and friends append fields after the PCM body.
	if extra := int64(ch.size-pcmFormatSize) + int64(ch.size&1); extra > 0 {
		if _, err := r.Discard(int(extra)); err != nil {
			return Format{}, headerReadError(err, errs.ErrDataAlignment)
		}
	}

	if tag := le.Uint16(body[0:2]); tag != pcmAudioFormat {
		return Format{}, fmt.Errorf("%w: audio format %d", errs.ErrNotPCM, tag)
	}

	f := Format{
		Channels:      le.Uint16(body[2:4]),
		SampleRate:    le.Uint32(body[4:8]),
		BitsPerSample: le.Uint16(body[14:16]),
	}
	byteRate := le.Uint32(body[8:12])
	blockAlign := le.Uint16(body[12:14])

	if f.Channels == 0 {
		return Format{}, fmt.Errorf("%w: zero channels", errs.ErrDataAlignment)
	}
	if !supportedBitDepth(f.BitsPerSample) {
		return Format{}, fmt.Errorf("%w: got %d", errs.ErrUnsupportedBitDepth, f.BitsPerSample)
	}
	if byteRate != f.ByteRate() {
		return Format{}, fmt.Errorf("%w: byte rate %d, derived %d", errs.ErrDataAlignment, byteRate, f.ByteRate())
	}
	if blockAlign != f.BlockAlign() {
		return Format{}, fmt.Errorf("%w: block align %d, derived %d", errs.ErrDataAlignment, blockAlign, f.BlockAlign())
	}

	return f, nil
}

// headerReadError classifies a failed header read: running out of bytes is a
// malformed container, anything else is an I/O failure.
func headerReadError(err error, truncated error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated header", truncated)
	}

	return fmt.Errorf("%w: %w", errs.ErrIO, err)
}
