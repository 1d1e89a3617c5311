package blockio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/arloliu/flacore/compress"
	"github.com/arloliu/flacore/crc"
	"github.com/arloliu/flacore/endian"
	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/format"
	"github.com/arloliu/flacore/internal/options"
	"github.com/arloliu/flacore/internal/pool"
	"github.com/arloliu/flacore/pipeline"
	"github.com/arloliu/flacore/utf8num"
	"github.com/arloliu/flacore/wav"
)

// Writer serializes blocks to an io.Writer.
//
// A Writer is not safe for concurrent use. Blocks are written in the order
// WriteBlock is called; pipeline.EncodeFile already delivers them in stream
// order.
type Writer struct {
	w      io.Writer
	header Header
	engine endian.EndianEngine
	codec  compress.Codec
	blocks uint32
	closed bool
}

// NewWriter writes the stream header and returns a Writer for the blocks.
//
// Parameters:
//   - w: Destination
//   - f: Sample format of the encoded source
//   - blockSize: Nominal frames per block
//   - opts: WithCompression, WithBigEndian
//
// Returns:
//   - *Writer: Writer positioned after the header
//   - error: ErrUnsupportedFormat for an unknown codec, ErrIO on write failure
func NewWriter(w io.Writer, f wav.Format, blockSize int, opts ...Option) (*Writer, error) {
	if blockSize <= 0 || uint64(blockSize) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", errs.ErrBlockSize, blockSize)
	}

	h := Header{
		Format:      f,
		BlockSize:   uint32(blockSize), //nolint:gosec
		Compression: format.CompressionNone,
	}
	if err := options.Apply(&h, opts...); err != nil {
		return nil, err
	}

	codec, err := compress.CreateCodec(h.Compression, "record payload")
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(h.appendTo(make([]byte, 0, headerSize))); err != nil {
		return nil, fmt.Errorf("%w: write header: %w", errs.ErrIO, err)
	}

	return &Writer{
		w:      w,
		header: h,
		engine: h.engine(),
		codec:  codec,
	}, nil
}

// Header returns the header written by NewWriter.
func (w *Writer) Header() Header {
	return w.header
}

// Blocks returns the number of records written so far.
func (w *Writer) Blocks() uint32 {
	return w.blocks
}

// WriteBlock appends one record.
func (w *Writer) WriteBlock(b pipeline.Block) error {
	if w.closed {
		return errs.ErrEncoderClosed
	}
	if len(b.Channels) != int(w.header.Format.Channels) {
		return fmt.Errorf("%w: block %d has %d channels, stream has %d",
			errs.ErrParameter, b.Index, len(b.Channels), w.header.Format.Channels)
	}

	buf := pool.GetRecordBuffer()
	defer pool.PutRecordBuffer(buf)

	rec, err := w.appendSideInfo(buf.B, b)
	if err != nil {
		return err
	}
	buf.B = append(rec, crc.Sum8(rec))

	raw := pool.GetRecordBuffer()
	defer pool.PutRecordBuffer(raw)
	for _, ch := range b.Channels {
		raw.B = ch.Payload(raw.B)
	}
	if raw.Len() > maxPayloadSize {
		return fmt.Errorf("%w: block %d payload of %d bytes", errs.ErrParameter, b.Index, raw.Len())
	}

	payload, err := w.codec.Compress(raw.Bytes())
	if err != nil {
		return fmt.Errorf("compress block %d: %w", b.Index, err)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: block %d compressed payload of %d bytes", errs.ErrParameter, b.Index, len(payload))
	}

	buf.Grow(4 + len(payload) + 2)
	buf.B = w.engine.AppendUint32(buf.B, uint32(len(payload))) //nolint:gosec
	buf.MustWrite(payload)
	buf.B = w.engine.AppendUint16(buf.B, crc.Sum16(payload))

	if _, err := buf.WriteTo(w.w); err != nil {
		return fmt.Errorf("%w: write block %d: %w", errs.ErrIO, b.Index, err)
	}
	w.blocks++

	return nil
}

func (w *Writer) appendSideInfo(dst []byte, b pipeline.Block) ([]byte, error) {
	var err error

	dst = append(dst, recordSync[:]...)
	if dst, err = utf8num.Append(dst, b.Index); err != nil {
		return nil, fmt.Errorf("block index: %w", err)
	}
	dst = binary.AppendUvarint(dst, uint64(b.Frames)) //nolint:gosec
	dst = append(dst, byte(len(b.Channels)))

	for i, ch := range b.Channels {
		if dst, err = w.appendSubblock(dst, ch); err != nil {
			return nil, fmt.Errorf("block %d channel %d: %w", b.Index, i, err)
		}
	}

	return dst, nil
}

func (w *Writer) appendSubblock(dst []byte, sub pipeline.Subblock) ([]byte, error) {
	c := sub.Choice
	if c.Order < 0 || c.Order > math.MaxUint8 {
		return nil, fmt.Errorf("%w: order %d", errs.ErrPredictorOrder, c.Order)
	}
	if len(sub.Warmup) != c.Order {
		return nil, fmt.Errorf("%w: %d warm-up samples for order %d", errs.ErrParameter, len(sub.Warmup), c.Order)
	}
	if len(sub.Streams) != len(sub.Plan.Params) {
		return nil, fmt.Errorf("%w: %d streams for %d partitions",
			errs.ErrParameter, len(sub.Streams), len(sub.Plan.Params))
	}

	dst = append(dst, byte(c.Kind), byte(c.Order))
	if c.Kind == format.PredictorLPC {
		if c.Precision < 0 || c.Precision > math.MaxUint8 ||
			c.Shift < math.MinInt8 || c.Shift > math.MaxInt8 {
			return nil, fmt.Errorf("%w: precision %d shift %d", errs.ErrParameter, c.Precision, c.Shift)
		}
		if len(c.Coeffs) != c.Order {
			return nil, fmt.Errorf("%w: %d coefficients for order %d", errs.ErrParameter, len(c.Coeffs), c.Order)
		}
		dst = append(dst, byte(c.Precision), byte(int8(c.Shift)))
		for _, coef := range c.Coeffs {
			dst = binary.AppendVarint(dst, coef)
		}
	}

	for _, s := range sub.Warmup {
		dst = binary.AppendVarint(dst, s)
	}

	dst = append(dst, byte(sub.Plan.Order))
	dst = append(dst, sub.Plan.Params...)
	for _, st := range sub.Streams {
		dst = binary.AppendUvarint(dst, uint64(st.BitLen)) //nolint:gosec
	}

	return w.engine.AppendUint16(dst, sub.CRC16), nil
}

// Close writes the trailer. The underlying writer is not closed.
func (w *Writer) Close(signature uint64) error {
	if w.closed {
		return errs.ErrEncoderClosed
	}
	w.closed = true

	t := make([]byte, 0, trailerSize)
	t = append(t, trailerMagic[:]...)
	t = w.engine.AppendUint32(t, w.blocks)
	t = w.engine.AppendUint64(t, signature)

	if _, err := w.w.Write(t); err != nil {
		return fmt.Errorf("%w: write trailer: %w", errs.ErrIO, err)
	}

	return nil
}
