package blockio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/arloliu/flacore/compress"
	"github.com/arloliu/flacore/crc"
	"github.com/arloliu/flacore/endian"
	"github.com/arloliu/flacore/errs"
	"github.com/arloliu/flacore/format"
	"github.com/arloliu/flacore/pipeline"
	"github.com/arloliu/flacore/predict"
	"github.com/arloliu/flacore/rice"
	"github.com/arloliu/flacore/utf8num"
)

// Reader parses a stream produced by Writer.
type Reader struct {
	r       *bufio.Reader
	header  Header
	engine  endian.EndianEngine
	codec   compress.Codec
	trailer Trailer
	done    bool
	used    bool
	blocks  uint32
	err     error
}

// NewReader reads and validates the stream header.
//
// Returns:
//   - *Reader: Reader positioned at the first record
//   - error: ErrInvalidStreamHeader for a bad magic, version or codec
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(sourceReader{r})

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidStreamHeader, err)
	}

	h, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}

	codec, err := compress.GetCodec(h.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidStreamHeader, err)
	}

	return &Reader{r: br, header: h, engine: h.engine(), codec: codec}, nil
}

// Header returns the parsed stream header.
func (r *Reader) Header() Header {
	return r.header
}

// Err returns the error that stopped All, if any.
func (r *Reader) Err() error {
	return r.err
}

// Trailer returns the stream trailer once All has consumed it.
func (r *Reader) Trailer() (Trailer, bool) {
	return r.trailer, r.done
}

// All yields every block in the stream. It can be ranged over once; stop
// conditions other than the trailer are reported by Err.
func (r *Reader) All() iter.Seq[pipeline.Block] {
	return func(yield func(pipeline.Block) bool) {
		if r.used {
			return
		}
		r.used = true

		for {
			b, ok, err := r.next()
			if err != nil {
				r.err = err
				return
			}
			if !ok || !yield(b) {
				return
			}
		}
	}
}

func (r *Reader) next() (pipeline.Block, bool, error) {
	var tag [2]byte
	if _, err := io.ReadFull(r.r, tag[:]); err != nil {
		return pipeline.Block{}, false, truncated("record sync", err)
	}

	switch tag {
	case recordSync:
		b, err := r.readRecord()
		if err != nil {
			return pipeline.Block{}, false, fmt.Errorf("block %d: %w", r.blocks, err)
		}
		r.blocks++

		return b, true, nil
	case [2]byte(trailerMagic[:2]):
		return pipeline.Block{}, false, r.readTrailer()
	default:
		return pipeline.Block{}, false, fmt.Errorf("%w: bad sync %#x", errs.ErrInvalidRecord, tag)
	}
}

func (r *Reader) readTrailer() error {
	buf := make([]byte, trailerSize-2)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return truncated("trailer", err)
	}
	if [2]byte(buf[:2]) != [2]byte(trailerMagic[2:]) {
		return fmt.Errorf("%w: bad trailer magic", errs.ErrInvalidRecord)
	}

	t := Trailer{
		Blocks:    r.engine.Uint32(buf[2:6]),
		Signature: r.engine.Uint64(buf[6:14]),
	}
	if t.Blocks != r.blocks {
		return fmt.Errorf("%w: trailer counts %d blocks, read %d", errs.ErrInvalidRecord, t.Blocks, r.blocks)
	}
	r.trailer = t
	r.done = true

	return nil
}

// recorder keeps every byte read so the header CRC-8 can be checked.
type recorder struct {
	r   *bufio.Reader
	buf []byte
}

func (rc *recorder) ReadByte() (byte, error) {
	c, err := rc.r.ReadByte()
	if err != nil {
		return 0, err
	}
	rc.buf = append(rc.buf, c)

	return c, nil
}

func (rc *recorder) readN(n int) ([]byte, error) {
	start := len(rc.buf)
	rc.buf = append(rc.buf, make([]byte, n)...)
	if _, err := io.ReadFull(rc.r, rc.buf[start:]); err != nil {
		return nil, err
	}

	return rc.buf[start:], nil
}

func (r *Reader) readRecord() (pipeline.Block, error) {
	rc := &recorder{r: r.r, buf: append(make([]byte, 0, 64), recordSync[:]...)}

	lead, err := rc.ReadByte()
	if err != nil {
		return pipeline.Block{}, truncated("block index", err)
	}
	size := utf8num.LenFromLead(lead)
	if size == 0 {
		return pipeline.Block{}, fmt.Errorf("%w: block index lead %#x", errs.ErrVarintMalformed, lead)
	}
	if _, err := rc.readN(size - 1); err != nil {
		return pipeline.Block{}, truncated("block index", err)
	}
	index, _, err := utf8num.Decode(rc.buf[len(recordSync):])
	if err != nil {
		return pipeline.Block{}, err
	}

	frames, err := binary.ReadUvarint(rc)
	if err != nil {
		return pipeline.Block{}, truncated("frame count", err)
	}
	if frames == 0 || frames > uint64(r.header.BlockSize) {
		return pipeline.Block{}, fmt.Errorf("%w: %d frames", errs.ErrInvalidRecord, frames)
	}

	channels, err := rc.ReadByte()
	if err != nil {
		return pipeline.Block{}, truncated("channel count", err)
	}
	if uint16(channels) != r.header.Format.Channels {
		return pipeline.Block{}, fmt.Errorf("%w: %d channels, stream has %d",
			errs.ErrInvalidRecord, channels, r.header.Format.Channels)
	}

	b := pipeline.Block{Index: index, Frames: int(frames), Channels: make([]pipeline.Subblock, channels)}
	for i := range b.Channels {
		if b.Channels[i], err = r.readSubblock(rc, b.Frames); err != nil {
			return pipeline.Block{}, fmt.Errorf("channel %d: %w", i, err)
		}
	}

	sum, err := r.r.ReadByte()
	if err != nil {
		return pipeline.Block{}, truncated("header crc", err)
	}
	if want := crc.Sum8(rc.buf); sum != want {
		return pipeline.Block{}, fmt.Errorf("%w: header crc-8 %#02x, computed %#02x", errs.ErrChecksum, sum, want)
	}

	payload, err := r.readPayload()
	if err != nil {
		return pipeline.Block{}, err
	}

	for i := range b.Channels {
		if payload, err = splitStreams(&b.Channels[i], payload); err != nil {
			return pipeline.Block{}, fmt.Errorf("channel %d: %w", i, err)
		}
	}
	if len(payload) != 0 {
		return pipeline.Block{}, fmt.Errorf("%w: %d trailing payload bytes", errs.ErrInvalidRecord, len(payload))
	}

	return b, nil
}

func (r *Reader) readSubblock(rc *recorder, frames int) (pipeline.Subblock, error) {
	fields, err := rc.readN(2)
	if err != nil {
		return pipeline.Subblock{}, truncated("predictor", err)
	}

	choice := predict.Choice{Kind: format.PredictorKind(fields[0]), Order: int(fields[1])}
	switch choice.Kind {
	case format.PredictorFixed:
		if choice.Order > predict.MaxFixedOrder {
			return pipeline.Subblock{}, fmt.Errorf("%w: fixed order %d", errs.ErrInvalidRecord, choice.Order)
		}
	case format.PredictorLPC:
		if choice.Order < 1 || choice.Order > predict.MaxLPCOrder {
			return pipeline.Subblock{}, fmt.Errorf("%w: lpc order %d", errs.ErrInvalidRecord, choice.Order)
		}
		lpc, err := rc.readN(2)
		if err != nil {
			return pipeline.Subblock{}, truncated("lpc parameters", err)
		}
		choice.Precision = int(lpc[0])
		choice.Shift = int(int8(lpc[1]))
		if choice.Coeffs, err = readVarints(rc, choice.Order); err != nil {
			return pipeline.Subblock{}, truncated("lpc coefficients", err)
		}
	default:
		return pipeline.Subblock{}, fmt.Errorf("%w: predictor kind %d", errs.ErrInvalidRecord, fields[0])
	}
	if choice.Order > frames {
		return pipeline.Subblock{}, fmt.Errorf("%w: order %d exceeds %d frames", errs.ErrInvalidRecord, choice.Order, frames)
	}

	sub := pipeline.Subblock{Choice: choice, Samples: frames}
	if sub.Warmup, err = readVarints(rc, choice.Order); err != nil {
		return pipeline.Subblock{}, truncated("warm-up", err)
	}

	order, err := rc.ReadByte()
	if err != nil {
		return pipeline.Subblock{}, truncated("partition order", err)
	}
	if int(order) > rice.MaxPartitionOrder(frames) || frames>>order < choice.Order {
		return pipeline.Subblock{}, fmt.Errorf("%w: partition order %d", errs.ErrInvalidRecord, order)
	}
	sub.Plan.Order = int(order)

	params, err := rc.readN(sub.Plan.Partitions())
	if err != nil {
		return pipeline.Subblock{}, truncated("rice parameters", err)
	}
	sub.Plan.Params = append([]uint8(nil), params...)

	sub.Streams = make([]rice.Stream, len(params))
	for i, p := range params {
		if p > rice.MaxParam {
			return pipeline.Subblock{}, fmt.Errorf("%w: rice parameter %d", errs.ErrInvalidRecord, p)
		}
		bitLen, err := binary.ReadUvarint(rc)
		if err != nil {
			return pipeline.Subblock{}, truncated("stream length", err)
		}
		sub.Streams[i] = rice.Stream{Param: p, BitLen: int(bitLen)} //nolint:gosec
		sub.Plan.Bits += bitLen
	}

	sum, err := rc.readN(2)
	if err != nil {
		return pipeline.Subblock{}, truncated("subblock crc", err)
	}
	sub.CRC16 = r.engine.Uint16(sum)

	return sub, nil
}

func (r *Reader) readPayload() ([]byte, error) {
	var n [4]byte
	if _, err := io.ReadFull(r.r, n[:]); err != nil {
		return nil, truncated("payload length", err)
	}

	size := r.engine.Uint32(n[:])
	if size > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload length %d", errs.ErrInvalidRecord, size)
	}

	// grows with the bytes actually present, not the declared length
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r.r, int64(size)); err != nil {
		return nil, truncated("payload", err)
	}
	stored := buf.Bytes()

	var sum [2]byte
	if _, err := io.ReadFull(r.r, sum[:]); err != nil {
		return nil, truncated("payload crc", err)
	}
	if got, want := r.engine.Uint16(sum[:]), crc.Sum16(stored); got != want {
		return nil, fmt.Errorf("%w: payload crc-16 %#04x, computed %#04x", errs.ErrChecksum, got, want)
	}

	return r.codec.Decompress(stored)
}

// splitStreams hands each stream of sub its bytes from the front of payload
// and returns the rest.
func splitStreams(sub *pipeline.Subblock, payload []byte) ([]byte, error) {
	var sum uint16
	for i := range sub.Streams {
		s := &sub.Streams[i]
		n := (s.BitLen + 7) / 8
		if n > len(payload) {
			return nil, fmt.Errorf("%w: stream %d needs %d bytes, %d left", errs.ErrInvalidRecord, i, n, len(payload))
		}
		s.Bytes = payload[:n:n]
		payload = payload[n:]
		if n > 0 {
			s.TailBits = s.BitLen - 8*(n-1)
		}
		sum = crc.Update16(sum, s.Bytes)
	}

	// a zero CRC means checksums were disabled when the block was encoded
	if sub.CRC16 != 0 && sub.CRC16 != sum {
		return nil, fmt.Errorf("%w: subblock crc-16 %#04x, computed %#04x", errs.ErrChecksum, sub.CRC16, sum)
	}

	return payload, nil
}

func readVarints(br io.ByteReader, n int) ([]int64, error) {
	out := make([]int64, n)
	for i := range out {
		v, err := binary.ReadVarint(br)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}

	return out, nil
}

// sourceReader tags failures of the underlying reader with ErrIO, so they
// stay apart from decoding errors such as varint overflow.
type sourceReader struct {
	r io.Reader
}

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF { //nolint:errorlint
		err = fmt.Errorf("%w: %w", errs.ErrIO, err)
	}

	return n, err
}

func truncated(what string, err error) error {
	switch {
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: truncated %s", errs.ErrInvalidRecord, what)
	case errors.Is(err, errs.ErrIO):
		return fmt.Errorf("read %s: %w", what, err)
	case errors.Is(err, errs.ErrFormat):
		return err
	default:
		return fmt.Errorf("%w: malformed %s: %w", errs.ErrInvalidRecord, what, err)
	}
}
