package pipeline

import (
	"github.com/arloliu/flacore/format"
	"github.com/arloliu/flacore/predict"
	"github.com/arloliu/flacore/rice"
)

// Subblock is one encoded channel of one block: everything a muxer needs to
// write the subframe.
type Subblock struct {
	Choice        predict.Choice
	Warmup        []int64
	Plan          rice.Plan
	Streams       []rice.Stream
	CRC16         uint16 // CRC-16 of the concatenated stream bytes when checksums are enabled
	EstimatedBits uint64
	Samples       int
}

// Partitioned returns the plan and streams as a rice.Partitioned.
func (s Subblock) Partitioned() rice.Partitioned {
	return rice.Partitioned{Plan: s.Plan, Streams: s.Streams}
}

// CodedBits returns the exact size of the subblock: warm-up, predictor
// parameters, the residual header and the Rice streams.
func (s Subblock) CodedBits(bps int) uint64 {
	bits := uint64(s.Choice.WarmupBits(bps) + s.Choice.SideInfoBits() + s.Plan.HeaderBits()) //nolint:gosec

	return bits + s.Partitioned().CodedBits()
}

// Payload appends the bytes of every stream to dst.
func (s Subblock) Payload(dst []byte) []byte {
	for _, st := range s.Streams {
		dst = append(dst, st.Bytes...)
	}

	return dst
}

// Block is one encoded block of all channels.
type Block struct {
	Index    uint32
	Frames   int
	Channels []Subblock
}

// CodedBits sums the coded size of every channel.
func (b Block) CodedBits(bps int) uint64 {
	var total uint64
	for _, ch := range b.Channels {
		total += ch.CodedBits(bps)
	}

	return total
}

// Stats summarises an EncodeFile run.
type Stats struct {
	Blocks         int
	Frames         int64
	InputBytes     int64
	EncodedBits    uint64
	FixedSubblocks int
	LPCSubblocks   int
	Signature      uint64 // xxHash64 of the interleaved samples
}

// Ratio returns encoded size over input size, or 0 for an empty input.
func (s Stats) Ratio() float64 {
	if s.InputBytes == 0 {
		return 0
	}

	return float64(s.EncodedBits) / 8 / float64(s.InputBytes)
}

func (s *Stats) add(b Block, bps int, blockAlign int) {
	s.Blocks++
	s.Frames += int64(b.Frames)
	s.InputBytes += int64(b.Frames) * int64(blockAlign)
	s.EncodedBits += b.CodedBits(bps)
	for _, ch := range b.Channels {
		if ch.Choice.Kind == format.PredictorLPC {
			s.LPCSubblocks++
		} else {
			s.FixedSubblocks++
		}
	}
}
