// Command flacore encodes WAVE files into block streams and inspects them.
//
//	flacore encode -in take1.wav -out take1.flcb [-block 4096] [-max-lpc 32]
//	               [-compress none|zstd|s2|lz4] [-workers N] [-verify] [-v]
//	flacore inspect -in take1.flcb [-v]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/arloliu/flacore"
	"github.com/arloliu/flacore/blockio"
	"github.com/arloliu/flacore/format"
	"github.com/arloliu/flacore/pipeline"
	"github.com/arloliu/flacore/predict"
)

const usage = `usage:
  flacore encode -in FILE.wav -out FILE.flcb [flags]
  flacore inspect -in FILE.flcb [flags]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "encode":
		err = runEncode(ctx, os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:], os.Stdout)
	case "-h", "-help", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "flacore:", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runEncode(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	in := fs.String("in", "", "input WAVE `file`")
	out := fs.String("out", "", "output block stream `file`")
	block := fs.Int("block", pipeline.DefaultBlockSize, "frames per block")
	maxLPC := fs.Int("max-lpc", predict.MaxLPCOrder, "highest LPC order to try")
	noLPC := fs.Bool("no-lpc", false, "use fixed predictors only")
	compression := fs.String("compress", "none", "payload compression: none, zstd, s2 or lz4")
	bigEndian := fs.Bool("big-endian", false, "write stream fields big-endian")
	workers := fs.Int("workers", 1, "blocks encoded in parallel")
	verify := fs.Bool("verify", false, "decode every subblock and compare with the input")
	verbose := fs.Bool("v", false, "log every subblock")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("encode: -in and -out are required")
	}

	ct, ok := format.ParseCompression(*compression)
	if !ok {
		return fmt.Errorf("encode: unknown compression %q", *compression)
	}

	logger := newLogger(*verbose)
	enc, err := flacore.NewEncoder(
		pipeline.WithBlockSize(*block),
		pipeline.WithMaxLPCOrder(*maxLPC),
		pipeline.WithLPC(!*noLPC),
		pipeline.WithChecksum(true),
		pipeline.WithVerify(*verify),
		pipeline.WithWorkers(*workers),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	src, err := flacore.OpenWAV(*in)
	if err != nil {
		return err
	}
	defer src.Close()
	logger.Info("input", "file", *in, "format", src.Format().String(), "big_endian", src.BigEndian())

	dst, err := os.Create(*out)
	if err != nil {
		return err
	}

	start := time.Now()
	stats, err := flacore.EncodeStream(ctx, enc, src, dst,
		blockio.WithCompression(ct),
		blockio.WithBigEndian(*bigEndian),
	)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(*out)
		return fmt.Errorf("encode %s: %w", *in, err)
	}

	logger.Info("done",
		"out", *out,
		"blocks", stats.Blocks,
		"frames", stats.Frames,
		"fixed", stats.FixedSubblocks,
		"lpc", stats.LPCSubblocks,
		"ratio", fmt.Sprintf("%.3f", stats.Ratio()),
		"signature", fmt.Sprintf("%016x", stats.Signature),
		"elapsed", time.Since(start),
	)

	return nil
}

func runInspect(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	in := fs.String("in", "", "block stream `file`")
	verbose := fs.Bool("v", false, "print every subblock")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("inspect: -in is required")
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := flacore.NewStreamReader(f)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", *in, err)
	}

	h := r.Header()
	fmt.Fprintf(w, "stream: %s, block size %d, compression %s, big-endian %t\n",
		h.Format, h.BlockSize, h.Compression, h.BigEndian)

	var frames int64
	var fixed, lpc int
	for b := range r.All() {
		frames += int64(b.Frames)
		for ch, sub := range b.Channels {
			if sub.Choice.Kind == format.PredictorLPC {
				lpc++
			} else {
				fixed++
			}
			if *verbose {
				fmt.Fprintf(w, "block %d channel %d: %s, partition order %d, %d bits\n",
					b.Index, ch, sub.Choice, sub.Plan.Order, sub.CodedBits(int(h.Format.BitsPerSample)))
			}
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("inspect %s: %w", *in, err)
	}

	t, _ := r.Trailer()
	fmt.Fprintf(w, "blocks: %d, frames: %d, fixed: %d, lpc: %d, signature: %016x\n",
		t.Blocks, frames, fixed, lpc, t.Signature)

	return nil
}
