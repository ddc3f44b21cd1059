// Command dynjson is a small front end over the document codec:
//
//	dynjson fmt file.json --pretty          reformat a document
//	dynjson validate a.json b.json          check documents, report positions
//	dynjson stream input.ndjson --rate 10   re-emit concatenated documents
//
// Inputs may be files or stdin ("-"). The --max-memory flag accepts human
// sizes ("4MB", "512KB") and caps what a single decode or encode call may
// allocate; a breach aborts the call with a memory-allocation error
// instead of producing partial output.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/c2h5oh/datasize"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"dynjson/document"
	"dynjson/engine"
)

func main() {
	var (
		app       = kingpin.New("dynjson", "Decode, re-encode and validate JSON documents under a memory budget.")
		maxMemory = app.Flag("max-memory", "Per-call memory ceiling, e.g. 4MB. 0 means unlimited.").Default("0").String()
		verbose   = app.Flag("verbose", "Log per-document details to stderr.").Short('v').Bool()

		fmtCmd     = app.Command("fmt", "Reformat one JSON document.")
		fmtFile    = fmtCmd.Arg("file", "Input file, - for stdin.").Default("-").String()
		fmtOut     = fmtCmd.Flag("output", "Output file, - for stdout.").Short('o').Default("-").String()
		fmtPretty  = fmtCmd.Flag("pretty", "Indent with 4 spaces.").Bool()
		fmtTwo     = fmtCmd.Flag("two-space", "Indent with 2 spaces.").Bool()
		fmtEscape  = fmtCmd.Flag("escape-unicode", "Escape non-ASCII as \\uXXXX.").Bool()
		fmtComment = fmtCmd.Flag("allow-comments", "Accept C-style comments in the input.").Bool()

		validateCmd   = app.Command("validate", "Parse documents and report errors with byte positions.")
		validateFiles = validateCmd.Arg("files", "Input files.").Required().Strings()

		streamCmd  = app.Command("stream", "Decode concatenated/NDJSON input and re-emit one document per line.")
		streamFile = streamCmd.Arg("file", "Input file, - for stdin.").Default("-").String()
		streamRate = streamCmd.Flag("rate", "Maximum documents per second, 0 for unthrottled.").Default("0").Float64()
	)

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := level.NewFilter(log.NewLogfmtLogger(os.Stderr), level.AllowInfo())
	if *verbose {
		logger = level.NewFilter(log.NewLogfmtLogger(os.Stderr), level.AllowDebug())
	}

	var budgetBytes datasize.ByteSize
	if err := budgetBytes.UnmarshalText([]byte(*maxMemory)); err != nil {
		level.Error(logger).Log("msg", "invalid --max-memory", "value", *maxMemory, "err", err)
		os.Exit(2)
	}

	codec := document.New()
	var err error
	switch cmd {
	case fmtCmd.FullCommand():
		err = runFmt(codec, logger, fmtArgs{
			file: *fmtFile, out: *fmtOut,
			pretty: *fmtPretty, twoSpace: *fmtTwo,
			escapeUnicode: *fmtEscape, allowComments: *fmtComment,
			maxMemory: budgetBytes.Bytes(),
		})
	case validateCmd.FullCommand():
		err = runValidate(codec, logger, *validateFiles, budgetBytes.Bytes())
	case streamCmd.FullCommand():
		err = runStream(codec, logger, *streamFile, *streamRate, budgetBytes.Bytes())
	}
	if err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, errors.Wrap(err, "reading stdin")
	}
	data, err := os.ReadFile(path)
	return data, errors.Wrapf(err, "reading %s", path)
}

type fmtArgs struct {
	file, out        string
	pretty, twoSpace bool
	escapeUnicode    bool
	allowComments    bool
	maxMemory        uint64
}

func runFmt(codec *document.Codec, logger log.Logger, a fmtArgs) error {
	data, err := readInput(a.file)
	if err != nil {
		return err
	}

	var rflags engine.ReadFlag
	if a.allowComments {
		rflags |= engine.ReadAllowComments | engine.ReadAllowTrailingCommas
	}
	v, n, err := codec.Decode(data, document.DecodeOptions{
		WithRef:   true, // keep empty containers unambiguous across the round trip
		MaxMemory: a.maxMemory,
		Flags:     rflags,
	})
	if err != nil {
		return errors.Wrapf(err, "decoding %s", a.file)
	}
	level.Debug(logger).Log("msg", "decoded", "file", a.file, "bytes", n)

	var wflags engine.WriteFlag
	if a.twoSpace {
		wflags |= engine.WritePrettyTwoSpaces
	} else if a.pretty {
		wflags |= engine.WritePretty
	}
	if a.escapeUnicode {
		wflags |= engine.WriteEscapeUnicode
	}
	out, err := codec.Encode(v, document.EncodeOptions{MaxMemory: a.maxMemory, Flags: wflags})
	if err != nil {
		return errors.Wrap(err, "encoding")
	}
	out = append(out, '\n')

	if a.out == "-" {
		_, err = os.Stdout.Write(out)
		return errors.Wrap(err, "writing stdout")
	}
	return errors.Wrapf(os.WriteFile(a.out, out, 0o644), "writing %s", a.out)
}

func runValidate(codec *document.Codec, logger log.Logger, files []string, maxMemory uint64) error {
	failed := 0
	for _, f := range files {
		_, n, err := codec.DecodeFile(f, document.DecodeOptions{MaxMemory: maxMemory})
		if err != nil {
			failed++
			if derr, ok := err.(*document.Error); ok {
				level.Error(logger).Log("file", f, "valid", false, "code", derr.Code, "err", derr.Message)
			} else {
				level.Error(logger).Log("file", f, "valid", false, "err", err)
			}
			continue
		}
		level.Info(logger).Log("file", f, "valid", true, "bytes", n)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents invalid", failed, len(files))
	}
	return nil
}

// runStream decodes concatenated documents using stop-when-done: each pass
// consumes exactly one value and reports how far it got, and the next pass
// starts from there. Whitespace (including NDJSON newlines) between
// documents is skipped here, since the reader stops right after a value.
func runStream(codec *document.Codec, logger log.Logger, file string, docsPerSec float64, maxMemory uint64) error {
	data, err := readInput(file)
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if docsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(docsPerSec), 1)
	}

	ctx := context.Background()
	docs, offset := 0, 0
	for {
		rest := trimSpace(data[offset:])
		offset = len(data) - len(rest)
		if len(rest) == 0 {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		v, n, err := codec.Decode(rest, document.DecodeOptions{
			MaxMemory: maxMemory,
			Flags:     engine.ReadStopWhenDone,
		})
		if err != nil {
			return errors.Wrapf(err, "document %d at offset %d", docs+1, offset)
		}
		out, err := codec.Encode(v, document.EncodeOptions{MaxMemory: maxMemory})
		if err != nil {
			return errors.Wrapf(err, "re-encoding document %d", docs+1)
		}
		out = append(out, '\n')
		if _, err := os.Stdout.Write(out); err != nil {
			return errors.Wrap(err, "writing stdout")
		}

		offset += n
		docs++
		level.Debug(logger).Log("msg", "document", "index", docs, "consumed", n)
	}

	level.Info(logger).Log("msg", "stream done", "documents", docs,
		"input", humanize.IBytes(uint64(len(data))))
	return nil
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 {
		switch b[0] {
		case ' ', '\t', '\n', '\r':
			b = b[1:]
		default:
			return b
		}
	}
	return b
}
