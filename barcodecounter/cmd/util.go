// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/pipeline"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Options contains the global flags
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool

	CompressionLevel int
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs: threads,
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",

		CompressionLevel: -1,
	}
}

// readPool reads barcodes from a FASTA file, or a plain list file
// with one barcode per line, and an optional name in the second column.
func readPool(file string) (*tree.Pool, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}

	// FASTA or not
	var isFasta bool
	var b []byte
	for {
		b, err = fh.Peek(1)
		if err != nil {
			fh.Close()
			if err == io.EOF {
				return nil, fmt.Errorf("%w: %s", tree.ErrEmptyPool, file)
			}
			return nil, err
		}
		if b[0] == '\n' || b[0] == '\r' {
			fh.ReadByte()
			continue
		}
		isFasta = b[0] == '>'
		break
	}

	if isFasta {
		fh.Close()
		return readPoolFasta(file)
	}

	seqs := make([][]byte, 0, 1024)
	names := make([]string, 0, 1024)
	var hasNames bool
	items := make([]string, 2)
	scanner := bufio.NewScanner(fh)
	var line string
	for scanner.Scan() {
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || line[0] == '#' {
			continue
		}

		stringSplitNByByte(line, '\t', 2, &items)
		seqs = append(seqs, bytes.ToUpper([]byte(strings.TrimSpace(items[0]))))
		if len(items) == 2 {
			hasNames = true
			names = append(names, items[1])
		} else {
			names = append(names, "")
		}
	}
	if err = scanner.Err(); err != nil {
		fh.Close()
		return nil, err
	}
	if err = fh.Close(); err != nil {
		return nil, err
	}

	if !hasNames {
		names = nil
	}
	p, err := tree.NewPoolWithNames(seqs, names)
	return p, errors.Wrap(err, file)
}

func readPoolFasta(file string) (*tree.Pool, error) {
	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, err
	}
	defer fastxReader.Close()

	seqs := make([][]byte, 0, 1024)
	names := make([]string, 0, 1024)
	var record *fastx.Record
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		seqs = append(seqs, bytes.ToUpper(record.Seq.Seq))
		names = append(names, string(record.ID))
	}

	p, err := tree.NewPoolWithNames(seqs, names)
	return p, errors.Wrap(err, file)
}

func stringSplitNByByte(s string, sep byte, n int, a *[]string) {
	if a == nil {
		tmp := make([]string, n)
		a = &tmp
	}
	if cap(*a) < n {
		*a = make([]string, n)
	}
	*a = (*a)[:n]

	n--
	i := 0
	for i < n {
		m := strings.IndexByte(s, sep)
		if m < 0 {
			break
		}
		(*a)[i] = s[:m]
		s = s[m+1:]
		i++
	}
	(*a)[i] = s

	(*a) = (*a)[:i+1]
}

// newProgress returns the pipeline options with a spinner of processed reads,
// and a function to stop the spinner.
func newProgress(opt *Options, blockSize int, show bool) (*pipeline.Options, func()) {
	popt := &pipeline.Options{Threads: opt.NumCPUs, BlockSize: blockSize}
	if !show {
		return popt, func() {}
	}

	pbs := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
	bar := pbs.AddSpinner(0,
		mpb.PrependDecorators(
			decor.Name("processed reads: ", decor.WC{W: len("processed reads: "), C: decor.DindentRight}),
			decor.CurrentNoUnit("%d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name("elapsed: ", decor.WC{W: len("elapsed: ")}),
			decor.Elapsed(decor.ET_STYLE_GO),
			decor.OnComplete(decor.Name(""), ". done"),
		),
	)
	popt.Progress = func(n int) {
		bar.IncrBy(n)
	}
	return popt, func() {
		bar.SetTotal(-1, true)
		pbs.Wait()
	}
}

// logCounts logs the numbers of total and counted reads.
func logCounts(unit string, total, matched uint64) {
	var pct float64
	if total > 0 {
		pct = float64(matched) / float64(total) * 100
	}
	log.Infof("  %s %s, %s (%.4f%%) with valid barcode(s)",
		humanize.Comma(int64(total)), unit, humanize.Comma(int64(matched)), pct)
}
