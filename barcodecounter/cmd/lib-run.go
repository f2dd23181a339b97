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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/pipeline"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/spf13/cobra"
)

// runContext holds shared states of a counting command.
type runContext struct {
	opt       *Options
	outputLog bool

	design *Design
	files  []string

	outFile   string
	blockSize int
	progress  bool

	fhLog     *os.File
	timeStart time.Time
}

// prepare parses global flags, the design, and input files.
func prepare(cmd *cobra.Command, args []string, nTemplates, nPools int) *runContext {
	opt := getOptions(cmd)
	seq.ValidateSeq = false

	c := &runContext{
		opt:       opt,
		outputLog: opt.Verbose || opt.Log2File,
		timeStart: time.Now(),
	}
	if opt.Log2File {
		c.fhLog = addLog(opt.LogFile, opt.Verbose)
	}

	c.outFile = getFlagString(cmd, "out-file")
	c.blockSize = getFlagPositiveInt(cmd, "block-size")
	c.progress = getFlagBool(cmd, "progress") && opt.Verbose

	c.design = getDesign(cmd)
	checkError(c.design.check(nTemplates, nPools))

	if c.outputLog {
		log.Infof("BarcodeCounter v%s", VERSION)
		log.Info("  https://github.com/shenwei356/BarcodeCounter")
		log.Info()
		log.Info("checking input files ...")
	}

	c.files = getInputFiles(cmd, args, opt.NumCPUs)
	if c.outputLog {
		if len(c.files) == 1 && isStdin(c.files[0]) {
			log.Info("  no files given, reading from stdin")
		} else {
			log.Infof("  %d input file(s) given", len(c.files))
		}
	}

	outFileClean := filepath.Clean(c.outFile)
	for _, file := range c.files {
		if !isStdin(file) && filepath.Clean(file) == outFileClean {
			checkError(fmt.Errorf("out file should not be one of the input file"))
		}
	}

	return c
}

// finish logs the elapsed time and closes the log file.
func (c *runContext) finish() {
	if c.outputLog {
		log.Info()
		log.Infof("elapsed time: %s", time.Since(c.timeStart))
		log.Info()
	}
	if c.opt.Log2File {
		c.fhLog.Close()
	}
}

// runSingleEnd processes all files with one handler.
func runSingleEnd[S any](c *runContext, h pipeline.SingleEndHandler[S]) {
	popt, stop := newProgress(c.opt, c.blockSize, c.progress)
	for _, file := range c.files {
		fastxReader, err := fastx.NewReader(nil, file, "")
		checkError(errors.Wrap(err, file))

		err = pipeline.ProcessSingleEnd[S](fastxReader, h, popt)
		fastxReader.Close()
		checkError(errors.Wrap(err, file))
	}
	stop()
}

// runPairedEnd processes pairs of files, i.e., file 1 and 2, file 3 and 4.
func runPairedEnd[S any](c *runContext, h pipeline.PairedEndHandler[S]) {
	if len(c.files)%2 != 0 || isStdin(c.files[0]) {
		checkError(fmt.Errorf("files of paired-end reads should be given in pairs, %d file(s) given", len(c.files)))
	}

	popt, stop := newProgress(c.opt, c.blockSize, c.progress)
	for i := 0; i < len(c.files); i += 2 {
		file1, file2 := c.files[i], c.files[i+1]
		if c.outputLog {
			log.Infof("  processing pair: %s, %s", file1, file2)
		}

		reader1, err := fastx.NewReader(nil, file1, "")
		checkError(errors.Wrap(err, file1))
		reader2, err := fastx.NewReader(nil, file2, "")
		checkError(errors.Wrap(err, file2))

		err = pipeline.ProcessPairedEnd[S](reader1, reader2, h, popt)
		reader1.Close()
		reader2.Close()
		checkError(errors.Wrapf(err, "%s, %s", file1, file2))
	}
	stop()
}
