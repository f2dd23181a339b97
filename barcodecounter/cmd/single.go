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
	"strings"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/handler"
	"github.com/spf13/cobra"
)

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Count one barcode in single-end reads",
	Long: `Count one barcode in single-end reads

The template should contain one variable region (a run of '-'),
with the same length as barcodes in the pool.

Attentions:
  1. Input format should be (gzipped) FASTQ or FASTA from files or stdin.
  2. Reads with multiple best barcodes are not counted.
  3. Sequences of barcodes should only contain A, C, G and T.

Output format (tab-delimited):
  barcode   barcode name (the sequence if no names given)
  sequence  barcode sequence
  count     number of reads

`,
	Run: func(cmd *cobra.Command, args []string) {
		c := prepare(cmd, args, 1, 1)
		defer c.finish()

		d := c.design
		tpls, err := d.templates()
		checkError(err)
		pools, err := d.pools()
		checkError(err)
		hopt, err := d.options()
		checkError(err)

		h, err := handler.NewSingleBarcodeSingleEnd(tpls[0], pools[0], &handler.SingleOptions{
			Options:       hopt,
			MaxMismatches: d.MaxMismatches[0],
		})
		checkError(err)

		if c.outputLog {
			log.Infof("  %d barcodes loaded from %s", pools[0].Len(), d.Pools[0])
			log.Info()
			log.Infof("counting with %d threads ...", c.opt.NumCPUs)
		}

		runSingleEnd[*handler.SingleState](c, h)

		// ---------------------------------------------------------------

		outfh, gw, w, err := outStream(c.outFile, strings.HasSuffix(c.outFile, ".gz"), c.opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		pool := h.Pool()
		fmt.Fprintln(outfh, "barcode\tsequence\tcount")
		for i, n := range h.Counts() {
			fmt.Fprintf(outfh, "%s\t%s\t%d\n", pool.Name(i), pool.Seq(i), n)
		}

		if c.outputLog {
			log.Info("done counting")
			logCounts("reads", h.Total(), h.Matched())
			if c.outFile != "-" {
				log.Infof("counts saved to: %s", c.outFile)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(singleCmd)

	addDesignFlags(singleCmd, 1, 1)

	singleCmd.SetUsageTemplate(usageTemplate("{ -c <design.toml> | -t <template> -p <barcodes.txt> } [read.fq.gz ...] [-o counts.tsv.gz]"))
}
