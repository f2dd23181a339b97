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

var dualCmd = &cobra.Command{
	Use:   "dual",
	Short: "Count barcode options of multiple barcodes in single-end reads",
	Long: `Count barcode options of multiple barcodes in single-end reads

The template contains N variable regions, and N pools of the same size
should be given in the same order. The i-th barcodes of all pools form
the i-th option, and all barcodes in a read are matched as a whole,
with a mismatch bound for each region.

Output format (tab-delimited):
  barcode   names of barcodes in an option, joined with "--"
  sequence  concatenated sequences of barcodes
  count     number of reads

`,
	Run: func(cmd *cobra.Command, args []string) {
		c := prepare(cmd, args, 1, -1)
		defer c.finish()

		d := c.design
		tpls, err := d.templates()
		checkError(err)
		pools, err := d.pools()
		checkError(err)
		hopt, err := d.options()
		checkError(err)

		h, err := handler.NewDualBarcodesSingleEnd(tpls[0], pools, &handler.DualOptions{
			Options:           hopt,
			SegmentMismatches: d.MaxMismatches,
		})
		checkError(err)

		if c.outputLog {
			log.Infof("  %d barcode options loaded from %d pools", h.Pool().Len(), len(pools))
			log.Info()
			log.Infof("counting with %d threads ...", c.opt.NumCPUs)
		}

		runSingleEnd[*handler.DualState](c, h)

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
	RootCmd.AddCommand(dualCmd)

	addDesignFlags(dualCmd, 1, 1)

	dualCmd.SetUsageTemplate(usageTemplate("{ -c <design.toml> | -t <template> -p <pool1.txt> -p <pool2.txt> ... } [read.fq.gz ...] [-o counts.tsv.gz]"))
}
