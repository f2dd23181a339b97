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

	"github.com/dustin/go-humanize"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/handler"
	"github.com/spf13/cobra"
)

var randomCmd = &cobra.Command{
	Use:   "random",
	Short: "Count distinct sequences of a barcode without a known pool",
	Long: `Count distinct sequences of a barcode without a known pool

The template should contain one variable region (a run of '-').
The position with the fewest mismatches in the constant regions is used.
Sequences found on the reverse strand are reverse complemented.

Output format (tab-delimited, sorted by sequence):
  sequence  barcode sequence
  count     number of reads

`,
	Run: func(cmd *cobra.Command, args []string) {
		c := prepare(cmd, args, 1, 0)
		defer c.finish()

		d := c.design
		tpls, err := d.templates()
		checkError(err)
		hopt, err := d.options()
		checkError(err)

		h, err := handler.NewRandomBarcodeSingleEnd(tpls[0], &hopt)
		checkError(err)

		if c.outputLog {
			log.Info()
			log.Infof("counting with %d threads ...", c.opt.NumCPUs)
		}

		runSingleEnd[*handler.RandomState](c, h)

		// ---------------------------------------------------------------

		counts := h.Counts()

		outfh, gw, w, err := outStream(c.outFile, strings.HasSuffix(c.outFile, ".gz"), c.opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		fmt.Fprintln(outfh, "sequence\tcount")
		for _, sc := range counts {
			fmt.Fprintf(outfh, "%s\t%d\n", sc.Seq, sc.Count)
		}

		if c.outputLog {
			log.Info("done counting")
			logCounts("reads", h.Total(), h.Matched())
			log.Infof("  %s distinct sequences", humanize.Comma(int64(len(counts))))
			if c.outFile != "-" {
				log.Infof("counts saved to: %s", c.outFile)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(randomCmd)

	addDesignFlags(randomCmd, 1, 0)

	randomCmd.SetUsageTemplate(usageTemplate("{ -c <design.toml> | -t <template> } [read.fq.gz ...] [-o counts.tsv.gz]"))
}
