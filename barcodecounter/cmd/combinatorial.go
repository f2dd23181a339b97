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

var combinatorialCmd = &cobra.Command{
	Use:   "combinatorial",
	Short: "Count combinations of barcodes from independent pools",
	Long: `Count combinations of barcodes from independent pools

The template contains N variable regions, and N pools should be given
in the same order. Barcodes of each region are searched in its own pool,
and the total mismatches of all barcodes decide the best position.

Output format (tab-delimited):
  barcode1 ... barcodeN   barcode names
  count                   number of reads

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

		h, err := handler.NewCombinatorialBarcodesSingleEnd(tpls[0], pools, &handler.CombinatorialOptions{
			Options:       hopt,
			MaxMismatches: d.MaxMismatches,
		})
		checkError(err)

		if c.outputLog {
			for i, p := range pools {
				log.Infof("  %d barcodes loaded from %s", p.Len(), d.Pools[i])
			}
			log.Info()
			log.Infof("counting with %d threads ...", c.opt.NumCPUs)
		}

		runSingleEnd[*handler.CombinatorialState](c, h)

		// ---------------------------------------------------------------

		if c.outputLog {
			log.Infof("sorting %s combinations ...", humanize.Comma(int64(h.Matched())))
		}
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

		for i := range pools {
			fmt.Fprintf(outfh, "barcode%d\t", i+1)
		}
		fmt.Fprintln(outfh, "count")
		for _, cc := range counts {
			for i, idx := range cc.Indices {
				fmt.Fprintf(outfh, "%s\t", pools[i].Name(int(idx)))
			}
			fmt.Fprintf(outfh, "%d\n", cc.Count)
		}

		if c.outputLog {
			log.Info("done counting")
			logCounts("reads", h.Total(), h.Matched())
			log.Infof("  %s unique combinations", humanize.Comma(int64(len(counts))))
			if c.outFile != "-" {
				log.Infof("counts saved to: %s", c.outFile)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(combinatorialCmd)

	addDesignFlags(combinatorialCmd, 1, 1)

	combinatorialCmd.SetUsageTemplate(usageTemplate("{ -c <design.toml> | -t <template> -p <pool1.txt> -p <pool2.txt> ... } [read.fq.gz ...] [-o counts.tsv.gz]"))
}
