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

var dualPairedCmd = &cobra.Command{
	Use:   "dual-paired",
	Short: "Count barcode options of paired-end reads with one barcode in each read",
	Long: `Count barcode options of paired-end reads with one barcode in each read

Two templates and two pools of the same size are needed, for read 1 and read 2.
The i-th barcodes of the two pools form the i-th option.

Input files are given in pairs: read1_1.fq.gz read1_2.fq.gz read2_1.fq.gz ...
For files in -I/--in-dir, sorted file names should make pairs adjacent.

Output format (tab-delimited):
  barcode1    name of the barcode in read 1
  barcode2    name of the barcode in read 2
  count       number of read pairs

`,
	Run: func(cmd *cobra.Command, args []string) {
		c := prepare(cmd, args, 2, 2)
		defer c.finish()

		d := c.design
		tpls, err := d.templates()
		checkError(err)
		pools, err := d.pools()
		checkError(err)
		hopt, err := d.options()
		checkError(err)

		h, err := handler.NewDualBarcodesPairedEnd(tpls[0], pools[0], tpls[1], pools[1], &handler.DualPairedOptions{
			Options:        hopt,
			MaxMismatches1: d.MaxMismatches[0],
			MaxMismatches2: d.MaxMismatches[1],
			AllowSwap:      d.AllowSwap,
		})
		checkError(err)

		if c.outputLog {
			log.Infof("  %d barcode options loaded", pools[0].Len())
			log.Info()
			log.Infof("counting with %d threads ...", c.opt.NumCPUs)
		}

		runPairedEnd[*handler.DualPairedState](c, h)

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

		pool1, pool2 := h.Pools()
		fmt.Fprintln(outfh, "barcode1\tbarcode2\tcount")
		for i, n := range h.Counts() {
			fmt.Fprintf(outfh, "%s\t%s\t%d\n", pool1.Name(i), pool2.Name(i), n)
		}

		if c.outputLog {
			log.Info("done counting")
			logCounts("read pairs", h.Total(), h.Matched())
			diag := h.Diagnostics()
			log.Infof("  barcode only in read 1: %s", humanize.Comma(int64(diag.Barcode1Only)))
			log.Infof("  barcode only in read 2: %s", humanize.Comma(int64(diag.Barcode2Only)))
			log.Infof("  invalid barcode pairs:  %s", humanize.Comma(int64(diag.InvalidPair)))
			if c.outFile != "-" {
				log.Infof("counts saved to: %s", c.outFile)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(dualPairedCmd)

	addDesignFlags(dualPairedCmd, 2, 1)

	dualPairedCmd.Flags().BoolP("allow-swap", "", false,
		formatFlagUsage(`Also try read 1 with the template of read 2, and vice versa.`))

	dualPairedCmd.SetUsageTemplate(usageTemplate("{ -c <design.toml> | -t <tpl1> -t <tpl2> -p <pool1.txt> -p <pool2.txt> } <read_1.fq.gz> <read_2.fq.gz> ... [-o counts.tsv.gz]"))
}
