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
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/handler"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/scan"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
)

// Design is an experimental design, which can be read from a TOML file:
//
//	templates = ["ACGT----TTTT"]
//	pools = ["barcodes.txt"]
//	max-mismatches = [1]
//	max-template-mismatches = 0
//	strand = "both"
//	duplicates = "first"
//	use-first = false
//
// Relative paths of pools are relative to the directory of the design file.
type Design struct {
	Templates             []string `toml:"templates"`
	Pools                 []string `toml:"pools"`
	MaxMismatches         []int    `toml:"max-mismatches"`
	MaxTemplateMismatches int      `toml:"max-template-mismatches"`
	Strand                string   `toml:"strand"`
	Duplicates            string   `toml:"duplicates"`
	UseFirst              bool     `toml:"use-first"`
	AllowSwap             bool     `toml:"allow-swap"`
}

// readDesign reads a design from a TOML file.
func readDesign(file string) (*Design, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	d := &Design{}
	decoder := toml.NewDecoder(fh)
	decoder.DisallowUnknownFields()
	if err = decoder.Decode(d); err != nil {
		return nil, errors.Wrapf(err, "parsing design file: %s", file)
	}

	dir := filepath.Dir(file)
	for i, p := range d.Pools {
		p = expandPath(p)
		if !filepath.IsAbs(p) && !isStdin(p) {
			p = filepath.Join(dir, p)
		}
		d.Pools[i] = p
	}
	return d, nil
}

// getDesign reads the design from -c/--config and flags. Flags explicitly set win.
func getDesign(cmd *cobra.Command) *Design {
	d := &Design{Strand: "both", Duplicates: "first"}

	if file := getFlagString(cmd, "config"); file != "" {
		var err error
		d, err = readDesign(expandPath(file))
		checkError(err)
		if d.Strand == "" {
			d.Strand = "both"
		}
		if d.Duplicates == "" {
			d.Duplicates = "first"
		}
	}

	flags := cmd.Flags()
	if flags.Changed("template") || len(d.Templates) == 0 {
		d.Templates = getFlagStringSlice(cmd, "template")
	}
	if flags.Changed("pool") || len(d.Pools) == 0 {
		pools := getFlagStringSlice(cmd, "pool")
		for i, p := range pools {
			pools[i] = expandPath(p)
		}
		d.Pools = pools
	}
	if flags.Changed("max-mismatches") || len(d.MaxMismatches) == 0 {
		d.MaxMismatches = getFlagNonNegativeIntSlice(cmd, "max-mismatches")
	}
	if flags.Changed("max-template-mismatches") {
		d.MaxTemplateMismatches = getFlagNonNegativeInt(cmd, "max-template-mismatches")
	}
	if flags.Changed("strand") {
		d.Strand = getFlagString(cmd, "strand")
	}
	if flags.Changed("duplicates") {
		d.Duplicates = getFlagString(cmd, "duplicates")
	}
	if flags.Changed("use-first") {
		d.UseFirst = getFlagBool(cmd, "use-first")
	}
	if flags.Lookup("allow-swap") != nil && flags.Changed("allow-swap") {
		d.AllowSwap = getFlagBool(cmd, "allow-swap")
	}

	if d.MaxTemplateMismatches < 0 {
		checkError(fmt.Errorf("max-template-mismatches should be >= 0"))
	}
	return d
}

// check checks the numbers of templates, pools and mismatch bounds.
// nPools < 0 means any number > 0.
func (d *Design) check(nTemplates, nPools int) error {
	if len(d.Templates) != nTemplates {
		return fmt.Errorf("%d template(s) needed, %d given", nTemplates, len(d.Templates))
	}
	if nPools < 0 {
		if len(d.Pools) == 0 {
			return fmt.Errorf("barcode pool file(s) needed")
		}
	} else if len(d.Pools) != nPools {
		return fmt.Errorf("%d barcode pool file(s) needed, %d given", nPools, len(d.Pools))
	}

	// one value is used for all pools
	if len(d.MaxMismatches) == 1 && len(d.Pools) > 1 {
		m := d.MaxMismatches[0]
		d.MaxMismatches = make([]int, len(d.Pools))
		for i := range d.MaxMismatches {
			d.MaxMismatches[i] = m
		}
	}
	if len(d.Pools) > 0 && len(d.MaxMismatches) != len(d.Pools) {
		return fmt.Errorf("%d value(s) of max-mismatches given for %d pool(s)", len(d.MaxMismatches), len(d.Pools))
	}
	for _, m := range d.MaxMismatches {
		if m < 0 {
			return fmt.Errorf("max-mismatches should be >= 0")
		}
	}
	return nil
}

// templates compiles all templates.
func (d *Design) templates() ([]*scan.Template, error) {
	strand, err := scan.ParseStrand(d.Strand)
	if err != nil {
		return nil, err
	}
	tpls := make([]*scan.Template, len(d.Templates))
	for i, s := range d.Templates {
		tpls[i], err = scan.NewTemplate([]byte(s), &scan.TemplateOptions{Strand: strand})
		if err != nil {
			return nil, errors.Wrapf(err, "template #%d", i+1)
		}
	}
	return tpls, nil
}

// pools reads all barcode pools.
func (d *Design) pools() ([]*tree.Pool, error) {
	pools := make([]*tree.Pool, len(d.Pools))
	var err error
	for i, file := range d.Pools {
		pools[i], err = readPool(file)
		if err != nil {
			return nil, err
		}
	}
	return pools, nil
}

// options returns the common options of handlers.
func (d *Design) options() (handler.Options, error) {
	dup, err := tree.ParseDuplicateAction(d.Duplicates)
	if err != nil {
		return handler.Options{}, err
	}
	return handler.Options{
		MaxTemplateMismatches: d.MaxTemplateMismatches,
		UseFirst:              d.UseFirst,
		Duplicates:            dup,
	}, nil
}

// addDesignFlags adds flags of experimental designs and input/output.
func addDesignFlags(cmd *cobra.Command, nTemplates int, defaultMismatches int) {
	cmd.Flags().StringP("config", "c", "",
		formatFlagUsage(`Design file in TOML format. Flags explicitly given override values in it.`))

	if nTemplates > 1 {
		cmd.Flags().StringSliceP("template", "t", []string{},
			formatFlagUsage(fmt.Sprintf(`%d templates in the order of reads, `+
				`with constant bases in ACGT, and variable bases as '-'.`, nTemplates)))
	} else {
		cmd.Flags().StringSliceP("template", "t", []string{},
			formatFlagUsage(`Template, with constant bases in ACGT, and variable bases as '-'.`))
	}

	cmd.Flags().StringSliceP("pool", "p", []string{},
		formatFlagUsage(`Barcode pool file(s), in plain text (one barcode per line, `+
			`with an optional name in the second column) or FASTA format.`))

	cmd.Flags().IntSliceP("max-mismatches", "m", []int{defaultMismatches},
		formatFlagUsage(`Maximum mismatches of barcodes. One value for all pools, or one value for each pool.`))

	cmd.Flags().IntP("max-template-mismatches", "M", 0,
		formatFlagUsage(`Maximum mismatches in the constant regions of the template.`))

	cmd.Flags().StringP("strand", "s", "both",
		formatFlagUsage(`Strand(s) to search: "forward", "reverse", or "both".`))

	cmd.Flags().StringP("duplicates", "", "first",
		formatFlagUsage(`How to handle duplicated barcodes: "error", "first", "last", or "none".`))

	cmd.Flags().BoolP("use-first", "", false,
		formatFlagUsage(`Use the first matched position instead of the best one.`))

	addIOFlags(cmd)
}

// addIOFlags adds flags of input and output.
func addIOFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports and recommends a ".gz" suffix ("-" for stdout).`))

	cmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing FASTQ files. Directory symlinks are followed.`))

	cmd.Flags().StringP("file-regexp", "r", `\.f(ast)?q(\.gz|\.xz|\.zst|\.bz2)?$`,
		formatFlagUsage(`Regular expression for matching sequence files in -I/--in-dir, case ignored.`))

	cmd.Flags().IntP("block-size", "b", 10000,
		formatFlagUsage(`Number of reads (pairs) processed by a thread each time.`))

	cmd.Flags().BoolP("progress", "", false,
		formatFlagUsage(`Show progress of processed reads.`))
}
