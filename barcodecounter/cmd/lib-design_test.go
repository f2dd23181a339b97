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
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
)

func writeFile(t *testing.T, file, content string) {
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadPool(t *testing.T) {
	dir := t.TempDir()

	// plain list
	file := filepath.Join(dir, "barcodes.txt")
	writeFile(t, file, "\n# comment\nacca\tbc1\nCAAC\tbc2\n\nGTTG\tbc3\n")
	pool, err := readPool(file)
	if err != nil {
		t.Error(err)
		return
	}
	if pool.Len() != 3 || pool.Length() != 4 {
		t.Errorf("unexpected pool size: %d, %d", pool.Len(), pool.Length())
	}
	if string(pool.Seq(0)) != "ACCA" || pool.Name(2) != "bc3" {
		t.Errorf("unexpected barcode: %s, %s", pool.Seq(0), pool.Name(2))
	}

	// without names
	file = filepath.Join(dir, "barcodes2.txt")
	writeFile(t, file, "ACCA\nCAAC\n")
	pool, err = readPool(file)
	if err != nil {
		t.Error(err)
		return
	}
	if pool.Name(1) != "CAAC" {
		t.Errorf("the sequence should be used as the name: %s", pool.Name(1))
	}

	// FASTA
	file = filepath.Join(dir, "barcodes.fa")
	writeFile(t, file, ">bc1 desc\nACCA\n>bc2\nCAAC\n")
	pool, err = readPool(file)
	if err != nil {
		t.Error(err)
		return
	}
	if pool.Len() != 2 || pool.Name(0) != "bc1" || string(pool.Seq(1)) != "CAAC" {
		t.Errorf("unexpected pool from FASTA: %d, %s, %s", pool.Len(), pool.Name(0), pool.Seq(1))
	}

	// errors
	file = filepath.Join(dir, "bad.txt")
	writeFile(t, file, "ACCA\nCAA\n")
	if _, err = readPool(file); err == nil {
		t.Errorf("expected an error for barcodes of different lengths")
	}

	file = filepath.Join(dir, "empty.txt")
	writeFile(t, file, "\n\n")
	if _, err = readPool(file); err == nil {
		t.Errorf("expected an error for an empty pool")
	}
}

func TestReadDesign(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "design.toml")
	writeFile(t, file, `
templates = ["ACGT----GGCC----TTTT"]
pools = ["pool1.txt", "pool2.txt"]
max-mismatches = [1]
max-template-mismatches = 1
strand = "forward"
duplicates = "none"
`)

	d, err := readDesign(file)
	if err != nil {
		t.Error(err)
		return
	}
	if d.Pools[0] != filepath.Join(dir, "pool1.txt") {
		t.Errorf("relative paths should be relative to the design file: %s", d.Pools[0])
	}
	if err = d.check(1, -1); err != nil {
		t.Error(err)
		return
	}
	if len(d.MaxMismatches) != 2 || d.MaxMismatches[1] != 1 {
		t.Errorf("max-mismatches should be used for all pools: %v", d.MaxMismatches)
	}

	opt, err := d.options()
	if err != nil {
		t.Error(err)
		return
	}
	if opt.Duplicates != tree.DuplicateNone || opt.MaxTemplateMismatches != 1 {
		t.Errorf("unexpected options: %+v", opt)
	}

	tpls, err := d.templates()
	if err != nil {
		t.Error(err)
		return
	}
	if len(tpls[0].Variable(false)) != 2 || tpls[0].Strand().HasReverse() {
		t.Errorf("unexpected template")
	}

	if err = d.check(2, 2); err == nil {
		t.Errorf("expected an error for the number of templates")
	}

	// unknown fields
	writeFile(t, file, "template = \"ACGT\"\n")
	if _, err = readDesign(file); err == nil {
		t.Errorf("expected an error for unknown fields")
	}
}
