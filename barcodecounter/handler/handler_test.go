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

package handler

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/pipeline"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/scan"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
	"github.com/shenwei356/bio/seqio/fastx"
)

func newTemplate(t *testing.T, s string, strand scan.Strand) *scan.Template {
	tpl, err := scan.NewTemplate([]byte(s), &scan.TemplateOptions{Strand: strand})
	if err != nil {
		t.Fatal(err)
	}
	return tpl
}

func newPool(t *testing.T, seqs ...string) *tree.Pool {
	s := make([][]byte, len(seqs))
	for i, seq := range seqs {
		s[i] = []byte(seq)
	}
	p, err := tree.NewPool(s)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func read(s string) pipeline.Read { return pipeline.Read{Seq: []byte(s)} }

func TestSingleBarcodeSingleEnd(t *testing.T) {
	tpl := newTemplate(t, "ACGT----TTTT", scan.Both)
	pool := newPool(t, "ACCA", "CAAC", "GTTG", "TGGT")
	h, err := NewSingleBarcodeSingleEnd(tpl, pool, &SingleOptions{Options: DefaultOptions, MaxMismatches: 1})
	if err != nil {
		t.Error(err)
		return
	}
	state := h.Initialize()

	reads := []string{
		"GGACGTACCATTTTGG",         // ACCA
		"ACGTACCTTTTT",             // ACCA with 1 mismatch
		"CCCCCCCCCCCCCC",           // no template
		"AAAAGTTGACGT",             // CAAC on the reverse strand
		"ACGTACCATTTTACGTCAACTTTT", // two best positions
		"ACGTAGGATTTT",             // 2 mismatches
	}
	for _, r := range reads {
		if err = h.Process(state, read(r)); err != nil {
			t.Error(err)
		}
	}
	h.Reduce(state)

	expected := []uint64{2, 1, 0, 0}
	if !slices.Equal(h.Counts(), expected) {
		t.Errorf("expected %v, returned %v", expected, h.Counts())
	}
	if h.Total() != uint64(len(reads)) || h.Matched() != 3 {
		t.Errorf("unexpected total (%d) or matched (%d) reads", h.Total(), h.Matched())
	}

	// the first matched position
	h, _ = NewSingleBarcodeSingleEnd(tpl, pool, &SingleOptions{
		Options:       Options{UseFirst: true, Duplicates: tree.DuplicateFirst},
		MaxMismatches: 1,
	})
	state = h.Initialize()
	h.Process(state, read("ACGTACCATTTTACGTCAACTTTT"))
	h.Reduce(state)
	if h.Counts()[0] != 1 {
		t.Errorf("the first position should be used: %v", h.Counts())
	}
}

func TestSingleBarcodeUseFirstAmbiguous(t *testing.T) {
	tpl := newTemplate(t, "ACGT----TTTT", scan.Forward)
	pool := newPool(t, "ACCA", "ACGA")
	h, _ := NewSingleBarcodeSingleEnd(tpl, pool, &SingleOptions{
		Options:       Options{UseFirst: true},
		MaxMismatches: 1,
	})
	state := h.Initialize()

	// ACTA is one mismatch away from both barcodes, the next position has ACGA.
	h.Process(state, read("ACGTACTATTTTACGTACGATTTT"))
	h.Reduce(state)
	if h.Counts()[1] != 1 || h.Matched() != 1 {
		t.Errorf("the position with an ambiguous barcode should be skipped: %v", h.Counts())
	}
}

func TestSingleBarcodeTemplateMismatches(t *testing.T) {
	tpl := newTemplate(t, "ACGT----TTTT", scan.Forward)
	pool := newPool(t, "ACCA", "CAAC", "GTTG", "TGGT")

	for _, c := range []struct {
		max      int
		expected uint64
	}{{0, 0}, {1, 1}} {
		h, _ := NewSingleBarcodeSingleEnd(tpl, pool, &SingleOptions{
			Options: Options{MaxTemplateMismatches: c.max},
		})
		state := h.Initialize()
		h.Process(state, read("AGGTCAACTTTT"))
		h.Reduce(state)
		if h.Counts()[1] != c.expected {
			t.Errorf("max template mismatches %d: expected %d, returned %d", c.max, c.expected, h.Counts()[1])
		}
	}
}

func TestHandlerErrors(t *testing.T) {
	pool := newPool(t, "ACCA", "CAAC")

	_, err := NewSingleBarcodeSingleEnd(newTemplate(t, "ACGT----TT--TT", scan.Forward), pool, nil)
	if !errors.Is(err, ErrRegionCount) {
		t.Errorf("expected ErrRegionCount, returned %v", err)
	}

	_, err = NewSingleBarcodeSingleEnd(newTemplate(t, "ACGT---TTTT", scan.Forward), pool, nil)
	if !errors.Is(err, ErrRegionLength) {
		t.Errorf("expected ErrRegionLength, returned %v", err)
	}

	_, err = NewDualBarcodesSingleEnd(newTemplate(t, "ACGT----GGCC----TTTT", scan.Forward),
		[]*tree.Pool{pool, newPool(t, "GTTG", "TGGT", "AAAA")},
		&DualOptions{SegmentMismatches: []int{1, 1}})
	if !errors.Is(err, ErrPoolSize) {
		t.Errorf("expected ErrPoolSize, returned %v", err)
	}

	_, err = NewRandomBarcodeSingleEnd(newTemplate(t, "ACGTTTTT", scan.Forward), nil)
	if !errors.Is(err, ErrRegionCount) {
		t.Errorf("expected ErrRegionCount, returned %v", err)
	}
}

func TestCombinatorialBarcodesSingleEnd(t *testing.T) {
	tpl := newTemplate(t, "ACGT----GGCC----TTTT", scan.Both)
	pools := []*tree.Pool{newPool(t, "ACCA", "CAAC"), newPool(t, "GTTG", "TGGT")}
	h, err := NewCombinatorialBarcodesSingleEnd(tpl, pools, &CombinatorialOptions{
		Options:       DefaultOptions,
		MaxMismatches: []int{1, 1},
	})
	if err != nil {
		t.Error(err)
		return
	}

	reads := []string{
		"ACGTACCAGGCCTGGTTTTT", // 0, 1
		"ACGTCAACGGCCGTTGTTTT", // 1, 0
		"ACGTACCAGGCCTGGATTTT", // 0, 1
		"ACGTACCTGGCCGTTGTTTT", // 0, 0
		"AAAAACCAGGCCTGGTACGT", // 0, 1 on the reverse strand
		"ACGTACCAGGCCAAAATTTT", // the second barcode is missing
	}
	// two workers
	s1, s2 := h.Initialize(), h.Initialize()
	for i, r := range reads {
		if i&1 == 0 {
			h.Process(s1, read(r))
		} else {
			h.Process(s2, read(r))
		}
	}
	h.Reduce(s1)
	h.Reduce(s2)

	if h.Total() != uint64(len(reads)) || h.Matched() != 5 {
		t.Errorf("unexpected total (%d) or matched (%d) reads", h.Total(), h.Matched())
	}

	counts := h.Counts()
	expected := []ComboCount{
		{Indices: []int32{0, 0}, Count: 1},
		{Indices: []int32{0, 1}, Count: 3},
		{Indices: []int32{1, 0}, Count: 1},
	}
	if len(counts) != len(expected) {
		t.Errorf("expected %v, returned %v", expected, counts)
		return
	}
	for i, c := range counts {
		if !slices.Equal(c.Indices, expected[i].Indices) || c.Count != expected[i].Count {
			t.Errorf("#%d: expected %v, returned %v", i, expected[i], c)
		}
	}
}

func TestDualBarcodesSingleEnd(t *testing.T) {
	tpl := newTemplate(t, "ACGT----GGCC----TTTT", scan.Both)
	pools := []*tree.Pool{newPool(t, "ACCA", "CAAC"), newPool(t, "GTTG", "TGGT")}
	h, err := NewDualBarcodesSingleEnd(tpl, pools, &DualOptions{
		Options:           DefaultOptions,
		SegmentMismatches: []int{1, 1},
	})
	if err != nil {
		t.Error(err)
		return
	}
	state := h.Initialize()

	reads := []string{
		"ACGTACCAGGCCGTTGTTTT", // option 0
		"ACGTACCTGGCCGTTGTTTT", // option 0, 1 mismatch
		"ACGTACCAGGCCTGGTTTTT", // not an option
		"ACGTCAACGGCCTGGTTTTT", // option 1
		"AAAAACCAGGCCGTTGACGT", // option 1 on the reverse strand
	}
	for _, r := range reads {
		h.Process(state, read(r))
	}
	h.Reduce(state)

	if expected := []uint64{2, 2}; !slices.Equal(h.Counts(), expected) {
		t.Errorf("expected %v, returned %v", expected, h.Counts())
	}
	if s := string(h.Pool().Seq(1)); s != "CAACTGGT" {
		t.Errorf("unexpected option: %s", s)
	}
}

func TestDualBarcodesPairedEnd(t *testing.T) {
	t1 := newTemplate(t, "ACGT----TTTT", scan.Forward)
	t2 := newTemplate(t, "GGCC----AATT", scan.Forward)
	pool1 := newPool(t, "ACCA", "CAAC")
	pool2 := newPool(t, "GTTG", "TGGT")

	pairs := [][2]string{
		{"ACGTACCATTTT", "GGCCGTTGAATT"}, // option 0
		{"ACGTCAACTTTT", "GGCCGTTGAATT"}, // invalid pair
		{"ACGTACCATTTT", "CCCCCCCCCCCC"}, // barcode 1 only
		{"CCCCCCCCCCCC", "GGCCTGGTAATT"}, // barcode 2 only
		{"GGCCTGGTAATT", "ACGTCAACTTTT"}, // option 1, swapped
	}

	for _, swap := range []bool{false, true} {
		h, err := NewDualBarcodesPairedEnd(t1, pool1, t2, pool2, &DualPairedOptions{
			Options:        DefaultOptions,
			MaxMismatches1: 1,
			MaxMismatches2: 1,
			AllowSwap:      swap,
		})
		if err != nil {
			t.Error(err)
			return
		}
		state := h.Initialize()
		for _, p := range pairs {
			h.Process(state, read(p[0]), read(p[1]))
		}
		h.Reduce(state)

		expected := []uint64{1, 0}
		if swap {
			expected[1] = 1
		}
		if !slices.Equal(h.Counts(), expected) {
			t.Errorf("swap %v: expected %v, returned %v", swap, expected, h.Counts())
		}
		d := h.Diagnostics()
		if d.InvalidPair != 1 || d.Barcode1Only != 1 || d.Barcode2Only != 1 {
			t.Errorf("swap %v: unexpected diagnostics: %+v", swap, d)
		}
		if h.Total() != uint64(len(pairs)) {
			t.Errorf("swap %v: unexpected total: %d", swap, h.Total())
		}
	}
}

func TestRandomBarcodeSingleEnd(t *testing.T) {
	tpl := newTemplate(t, "ACGT------TTTT", scan.Both)
	h, err := NewRandomBarcodeSingleEnd(tpl, nil)
	if err != nil {
		t.Error(err)
		return
	}
	state := h.Initialize()
	reads := []string{
		"ACGTAAACCCTTTT",
		"GACGTAAACCCTTTTG",
		"ACGTGGGTTTTTTT",
		"ACGTNNAAAATTTT",
		"AAAAGGGTTTACGT", // AAACCC on the reverse strand
		"CCCCCCCCCCCCCC",
	}
	for _, r := range reads {
		h.Process(state, read(r))
	}
	h.Reduce(state)

	expected := []SeqCount{{"AAACCC", 3}, {"GGGTTT", 1}, {"NNAAAA", 1}}
	if counts := h.Counts(); !slices.Equal(counts, expected) {
		t.Errorf("expected %v, returned %v", expected, counts)
	}
	if h.Matched() != 5 || h.Total() != 6 {
		t.Errorf("unexpected total (%d) or matched (%d) reads", h.Total(), h.Matched())
	}
}

// reads with barcodes from a pool with pairwise distances of 4,
// and at most one mismatch in the barcode.
func simulateReads(r *rand.Rand, pool []string, n int) ([]string, []uint64) {
	reads := make([]string, n)
	counts := make([]uint64, len(pool))
	for i := range reads {
		j := r.Intn(len(pool))
		b := []byte(pool[j])
		if r.Intn(2) == 0 {
			b[r.Intn(len(b))] = "ACGTN"[r.Intn(5)]
		}
		reads[i] = strings.Repeat("C", r.Intn(5)) + "ACGT" + string(b) + "TTTT" + strings.Repeat("C", r.Intn(5))
		counts[j]++
	}
	return reads, counts
}

func TestSingleBarcodeSingleEndPipeline(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	pool := []string{"ACCA", "CAAC", "GTTG", "TGGT"}
	reads, expected := simulateReads(r, pool, 2000)

	var buf bytes.Buffer
	for i, s := range reads {
		fmt.Fprintf(&buf, "@r%d\n%s\n+\n%s\n", i, s, strings.Repeat("I", len(s)))
	}
	file := filepath.Join(t.TempDir(), "reads.fq")
	if err := os.WriteFile(file, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	tpl := newTemplate(t, "ACGT----TTTT", scan.Forward)
	for _, threads := range []int{1, 2, 4} {
		h, err := NewSingleBarcodeSingleEnd(tpl, newPool(t, pool...), &SingleOptions{
			Options:       DefaultOptions,
			MaxMismatches: 1,
		})
		if err != nil {
			t.Error(err)
			return
		}
		reader, err := fastx.NewReader(nil, file, "")
		if err != nil {
			t.Fatal(err)
		}
		err = pipeline.ProcessSingleEnd[*SingleState](reader, h, &pipeline.Options{Threads: threads, BlockSize: 37})
		reader.Close()
		if err != nil {
			t.Errorf("threads %d: %s", threads, err)
			continue
		}
		if !slices.Equal(h.Counts(), expected) {
			t.Errorf("threads %d: expected %v, returned %v", threads, expected, h.Counts())
		}
		if h.Total() != uint64(len(reads)) {
			t.Errorf("threads %d: expected %d reads, returned %d", threads, len(reads), h.Total())
		}
	}
}
