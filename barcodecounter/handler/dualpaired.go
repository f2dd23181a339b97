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
	"fmt"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/pipeline"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/scan"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
)

// DualPairedOptions contains the options of DualBarcodesPairedEnd.
type DualPairedOptions struct {
	Options

	// maximum mismatches of barcodes in read 1 and read 2.
	MaxMismatches1 int
	MaxMismatches2 int

	// also try read 1 with the template of read 2, and vice versa,
	// for reads not counted.
	AllowSwap bool
}

// Diagnostics records pairs not counted.
type Diagnostics struct {
	Barcode1Only uint64 // only read 1 has a barcode
	Barcode2Only uint64 // only read 2 has a barcode
	InvalidPair  uint64 // both have barcodes, but from different options
}

func (d *Diagnostics) add(o *Diagnostics) {
	d.Barcode1Only += o.Barcode1Only
	d.Barcode2Only += o.Barcode2Only
	d.InvalidPair += o.InvalidPair
}

// DualBarcodesPairedEnd counts barcode options of paired-end reads,
// where read 1 and read 2 carry a barcode each. The i-th barcodes of
// the two pools form the i-th option.
type DualBarcodesPairedEnd struct {
	m1, m2 *regionMatcher
	pool1  *tree.Pool
	pool2  *tree.Pool
	swap   bool

	counts []uint64
	total  uint64
	diag   Diagnostics
}

// DualPairedState is the worker state of DualBarcodesPairedEnd.
type DualPairedState struct {
	rs1, rs2 *regionState

	counts []uint64
	total  uint64
	diag   Diagnostics
}

// NewDualBarcodesPairedEnd creates a DualBarcodesPairedEnd.
func NewDualBarcodesPairedEnd(t1 *scan.Template, pool1 *tree.Pool, t2 *scan.Template, pool2 *tree.Pool,
	opt *DualPairedOptions) (*DualBarcodesPairedEnd, error) {
	if opt == nil {
		opt = &DualPairedOptions{Options: DefaultOptions}
	}
	if pool1 == nil || pool2 == nil {
		return nil, tree.ErrEmptyPool
	}
	if pool1.Len() != pool2.Len() {
		return nil, fmt.Errorf("%w: %d != %d", ErrPoolSize, pool1.Len(), pool2.Len())
	}

	m1, err := newRegionMatcher(t1, pool1, opt.MaxMismatches1, &opt.Options)
	if err != nil {
		return nil, fmt.Errorf("read 1: %w", err)
	}
	m2, err := newRegionMatcher(t2, pool2, opt.MaxMismatches2, &opt.Options)
	if err != nil {
		return nil, fmt.Errorf("read 2: %w", err)
	}

	return &DualBarcodesPairedEnd{
		m1:     m1,
		m2:     m2,
		pool1:  pool1,
		pool2:  pool2,
		swap:   opt.AllowSwap,
		counts: make([]uint64, pool1.Len()),
	}, nil
}

// Initialize returns a new worker state.
func (h *DualBarcodesPairedEnd) Initialize() *DualPairedState {
	return &DualPairedState{
		rs1:    h.m1.newState(),
		rs2:    h.m2.newState(),
		counts: make([]uint64, len(h.counts)),
	}
}

// Process counts the barcode option of a read pair.
func (h *DualBarcodesPairedEnd) Process(state *DualPairedState, read1, read2 pipeline.Read) error {
	state.total++

	i1 := h.m1.match(read1.Seq, state.rs1)
	i2 := h.m2.match(read2.Seq, state.rs2)
	if i1 >= 0 && i1 == i2 {
		state.counts[i1]++
		return nil
	}

	if h.swap {
		j1 := h.m1.match(read2.Seq, state.rs1)
		j2 := h.m2.match(read1.Seq, state.rs2)
		if j1 >= 0 && j1 == j2 {
			state.counts[j1]++
			return nil
		}
	}

	switch {
	case i1 >= 0 && i2 >= 0:
		state.diag.InvalidPair++
	case i1 >= 0:
		state.diag.Barcode1Only++
	case i2 >= 0:
		state.diag.Barcode2Only++
	}
	return nil
}

// Reduce merges a worker state.
func (h *DualBarcodesPairedEnd) Reduce(state *DualPairedState) {
	for i, c := range state.counts {
		h.counts[i] += c
	}
	clear(state.counts)
	h.total += state.total
	state.total = 0
	h.diag.add(&state.diag)
	state.diag = Diagnostics{}
	h.m1.reduce(state.rs1)
	h.m2.reduce(state.rs2)
}

// Pools returns the barcode pools of read 1 and read 2.
func (h *DualBarcodesPairedEnd) Pools() (*tree.Pool, *tree.Pool) { return h.pool1, h.pool2 }

// Counts returns the counts of barcode options.
func (h *DualBarcodesPairedEnd) Counts() []uint64 { return h.counts }

// Total returns the number of processed read pairs.
func (h *DualBarcodesPairedEnd) Total() uint64 { return h.total }

// Diagnostics returns the statistics of pairs not counted.
func (h *DualBarcodesPairedEnd) Diagnostics() Diagnostics { return h.diag }

// Matched returns the number of pairs with a barcode option.
func (h *DualBarcodesPairedEnd) Matched() uint64 {
	var n uint64
	for _, c := range h.counts {
		n += c
	}
	return n
}
