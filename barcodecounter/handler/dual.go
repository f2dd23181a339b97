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
	"github.com/shenwei356/BarcodeCounter/barcodecounter/search"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
)

// DualOptions contains the options of DualBarcodesSingleEnd.
type DualOptions struct {
	Options

	// maximum mismatches of barcodes in each variable region.
	SegmentMismatches []int
}

// DualBarcodesSingleEnd counts barcode options of a template with multiple
// variable regions. The i-th barcodes of all pools form the i-th option,
// and barcodes of all regions are matched as a whole.
type DualBarcodesSingleEnd struct {
	template   *scan.Template
	fwdRegions [][2]int
	revRegions [][2]int

	fwd, rev *search.SegmentedBarcodeSearch
	pool     *tree.Pool // concatenated
	opt      Options

	counts []uint64
	total  uint64
}

// DualState is the worker state of DualBarcodesSingleEnd.
type DualState struct {
	fwd, rev *search.SegmentedState
	query    []byte
	sel      selector

	counts []uint64
	total  uint64
}

// NewDualBarcodesSingleEnd creates a DualBarcodesSingleEnd.
func NewDualBarcodesSingleEnd(t *scan.Template, pools []*tree.Pool, opt *DualOptions) (*DualBarcodesSingleEnd, error) {
	if opt == nil {
		return nil, fmt.Errorf("handler: options of dual barcodes needed")
	}
	if err := checkRegions(t, pools); err != nil {
		return nil, err
	}
	if len(opt.SegmentMismatches) != len(pools) {
		return nil, fmt.Errorf("%w: %d mismatch bounds for %d pools", ErrRegionCount, len(opt.SegmentMismatches), len(pools))
	}
	for _, p := range pools[1:] {
		if p.Len() != pools[0].Len() {
			return nil, fmt.Errorf("%w: %d != %d", ErrPoolSize, p.Len(), pools[0].Len())
		}
	}

	pool, err := tree.Concatenate(pools...)
	if err != nil {
		return nil, err
	}
	segments := make([]int, len(pools))
	for i, p := range pools {
		segments[i] = p.Length()
	}

	h := &DualBarcodesSingleEnd{
		template:   t,
		fwdRegions: t.Variable(false),
		revRegions: t.Variable(true),
		pool:       pool,
		opt:        opt.Options,
		counts:     make([]uint64, pool.Len()),
	}
	if t.Strand().HasForward() {
		h.fwd, err = search.NewSegmented(pool, &search.SegmentedOptions{
			Segments:      segments,
			MaxMismatches: opt.SegmentMismatches,
			Duplicates:    opt.Duplicates,
		})
		if err != nil {
			return nil, err
		}
	}
	if t.Strand().HasReverse() {
		h.rev, err = search.NewSegmented(pool, &search.SegmentedOptions{
			Segments:      segments,
			MaxMismatches: opt.SegmentMismatches,
			Reverse:       true,
			Duplicates:    opt.Duplicates,
		})
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Initialize returns a new worker state.
func (h *DualBarcodesSingleEnd) Initialize() *DualState {
	st := &DualState{
		query:  make([]byte, 0, h.pool.Length()),
		counts: make([]uint64, len(h.counts)),
	}
	if h.fwd != nil {
		st.fwd = h.fwd.NewState()
	}
	if h.rev != nil {
		st.rev = h.rev.NewState()
	}
	return st
}

// Process counts the barcode option of a read.
func (h *DualBarcodesSingleEnd) Process(state *DualState, read pipeline.Read) error {
	state.total++
	seq := read.Seq
	sel := &state.sel
	sel.reset()

	scanRead(h.template, seq, h.opt.MaxTemplateMismatches, func(pos int, reverse bool, mm int) bool {
		if !h.opt.UseFirst && sel.found && mm > sel.total {
			return true
		}

		// the variable regions of the reverse strand, in the order of the read,
		// are the reverse complement of the concatenated barcodes.
		regions, s, st := h.fwdRegions, h.fwd, state.fwd
		if reverse {
			regions, s, st = h.revRegions, h.rev, state.rev
		}
		state.query = state.query[:0]
		for _, r := range regions {
			state.query = append(state.query, seq[pos+r[0]:pos+r[1]]...)
		}

		s.Search(state.query, st)
		if st.Index == tree.Unmatched || (h.opt.UseFirst && st.Index == tree.Ambiguous) {
			return true
		}
		total := mm + st.Mismatches
		if !h.opt.UseFirst && sel.found && total > sel.total {
			return true
		}
		sel.add(st.Index, total)
		return !h.opt.UseFirst
	})

	if i := sel.result(); i >= 0 {
		state.counts[i]++
	}
	return nil
}

// Reduce merges a worker state.
func (h *DualBarcodesSingleEnd) Reduce(state *DualState) {
	for i, c := range state.counts {
		h.counts[i] += c
	}
	clear(state.counts)
	h.total += state.total
	state.total = 0
	if h.fwd != nil {
		h.fwd.Reduce(state.fwd)
	}
	if h.rev != nil {
		h.rev.Reduce(state.rev)
	}
}

// Pool returns the concatenated barcode pool, names are joined with "--".
func (h *DualBarcodesSingleEnd) Pool() *tree.Pool { return h.pool }

// Counts returns the counts of barcode options.
func (h *DualBarcodesSingleEnd) Counts() []uint64 { return h.counts }

// Total returns the number of processed reads.
func (h *DualBarcodesSingleEnd) Total() uint64 { return h.total }

// Matched returns the number of reads with a barcode option.
func (h *DualBarcodesSingleEnd) Matched() uint64 {
	var n uint64
	for _, c := range h.counts {
		n += c
	}
	return n
}
