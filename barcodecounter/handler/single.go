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
	"github.com/shenwei356/BarcodeCounter/barcodecounter/pipeline"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/scan"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
)

// SingleOptions contains the options of SingleBarcodeSingleEnd.
type SingleOptions struct {
	Options

	// maximum mismatches of barcodes.
	MaxMismatches int
}

// SingleBarcodeSingleEnd counts barcodes of a template with one variable region.
type SingleBarcodeSingleEnd struct {
	m    *regionMatcher
	pool *tree.Pool

	counts []uint64
	total  uint64
}

// SingleState is the worker state of SingleBarcodeSingleEnd.
type SingleState struct {
	rs     *regionState
	counts []uint64
	total  uint64
}

// NewSingleBarcodeSingleEnd creates a SingleBarcodeSingleEnd.
func NewSingleBarcodeSingleEnd(t *scan.Template, pool *tree.Pool, opt *SingleOptions) (*SingleBarcodeSingleEnd, error) {
	if opt == nil {
		opt = &SingleOptions{Options: DefaultOptions}
	}
	m, err := newRegionMatcher(t, pool, opt.MaxMismatches, &opt.Options)
	if err != nil {
		return nil, err
	}
	return &SingleBarcodeSingleEnd{
		m:      m,
		pool:   pool,
		counts: make([]uint64, pool.Len()),
	}, nil
}

// Initialize returns a new worker state.
func (h *SingleBarcodeSingleEnd) Initialize() *SingleState {
	return &SingleState{
		rs:     h.m.newState(),
		counts: make([]uint64, len(h.counts)),
	}
}

// Process counts the barcode of a read.
func (h *SingleBarcodeSingleEnd) Process(state *SingleState, read pipeline.Read) error {
	state.total++
	if i := h.m.match(read.Seq, state.rs); i >= 0 {
		state.counts[i]++
	}
	return nil
}

// Reduce merges a worker state.
func (h *SingleBarcodeSingleEnd) Reduce(state *SingleState) {
	for i, c := range state.counts {
		h.counts[i] += c
	}
	clear(state.counts)
	h.total += state.total
	state.total = 0
	h.m.reduce(state.rs)
}

// Pool returns the barcode pool.
func (h *SingleBarcodeSingleEnd) Pool() *tree.Pool { return h.pool }

// Counts returns the counts of barcodes, in the order of the pool.
func (h *SingleBarcodeSingleEnd) Counts() []uint64 { return h.counts }

// Total returns the number of processed reads.
func (h *SingleBarcodeSingleEnd) Total() uint64 { return h.total }

// Matched returns the number of reads with a barcode.
func (h *SingleBarcodeSingleEnd) Matched() uint64 {
	var n uint64
	for _, c := range h.counts {
		n += c
	}
	return n
}
