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
	"slices"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/pipeline"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/scan"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/search"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
	"github.com/twotwotwo/sorts"
)

// CombinatorialOptions contains the options of CombinatorialBarcodesSingleEnd.
type CombinatorialOptions struct {
	Options

	// maximum mismatches of barcodes in each variable region.
	MaxMismatches []int
}

// CombinatorialBarcodesSingleEnd collects combinations of barcodes of
// a template with multiple variable regions, each with its own pool.
// Barcodes of regions are searched independently.
type CombinatorialBarcodesSingleEnd struct {
	template   *scan.Template
	fwdRegions [][2]int
	revRegions [][2]int

	fwd, rev []*search.SimpleBarcodeSearch
	pools    []*tree.Pool
	max      []int
	opt      Options

	n      int     // number of regions
	combos []int32 // all combinations, n values for each
	sorted bool
	total  uint64
}

// CombinatorialState is the worker state of CombinatorialBarcodesSingleEnd.
type CombinatorialState struct {
	fwd, rev []*search.State

	cur, best []int32
	combos    []int32
	total     uint64
}

// NewCombinatorialBarcodesSingleEnd creates a CombinatorialBarcodesSingleEnd.
func NewCombinatorialBarcodesSingleEnd(t *scan.Template, pools []*tree.Pool, opt *CombinatorialOptions) (*CombinatorialBarcodesSingleEnd, error) {
	if opt == nil {
		return nil, fmt.Errorf("handler: options of combinatorial barcodes needed")
	}
	if err := checkRegions(t, pools); err != nil {
		return nil, err
	}
	if len(opt.MaxMismatches) != len(pools) {
		return nil, fmt.Errorf("%w: %d mismatch bounds for %d pools", ErrRegionCount, len(opt.MaxMismatches), len(pools))
	}

	n := len(pools)
	h := &CombinatorialBarcodesSingleEnd{
		template:   t,
		fwdRegions: t.Variable(false),
		revRegions: t.Variable(true),
		pools:      pools,
		max:        append([]int(nil), opt.MaxMismatches...),
		opt:        opt.Options,
		n:          n,
		combos:     make([]int32, 0, n<<10),
	}

	var err error
	for i, pool := range pools {
		if t.Strand().HasForward() {
			if i == 0 {
				h.fwd = make([]*search.SimpleBarcodeSearch, n)
			}
			h.fwd[i], err = search.New(pool, &search.Options{MaxMismatches: h.max[i], Duplicates: opt.Duplicates})
			if err != nil {
				return nil, fmt.Errorf("pool #%d: %w", i+1, err)
			}
		}
		if t.Strand().HasReverse() {
			if i == 0 {
				h.rev = make([]*search.SimpleBarcodeSearch, n)
			}
			h.rev[i], err = search.New(pool, &search.Options{MaxMismatches: h.max[i], Reverse: true, Duplicates: opt.Duplicates})
			if err != nil {
				return nil, fmt.Errorf("pool #%d: %w", i+1, err)
			}
		}
	}
	return h, nil
}

// Initialize returns a new worker state.
func (h *CombinatorialBarcodesSingleEnd) Initialize() *CombinatorialState {
	st := &CombinatorialState{
		cur:    make([]int32, h.n),
		best:   make([]int32, h.n),
		combos: make([]int32, 0, h.n<<8),
	}
	if h.fwd != nil {
		st.fwd = make([]*search.State, h.n)
		for i, s := range h.fwd {
			st.fwd[i] = s.NewState()
		}
	}
	if h.rev != nil {
		st.rev = make([]*search.State, h.n)
		for i, s := range h.rev {
			st.rev[i] = s.NewState()
		}
	}
	return st
}

// Process collects the barcode combination of a read.
func (h *CombinatorialBarcodesSingleEnd) Process(state *CombinatorialState, read pipeline.Read) error {
	state.total++
	seq := read.Seq

	var found, ambiguous bool
	var best int

	scanRead(h.template, seq, h.opt.MaxTemplateMismatches, func(pos int, reverse bool, mm int) bool {
		// budget of all barcodes
		remaining := -1
		if found && !h.opt.UseFirst {
			remaining = best - mm
			if remaining < 0 {
				return true
			}
		}

		regions, searches, states := h.fwdRegions, h.fwd, state.fwd
		if reverse {
			regions, searches, states = h.revRegions, h.rev, state.rev
		}

		var sum, k, bound int
		var amb bool
		var r [2]int
		for j := 0; j < h.n; j++ {
			// region j of the reverse strand is the region n-1-j of the template.
			k = j
			if reverse {
				k = h.n - 1 - j
			}
			bound = h.max[k]
			if remaining >= 0 && remaining-sum < bound {
				bound = remaining - sum
			}
			if bound < 0 {
				return true
			}

			r = regions[j]
			searches[k].SearchWithBound(seq[pos+r[0]:pos+r[1]], states[k], bound)
			if states[k].Index == tree.Unmatched {
				return true
			}
			if states[k].Index == tree.Ambiguous {
				amb = true
			}
			state.cur[k] = int32(states[k].Index)
			sum += states[k].Mismatches
		}

		if amb && h.opt.UseFirst {
			return true
		}

		total := mm + sum
		if !found || total < best {
			found, best, ambiguous = true, total, amb
			copy(state.best, state.cur)
		} else if total == best && (amb || !slices.Equal(state.cur, state.best)) {
			ambiguous = true
		}
		return !h.opt.UseFirst
	})

	if found && !ambiguous {
		state.combos = append(state.combos, state.best...)
	}
	return nil
}

// Reduce merges a worker state.
func (h *CombinatorialBarcodesSingleEnd) Reduce(state *CombinatorialState) {
	if len(state.combos) > 0 {
		h.combos = append(h.combos, state.combos...)
		h.sorted = false
		state.combos = state.combos[:0]
	}
	h.total += state.total
	state.total = 0
	for i, s := range h.fwd {
		s.Reduce(state.fwd[i])
	}
	for i, s := range h.rev {
		s.Reduce(state.rev[i])
	}
}

// Pools returns the barcode pools.
func (h *CombinatorialBarcodesSingleEnd) Pools() []*tree.Pool { return h.pools }

// Total returns the number of processed reads.
func (h *CombinatorialBarcodesSingleEnd) Total() uint64 { return h.total }

// Matched returns the number of reads with a valid combination.
func (h *CombinatorialBarcodesSingleEnd) Matched() uint64 { return uint64(len(h.combos) / h.n) }

// Combination returns the i-th collected combination.
// The order is changed by Sort().
func (h *CombinatorialBarcodesSingleEnd) Combination(i int) []int32 {
	return h.combos[i*h.n : (i+1)*h.n : (i+1)*h.n]
}

// Sort sorts the collected combinations.
func (h *CombinatorialBarcodesSingleEnd) Sort() {
	if h.sorted {
		return
	}
	sorts.Quicksort(combinations{data: h.combos, n: h.n})
	h.sorted = true
}

// ComboCount is a unique combination and its count.
type ComboCount struct {
	Indices []int32
	Count   uint64
}

// Counts returns the sorted unique combinations with their counts.
func (h *CombinatorialBarcodesSingleEnd) Counts() []ComboCount {
	h.Sort()
	counts := make([]ComboCount, 0, 1024)
	var c []int32
	for i := 0; i < len(h.combos)/h.n; i++ {
		c = h.Combination(i)
		if len(counts) > 0 && slices.Equal(counts[len(counts)-1].Indices, c) {
			counts[len(counts)-1].Count++
			continue
		}
		counts = append(counts, ComboCount{Indices: c, Count: 1})
	}
	return counts
}

// combinations implements sort.Interface for flattened combinations.
type combinations struct {
	data []int32
	n    int
}

func (c combinations) Len() int { return len(c.data) / c.n }

func (c combinations) Less(i, j int) bool {
	return slices.Compare(c.data[i*c.n:(i+1)*c.n], c.data[j*c.n:(j+1)*c.n]) < 0
}

func (c combinations) Swap(i, j int) {
	a, b := c.data[i*c.n:(i+1)*c.n], c.data[j*c.n:(j+1)*c.n]
	for k := range a {
		a[k], b[k] = b[k], a[k]
	}
}
