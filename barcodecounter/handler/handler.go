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

// Package handler implements experimental designs of barcode counting.
// All handlers satisfy the handler interfaces of the pipeline package.
//
// A read is scanned with a template, positions (and strands) with no more
// than Options.MaxTemplateMismatches mismatches at the constant regions are
// checked, and the variable regions there are searched in barcode pools.
// By default, the candidate with the fewest mismatches in total (constant
// regions plus barcodes) wins, and candidates with the same total but
// different barcodes make the read ambiguous, which is not counted.
// With Options.UseFirst, the first position with a unique barcode is used,
// positions hitting ambiguous barcodes are skipped.
package handler

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/scan"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/search"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
)

// ErrRegionCount means the numbers of variable regions and barcode pools are different.
var ErrRegionCount = errors.New("handler: numbers of variable regions and barcode pools do not match")

// ErrRegionLength means a variable region and its barcodes have different lengths.
var ErrRegionLength = errors.New("handler: lengths of a variable region and its barcodes do not match")

// ErrPoolSize means pools used in combination have different numbers of barcodes.
var ErrPoolSize = errors.New("handler: pools have different numbers of barcodes")

// Options contains the common options of handlers.
type Options struct {
	// maximum mismatches in the constant regions of the template.
	MaxTemplateMismatches int

	// use the first position with a unique barcode instead of the best one.
	UseFirst bool

	// how to handle duplicated barcodes in a pool.
	Duplicates tree.DuplicateAction
}

// DefaultOptions is the default common options.
var DefaultOptions = Options{
	MaxTemplateMismatches: 0,
	UseFirst:              false,
	Duplicates:            tree.DuplicateFirst,
}

// checkRegions checks the variable regions of a template against pools.
func checkRegions(t *scan.Template, pools []*tree.Pool) error {
	regions := t.Variable(false)
	if len(regions) != len(pools) {
		return fmt.Errorf("%w: %d regions, %d pools", ErrRegionCount, len(regions), len(pools))
	}
	for i, r := range regions {
		if pools[i] == nil {
			return tree.ErrEmptyPool
		}
		if r[1]-r[0] != pools[i].Length() {
			return fmt.Errorf("%w: region #%d (%d bp), barcodes (%d bp)",
				ErrRegionLength, i+1, r[1]-r[0], pools[i].Length())
		}
	}
	return nil
}

// scanRead calls fn for every position and strand with no more than maxConst
// mismatches at the constant regions. It stops when fn returns false.
func scanRead(t *scan.Template, read []byte, maxConst int, fn func(pos int, reverse bool, mm int) bool) {
	st := t.Initialize(read)
	defer t.Recycle(st)

	fwd, rev := t.Strand().HasForward(), t.Strand().HasReverse()
	for !st.Finished {
		t.Next(st)
		if fwd && st.ForwardMismatches <= maxConst {
			if !fn(st.Position, false, st.ForwardMismatches) {
				return
			}
		}
		if rev && st.ReverseMismatches <= maxConst {
			if !fn(st.Position, true, st.ReverseMismatches) {
				return
			}
		}
	}
}

// selector keeps the best candidate.
type selector struct {
	index int
	total int
	found bool
}

func (s *selector) reset() { s.found = false }

// add returns true if the candidate becomes the best one.
func (s *selector) add(index, total int) bool {
	if !s.found || total < s.total {
		s.index, s.total, s.found = index, total, true
		return true
	}
	if total == s.total && index != s.index {
		s.index = tree.Ambiguous
	}
	return false
}

// bound returns the budget for a candidate with mm mismatches
// in the constant regions, so that it could tie or beat the best one.
func (s *selector) bound(limit, mm int) int {
	if s.found {
		if b := s.total - mm; b < limit {
			return b
		}
	}
	return limit
}

func (s *selector) result() int {
	if !s.found {
		return tree.Unmatched
	}
	return s.index
}

// regionMatcher finds the barcode of a template with one variable region.
type regionMatcher struct {
	template  *scan.Template
	fwdRegion [2]int
	revRegion [2]int

	fwd, rev *search.SimpleBarcodeSearch

	max int
	opt Options
}

type regionState struct {
	fwd, rev *search.State
	sel      selector
}

func newRegionMatcher(t *scan.Template, pool *tree.Pool, maxMismatches int, opt *Options) (*regionMatcher, error) {
	if err := checkRegions(t, []*tree.Pool{pool}); err != nil {
		return nil, err
	}
	m := &regionMatcher{
		template:  t,
		fwdRegion: t.Variable(false)[0],
		revRegion: t.Variable(true)[0],
		max:       maxMismatches,
		opt:       *opt,
	}
	var err error
	if t.Strand().HasForward() {
		m.fwd, err = search.New(pool, &search.Options{MaxMismatches: maxMismatches, Duplicates: opt.Duplicates})
		if err != nil {
			return nil, err
		}
	}
	if t.Strand().HasReverse() {
		m.rev, err = search.New(pool, &search.Options{MaxMismatches: maxMismatches, Reverse: true, Duplicates: opt.Duplicates})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *regionMatcher) newState() *regionState {
	st := &regionState{}
	if m.fwd != nil {
		st.fwd = m.fwd.NewState()
	}
	if m.rev != nil {
		st.rev = m.rev.NewState()
	}
	return st
}

// match returns the pool index, tree.Unmatched or tree.Ambiguous.
func (m *regionMatcher) match(read []byte, st *regionState) int {
	sel := &st.sel
	sel.reset()
	scanRead(m.template, read, m.opt.MaxTemplateMismatches, func(pos int, reverse bool, mm int) bool {
		bound := m.max
		if !m.opt.UseFirst {
			bound = sel.bound(m.max, mm)
			if bound < 0 {
				return true
			}
		}

		s, state, region := m.fwd, st.fwd, m.fwdRegion
		if reverse {
			s, state, region = m.rev, st.rev, m.revRegion
		}
		s.SearchWithBound(read[pos+region[0]:pos+region[1]], state, bound)
		if state.Index == tree.Unmatched || (m.opt.UseFirst && state.Index == tree.Ambiguous) {
			return true
		}
		sel.add(state.Index, mm+state.Mismatches)
		return !m.opt.UseFirst
	})
	return sel.result()
}

func (m *regionMatcher) reduce(st *regionState) {
	if m.fwd != nil {
		m.fwd.Reduce(st.fwd)
	}
	if m.rev != nil {
		m.rev.Reduce(st.rev)
	}
}
