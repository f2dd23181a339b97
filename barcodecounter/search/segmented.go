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

package search

import (
	"github.com/pkg/errors"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
)

// SegmentedOptions contains the options of SegmentedBarcodeSearch.
type SegmentedOptions struct {
	// lengths of segments, in the order of the pool sequences.
	Segments []int

	// maximum mismatches of each segment.
	MaxMismatches []int

	// search the reverse complement sequences of the pool.
	// The order of segments is reversed too.
	Reverse bool

	Duplicates tree.DuplicateAction
}

// SegmentedBarcodeSearch searches sequences consisting of multiple segments,
// each with its own mismatch bound.
type SegmentedBarcodeSearch struct {
	tree     *tree.SegmentedTree
	exact    map[string]int
	max      []int
	segments []int

	cache *sharedCache[segmentedHit]
}

// NewSegmented creates a SegmentedBarcodeSearch.
func NewSegmented(pool *tree.Pool, opt *SegmentedOptions) (*SegmentedBarcodeSearch, error) {
	if opt == nil {
		return nil, errors.New("search: options of segmented search needed")
	}
	if pool == nil {
		return nil, tree.ErrEmptyPool
	}
	if len(opt.Segments) != len(opt.MaxMismatches) {
		return nil, errors.Errorf("search: %d mismatch bounds given for %d segments",
			len(opt.MaxMismatches), len(opt.Segments))
	}
	for _, m := range opt.MaxMismatches {
		if m < 0 {
			return nil, errors.Errorf("search: negative max mismatches: %d", m)
		}
	}

	segments := append([]int(nil), opt.Segments...)
	bounds := append([]int(nil), opt.MaxMismatches...)

	var err error
	if opt.Reverse {
		pool, err = pool.ReverseComplement()
		if err != nil {
			return nil, err
		}
		for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
			segments[i], segments[j] = segments[j], segments[i]
			bounds[i], bounds[j] = bounds[j], bounds[i]
		}
	}

	t, err := tree.NewSegmented(pool, segments, opt.Duplicates)
	if err != nil {
		return nil, errors.Wrap(err, "search: building segmented mismatch tree")
	}

	s := &SegmentedBarcodeSearch{
		tree:     t,
		exact:    make(map[string]int, pool.Len()),
		max:      bounds,
		segments: segments,
		cache:    newSharedCache[segmentedHit](),
	}
	for i := 0; i < pool.Len(); i++ {
		s.exact[string(pool.Seq(i))], _ = t.Get(pool.Seq(i))
	}
	return s, nil
}

// MaxMismatches returns the maximum mismatches of segments,
// in the order of segments of searched sequences.
func (s *SegmentedBarcodeSearch) MaxMismatches() []int { return s.max }

// Segments returns lengths of segments, in the order of searched sequences.
func (s *SegmentedBarcodeSearch) Segments() []int { return s.segments }

// CacheSize returns the number of records in the shared cache.
func (s *SegmentedBarcodeSearch) CacheSize() int { return s.cache.len() }

// SegmentedState stores the result of the last search and a private cache.
type SegmentedState struct {
	// pool index, tree.Unmatched or tree.Ambiguous
	Index int
	// total mismatches
	Mismatches int
	// mismatches of each segment, only meaningful for matched results.
	PerSegment []int

	cache  map[string]segmentedHit
	bounds []int // clamped bounds of the current search
}

// NewState returns a new SegmentedState.
func (s *SegmentedBarcodeSearch) NewState() *SegmentedState {
	return &SegmentedState{
		Index:      tree.Unmatched,
		PerSegment: make([]int, len(s.segments)),
		bounds:     make([]int, 0, len(s.segments)),
		cache:      make(map[string]segmentedHit, 128),
	}
}

type segmentedHit tree.SegmentedResult

func (h segmentedHit) index() int { return h.Index }

func (h segmentedHit) applyTo(state *SegmentedState) {
	state.Index = h.Index
	state.Mismatches = h.Mismatches
	state.PerSegment = append(state.PerSegment[:0], h.PerSegment...)
}

// within checks if the mismatches of all segments are within the bounds.
func (h segmentedHit) within(allowed []int) bool {
	for i, m := range h.PerSegment {
		if m > allowed[i] {
			return false
		}
	}
	return true
}

// Search searches a sequence with the maximum mismatches.
func (s *SegmentedBarcodeSearch) Search(seq []byte, state *SegmentedState) {
	s.SearchWithBound(seq, state, s.max)
}

// SearchWithBound searches a sequence with bounds no larger than MaxMismatches().
// Values larger than the maximum ones are clamped, allowed itself is not modified.
//
// Cached results are computed with the maximum bounds. A cached unique hit
// is reused when it is within the given bounds, otherwise the tree is searched
// again, because another sequence might be the best one under tighter bounds.
func (s *SegmentedBarcodeSearch) SearchWithBound(seq []byte, state *SegmentedState, allowed []int) {
	if len(allowed) != len(s.max) {
		state.Index = tree.Unmatched
		state.Mismatches = 0
		clear(state.PerSegment)
		return
	}

	atMax := true
	var sum int
	bounds := state.bounds[:0]
	for i, m := range allowed {
		if m > s.max[i] {
			m = s.max[i]
		} else if m < s.max[i] {
			atMax = false
		}
		bounds = append(bounds, m)
		sum += m
	}
	state.bounds = bounds

	if idx, ok := s.exact[string(seq)]; ok {
		state.Index = idx
		state.Mismatches = 0
		clear(state.PerSegment)
		return
	}

	if h, ok := lookup[*SegmentedState](s.cache, state.cache, seq); ok {
		if atMax || h.Index == tree.Unmatched || (h.Index >= 0 && h.within(bounds)) {
			h.applyTo(state)
			if h.Index == tree.Unmatched {
				state.Mismatches = sum + 1
			}
			return
		}
	}

	h := segmentedHit(s.tree.Search(seq, bounds))
	finish[*SegmentedState](state.cache, seq, h, atMax, state)
}

// Reduce merges the private cache of a state into the shared one,
// and clears the private cache.
func (s *SegmentedBarcodeSearch) Reduce(state *SegmentedState) {
	s.cache.merge(state.cache)
}
