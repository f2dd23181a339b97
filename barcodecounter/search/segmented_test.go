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
	"math/rand"
	"testing"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/tree"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/util"
)

func TestSegmentedBarcodeSearch(t *testing.T) {
	pool := newPool("AAAACC", "CCCCGG", "GGGGTT")
	s, err := NewSegmented(pool, &SegmentedOptions{Segments: []int{4, 2}, MaxMismatches: []int{0, 2}})
	if err != nil {
		t.Error(err)
		return
	}
	state := s.NewState()

	s.Search([]byte("AAAACA"), state)
	if state.Index != 0 || state.Mismatches != 1 || state.PerSegment[1] != 1 {
		t.Errorf("AAAACA: returned (%d, %d, %v)", state.Index, state.Mismatches, state.PerSegment)
	}

	s.Search([]byte("AAATCC"), state)
	if state.Index != tree.Unmatched {
		t.Errorf("AAATCC: expected Unmatched, returned %d", state.Index)
	}

	s.Search([]byte("GGGGTT"), state)
	if state.Index != 2 || state.Mismatches != 0 {
		t.Errorf("GGGGTT: returned (%d, %d)", state.Index, state.Mismatches)
	}

	if _, err = NewSegmented(pool, &SegmentedOptions{Segments: []int{4, 2}, MaxMismatches: []int{1}}); err == nil {
		t.Errorf("expected an error for unmatched numbers of segments and bounds")
	}
	if _, err = NewSegmented(pool, &SegmentedOptions{Segments: []int{3, 2}, MaxMismatches: []int{1, 1}}); err == nil {
		t.Errorf("expected an error for wrong segment lengths")
	}
}

func TestSegmentedBarcodeSearchDuplicates(t *testing.T) {
	pool := newPool("AAAACC", "CCCCGG", "GGGGTT", "AAAACC")
	s, err := NewSegmented(pool, &SegmentedOptions{
		Segments:      []int{4, 2},
		MaxMismatches: []int{0, 2},
		Duplicates:    tree.DuplicateNone,
	})
	if err != nil {
		t.Error(err)
		return
	}
	state := s.NewState()

	for _, c := range []struct {
		seq        string
		index      int
		mismatches int
	}{
		{"AAAACC", tree.Ambiguous, 0},
		{"AAAACA", tree.Ambiguous, 1},
		{"AAATCC", tree.Unmatched, 3},
		{"GGGGTA", 2, 1},
	} {
		s.Search([]byte(c.seq), state)
		if state.Index != c.index || state.Mismatches != c.mismatches {
			t.Errorf("%s: expected (%d, %d), returned (%d, %d)",
				c.seq, c.index, c.mismatches, state.Index, state.Mismatches)
		}
	}
}

func TestSegmentedBarcodeSearchBoundsKept(t *testing.T) {
	pool := newPool("AAAACC", "CCCCGG")
	s, _ := NewSegmented(pool, &SegmentedOptions{Segments: []int{4, 2}, MaxMismatches: []int{0, 1}})
	state := s.NewState()

	allowed := []int{3, 3}
	s.SearchWithBound([]byte("AAATCC"), state, allowed)
	if state.Index != tree.Unmatched || state.Mismatches != 2 {
		t.Errorf("AAATCC: expected (%d, 2), returned (%d, %d)", tree.Unmatched, state.Index, state.Mismatches)
	}
	if allowed[0] != 3 || allowed[1] != 3 {
		t.Errorf("bounds of the caller should not be modified: %v", allowed)
	}
}

func TestSegmentedBarcodeSearchRevalidation(t *testing.T) {
	pool := newPool("CAGG", "AATT")
	s, _ := NewSegmented(pool, &SegmentedOptions{Segments: []int{2, 2}, MaxMismatches: []int{1, 2}})
	state := s.NewState()

	s.Search([]byte("AAGG"), state)
	if state.Index != 0 || state.Mismatches != 1 {
		t.Errorf("AAGG: expected (0, 1), returned (%d, %d)", state.Index, state.Mismatches)
	}
	s.Reduce(state)

	// the cached best hit is beyond the tighter bound of the first segment,
	// while the other one is within.
	s.SearchWithBound([]byte("AAGG"), state, []int{0, 2})
	if state.Index != 1 || state.Mismatches != 2 {
		t.Errorf("AAGG with bounds [0 2]: expected (1, 2), returned (%d, %d)", state.Index, state.Mismatches)
	}
	if len(state.cache) != 0 {
		t.Errorf("results under tighter bounds should not be cached")
	}
}

func TestSegmentedBarcodeSearchRandom(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	pool := randomPool(r, 300, 10)
	segments := []int{4, 6}
	maxMismatches := []int{1, 2}

	s, _ := NewSegmented(pool, &SegmentedOptions{Segments: segments, MaxMismatches: maxMismatches})
	rev, _ := NewSegmented(pool, &SegmentedOptions{Segments: segments, MaxMismatches: maxMismatches, Reverse: true})
	tr, _ := tree.NewSegmented(pool, segments, tree.DuplicateError)
	state, stateRev := s.NewState(), rev.NewState()

	bounds := [][]int{{0, 0}, {1, 0}, {0, 2}, {1, 1}, {1, 2}}
	queries := make([][]byte, 2000)
	for i := range queries {
		queries[i] = mutate(r, pool.Seq(r.Intn(pool.Len())), r.Intn(4))
	}
	queries = append(queries, queries[:500]...)

	for i, q := range queries {
		k := bounds[r.Intn(len(bounds))]
		want := tr.Search(q, k)
		s.SearchWithBound(q, state, append([]int(nil), k...))
		if state.Index != want.Index {
			t.Errorf("query %s with bounds %v: expected %d, returned %d", q, k, want.Index, state.Index)
		}

		// the reverse search uses reversed bounds
		rc, _ := util.ReverseComplement(q)
		rev.SearchWithBound(rc, stateRev, []int{k[1], k[0]})
		if stateRev.Index != want.Index {
			t.Errorf("query %s with bounds %v: expected %d for the reverse search, returned %d", q, k, want.Index, stateRev.Index)
		}

		if i%300 == 0 {
			s.Reduce(state)
			rev.Reduce(stateRev)
		}
	}
}
