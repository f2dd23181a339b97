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

package tree

import (
	"errors"
	"fmt"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/util"
)

// ErrSegmentLength means the sum of segment lengths differs from the sequence length.
var ErrSegmentLength = errors.New("tree: sum of segment lengths does not match the sequence length")

// SegmentedTree is a trie of a barcode pool, where each sequence consists of
// multiple segments with their own mismatch bounds.
type SegmentedTree struct {
	arena
	segments []int
	segOf    []int // segment index of each position
}

// NewSegmented builds a segmented tree. segments are the lengths of segments.
func NewSegmented(pool *Pool, segments []int, dup DuplicateAction) (*SegmentedTree, error) {
	if pool == nil || pool.Len() == 0 {
		return nil, ErrEmptyPool
	}
	var sum int
	for _, l := range segments {
		if l <= 0 {
			return nil, fmt.Errorf("%w: non-positive segment length %d", ErrSegmentLength, l)
		}
		sum += l
	}
	if sum != pool.Length() {
		return nil, fmt.Errorf("%w: %d != %d", ErrSegmentLength, sum, pool.Length())
	}

	t := &SegmentedTree{
		arena:    newArena(pool.Length(), pool.Len()),
		segments: append([]int(nil), segments...),
		segOf:    make([]int, 0, sum),
	}
	for i, l := range segments {
		for j := 0; j < l; j++ {
			t.segOf = append(t.segOf, i)
		}
	}

	for i, s := range pool.seqs {
		if err := t.insert(s, int32(i), dup); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Length returns the length of sequences.
func (t *SegmentedTree) Length() int { return t.length }

// Segments returns lengths of segments.
func (t *SegmentedTree) Segments() []int { return t.segments }

// NumNodes returns the number of inner nodes, including the root.
func (t *SegmentedTree) NumNodes() int { return t.numNodes }

// NumLeaves returns the number of distinct sequences.
func (t *SegmentedTree) NumLeaves() int { return t.numLeaves }

// SegmentedResult is the result of searching a sequence in a SegmentedTree.
type SegmentedResult struct {
	// pool index, Unmatched or Ambiguous
	Index int
	// total mismatches of the best hit(s), it is sum(k)+1 for Unmatched.
	Mismatches int
	// mismatches in each segment of the best hit,
	// for Ambiguous hits it is the one found first.
	PerSegment []int
}

// Matched tells if a sequence has a unique hit.
func (r SegmentedResult) Matched() bool { return r.Index >= 0 }

// Search finds the pool sequence with the fewest total mismatches,
// where the mismatches in segment i should be <= k[i].
func (t *SegmentedTree) Search(seq []byte, k []int) SegmentedResult {
	var sum int
	for _, v := range k {
		sum += v
	}
	if len(seq) != t.length || len(k) != len(t.segments) {
		return SegmentedResult{Index: Unmatched, Mismatches: sum + 1}
	}
	for _, v := range k {
		if v < 0 {
			return SegmentedResult{Index: Unmatched, Mismatches: sum + 1}
		}
	}

	s := segmentedSearcher{
		nodes:      t.nodes,
		seq:        seq,
		last:       t.length - 1,
		segOf:      t.segOf,
		bounds:     k,
		counts:     make([]int, len(k)),
		best:       make([]int, len(k)),
		index:      empty,
		mismatches: sum + 1,
		max:        sum,
	}
	s.walk(0, 0, 0)

	if s.ambiguous {
		return SegmentedResult{Index: Ambiguous, Mismatches: s.mismatches, PerSegment: s.best}
	}
	if s.index == empty {
		return SegmentedResult{Index: Unmatched, Mismatches: sum + 1, PerSegment: s.best}
	}
	return SegmentedResult{Index: int(s.index), Mismatches: s.mismatches, PerSegment: s.best}
}

type segmentedSearcher struct {
	nodes  []int32
	seq    []byte
	last   int
	segOf  []int
	bounds []int // bounds of each segment
	counts []int // mismatches of each segment in the current path

	index      int32
	mismatches int
	ambiguous  bool
	best       []int

	max int // live bound of total mismatches
}

func (s *segmentedSearcher) walk(pos int, offset int32, mm int) {
	if mm > s.max {
		return
	}
	seg := s.segOf[pos]
	c := int32(util.BaseCode(s.seq[pos]))
	var alt, v int32

	if pos == s.last {
		if c != int32(util.OtherBase) {
			if v = s.nodes[offset+c]; v != empty {
				s.leaf(v, mm)
			}
		}
		if s.counts[seg] >= s.bounds[seg] {
			return
		}
		s.counts[seg]++
		for alt = 0; alt < 4; alt++ {
			if mm+1 > s.max {
				break
			}
			if alt == c {
				continue
			}
			if v = s.nodes[offset+alt]; v != empty {
				s.leaf(v, mm+1)
			}
		}
		s.counts[seg]--
		return
	}

	if c != int32(util.OtherBase) {
		if v = s.nodes[offset+c]; v != empty {
			s.walk(pos+1, v, mm)
		}
	}
	if s.counts[seg] >= s.bounds[seg] {
		return
	}
	s.counts[seg]++
	for alt = 0; alt < 4; alt++ {
		if mm+1 > s.max {
			break
		}
		if alt == c {
			continue
		}
		if v = s.nodes[offset+alt]; v != empty {
			s.walk(pos+1, v, mm+1)
		}
	}
	s.counts[seg]--
}

func (s *segmentedSearcher) leaf(v int32, mm int) {
	if mm < s.mismatches {
		s.index = v
		s.mismatches = mm
		copy(s.best, s.counts)
		s.ambiguous = v == removed
		if s.ambiguous {
			s.max = mm - 1
		} else {
			s.max = mm
		}
		return
	}
	if mm == s.mismatches && (v != s.index || v == removed) {
		s.ambiguous = true
		s.max = mm - 1
	}
}
