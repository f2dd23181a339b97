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

// Package tree implements mismatch-tolerant searching of fixed-length
// sequences in a 4-ary trie.
package tree

import (
	"fmt"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/util"
)

// Unmatched is the index of a query without any hit within the mismatch bound.
const Unmatched = -1

// Ambiguous is the index of a query with multiple best hits.
const Ambiguous = -2

const (
	empty   int32 = -1 // no child
	removed int32 = -2 // a duplicated leaf with DuplicateNone
)

// arena stores all nodes in a flat list.
// The four children of a node are at offset+{0,1,2,3} for A, C, G and T,
// a child value is the offset of the next node, or the pool index
// for the last base.
type arena struct {
	nodes  []int32
	length int // sequence length

	numNodes  int
	numLeaves int
}

func newArena(length int, n int) arena {
	a := arena{length: length, numNodes: 1}
	// a rough estimation, the first bases are shared by many sequences.
	a.nodes = make([]int32, 4, 4*(n+1)*2)
	a.nodes[0], a.nodes[1], a.nodes[2], a.nodes[3] = empty, empty, empty, empty
	return a
}

// insert adds a sequence to the trie.
func (a *arena) insert(seq []byte, idx int32, dup DuplicateAction) error {
	if len(seq) != a.length {
		return fmt.Errorf("%w: %d != %d", ErrInconsistentLength, len(seq), a.length)
	}
	if !util.IsACGT(seq) {
		return fmt.Errorf("%w: %s", ErrInvalidBase, seq)
	}

	var offset, slot, next int32
	last := a.length - 1
	for i, b := range seq {
		slot = offset + int32(util.BaseCode(b))

		if i == last {
			if a.nodes[slot] == empty {
				a.nodes[slot] = idx
				a.numLeaves++
				return nil
			}

			switch dup {
			case DuplicateError:
				return fmt.Errorf("%w: %s (#%d)", ErrDuplicate, seq, idx+1)
			case DuplicateFirst:
			case DuplicateLast:
				if a.nodes[slot] != removed {
					a.nodes[slot] = idx
				}
			case DuplicateNone:
				a.nodes[slot] = removed
			default:
				return ErrInvalidDuplicateAction
			}
			return nil
		}

		next = a.nodes[slot]
		if next == empty {
			next = int32(len(a.nodes))
			a.nodes[slot] = next
			a.nodes = append(a.nodes, empty, empty, empty, empty)
			a.numNodes++
		}
		offset = next
	}
	return nil
}

// get returns the leaf value of a sequence.
func (a *arena) get(seq []byte) (int32, bool) {
	if len(seq) != a.length {
		return empty, false
	}
	var offset int32
	var c uint8
	last := a.length - 1
	for i, b := range seq {
		c = util.BaseCode(b)
		if c == util.OtherBase {
			return empty, false
		}
		offset = a.nodes[offset+int32(c)]
		if offset == empty {
			return empty, false
		}
		if i == last {
			return offset, true
		}
	}
	return empty, false
}

// Tree is a trie of a barcode pool for searching with a global mismatch bound.
// It is read-only after being created, and safe for concurrent searching.
type Tree struct {
	arena
}

// New builds a tree from all sequences of a pool.
func New(pool *Pool, dup DuplicateAction) (*Tree, error) {
	if pool == nil || pool.Len() == 0 {
		return nil, ErrEmptyPool
	}
	t := &Tree{arena: newArena(pool.Length(), pool.Len())}
	for i, s := range pool.seqs {
		if err := t.insert(s, int32(i), dup); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Length returns the length of sequences.
func (t *Tree) Length() int { return t.length }

// NumNodes returns the number of inner nodes, including the root.
func (t *Tree) NumNodes() int { return t.numNodes }

// NumLeaves returns the number of distinct sequences.
func (t *Tree) NumLeaves() int { return t.numLeaves }

// Get returns the index of a sequence with exact matching.
// The index is Ambiguous for a dropped duplicate.
func (a *arena) Get(seq []byte) (int, bool) {
	v, ok := a.get(seq)
	if !ok {
		return Unmatched, false
	}
	if v == removed {
		return Ambiguous, true
	}
	return int(v), true
}

// Result is the result of searching a sequence.
type Result struct {
	// pool index, Unmatched or Ambiguous
	Index int
	// number of mismatches of the best hit(s).
	// It is the bound+1 for Unmatched.
	Mismatches int
}

// Matched tells if a sequence has a unique hit.
func (r Result) Matched() bool { return r.Index >= 0 }

// Search finds the pool sequence with the fewest mismatches, which should be <= k.
// If two or more sequences share the fewest mismatches, Ambiguous is returned.
func (t *Tree) Search(seq []byte, k int) Result {
	if len(seq) != t.length || k < 0 {
		return Result{Index: Unmatched, Mismatches: k + 1}
	}
	s := plainSearcher{
		nodes:      t.nodes,
		seq:        seq,
		last:       t.length - 1,
		index:      empty,
		mismatches: k + 1,
		max:        k,
	}
	s.walk(0, 0, 0)

	if s.ambiguous {
		return Result{Index: Ambiguous, Mismatches: s.mismatches}
	}
	if s.index == empty {
		return Result{Index: Unmatched, Mismatches: k + 1}
	}
	return Result{Index: int(s.index), Mismatches: s.mismatches}
}

type plainSearcher struct {
	nodes []int32
	seq   []byte
	last  int

	// the best hit
	index      int32
	mismatches int
	ambiguous  bool

	// the live bound, it shrinks after finding hits.
	max int
}

// walk is a depth-first search with the exact base first.
func (s *plainSearcher) walk(pos int, offset int32, mm int) {
	if mm > s.max {
		return
	}
	c := int32(util.BaseCode(s.seq[pos]))
	var alt, v int32

	if pos == s.last {
		if c != int32(util.OtherBase) {
			if v = s.nodes[offset+c]; v != empty {
				s.leaf(v, mm)
			}
		}
		for alt = 0; alt < 4; alt++ {
			if mm+1 > s.max {
				return
			}
			if alt == c {
				continue
			}
			if v = s.nodes[offset+alt]; v != empty {
				s.leaf(v, mm+1)
			}
		}
		return
	}

	if c != int32(util.OtherBase) {
		if v = s.nodes[offset+c]; v != empty {
			s.walk(pos+1, v, mm)
		}
	}
	for alt = 0; alt < 4; alt++ {
		if mm+1 > s.max {
			return
		}
		if alt == c {
			continue
		}
		if v = s.nodes[offset+alt]; v != empty {
			s.walk(pos+1, v, mm+1)
		}
	}
}

// leaf updates the best hit. After a tie, only strictly better hits
// are searched, as more hits of the same mismatches can not resolve it.
func (s *plainSearcher) leaf(v int32, mm int) {
	if mm < s.mismatches {
		s.index = v
		s.mismatches = mm
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
