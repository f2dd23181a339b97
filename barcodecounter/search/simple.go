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

// Options contains the options of SimpleBarcodeSearch.
type Options struct {
	// the maximum mismatches, searches can use a smaller bound.
	MaxMismatches int

	// search the reverse complement sequences of the pool.
	Reverse bool

	Duplicates tree.DuplicateAction
}

// DefaultOptions is the default options.
var DefaultOptions = Options{
	MaxMismatches: 0,
	Reverse:       false,
	Duplicates:    tree.DuplicateFirst,
}

// SimpleBarcodeSearch searches sequences in a barcode pool with a global mismatch bound.
// It is safe for concurrent searching with different States,
// while Reduce should be called in only one goroutine.
type SimpleBarcodeSearch struct {
	tree   *tree.Tree
	exact  map[string]int
	max    int
	length int

	cache *sharedCache[simpleHit]
}

// New creates a SimpleBarcodeSearch.
func New(pool *tree.Pool, opt *Options) (*SimpleBarcodeSearch, error) {
	if opt == nil {
		opt = &DefaultOptions
	}
	if opt.MaxMismatches < 0 {
		return nil, errors.Errorf("search: negative max mismatches: %d", opt.MaxMismatches)
	}
	if pool == nil {
		return nil, tree.ErrEmptyPool
	}

	var err error
	if opt.Reverse {
		pool, err = pool.ReverseComplement()
		if err != nil {
			return nil, err
		}
	}

	t, err := tree.New(pool, opt.Duplicates)
	if err != nil {
		return nil, errors.Wrap(err, "search: building mismatch tree")
	}

	s := &SimpleBarcodeSearch{
		tree:   t,
		exact:  make(map[string]int, pool.Len()),
		max:    opt.MaxMismatches,
		length: pool.Length(),
		cache:  newSharedCache[simpleHit](),
	}
	for i := 0; i < pool.Len(); i++ {
		s.exact[string(pool.Seq(i))], _ = t.Get(pool.Seq(i))
	}
	return s, nil
}

// MaxMismatches returns the maximum mismatches.
func (s *SimpleBarcodeSearch) MaxMismatches() int { return s.max }

// Length returns the length of barcodes.
func (s *SimpleBarcodeSearch) Length() int { return s.length }

// CacheSize returns the number of records in the shared cache.
func (s *SimpleBarcodeSearch) CacheSize() int { return s.cache.len() }

// State stores the result of the last search and a private cache.
// A State should only be used by one goroutine.
type State struct {
	// pool index, tree.Unmatched or tree.Ambiguous
	Index int
	// mismatches of the best hit(s), it is the bound+1 for tree.Unmatched.
	Mismatches int

	cache map[string]simpleHit
}

// NewState returns a new State.
func (s *SimpleBarcodeSearch) NewState() *State {
	return &State{
		Index: tree.Unmatched,
		cache: make(map[string]simpleHit, 128),
	}
}

type simpleHit tree.Result

func (h simpleHit) index() int { return h.Index }

func (h simpleHit) applyTo(state *State) {
	state.Index = h.Index
	state.Mismatches = h.Mismatches
}

// Search searches a sequence with the maximum mismatches.
func (s *SimpleBarcodeSearch) Search(seq []byte, state *State) {
	s.SearchWithBound(seq, state, s.max)
}

// SearchWithBound searches a sequence with a bound <= MaxMismatches(),
// results are written into state.
//
// Only results computed with the maximum bound or unique hits are cached,
// as missing under a smaller bound does not mean missing under the maximum one.
func (s *SimpleBarcodeSearch) SearchWithBound(seq []byte, state *State, allowed int) {
	if allowed > s.max {
		allowed = s.max
	}

	if idx, ok := s.exact[string(seq)]; ok {
		state.Index = idx
		state.Mismatches = 0
		return
	}

	if allowed < 0 {
		state.Index = tree.Unmatched
		state.Mismatches = allowed + 1
		return
	}

	if h, ok := lookup[*State](s.cache, state.cache, seq); ok {
		if h.Mismatches > allowed {
			state.Index = tree.Unmatched
			state.Mismatches = allowed + 1
			return
		}
		h.applyTo(state)
		return
	}

	h := simpleHit(s.tree.Search(seq, allowed))
	finish[*State](state.cache, seq, h, allowed == s.max || h.index() != tree.Unmatched, state)
}

// Reduce merges the private cache of a state into the shared one,
// and clears the private cache.
// It must not be called concurrently with itself.
func (s *SimpleBarcodeSearch) Reduce(state *State) {
	s.cache.merge(state.cache)
}
