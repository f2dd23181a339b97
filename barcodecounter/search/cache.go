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

// Package search matches sequences to a barcode pool with exact hashing,
// cached results and mismatch-tolerant trie searching.
package search

import (
	"sync"
)

// hit is a search result stored in caches.
// It knows its pool index and how to fill a search state.
type hit[S any] interface {
	index() int
	applyTo(state S)
}

// sharedCache is merged from caches of states via Reduce.
// Reads happen in worker goroutines while merges happen in the one
// calling Reduce, so a RWMutex is needed for Go maps.
type sharedCache[R any] struct {
	mu sync.RWMutex
	m  map[string]R
}

func newSharedCache[R any]() *sharedCache[R] {
	return &sharedCache[R]{m: make(map[string]R, 1024)}
}

func (c *sharedCache[R]) get(key []byte) (R, bool) {
	c.mu.RLock()
	r, ok := c.m[string(key)]
	c.mu.RUnlock()
	return r, ok
}

// merge moves all records of local into the shared cache.
func (c *sharedCache[R]) merge(local map[string]R) {
	if len(local) == 0 {
		return
	}
	c.mu.Lock()
	for k, v := range local {
		c.m[k] = v
	}
	c.mu.Unlock()
	clear(local)
}

func (c *sharedCache[R]) len() int {
	c.mu.RLock()
	n := len(c.m)
	c.mu.RUnlock()
	return n
}

// lookup checks the shared cache first, then the local one.
func lookup[S any, H hit[S]](c *sharedCache[H], local map[string]H, seq []byte) (H, bool) {
	if h, ok := c.get(seq); ok {
		return h, true
	}
	h, ok := local[string(seq)]
	return h, ok
}

// finish fills the state, and saves the result into the local cache if needed.
func finish[S any, H hit[S]](local map[string]H, seq []byte, h H, cache bool, state S) {
	if cache {
		local[string(seq)] = h
	}
	h.applyTo(state)
}
