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
	"math/rand"
	"testing"

	"github.com/shenwei356/kmers"
)

func newPool(seqs ...string) *Pool {
	s := make([][]byte, len(seqs))
	for i, seq := range seqs {
		s[i] = []byte(seq)
	}
	p, err := NewPool(s)
	if err != nil {
		panic(err)
	}
	return p
}

// randomPool generates n distinct random k-mers.
func randomPool(r *rand.Rand, n int, k int) *Pool {
	seen := make(map[uint64]interface{}, n)
	seqs := make([][]byte, 0, n)
	var code uint64
	for len(seqs) < n {
		code = r.Uint64() & (1<<(uint(k)<<1) - 1)
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		seqs = append(seqs, kmers.Decode(code, k))
	}
	p, _ := NewPool(seqs)
	return p
}

func hamming(a, b []byte) int {
	var n int
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

// bruteForce is the reference of Tree.Search.
func bruteForce(pool *Pool, seq []byte, k int) Result {
	best, idx, hits := k+1, Unmatched, 0
	var d int
	for i := 0; i < pool.Len(); i++ {
		d = hamming(pool.Seq(i), seq)
		if d < best {
			best, idx, hits = d, i, 1
		} else if d == best && d <= k {
			hits++
		}
	}
	if hits == 0 {
		return Result{Index: Unmatched, Mismatches: k + 1}
	}
	if hits > 1 {
		return Result{Index: Ambiguous, Mismatches: best}
	}
	return Result{Index: idx, Mismatches: best}
}

func mutate(r *rand.Rand, s []byte, n int) []byte {
	m := append([]byte(nil), s...)
	for i := 0; i < n; i++ {
		m[r.Intn(len(m))] = "ACGTN"[r.Intn(5)]
	}
	return m
}

func TestTree(t *testing.T) {
	pool := newPool("AAAA", "CCCC", "GGGG", "TTTT")
	tree, err := New(pool, DuplicateError)
	if err != nil {
		t.Error(err)
		return
	}
	t.Logf("number of nodes: %d, number of leaves: %d", tree.NumNodes(), tree.NumLeaves())

	tests := []struct {
		query string
		k     int
		want  Result
	}{
		{"CCCC", 0, Result{1, 0}},
		{"CCAC", 1, Result{1, 1}},
		{"CCAC", 0, Result{Unmatched, 1}},
		{"CGAC", 1, Result{Unmatched, 2}},
		{"CGAC", 2, Result{1, 2}},
		{"ACGT", 3, Result{Ambiguous, 3}},
		{"NCCC", 1, Result{1, 1}},
		{"NNNN", 4, Result{Ambiguous, 4}},
		{"CCC", 1, Result{Unmatched, 2}},
	}
	for _, test := range tests {
		r := tree.Search([]byte(test.query), test.k)
		if r != test.want {
			t.Errorf("query %s with k=%d: expected %v, returned %v", test.query, test.k, test.want, r)
		}
	}

	if idx, ok := tree.Get([]byte("GGGG")); !ok || idx != 2 {
		t.Errorf("Get error: %d, %v", idx, ok)
	}
	if _, ok := tree.Get([]byte("GGGA")); ok {
		t.Errorf("Get should not find GGGA")
	}
}

func TestTreeRandom(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for _, k := range []int{6, 10, 16} {
		pool := randomPool(r, 500, k)
		tree, err := New(pool, DuplicateError)
		if err != nil {
			t.Error(err)
			return
		}

		for i := 0; i < 2000; i++ {
			query := mutate(r, pool.Seq(r.Intn(pool.Len())), r.Intn(4))
			for m := 0; m <= 3; m++ {
				want := bruteForce(pool, query, m)
				got := tree.Search(query, m)
				if got != want {
					t.Errorf("k=%d, query %s with %d mismatches: expected %v, returned %v", k, query, m, want, got)
				}
			}
		}
	}
}

func TestTreeExactPoolSequences(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	pool := randomPool(r, 1000, 12)
	tree, _ := New(pool, DuplicateError)
	for i := 0; i < pool.Len(); i++ {
		for m := 0; m <= 2; m++ {
			res := tree.Search(pool.Seq(i), m)
			if res.Index != i || res.Mismatches != 0 {
				t.Errorf("pool sequence %d with k=%d: returned %v", i, m, res)
			}
		}
	}
}

func TestTreeBoundMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	pool := randomPool(r, 300, 8)
	tree, _ := New(pool, DuplicateError)
	for i := 0; i < 1000; i++ {
		query := mutate(r, pool.Seq(r.Intn(pool.Len())), 1+r.Intn(3))
		loose := tree.Search(query, 3)
		if !loose.Matched() {
			continue
		}
		for k1 := 0; k1 < 3; k1++ {
			strict := tree.Search(query, k1)
			if strict.Matched() && strict != loose {
				t.Errorf("query %s: k=%d returned %v, k=3 returned %v", query, k1, strict, loose)
			}
			if !strict.Matched() && loose.Mismatches <= k1 {
				t.Errorf("query %s: k=%d should match %v", query, k1, loose)
			}
		}
	}
}

func TestTreeDuplicates(t *testing.T) {
	pool := newPool("ACGT", "TTTT", "ACGT")

	_, err := New(pool, DuplicateError)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, returned %v", err)
	}

	tree, _ := New(pool, DuplicateFirst)
	if r := tree.Search([]byte("ACGA"), 1); r != (Result{0, 1}) {
		t.Errorf("DuplicateFirst: returned %v", r)
	}

	tree, _ = New(pool, DuplicateLast)
	if r := tree.Search([]byte("ACGT"), 0); r != (Result{2, 0}) {
		t.Errorf("DuplicateLast: returned %v", r)
	}

	tree, _ = New(pool, DuplicateNone)
	if r := tree.Search([]byte("ACGT"), 1); r.Index != Ambiguous {
		t.Errorf("DuplicateNone: returned %v", r)
	}
	if r := tree.Search([]byte("TTTA"), 1); r != (Result{1, 1}) {
		t.Errorf("DuplicateNone: returned %v", r)
	}
	if idx, ok := tree.Get([]byte("ACGT")); !ok || idx != Ambiguous {
		t.Errorf("DuplicateNone: Get returned %d, %v", idx, ok)
	}
}

func TestPoolErrors(t *testing.T) {
	if _, err := NewPool(nil); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("expected ErrEmptyPool, returned %v", err)
	}
	if _, err := NewPool([][]byte{[]byte("ACGT"), []byte("ACG")}); !errors.Is(err, ErrInconsistentLength) {
		t.Errorf("expected ErrInconsistentLength, returned %v", err)
	}
	if _, err := New(newPool("ACGT", "ACNT"), DuplicateError); !errors.Is(err, ErrInvalidBase) {
		t.Errorf("expected ErrInvalidBase, returned %v", err)
	}
	if _, err := ParseDuplicateAction("keep"); !errors.Is(err, ErrInvalidDuplicateAction) {
		t.Errorf("expected ErrInvalidDuplicateAction, returned %v", err)
	}
}

func TestConcatenate(t *testing.T) {
	p1, _ := NewPoolWithNames([][]byte{[]byte("AAAA"), []byte("CCCC")}, []string{"a", "c"})
	p2 := newPool("GG", "TT")
	p, err := Concatenate(p1, p2)
	if err != nil {
		t.Error(err)
		return
	}
	if string(p.Seq(1)) != "CCCCTT" || p.Length() != 6 {
		t.Errorf("unexpected concatenated sequence: %s", p.Seq(1))
	}
	if p.Name(0) != "a--GG" {
		t.Errorf("unexpected name: %s", p.Name(0))
	}
	if _, err = Concatenate(p1, newPool("GG")); err == nil {
		t.Errorf("expected an error for pools of different sizes")
	}
}

func BenchmarkTreeSearch(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	pool := randomPool(r, 100000, 20)
	tree, _ := New(pool, DuplicateError)
	queries := make([][]byte, 1024)
	for i := range queries {
		queries[i] = mutate(r, pool.Seq(r.Intn(pool.Len())), 2)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.Search(queries[i&1023], 2)
	}
}
