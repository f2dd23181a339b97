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
	"strings"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/util"
)

// ErrEmptyPool means no sequences are given.
var ErrEmptyPool = errors.New("tree: empty barcode pool")

// ErrInconsistentLength means sequences in a pool or query have different lengths.
var ErrInconsistentLength = errors.New("tree: inconsistent sequence lengths")

// ErrDuplicate means duplicated sequences are found with DuplicateError.
var ErrDuplicate = errors.New("tree: duplicated sequence")

// ErrInvalidBase means a base other than ACGT in a pool sequence.
var ErrInvalidBase = errors.New("tree: invalid base in barcode sequence")

// ErrInvalidDuplicateAction means an unknown name of DuplicateAction.
var ErrInvalidDuplicateAction = errors.New("tree: invalid duplicate action")

// Pool is an ordered list of sequences of the same length.
// The index of a sequence is its identity.
type Pool struct {
	seqs   [][]byte
	names  []string
	length int
}

// NewPool creates a pool, sequences are not copied.
func NewPool(seqs [][]byte) (*Pool, error) {
	return NewPoolWithNames(seqs, nil)
}

// NewPoolWithNames creates a pool with names of sequences.
// names could be nil.
func NewPoolWithNames(seqs [][]byte, names []string) (*Pool, error) {
	if len(seqs) == 0 {
		return nil, ErrEmptyPool
	}
	if names != nil && len(names) != len(seqs) {
		return nil, fmt.Errorf("tree: %d names given for %d sequences", len(names), len(seqs))
	}
	length := len(seqs[0])
	for i, s := range seqs {
		if len(s) != length {
			return nil, fmt.Errorf("%w: sequence %d has %d bases, while the first one has %d",
				ErrInconsistentLength, i+1, len(s), length)
		}
	}
	return &Pool{seqs: seqs, names: names, length: length}, nil
}

// Len returns the number of sequences.
func (p *Pool) Len() int { return len(p.seqs) }

// Length returns the length of sequences.
func (p *Pool) Length() int { return p.length }

// Seq returns the i-th sequence.
func (p *Pool) Seq(i int) []byte { return p.seqs[i] }

// Name returns the name of the i-th sequence, or the sequence itself if no names.
func (p *Pool) Name(i int) string {
	if p.names == nil || p.names[i] == "" {
		return string(p.seqs[i])
	}
	return p.names[i]
}

// ReverseComplement returns a new pool of reverse complement sequences, names are kept.
func (p *Pool) ReverseComplement() (*Pool, error) {
	seqs := make([][]byte, len(p.seqs))
	var err error
	for i, s := range p.seqs {
		seqs[i], err = util.ReverseComplement(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidBase, s)
		}
	}
	return &Pool{seqs: seqs, names: p.names, length: p.length}, nil
}

// Concatenate joins the i-th sequences of all pools, which must have the same size.
// It is used for matching multiple barcodes as a whole.
func Concatenate(pools ...*Pool) (*Pool, error) {
	if len(pools) == 0 {
		return nil, ErrEmptyPool
	}
	n := pools[0].Len()
	var length int
	for _, p := range pools {
		if p.Len() != n {
			return nil, fmt.Errorf("tree: pools to concatenate have different sizes: %d != %d", p.Len(), n)
		}
		length += p.length
	}

	seqs := make([][]byte, n)
	var names []string
	for i := range seqs {
		s := make([]byte, 0, length)
		for _, p := range pools {
			s = append(s, p.seqs[i]...)
		}
		seqs[i] = s
	}
	for _, p := range pools {
		if p.names != nil {
			names = make([]string, n)
			parts := make([]string, len(pools))
			for i := range names {
				for j, q := range pools {
					parts[j] = q.Name(i)
				}
				names[i] = strings.Join(parts, "--")
			}
			break
		}
	}
	return &Pool{seqs: seqs, names: names, length: length}, nil
}

// DuplicateAction is the policy of handling duplicated sequences in a pool.
type DuplicateAction uint8

const (
	DuplicateError DuplicateAction = iota // return ErrDuplicate
	DuplicateFirst                        // keep the first occurrence
	DuplicateLast                         // keep the last occurrence
	DuplicateNone                         // keep none, hits of the sequence are ambiguous
)

func (a DuplicateAction) String() string {
	switch a {
	case DuplicateError:
		return "error"
	case DuplicateFirst:
		return "first"
	case DuplicateLast:
		return "last"
	case DuplicateNone:
		return "none"
	}
	return fmt.Sprintf("DuplicateAction(%d)", uint8(a))
}

// ParseDuplicateAction parses "error", "first", "last" or "none".
func ParseDuplicateAction(s string) (DuplicateAction, error) {
	switch strings.ToLower(s) {
	case "error":
		return DuplicateError, nil
	case "first":
		return DuplicateFirst, nil
	case "last":
		return DuplicateLast, nil
	case "none":
		return DuplicateNone, nil
	}
	return DuplicateError, fmt.Errorf("%w: %s", ErrInvalidDuplicateAction, s)
}
