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

// Package scan slides a template of constant and variable regions along a read
// and reports the number of mismatches at the constant positions.
package scan

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"sync"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/util"
)

// DefaultMaxSize is the default capacity of a template, in bases.
const DefaultMaxSize = 256

// VariableBase marks a variable position in a template.
const VariableBase = '-'

// ErrTemplateTooLong means the template is longer than the capacity.
var ErrTemplateTooLong = errors.New("scan: template longer than the maximum size")

// ErrInvalidTemplate means the template is empty or has characters other than ACGT and '-'.
var ErrInvalidTemplate = errors.New("scan: invalid template")

// ErrInvalidStrand means an unknown strand name.
var ErrInvalidStrand = errors.New("scan: invalid strand")

// Strand is the orientation(s) of reads to scan, relative to the template.
type Strand uint8

const (
	Forward Strand = iota
	Reverse
	Both
)

func (s Strand) String() string {
	switch s {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case Both:
		return "both"
	}
	return fmt.Sprintf("Strand(%d)", uint8(s))
}

// HasForward tells if the forward strand is scanned.
func (s Strand) HasForward() bool { return s != Reverse }

// HasReverse tells if the reverse complement strand is scanned.
func (s Strand) HasReverse() bool { return s != Forward }

// ParseStrand parses "forward", "reverse" or "both" (also "+", "-").
func ParseStrand(s string) (Strand, error) {
	switch strings.ToLower(s) {
	case "forward", "fwd", "+":
		return Forward, nil
	case "reverse", "rev", "-":
		return Reverse, nil
	case "both", "":
		return Both, nil
	}
	return Forward, fmt.Errorf("%w: %s", ErrInvalidStrand, s)
}

// TemplateOptions contains the options of a Template.
type TemplateOptions struct {
	Strand  Strand
	MaxSize int // maximum template length, 0 for DefaultMaxSize
}

// Template is a compiled template.
// Each base of the window is a one-hot nibble, so a window of L bases
// takes 4*L bits. Nibble i holds the i-th base counting from the newest one.
type Template struct {
	length int
	strand Strand

	nWords    int // words of the window, 4 bits per base
	nAmbWords int // words of the ambiguous-base vector, 1 bit per base

	fwdRef, fwdMask, fwdConst []uint64
	revRef, revMask, revConst []uint64

	fwdVariable [][2]int
	revVariable [][2]int

	poolState *sync.Pool
}

// NewTemplate compiles a template.
func NewTemplate(template []byte, opt *TemplateOptions) (*Template, error) {
	if opt == nil {
		opt = &TemplateOptions{Strand: Forward}
	}
	maxSize := opt.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	L := len(template)
	if L == 0 {
		return nil, fmt.Errorf("%w: empty template", ErrInvalidTemplate)
	}
	if L > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTemplateTooLong, L, maxSize)
	}
	if opt.Strand > Both {
		return nil, ErrInvalidStrand
	}

	t := &Template{
		length:    L,
		strand:    opt.Strand,
		nWords:    (L*4 + 63) >> 6,
		nAmbWords: (L + 63) >> 6,
	}

	// the reverse complement template, variable positions are kept.
	rev := make([]byte, L)
	for j, b := range template {
		if b == VariableBase {
			rev[L-1-j] = VariableBase
			continue
		}
		if util.BaseCode(b) == util.OtherBase {
			return nil, fmt.Errorf("%w: unexpected base '%c' at position %d", ErrInvalidTemplate, b, j+1)
		}
		c, _ := util.Complement(b)
		rev[L-1-j] = c
	}

	t.fwdRef, t.fwdMask, t.fwdConst = t.compile(template)
	t.revRef, t.revMask, t.revConst = t.compile(rev)

	t.fwdVariable = variableRegions(template)
	t.revVariable = variableRegions(rev)

	nWords, nAmbWords := t.nWords, t.nAmbWords
	t.poolState = &sync.Pool{New: func() interface{} {
		return &State{
			window:    make([]uint64, nWords),
			ambiguous: make([]uint64, nAmbWords),
		}
	}}

	return t, nil
}

// compile computes the reference nibbles, the nibble mask and
// the 1-bit mask of constant positions.
func (t *Template) compile(template []byte) (ref, mask, cons []uint64) {
	ref = make([]uint64, t.nWords)
	mask = make([]uint64, t.nWords)
	cons = make([]uint64, t.nAmbWords)

	L := t.length
	var i int // nibble index, 0 is the last base of the template
	for j, b := range template {
		if b == VariableBase {
			continue
		}
		i = L - 1 - j
		ref[i>>4] |= uint64(util.OneHot(b)) << ((i & 15) << 2)
		mask[i>>4] |= uint64(0b1111) << ((i & 15) << 2)
		cons[i>>6] |= 1 << (i & 63)
	}
	return
}

// variableRegions returns half-open intervals of runs of variable positions.
func variableRegions(template []byte) [][2]int {
	regions := make([][2]int, 0, 4)
	start := -1
	for j, b := range template {
		if b == VariableBase {
			if start < 0 {
				start = j
			}
			continue
		}
		if start >= 0 {
			regions = append(regions, [2]int{start, j})
			start = -1
		}
	}
	if start >= 0 {
		regions = append(regions, [2]int{start, len(template)})
	}
	return regions
}

// Len returns the template length.
func (t *Template) Len() int { return t.length }

// Strand returns the scanned strand(s).
func (t *Template) Strand() Strand { return t.strand }

// Variable returns the variable regions, in template coordinates.
// For the reverse strand, the coordinates are those of the reverse
// complement template, so the regions are in the reverse order.
func (t *Template) Variable(reverse bool) [][2]int {
	if reverse {
		return t.revVariable
	}
	return t.fwdVariable
}

// State is a cursor of scanning a read.
type State struct {
	// 0-based start position of the template in the read
	Position int

	// mismatches at the constant positions.
	// It is Len()+1 for a strand that is not scanned.
	ForwardMismatches int
	ReverseMismatches int

	// Finished is true when the template reaches the end of the read,
	// or the read is shorter than the template.
	Finished bool

	read      []byte
	window    []uint64
	ambiguous []uint64
}

// Initialize returns a scanning cursor of a read,
// primed with the first Len()-1 bases.
// Call Next() until Finished is true, and Recycle() the state after using.
func (t *Template) Initialize(read []byte) *State {
	s := t.poolState.Get().(*State)
	clear(s.window)
	clear(s.ambiguous)
	s.read = read
	s.Position = -1
	s.ForwardMismatches = t.length + 1
	s.ReverseMismatches = t.length + 1

	if len(read) < t.length {
		s.Finished = true
		return s
	}
	s.Finished = false

	for _, b := range read[:t.length-1] {
		s.push(b)
	}
	return s
}

// Recycle returns the state to the object pool.
func (t *Template) Recycle(s *State) {
	s.read = nil
	t.poolState.Put(s)
}

// Next moves the template one base to the right.
func (t *Template) Next(s *State) {
	if s.Finished {
		return
	}
	s.Position++
	s.push(s.read[s.Position+t.length-1])

	if t.strand != Reverse {
		s.ForwardMismatches = s.count(t.fwdRef, t.fwdMask, t.fwdConst)
	}
	if t.strand != Forward {
		s.ReverseMismatches = s.count(t.revRef, t.revMask, t.revConst)
	}

	s.Finished = s.Position+t.length == len(s.read)
}

// push shifts the window left by one base and inserts the new one.
func (s *State) push(b byte) {
	w := s.window
	for i := len(w) - 1; i > 0; i-- {
		w[i] = w[i]<<4 | w[i-1]>>60
	}
	w[0] = w[0]<<4 | uint64(util.OneHot(b))

	a := s.ambiguous
	for i := len(a) - 1; i > 0; i-- {
		a[i] = a[i]<<1 | a[i-1]>>63
	}
	a[0] <<= 1
	if util.BaseCode(b) == util.OtherBase {
		a[0] |= 1
	}
}

// count returns the mismatches. A mismatch between two one-hot nibbles
// leaves two bits after XOR, while an ambiguous base (1111) leaves three,
// one of which is removed with the ambiguous-base vector.
func (s *State) count(ref, mask, cons []uint64) int {
	var n int
	for i, r := range ref {
		n += bits.OnesCount64((s.window[i] & mask[i]) ^ r)
	}
	for i, c := range cons {
		n -= bits.OnesCount64(s.ambiguous[i] & c)
	}
	return n >> 1
}
