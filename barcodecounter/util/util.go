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

package util

import (
	"errors"
)

// ErrInvalidBase means a byte outside of the IUPAC nucleotide codes.
var ErrInvalidBase = errors.New("util: invalid base")

// OtherBase is the 2-bit code slot used for anything other than A/C/G/T.
const OtherBase uint8 = 4

// BaseCode returns the 2-bit code of a base (A: 0, C: 1, G: 2, T: 3),
// or OtherBase for N, IUPAC ambiguity codes and anything else.
func BaseCode(b byte) uint8 {
	return base2code[b]
}

// OneHot returns the one-hot nibble of a base.
// N and every other non-ACGT byte are encoded as 0b1111,
// so they never match a constant position.
func OneHot(b byte) uint8 {
	return base2onehot[b]
}

// IsACGT checks if a sequence only contains A, C, G and T (case ignored).
func IsACGT(s []byte) bool {
	for _, b := range s {
		if base2code[b] == OtherBase {
			return false
		}
	}
	return true
}

// Complement returns the complementary base, case is kept.
func Complement(b byte) (byte, error) {
	c := complement[b]
	if c == 0 {
		return 0, ErrInvalidBase
	}
	return c, nil
}

// ReverseComplement returns a new slice of the reverse complement sequence.
func ReverseComplement(s []byte) ([]byte, error) {
	rc := make([]byte, len(s))
	copy(rc, s)
	return rc, ReverseComplementInPlace(rc)
}

// ReverseComplementInPlace computes the reverse complement sequence in place.
// The content of s is undefined if an error is returned.
func ReverseComplementInPlace(s []byte) error {
	var i, j int
	var a, b byte
	for i, j = 0, len(s)-1; i < j; i, j = i+1, j-1 {
		a, b = complement[s[i]], complement[s[j]]
		if a == 0 || b == 0 {
			return ErrInvalidBase
		}
		s[i], s[j] = b, a
	}
	if i == j {
		a = complement[s[i]]
		if a == 0 {
			return ErrInvalidBase
		}
		s[i] = a
	}
	return nil
}

var base2code = func() [256]uint8 {
	var m [256]uint8
	for i := range m {
		m[i] = OtherBase
	}
	m['A'], m['a'] = 0, 0
	m['C'], m['c'] = 1, 1
	m['G'], m['g'] = 2, 2
	m['T'], m['t'] = 3, 3
	return m
}()

var base2onehot = func() [256]uint8 {
	var m [256]uint8
	for i := range m {
		m[i] = 0b1111
	}
	m['A'], m['a'] = 0b0001, 0b0001
	m['C'], m['c'] = 0b0010, 0b0010
	m['G'], m['g'] = 0b0100, 0b0100
	m['T'], m['t'] = 0b1000, 0b1000
	return m
}()

var complement = func() [256]byte {
	var m [256]byte
	pairs := []string{"AT", "CG", "NN", "RY", "SS", "WW", "KM", "BV", "DH"}
	for _, p := range pairs {
		a, b := p[0], p[1]
		m[a], m[b] = b, a
		m[a+32], m[b+32] = b+32, a+32 // lower case
	}
	return m
}()
