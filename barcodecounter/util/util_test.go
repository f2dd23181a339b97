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
	"bytes"
	"testing"
)

func TestOneHot(t *testing.T) {
	for _, b := range []byte("ACGTacgt") {
		v := OneHot(b)
		if v == 0 || v&(v-1) != 0 {
			t.Errorf("one-hot code of %c should have exactly one bit set: %04b", b, v)
		}
	}
	for _, b := range []byte("NnRY.-") {
		if OneHot(b) != 0b1111 {
			t.Errorf("one-hot code of %c should be 1111, returned %04b", b, OneHot(b))
		}
	}
}

func TestBaseCode(t *testing.T) {
	for i, b := range []byte("ACGT") {
		if BaseCode(b) != uint8(i) {
			t.Errorf("BaseCode error: %c, expected %d, returned %d", b, i, BaseCode(b))
		}
	}
	if BaseCode('N') != OtherBase {
		t.Errorf("N should be encoded as OtherBase")
	}
	if !IsACGT([]byte("ACGTTGCA")) || IsACGT([]byte("ACGNT")) {
		t.Errorf("IsACGT error")
	}
}

func TestReverseComplement(t *testing.T) {
	tests := []struct {
		s, rc string
	}{
		{"A", "T"},
		{"ACGT", "ACGT"},
		{"AACGTTN", "NAACGTT"},
		{"acgRYn", "nRYcgt"},
		{"GATTACA", "TGTAATC"},
	}
	for _, test := range tests {
		rc, err := ReverseComplement([]byte(test.s))
		if err != nil {
			t.Errorf("unexpected error for %s: %s", test.s, err)
			continue
		}
		if !bytes.Equal(rc, []byte(test.rc)) {
			t.Errorf("ReverseComplement(%s): expected %s, returned %s", test.s, test.rc, rc)
		}
	}

	if _, err := ReverseComplement([]byte("ACXT")); err != ErrInvalidBase {
		t.Errorf("expected ErrInvalidBase, returned %v", err)
	}
	if _, err := Complement('X'); err != ErrInvalidBase {
		t.Errorf("expected ErrInvalidBase, returned %v", err)
	}
}
