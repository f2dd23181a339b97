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

package handler

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/shenwei356/BarcodeCounter/barcodecounter/pipeline"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/scan"
	"github.com/shenwei356/BarcodeCounter/barcodecounter/util"
	"github.com/shenwei356/kmers"
	"github.com/twotwotwo/sorts/sortutil"
)

// RandomBarcodeSingleEnd counts distinct sequences in the variable region
// of a template, for barcodes without a known pool.
//
// The position with the fewest mismatches in the constant regions is used,
// and a read with multiple best positions carrying different sequences is
// not counted. Sequences found on the reverse strand are reverse complemented.
type RandomBarcodeSingleEnd struct {
	template  *scan.Template
	fwdRegion [2]int
	revRegion [2]int
	length    int
	opt       Options

	pack   bool // ACGT sequences are packed into uint64
	packed map[uint64]uint64
	others map[string]uint64
	total  uint64
}

// RandomState is the worker state of RandomBarcodeSingleEnd.
type RandomState struct {
	best   []byte
	buf    []byte
	packed map[uint64]uint64
	others map[string]uint64
	total  uint64
}

// NewRandomBarcodeSingleEnd creates a RandomBarcodeSingleEnd.
// Duplicates in opt are ignored.
func NewRandomBarcodeSingleEnd(t *scan.Template, opt *Options) (*RandomBarcodeSingleEnd, error) {
	if opt == nil {
		opt = &DefaultOptions
	}
	regions := t.Variable(false)
	if len(regions) != 1 {
		return nil, fmt.Errorf("%w: %d regions, 1 expected", ErrRegionCount, len(regions))
	}
	length := regions[0][1] - regions[0][0]
	return &RandomBarcodeSingleEnd{
		template:  t,
		fwdRegion: regions[0],
		revRegion: t.Variable(true)[0],
		length:    length,
		opt:       *opt,
		pack:      length <= 32,
		packed:    make(map[uint64]uint64, 1024),
		others:    make(map[string]uint64, 1024),
	}, nil
}

// Initialize returns a new worker state.
func (h *RandomBarcodeSingleEnd) Initialize() *RandomState {
	return &RandomState{
		best:   make([]byte, 0, h.length),
		buf:    make([]byte, 0, h.length),
		packed: make(map[uint64]uint64, 1024),
		others: make(map[string]uint64, 128),
	}
}

// Process counts the sequence in the variable region of a read.
func (h *RandomBarcodeSingleEnd) Process(state *RandomState, read pipeline.Read) error {
	state.total++
	seq := read.Seq

	var found, ambiguous bool
	var best int
	var err error
	scanRead(h.template, seq, h.opt.MaxTemplateMismatches, func(pos int, reverse bool, mm int) bool {
		if found && mm > best {
			return true
		}

		r := h.fwdRegion
		if reverse {
			r = h.revRegion
		}
		state.buf = append(state.buf[:0], seq[pos+r[0]:pos+r[1]]...)
		if reverse {
			if err = util.ReverseComplementInPlace(state.buf); err != nil {
				return false
			}
		}

		if !found || mm < best {
			found, best, ambiguous = true, mm, false
			state.best = append(state.best[:0], state.buf...)
		} else if !bytes.Equal(state.buf, state.best) {
			ambiguous = true
		}
		return !h.opt.UseFirst
	})
	if err != nil {
		return err
	}
	if !found || ambiguous {
		return nil
	}

	if h.pack && util.IsACGT(state.best) {
		code, err := kmers.Encode(state.best)
		if err != nil {
			return err
		}
		state.packed[code]++
		return nil
	}
	state.others[string(state.best)]++
	return nil
}

// Reduce merges a worker state.
func (h *RandomBarcodeSingleEnd) Reduce(state *RandomState) {
	for k, c := range state.packed {
		h.packed[k] += c
	}
	clear(state.packed)
	for k, c := range state.others {
		h.others[k] += c
	}
	clear(state.others)
	h.total += state.total
	state.total = 0
}

// Total returns the number of processed reads.
func (h *RandomBarcodeSingleEnd) Total() uint64 { return h.total }

// Matched returns the number of reads with a barcode.
func (h *RandomBarcodeSingleEnd) Matched() uint64 {
	var n uint64
	for _, c := range h.packed {
		n += c
	}
	for _, c := range h.others {
		n += c
	}
	return n
}

// SeqCount is a barcode sequence and its count.
type SeqCount struct {
	Seq   string
	Count uint64
}

// Counts returns the counts of distinct sequences, sorted by sequences.
// Packed sequences are in upper case.
func (h *RandomBarcodeSingleEnd) Counts() []SeqCount {
	// the order of packed codes is the lexicographic order of sequences.
	codes := make([]uint64, 0, len(h.packed))
	for code := range h.packed {
		codes = append(codes, code)
	}
	sortutil.Uint64s(codes)

	others := make([]string, 0, len(h.others))
	for s := range h.others {
		others = append(others, s)
	}
	sort.Strings(others)

	counts := make([]SeqCount, 0, len(codes)+len(others))
	var i, j int
	var s string
	for i < len(codes) || j < len(others) {
		if i < len(codes) {
			s = string(kmers.Decode(codes[i], h.length))
			if j == len(others) || s <= others[j] {
				counts = append(counts, SeqCount{Seq: s, Count: h.packed[codes[i]]})
				i++
				continue
			}
		}
		counts = append(counts, SeqCount{Seq: others[j], Count: h.others[others[j]]})
		j++
	}
	return counts
}
