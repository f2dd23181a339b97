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

package pipeline

import (
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
)

// Source is a pull-based reader of sequence records,
// it returns io.EOF after the last record.
// *fastx.Reader satisfies it.
type Source interface {
	Read() (*fastx.Record, error)
}

// Read is a sequencing read. Name and Seq are sub-slices of
// the block buffer of a worker, so they are only valid inside Process.
type Read struct {
	Name []byte // nil if the handler does not use names
	Seq  []byte
}

// block stores up to N reads in one contiguous buffer.
type block struct {
	buf  []byte
	locs [][4]int // start and end of name and sequence in buf

	reads  []Read
	reads2 []Read // for paired-end reads
	paired bool
}

func newBlock(size int, paired bool) *block {
	b := &block{
		buf:    make([]byte, 0, size*128),
		locs:   make([][4]int, 0, size*2),
		reads:  make([]Read, 0, size),
		paired: paired,
	}
	if paired {
		b.reads2 = make([]Read, 0, size)
	}
	return b
}

func (b *block) reset() {
	b.buf = b.buf[:0]
	b.locs = b.locs[:0]
	b.reads = b.reads[:0]
	if b.paired {
		b.reads2 = b.reads2[:0]
	}
}

func (b *block) add(record *fastx.Record, names bool) {
	var loc [4]int
	loc[0] = len(b.buf)
	if names {
		b.buf = append(b.buf, record.Name...)
	}
	loc[1] = len(b.buf)
	loc[2] = loc[1]
	b.buf = append(b.buf, record.Seq.Seq...)
	loc[3] = len(b.buf)
	b.locs = append(b.locs, loc)
}

// slice creates reads after all records are added,
// as the buffer might be reallocated during appending.
func (b *block) slice(names bool) {
	var r Read
	for i, loc := range b.locs {
		if names {
			r.Name = b.buf[loc[0]:loc[1]:loc[1]]
		}
		r.Seq = b.buf[loc[2]:loc[3]:loc[3]]

		if b.paired && i&1 == 1 {
			b.reads2 = append(b.reads2, r)
		} else {
			b.reads = append(b.reads, r)
		}
	}
}

func (b *block) len() int { return len(b.reads) }

// fillSingleEnd reads up to n records from src.
func (b *block) fillSingleEnd(src Source, n int, names bool) (int, error) {
	b.reset()
	var record *fastx.Record
	var err error
	for i := 0; i < n; i++ {
		record, err = src.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, errors.Wrap(err, "pipeline: reading records")
		}
		b.add(record, names)
	}
	b.slice(names)
	return b.len(), nil
}

// fillPairedEnd reads up to n pairs of records from src1 and src2.
func (b *block) fillPairedEnd(src1, src2 Source, n int, names bool) (int, error) {
	b.reset()
	var r1, r2 *fastx.Record
	var err1, err2 error
	for i := 0; i < n; i++ {
		r1, err1 = src1.Read()
		if err1 != nil && err1 != io.EOF {
			return 0, errors.Wrap(err1, "pipeline: reading records of read 1")
		}
		// r1 might be reused by the reader, so it is saved before reading r2.
		if err1 == nil {
			b.add(r1, names)
		}

		r2, err2 = src2.Read()
		if err2 != nil && err2 != io.EOF {
			return 0, errors.Wrap(err2, "pipeline: reading records of read 2")
		}

		if err1 == io.EOF || err2 == io.EOF {
			if err1 != err2 {
				return 0, ErrPairedLengthMismatch
			}
			break
		}
		b.add(r2, names)
	}
	b.slice(names)
	return b.len(), nil
}
