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

// Package pipeline processes reads in blocks with a fixed number of workers,
// and merges the results of workers in the order of dispatching,
// so the results do not depend on the number of workers.
package pipeline

import (
	"runtime"

	"github.com/pkg/errors"
)

// ErrPairedLengthMismatch means the two files of paired-end reads
// have different numbers of reads.
var ErrPairedLengthMismatch = errors.New("pipeline: paired-end files have different numbers of reads")

// DefaultBlockSize is the default number of reads in a block.
const DefaultBlockSize = 10000

// SingleEndHandler processes single-end reads.
//
// Initialize is called once for each worker, Process is called in
// worker goroutines, and it should only modify the state.
// Reduce merges a state into the handler, it's called in only one goroutine,
// and the state is reused after that.
type SingleEndHandler[S any] interface {
	Initialize() S
	Process(state S, read Read) error
	Reduce(state S)
}

// PairedEndHandler processes paired-end reads.
type PairedEndHandler[S any] interface {
	Initialize() S
	Process(state S, read1, read2 Read) error
	Reduce(state S)
}

// NameUser is an optional interface of handlers which need read names.
type NameUser interface {
	UseNames() bool
}

func useNames(h interface{}) bool {
	if u, ok := h.(NameUser); ok {
		return u.UseNames()
	}
	return false
}

// Options contains the options of the pipeline.
type Options struct {
	Threads   int // number of workers, default runtime.NumCPU()
	BlockSize int // number of reads (pairs) in a block, default DefaultBlockSize

	// Progress is called after merging each block, with the number of reads in it.
	Progress func(reads int)
}

func (opt *Options) threads() int {
	if opt == nil || opt.Threads <= 0 {
		return runtime.NumCPU()
	}
	return opt.Threads
}

func (opt *Options) blockSize() int {
	if opt == nil || opt.BlockSize <= 0 {
		return DefaultBlockSize
	}
	return opt.BlockSize
}

// ProcessSingleEnd processes all reads from src with h.
func ProcessSingleEnd[S any](src Source, h SingleEndHandler[S], opt *Options) error {
	names := useNames(h)
	n := opt.blockSize()
	return run(opt, h.Initialize, h.Reduce, false,
		func(b *block) (int, error) {
			return b.fillSingleEnd(src, n, names)
		},
		func(state S, b *block) error {
			for _, r := range b.reads {
				if err := h.Process(state, r); err != nil {
					return err
				}
			}
			return nil
		})
}

// ProcessPairedEnd processes all read pairs from src1 and src2 with h.
// ErrPairedLengthMismatch is returned if the two sources have different numbers of reads.
func ProcessPairedEnd[S any](src1, src2 Source, h PairedEndHandler[S], opt *Options) error {
	names := useNames(h)
	n := opt.blockSize()
	return run(opt, h.Initialize, h.Reduce, true,
		func(b *block) (int, error) {
			return b.fillPairedEnd(src1, src2, n, names)
		},
		func(state S, b *block) error {
			for i, r := range b.reads {
				if err := h.Process(state, r, b.reads2[i]); err != nil {
					return err
				}
			}
			return nil
		})
}

type worker[S any] struct {
	state S
	blk   *block
	n     int // reads in the block

	work chan struct{}
	done chan error
	busy bool
}

func (w *worker[S]) loop(process func(S, *block) error) {
	for range w.work {
		w.done <- w.process(process)
	}
}

func (w *worker[S]) process(process func(S, *block) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("pipeline: panic in worker: %v", r)
		}
	}()
	return process(w.state, w.blk)
}

// run reads blocks in the current goroutine, and sends them to workers
// in a round-robin manner. Each worker holds at most one block, and
// its state is merged before it receives the next one.
func run[S any](opt *Options, initialize func() S, reduce func(S), paired bool,
	fill func(*block) (int, error), process func(S, *block) error) error {

	threads := opt.threads()
	size := opt.blockSize()

	var progress func(int)
	if opt != nil {
		progress = opt.Progress
	}

	workers := make([]*worker[S], threads)
	for i := range workers {
		w := &worker[S]{
			state: initialize(),
			blk:   newBlock(size, paired),
			work:  make(chan struct{}, 1),
			done:  make(chan error, 1),
		}
		workers[i] = w
		go w.loop(process)
	}
	defer func() {
		for _, w := range workers {
			close(w.work)
		}
	}()

	// wait waits for the worker and merges its state.
	// Once an error occurs, states are not merged anymore.
	var err error
	wait := func(w *worker[S]) {
		if !w.busy {
			return
		}
		e := <-w.done
		w.busy = false
		if err != nil {
			return
		}
		if e != nil {
			err = e
			return
		}
		reduce(w.state)
		if progress != nil {
			progress(w.n)
		}
	}

	var i int
	var w *worker[S]
	var n int
	var e error
	for {
		w = workers[i]
		wait(w)
		if err != nil {
			break
		}

		n, e = fill(w.blk)
		if e != nil {
			err = e
			break
		}
		if n == 0 {
			break
		}

		w.n = n
		w.busy = true
		w.work <- struct{}{}

		i++
		if i == threads {
			i = 0
		}
	}

	// workers[i] is the earliest dispatched one.
	for j := 0; j < threads; j++ {
		wait(workers[(i+j)%threads])
	}

	return err
}
