/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package wire implements the two ring buffers a connection owns: a data
// ring for the byte stream and an fd ring for ancillary file descriptors
// received or pending send alongside it.
package wire

import (
	"fmt"
	"sync"
)

// DataRing is a power-of-two-capacity byte ring buffer. The zero value is
// not usable; construct with NewDataRing. All methods are safe for
// concurrent use.
type DataRing struct {
	mu   sync.Mutex
	buf  []byte
	r, w int // read/write cursors, monotonically increasing, mod len(buf)
}

// DefaultDataRingCapacity is the data ring's default capacity in bytes,
// matching the maximum frame size.
const DefaultDataRingCapacity = 4096

// NewDataRing allocates a DataRing of the given capacity, rounded up to the
// next power of two; capacity <= 0 selects DefaultDataRingCapacity.
func NewDataRing(capacity int) *DataRing {
	if capacity <= 0 {
		capacity = DefaultDataRingCapacity
	}
	return &DataRing{buf: make([]byte, nextPow2(capacity))}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Len returns the number of unread bytes currently queued.
func (d *DataRing) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.w - d.r
}

// Cap returns the ring's total capacity in bytes.
func (d *DataRing) Cap() int {
	return len(d.buf)
}

// Copy is a non-destructive peek of the next n unread bytes; it panics if
// n exceeds the number of bytes available, matching the invariant-violation
// semantics of the source ring.
func (d *DataRing) Copy(n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > d.w-d.r {
		panic(fmt.Sprintf("wire: copy(%d) exceeds available %d bytes", n, d.w-d.r))
	}
	out := make([]byte, n)
	mask := len(d.buf) - 1
	for i := 0; i < n; i++ {
		out[i] = d.buf[(d.r+i)&mask]
	}
	return out
}

// Consume advances the read cursor by n bytes; it panics if n exceeds the
// number of bytes available.
func (d *DataRing) Consume(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > d.w-d.r {
		panic(fmt.Sprintf("wire: consume(%d) exceeds available %d bytes", n, d.w-d.r))
	}
	d.r += n
}

// ErrOverflow is returned by Queue when appending would exceed capacity.
type ErrOverflow struct {
	Requested int
	Available int
}

func (e *ErrOverflow) Error() string {
	return fmt.Sprintf("wire: queue(%d) exceeds %d bytes of free capacity", e.Requested, e.Available)
}

// Queue appends src to the ring, failing with *ErrOverflow if doing so would
// exceed capacity; the ring is left unmodified on failure.
func (d *DataRing) Queue(src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	free := len(d.buf) - (d.w - d.r)
	if len(src) > free {
		return &ErrOverflow{Requested: len(src), Available: free}
	}
	mask := len(d.buf) - 1
	for i, b := range src {
		d.buf[(d.w+i)&mask] = b
	}
	d.w += len(src)
	return nil
}

// PeekWriter exposes the queued-but-unread bytes as a single contiguous
// slice for Write/Flush without consuming them; it always returns a fresh copy.
func (d *DataRing) PeekWriter() []byte {
	return d.Copy(d.Len())
}
