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

package wire

import "sync"

// DefaultFDRingCapacity is the fd ring's default capacity in slots.
const DefaultFDRingCapacity = 28

// FDRing is a small ring buffer of file descriptors pending send, or
// received and not yet claimed by the codec's demarshal pass.
type FDRing struct {
	mu   sync.Mutex
	slot []int
}

// NewFDRing allocates an FDRing with room for capacity fds; capacity <= 0
// selects DefaultFDRingCapacity.
func NewFDRing(capacity int) *FDRing {
	if capacity <= 0 {
		capacity = DefaultFDRingCapacity
	}
	return &FDRing{slot: make([]int, 0, capacity)}
}

// Len returns the number of fds currently queued.
func (f *FDRing) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.slot)
}

// Push appends fd to the ring.
func (f *FDRing) Push(fd int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slot = append(f.slot, fd)
}

// PushAll appends every fd in fds, in order.
func (f *FDRing) PushAll(fds []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slot = append(f.slot, fds...)
}

// Pop removes and returns the oldest queued fd; ok is false if the ring is
// empty.
func (f *FDRing) Pop() (fd int, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.slot) == 0 {
		return 0, false
	}
	fd = f.slot[0]
	f.slot = f.slot[1:]
	return fd, true
}

// DrainAll removes and returns every queued fd, oldest first, clearing the
// ring.
func (f *FDRing) DrainAll() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.slot
	f.slot = make([]int, 0, cap(f.slot))
	return out
}
