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

package wire_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/wlserver/wire"
)

var _ = Describe("FDRing", func() {
	It("pops fds in FIFO order", func() {
		r := wire.NewFDRing(4)
		r.Push(10)
		r.Push(11)
		r.PushAll([]int{12, 13})

		fd, ok := r.Pop()
		Expect(ok).To(BeTrue())
		Expect(fd).To(Equal(10))
		Expect(r.Len()).To(Equal(3))
	})

	It("reports ok=false when popping an empty ring", func() {
		r := wire.NewFDRing(0)
		_, ok := r.Pop()
		Expect(ok).To(BeFalse())
	})

	It("drains every queued fd and leaves the ring empty", func() {
		r := wire.NewFDRing(4)
		r.PushAll([]int{1, 2, 3})
		drained := r.DrainAll()
		Expect(drained).To(Equal([]int{1, 2, 3}))
		Expect(r.Len()).To(Equal(0))
	})
})
