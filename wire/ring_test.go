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
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/wlserver/wire"
)

func TestWire(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "wire")
}

var _ = Describe("DataRing", func() {
	It("rounds capacity up to the next power of two", func() {
		r := wire.NewDataRing(100)
		Expect(r.Cap()).To(Equal(128))
	})

	It("defaults an unspecified capacity", func() {
		r := wire.NewDataRing(0)
		Expect(r.Cap()).To(Equal(wire.DefaultDataRingCapacity))
	})

	It("queues and consumes bytes in order", func() {
		r := wire.NewDataRing(16)
		Expect(r.Queue([]byte("hello"))).To(Succeed())
		Expect(r.Len()).To(Equal(5))
		Expect(r.Copy(5)).To(Equal([]byte("hello")))
		r.Consume(5)
		Expect(r.Len()).To(Equal(0))
	})

	It("wraps around the ring boundary without corrupting data", func() {
		r := wire.NewDataRing(8)
		Expect(r.Queue([]byte("abcdef"))).To(Succeed())
		r.Consume(6)
		Expect(r.Queue([]byte("ghijkl"))).To(Succeed())
		Expect(r.Copy(6)).To(Equal([]byte("ghijkl")))
	})

	It("fails Queue with ErrOverflow once free space is exhausted", func() {
		r := wire.NewDataRing(8)
		err := r.Queue(make([]byte, 9))
		Expect(err).To(HaveOccurred())
		_, ok := err.(*wire.ErrOverflow)
		Expect(ok).To(BeTrue())
		Expect(r.Len()).To(Equal(0))
	})

	It("panics when Consume exceeds the available bytes", func() {
		r := wire.NewDataRing(8)
		Expect(func() { r.Consume(1) }).To(Panic())
	})

	It("panics when Copy exceeds the available bytes", func() {
		r := wire.NewDataRing(8)
		Expect(func() { r.Copy(1) }).To(Panic())
	})

	It("exposes queued bytes via PeekWriter without consuming them", func() {
		r := wire.NewDataRing(16)
		Expect(r.Queue([]byte("xyz"))).To(Succeed())
		Expect(r.PeekWriter()).To(Equal([]byte("xyz")))
		Expect(r.Len()).To(Equal(3))
	})
})
