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

package wlserver

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reactor", func() {
	It("invokes Readable when a watched fd becomes readable", func() {
		a, b := unixConnPair()
		defer func() { _ = a.Close() }()
		defer func() { _ = b.Close() }()

		f, ferr := a.File()
		Expect(ferr).NotTo(HaveOccurred())
		defer func() { _ = f.Close() }()

		r := NewReactor()
		readable := make(chan struct{}, 1)
		r.Watch(int(f.Fd()), ReactorCallbacks{Readable: func() { readable <- struct{}{} }})

		done := make(chan error, 1)
		go func() { done <- r.Run(50) }()

		_, werr := b.Write([]byte("x"))
		Expect(werr).NotTo(HaveOccurred())

		select {
		case <-readable:
		case <-time.After(2 * time.Second):
			Fail("reactor never reported readability")
		}

		r.Stop()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("returns from Run without ever watching an fd, once stopped", func() {
		r := NewReactor()
		done := make(chan error, 1)
		go func() { done <- r.Run(50) }()
		r.Stop()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("stops dispatching to an fd once Unwatch is called", func() {
		a, b := unixConnPair()
		defer func() { _ = a.Close() }()
		defer func() { _ = b.Close() }()

		f, ferr := a.File()
		Expect(ferr).NotTo(HaveOccurred())
		defer func() { _ = f.Close() }()

		r := NewReactor()
		calls := 0
		r.Watch(int(f.Fd()), ReactorCallbacks{Readable: func() { calls++ }})
		r.Unwatch(int(f.Fd()))

		done := make(chan error, 1)
		go func() { done <- r.Run(50) }()

		_, werr := b.Write([]byte("y"))
		Expect(werr).NotTo(HaveOccurred())

		time.Sleep(200 * time.Millisecond)
		r.Stop()
		Eventually(done).Should(Receive(BeNil()))
		Expect(calls).To(Equal(0))
	})
})
