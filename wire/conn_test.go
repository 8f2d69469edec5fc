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
	"net"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"

	"github.com/nabbar/wlserver/wire"
)

// unixConnPair returns two connected *net.UnixConn endpoints backed by a
// real AF_UNIX socketpair, so Connection.Flush/Read exercise the genuine
// SCM_RIGHTS path instead of a fake transport.
func unixConnPair() (*net.UnixConn, *net.UnixConn) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	Expect(err).NotTo(HaveOccurred())

	c1, err := net.FileConn(os.NewFile(uintptr(fds[0]), "sp0"))
	Expect(err).NotTo(HaveOccurred())
	c2, err := net.FileConn(os.NewFile(uintptr(fds[1]), "sp1"))
	Expect(err).NotTo(HaveOccurred())

	return c1.(*net.UnixConn), c2.(*net.UnixConn)
}

var _ = Describe("Connection", func() {
	var a, b *net.UnixConn

	BeforeEach(func() {
		a, b = unixConnPair()
	})

	AfterEach(func() {
		_ = a.Close()
		_ = b.Close()
	})

	It("flushes queued bytes to the peer", func() {
		ca := wire.NewConnection(a)
		Expect(ca.Queue([]byte("hello"))).To(Succeed())

		n, err := ca.Flush()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(5))

		buf := make([]byte, 16)
		rn, rerr := b.Read(buf)
		Expect(rerr).NotTo(HaveOccurred())
		Expect(string(buf[:rn])).To(Equal("hello"))
	})

	It("reads bytes written by the peer into the data ring", func() {
		_, err := b.Write([]byte("world"))
		Expect(err).NotTo(HaveOccurred())

		cb := wire.NewConnection(a)
		n, rerr := cb.Read(0)
		Expect(rerr).NotTo(HaveOccurred())
		Expect(n).To(Equal(5))
		Expect(cb.Data.Copy(5)).To(Equal([]byte("world")))
	})

	It("passes a queued fd to the peer as ancillary data, marked close-on-exec", func() {
		r, w, perr := os.Pipe()
		Expect(perr).NotTo(HaveOccurred())
		defer func() { _ = r.Close() }()
		defer func() { _ = w.Close() }()

		ca := wire.NewConnection(a)
		ca.SendFDs.Push(int(w.Fd()))
		Expect(ca.Queue([]byte("x"))).To(Succeed())
		_, ferr := ca.Flush()
		Expect(ferr).NotTo(HaveOccurred())

		cb := wire.NewConnection(b)
		_, rerr := cb.Read(0)
		Expect(rerr).NotTo(HaveOccurred())
		Expect(cb.RecvFDs.Len()).To(Equal(1))

		fd, ok := cb.RecvFDs.Pop()
		Expect(ok).To(BeTrue())
		defer func() { _ = unix.Close(fd) }()

		flags, ferr2 := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
		Expect(ferr2).NotTo(HaveOccurred())
		Expect(flags & unix.FD_CLOEXEC).NotTo(Equal(0))
	})

	It("closes any fds still unclaimed in either ring", func() {
		r, _, perr := os.Pipe()
		Expect(perr).NotTo(HaveOccurred())
		dupFd, derr := unix.Dup(int(r.Fd()))
		Expect(derr).NotTo(HaveOccurred())
		_ = r.Close()

		c := wire.NewConnection(a)
		c.RecvFDs.Push(dupFd)
		Expect(c.Close()).To(Succeed())

		_, cerr := unix.FcntlInt(uintptr(dupFd), unix.F_GETFD, 0)
		Expect(cerr).To(HaveOccurred())
	})
})
