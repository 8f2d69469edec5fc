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
	"net"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/wlserver/wllog"
)

var _ = Describe("AddSocket", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "wlserver-socket-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("auto-names the first free wayland-N socket and creates its lockfile", func() {
		d := NewDisplay(wllog.New())
		name, err := d.AddSocket(dir, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("wayland-0"))

		_, statErr := os.Stat(filepath.Join(dir, "wayland-0"))
		Expect(statErr).NotTo(HaveOccurred())
		_, lockErr := os.Stat(filepath.Join(dir, "wayland-0.lock"))
		Expect(lockErr).NotTo(HaveOccurred())

		d.CloseSocket()
	})

	It("picks the next free name when the first is already taken", func() {
		d1 := NewDisplay(wllog.New())
		_, err := d1.AddSocket(dir, "")
		Expect(err).NotTo(HaveOccurred())
		defer d1.CloseSocket()

		d2 := NewDisplay(wllog.New())
		name2, err := d2.AddSocket(dir, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(name2).To(Equal("wayland-1"))
		d2.CloseSocket()
	})

	It("rejects an empty runtime directory", func() {
		d := NewDisplay(wllog.New())
		_, err := d.AddSocket("", "name")
		Expect(err).To(HaveOccurred())
	})

	It("invokes the accept hook for a connecting client", func() {
		d := NewDisplay(wllog.New())
		name, err := d.AddSocket(dir, "")
		Expect(err).NotTo(HaveOccurred())
		defer d.CloseSocket()

		accepted := make(chan *Client, 1)
		d.OnClientAccepted(func(c *Client) { accepted <- c })

		conn, derr := net.Dial("unix", filepath.Join(dir, name))
		Expect(derr).NotTo(HaveOccurred())
		defer func() { _ = conn.Close() }()

		select {
		case c := <-accepted:
			Expect(c).NotTo(BeNil())
			Expect(c.Fd()).To(BeNumerically(">=", 0))
		case <-time.After(2 * time.Second):
			Fail("accept hook was never invoked")
		}
	})

	It("removes both the socket and lock files on CloseSocket", func() {
		d := NewDisplay(wllog.New())
		name, err := d.AddSocket(dir, "")
		Expect(err).NotTo(HaveOccurred())

		d.CloseSocket()

		_, statErr := os.Stat(filepath.Join(dir, name))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
		_, lockErr := os.Stat(filepath.Join(dir, name+".lock"))
		Expect(os.IsNotExist(lockErr)).To(BeTrue())
	})
})
