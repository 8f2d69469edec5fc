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
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"

	"github.com/nabbar/wlserver/scanner/model"
	"github.com/nabbar/wlserver/wire"
	"github.com/nabbar/wlserver/wire/codec"
	"github.com/nabbar/wlserver/wllog"
)

func TestWlserver(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "wlserver")
}

// unixConnPair mirrors the wire package's test helper: a connected pair of
// *net.UnixConn backed by a real AF_UNIX socketpair.
func unixConnPair() (*net.UnixConn, *net.UnixConn) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	Expect(err).NotTo(HaveOccurred())

	c1, err := net.FileConn(os.NewFile(uintptr(fds[0]), "sp0"))
	Expect(err).NotTo(HaveOccurred())
	c2, err := net.FileConn(os.NewFile(uintptr(fds[1]), "sp1"))
	Expect(err).NotTo(HaveOccurred())

	return c1.(*net.UnixConn), c2.(*net.UnixConn)
}

// newTestClient drives the same acceptClient path the socket listener uses
// in production, without a pollFile (fd -1 is fine off the reactor path).
func newTestClient(disp *Display) (*Client, *net.UnixConn) {
	serverSide, peer := unixConnPair()
	c := disp.acceptClient(wire.NewConnection(serverSide), -1, nil)
	return c, peer
}

func sendFrame(peer *net.UnixConn, sender uint32, opcode uint16, sigStr string, args []codec.ArgValue) {
	sig, err := codec.ParseSignature(sigStr)
	Expect(err).NotTo(HaveOccurred())
	frame, _, merr := codec.Marshal(sender, opcode, sig, args)
	Expect(merr).NotTo(HaveOccurred())
	_, werr := peer.Write(frame)
	Expect(werr).NotTo(HaveOccurred())
}

var _ = Describe("Client/Resource lifecycle", func() {
	It("dispatches display::get_registry and replays existing globals", func() {
		disp := NewDisplay(wllog.New())
		disp.GlobalCreate("wl_seat", 1, nil, func(c *Client, data interface{}, version uint32, id uint32) error {
			return nil
		})

		c, peer := newTestClient(disp)
		defer c.Destroy()
		defer func() { _ = peer.Close() }()

		sendFrame(peer, DisplayResourceID, 1, "n", []codec.ArgValue{{Kind: codec.KindNewIDTyped, NewID: 2}})

		c.OnReadable()
		_, ferr := c.Flush()
		Expect(ferr).NotTo(HaveOccurred())

		buf := make([]byte, 256)
		n, rerr := peer.Read(buf)
		Expect(rerr).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">", 0))
	})

	It("destroys the client on an unknown object id", func() {
		disp := NewDisplay(wllog.New())
		c, peer := newTestClient(disp)
		defer func() { _ = peer.Close() }()

		sendFrame(peer, 999, 0, "", nil)
		c.OnReadable()

		Expect(c.State()).To(Equal(ClientDead))
	})

	It("destroys the client on an opcode past the interface's request table", func() {
		disp := NewDisplay(wllog.New())
		c, peer := newTestClient(disp)
		defer func() { _ = peer.Close() }()

		sendFrame(peer, DisplayResourceID, 99, "", nil)
		c.OnReadable()

		Expect(c.State()).To(Equal(ClientDead))
	})

	It("runs destroy listeners exactly once", func() {
		disp := NewDisplay(wllog.New())
		c, peer := newTestClient(disp)
		defer func() { _ = peer.Close() }()

		calls := 0
		c.AddDestroyListener(func() { calls++ })
		c.Destroy()
		c.Destroy()

		Expect(calls).To(Equal(1))
	})
})

var _ = Describe("Resource", func() {
	It("queues display::delete_id on destroy for a client-allocated id", func() {
		disp := NewDisplay(wllog.New())
		c, peer := newTestClient(disp)
		defer func() { _ = peer.Close() }()
		defer c.Destroy()

		iface := &model.Interface{Name: "wl_thing", Version: 1}
		r := NewResource(c, 50, iface, 1)
		c.Objects.InsertAt(50, 0, r)
		r.Destroy()

		_, werr := c.Conn.Flush()
		Expect(werr).NotTo(HaveOccurred())

		buf := make([]byte, 64)
		n, rerr := peer.Read(buf)
		Expect(rerr).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">", 0))
	})

	It("is idempotent", func() {
		disp := NewDisplay(wllog.New())
		c, peer := newTestClient(disp)
		defer func() { _ = peer.Close() }()
		defer c.Destroy()

		iface := &model.Interface{Name: "wl_thing", Version: 1}
		r := NewResource(c, 51, iface, 1)
		calls := 0
		r.AddDestroyListener(func() { calls++ })
		r.Destroy()
		r.Destroy()
		Expect(calls).To(Equal(1))
	})
})

var _ = Describe("Global", func() {
	It("assigns strictly increasing names", func() {
		disp := NewDisplay(wllog.New())
		g1 := disp.GlobalCreate("wl_a", 1, nil, nil)
		g2 := disp.GlobalCreate("wl_b", 1, nil, nil)
		Expect(g2.Name).To(BeNumerically(">", g1.Name))
	})

	It("keeps a global linked while a bind is outstanding, until released", func() {
		disp := NewDisplay(wllog.New())
		var bound *Resource
		var g *Global
		g = disp.GlobalCreate("wl_thing", 1, nil, func(c *Client, data interface{}, version uint32, id uint32) error {
			iface := &model.Interface{Name: "wl_thing", Version: 1}
			r := NewResource(c, id, iface, version)
			c.Objects.InsertAt(id, 0, r)
			r.AddDestroyListener(func() { disp.ReleaseGlobalBind(g) })
			bound = r
			return nil
		})

		c, peer := newTestClient(disp)
		defer func() { _ = peer.Close() }()
		defer c.Destroy()

		g.incref()
		Expect(g.Bind(c, g.Data, 1, 60)).To(Succeed())

		disp.GlobalRemove(g)
		Expect(g.isRemoved()).To(BeTrue())
		Expect(disp.globals).To(ContainElement(g))

		bound.Destroy()
		Expect(disp.globals).NotTo(ContainElement(g))
	})
})
