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

import (
	"net"

	"golang.org/x/sys/unix"
)

// Connection pairs a data ring and an fd ring with the Unix-domain socket
// they flush to and read from. SendFDs holds fds queued by Marshal that
// ride along as ancillary data on the next outgoing message; RecvFDs holds
// fds received and not yet claimed by a Demarshal pass.
type Connection struct {
	Sock    *net.UnixConn
	Data    *DataRing
	SendFDs *FDRing
	RecvFDs *FDRing
}

// NewConnection wraps sock with a default-sized data ring and fd rings.
func NewConnection(sock *net.UnixConn) *Connection {
	return &Connection{
		Sock:    sock,
		Data:    NewDataRing(DefaultDataRingCapacity),
		SendFDs: NewFDRing(DefaultFDRingCapacity),
		RecvFDs: NewFDRing(DefaultFDRingCapacity),
	}
}

// Queue appends src to the data ring without writing to the socket.
func (c *Connection) Queue(src []byte) error {
	return c.Data.Queue(src)
}

// Flush writes as many queued bytes as possible to the socket, attaching
// any pending SendFDs as ancillary data on this one write. It returns the
// number of bytes actually written; a partial write is normal and leaves
// the remainder queued. A negative return paired with a non-nil error
// indicates a hard socket failure.
func (c *Connection) Flush() (int, error) {
	pending := c.Data.PeekWriter()
	if len(pending) == 0 {
		return 0, nil
	}

	var oob []byte
	fds := c.SendFDs.DrainAll()
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}

	n, _, err := c.Sock.WriteMsgUnix(pending, oob, nil)
	if err != nil {
		if n > 0 {
			c.Data.Consume(n)
		}
		// fds not delivered on a failed write are not retried; the
		// connection is about to be torn down by the caller.
		for _, fd := range fds {
			_ = unix.Close(fd)
		}
		return -1, err
	}

	c.Data.Consume(n)
	return n, nil
}

// Read pulls available bytes from the socket into the data ring; any fds
// received alongside are appended to RecvFDs after being marked
// close-on-exec, per the external-interface requirement that received fds
// must never leak across an exec.
func (c *Connection) Read(maxBytes int) (int, error) {
	if maxBytes <= 0 {
		maxBytes = c.Data.Cap()
	}
	buf := make([]byte, maxBytes)
	oob := make([]byte, unix.CmsgSpace(maxFrameFDs*4))

	n, oobn, _, _, err := c.Sock.ReadMsgUnix(buf, oob)
	if n > 0 {
		if qerr := c.Data.Queue(buf[:n]); qerr != nil {
			return n, qerr
		}
	}
	if oobn > 0 {
		cmsgs, perr := unix.ParseSocketControlMessage(oob[:oobn])
		if perr == nil {
			for _, cm := range cmsgs {
				fds, rerr := unix.ParseUnixRights(&cm)
				if rerr != nil {
					continue
				}
				for _, fd := range fds {
					_, _ = unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC)
					c.RecvFDs.Push(fd)
				}
			}
		}
	}

	return n, err
}

// maxFrameFDs bounds the ancillary-data buffer generously enough for the
// handful of fds a single recvmsg call can legally carry.
const maxFrameFDs = 28

// Close closes the underlying socket and any fds still sitting unclaimed in
// either ring.
func (c *Connection) Close() error {
	for _, fd := range c.SendFDs.DrainAll() {
		_ = unix.Close(fd)
	}
	for _, fd := range c.RecvFDs.DrainAll() {
		_ = unix.Close(fd)
	}
	return c.Sock.Close()
}
