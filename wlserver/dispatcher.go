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
	"encoding/binary"

	"github.com/nabbar/wlserver/objmap"
	"github.com/nabbar/wlserver/scanner/model"
	"github.com/nabbar/wlserver/scanner/sig"
	"github.com/nabbar/wlserver/wire/codec"
)

// frameHeaderSize is the 8-byte (object id, size<<16|opcode) wire header.
const frameHeaderSize = 8

// OnReadable runs step 3-7 of the dispatch algorithm for one readable
// notification: read into the data ring, then process every complete
// frame currently buffered.
func (c *Client) OnReadable() {
	if c.State() != ClientAlive {
		return
	}

	if _, err := c.Conn.Read(0); err != nil {
		c.Destroy()
		return
	}

	for c.processOneFrame() {
		if c.State() != ClientAlive {
			return
		}
	}
}

// OnWritable flushes pending output; a short write re-arms writable (the
// caller's reactor registration is expected to keep watching for
// writability until the ring drains, per §5).
func (c *Client) OnWritable() {
	if _, err := c.Conn.Flush(); err != nil {
		c.Destroy()
	}
}

// OnHangupOrError destroys the client immediately, per dispatch step 1.
func (c *Client) OnHangupOrError() {
	c.Destroy()
}

// processOneFrame attempts to consume exactly one frame from the data
// ring. It returns true if the dispatcher should immediately try another
// frame (more data may be buffered), false if it should stop (frame
// incomplete, or a terminal protocol error just occurred per the "treat
// any protocol error as terminal" design note).
func (c *Client) processOneFrame() bool {
	if c.Conn.Data.Len() < frameHeaderSize {
		return false
	}

	header := c.Conn.Data.Copy(frameHeaderSize)
	objectID := binary.LittleEndian.Uint32(header[0:4])
	word2 := binary.LittleEndian.Uint32(header[4:8])
	size := int(word2 >> 16)
	opcode := uint16(word2 & 0xFFFF)

	if size < frameHeaderSize {
		c.PostError(objectID, uint32(codeInvalidMethod), "frame size below header size")
		c.Destroy()
		return false
	}
	if c.Conn.Data.Len() < size {
		return false // incomplete frame, wait for more bytes
	}

	full := c.Conn.Data.Copy(size)
	payload := full[frameHeaderSize:]

	ptr := c.Objects.Lookup(objectID)
	if ptr == nil {
		c.Conn.Data.Consume(size)
		c.PostError(objectID, uint32(codeInvalidObject), "unknown object")
		c.Destroy()
		return false
	}
	resource := ptr.(*Resource)

	msg, ok := requestByOpcode(resource.Interface, opcode)
	if !ok {
		c.Conn.Data.Consume(size)
		c.PostError(objectID, uint32(codeInvalidMethod), "opcode out of range")
		c.Destroy()
		return false
	}

	flags, _ := c.Objects.LookupFlags(objectID)
	legacy := flags&objmap.FlagLegacy != 0
	if !legacy && resource.Version != 0 && int(resource.Version) < msg.Since {
		c.Conn.Data.Consume(size)
		c.PostError(objectID, uint32(codeInvalidMethod), "resource version below method's since")
		c.Destroy()
		return false
	}

	c.Conn.Data.Consume(size)

	sigChars, serr := codec.ParseSignature(sig.Signature(msg))
	if serr != nil {
		c.PostError(objectID, uint32(codeInvalidMethod), "bad signature")
		c.Destroy()
		return false
	}

	result, derr := codec.Demarshal(objectID, opcode, sigChars, payload, func() (int, bool) { return c.Conn.RecvFDs.Pop() })
	if derr != nil {
		c.PostError(objectID, uint32(codeInvalidMethod), "demarshal failed: "+derr.Error())
		c.Destroy()
		return false
	}

	if badIdx, ok := result.LookupObjects(&clientResolver{c: c}); !ok {
		c.PostError(objectID, uint32(codeInvalidObject), "unresolved object argument")
		_ = badIdx
		c.Destroy()
		return false
	}

	if c.Display.Debug {
		c.Display.Logger.TraceFrame("in", full)
	}

	var invokeErr error
	if resource.Dispatcher != nil {
		invokeErr = resource.Dispatcher(resource, opcode, result.Closure.Args)
	} else if resource.Implementation != nil {
		invokeErr = invokeLegacy(resource, opcode, result.Closure.Args)
	}
	if invokeErr != nil {
		c.PostError(objectID, uint32(codeNoMemory), invokeErr.Error())
		c.Destroy()
		return false
	}

	if c.HasError() {
		c.Destroy()
		return false
	}

	return true
}

func requestByOpcode(i *model.Interface, opcode uint16) (model.Message, bool) {
	if i == nil || int(opcode) >= len(i.Requests) {
		return model.Message{}, false
	}
	return i.Requests[opcode], true
}

// LegacyHandler is the compatibility per-method vtable contract: an
// interface-specific implementation type that invokeLegacy type-asserts
// against the opcode it was registered for. Generated server-header code
// is expected to provide interface-specific adapters satisfying this
// contract; the generic dispatcher path (Resource.Dispatcher) remains
// preferred.
type LegacyHandler interface {
	HandleRequest(r *Resource, opcode uint16, args []codec.ArgValue) error
}

func invokeLegacy(r *Resource, opcode uint16, args []codec.ArgValue) error {
	if h, ok := r.Implementation.(LegacyHandler); ok {
		return h.HandleRequest(r, opcode, args)
	}
	return nil
}
