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

import "sync/atomic"

// BindFunc constructs the resource a client asked for via registry::bind.
// It is expected to build the new resource at id and install it in the
// client's object map.
type BindFunc func(client *Client, data interface{}, version uint32, id uint32) error

// Global is a (name, interface, version, data, bind) tuple, server-wide and
// advertised to every bound registry resource.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
	Data      interface{}
	Bind      BindFunc

	removed  int32
	refcount int32
}

func (g *Global) markRemoved() bool {
	return atomic.CompareAndSwapInt32(&g.removed, 0, 1)
}

func (g *Global) isRemoved() bool {
	return atomic.LoadInt32(&g.removed) != 0
}

func (g *Global) incref() {
	atomic.AddInt32(&g.refcount, 1)
}

// decref returns true if this decrement emptied the refcount to zero on an
// already-removed global, meaning it is now safe to unlink.
func (g *Global) decref() bool {
	n := atomic.AddInt32(&g.refcount, -1)
	return n == 0 && g.isRemoved()
}
