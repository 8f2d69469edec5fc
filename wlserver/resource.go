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
	"github.com/nabbar/wlserver/objmap"
	"github.com/nabbar/wlserver/scanner/model"
	"github.com/nabbar/wlserver/wire/codec"
)

// ResourceDispatcher is the generic per-resource dispatch trampoline: the
// preferred invocation path, taking the demarshaled argument list directly
// rather than going through the legacy per-method vtable.
type ResourceDispatcher func(r *Resource, opcode uint16, args []codec.ArgValue) error

// Resource is a server-side object instance bound to a client: the object
// triple (interface, id, implementation), a back-reference to its client,
// user data, an optional generic dispatcher or legacy vtable, a destroy
// callback, and its bound version.
type Resource struct {
	ID        uint32
	Interface *model.Interface
	Version   uint32
	Client    *Client

	UserData interface{}

	// Dispatcher is the preferred invocation path (§9 "dynamic dispatch").
	Dispatcher ResourceDispatcher
	// Implementation is the legacy per-method vtable, consulted only when
	// Dispatcher is nil; its concrete type is interface-specific and is
	// type-asserted by generated handler code.
	Implementation interface{}

	destroySignal Signal
	destroyCB     func(*Resource)
	destroyed     bool
}

// NewResource allocates a Resource for iface at id (client- or
// server-allocated) bound to client at version. It does not touch the
// object map; the caller installs the resource with
// objmap.Map.InsertNew/InsertAt afterwards.
func NewResource(client *Client, id uint32, iface *model.Interface, version uint32) *Resource {
	return &Resource{ID: id, Interface: iface, Version: version, Client: client}
}

// SetImplementation installs the legacy per-method vtable for the resource,
// per wl_resource_set_implementation.
func (r *Resource) SetImplementation(impl interface{}, destroy func(*Resource)) {
	r.Implementation = impl
	r.destroyCB = destroy
}

// SetDispatcher installs the generic dispatch trampoline for the resource,
// per wl_resource_set_dispatcher. This is the preferred path.
func (r *Resource) SetDispatcher(d ResourceDispatcher, destroy func(*Resource)) {
	r.Dispatcher = d
	r.destroyCB = destroy
}

// AddDestroyListener registers f to run when the resource is destroyed.
func (r *Resource) AddDestroyListener(f func()) {
	r.destroySignal.AddListener(f)
}

// InstanceOf reports whether the resource implements the named interface,
// per wl_resource_instance_of, for handler code that needs a type check
// before casting UserData.
func (r *Resource) InstanceOf(interfaceName string) bool {
	return r.Interface != nil && r.Interface.Name == interfaceName
}

// legacyFlag selects FlagLegacy on insertion when the resource uses the
// compatibility vtable path instead of the generic dispatcher.
func (r *Resource) legacyFlag() objmap.Flags {
	if r.Dispatcher == nil {
		return objmap.FlagLegacy
	}
	return 0
}

// Destroy runs the full destruction sequence: destroy signal, destroy
// callback, then (for client-allocated ids) queues display::delete_id
// before the object map slot is zombied. It is idempotent.
func (r *Resource) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true

	r.destroySignal.Emit()
	if r.destroyCB != nil {
		r.destroyCB(r)
	}

	if r.Client != nil {
		if r.ID < objmap.ServerIDStart {
			r.Client.queueDeleteID(r.ID)
		}
		r.Client.Objects.Remove(r.ID)
	}
}
