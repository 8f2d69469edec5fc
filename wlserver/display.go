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
	"os"
	"sync"

	"github.com/nabbar/wlserver/scanner/model"
	"github.com/nabbar/wlserver/wire"
	"github.com/nabbar/wlserver/wire/codec"
	"github.com/nabbar/wlserver/wllog"
)

// Display owns the global list, the socket list, the client list, the
// registry resource list, a serial counter, and (per the pluggable wire
// trace note) an optional protocol logger fed by WAYLAND_DEBUG.
type Display struct {
	mu sync.Mutex

	globals   []*Global
	nextName  uint32
	sockets   []*listener
	clients   []*Client
	registry  []*Resource
	serial    uint32

	Logger wllog.Logger
	Debug  bool

	displayInterface  *model.Interface
	registryInterface *model.Interface
	callbackInterface *model.Interface

	onAccept func(*Client)
}

// OnClientAccepted registers a hook invoked synchronously from the
// accepting listener's goroutine right after a Client is built and
// registered, e.g. so an external reactor can start polling its Fd().
func (d *Display) OnClientAccepted(f func(*Client)) {
	d.mu.Lock()
	d.onAccept = f
	d.mu.Unlock()
}

// NewDisplay constructs a Display ready to accept sockets. log may be nil,
// in which case wllog.New() is used.
func NewDisplay(log wllog.Logger) *Display {
	if log == nil {
		log = wllog.New()
	}
	return &Display{
		Logger:            log,
		displayInterface:  displayInterfaceModel(),
		registryInterface: registryInterfaceModel(),
		callbackInterface: callbackInterfaceModel(),
	}
}

// GlobalCreate assigns a new, strictly increasing name, appends the global,
// and broadcasts registry::global to every live registry resource.
func (d *Display) GlobalCreate(interfaceName string, version uint32, data interface{}, bind BindFunc) *Global {
	d.mu.Lock()
	d.nextName++
	g := &Global{Name: d.nextName, Interface: interfaceName, Version: version, Data: data, Bind: bind}
	d.globals = append(d.globals, g)
	regs := append([]*Resource(nil), d.registry...)
	d.mu.Unlock()

	for _, r := range regs {
		d.sendRegistryGlobal(r, g)
	}
	return g
}

// GlobalRemove broadcasts registry::global_remove immediately but keeps the
// name reserved in the list until every bind created from it has been
// destroyed (its refcount drains to zero).
func (d *Display) GlobalRemove(g *Global) {
	if !g.markRemoved() {
		return
	}
	d.broadcastGlobalRemove(g)
	if g.decrefNoop() {
		d.unlinkGlobal(g)
	}
}

// decrefNoop lets GlobalRemove observe a zero refcount without actually
// decrementing it (no bind is being released here, we are only checking
// whether any bind is outstanding).
func (g *Global) decrefNoop() bool {
	return g.refcount == 0
}

// GlobalDestroy is the immediate, unconditional form: it broadcasts
// global_remove (if not already removed) and unlinks the global regardless
// of any outstanding binds.
func (d *Display) GlobalDestroy(g *Global) {
	g.markRemoved()
	d.broadcastGlobalRemove(g)
	d.unlinkGlobal(g)
}

func (d *Display) broadcastGlobalRemove(g *Global) {
	d.mu.Lock()
	regs := append([]*Resource(nil), d.registry...)
	d.mu.Unlock()

	for _, r := range regs {
		frame, _, err := codec.Marshal(r.ID, registryEventGlobalRemove,
			[]codec.Sig{{Kind: codec.KindUint}},
			[]codec.ArgValue{{Kind: codec.KindUint, Uint: g.Name}})
		if err == nil {
			_ = r.Client.Conn.Queue(frame)
		}
	}
}

func (d *Display) unlinkGlobal(g *Global) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, x := range d.globals {
		if x == g {
			d.globals = append(d.globals[:i], d.globals[i+1:]...)
			return
		}
	}
}

// ReleaseGlobalBind must be called by a Global's Bind implementation (via
// the constructed resource's AddDestroyListener) when the bound resource is
// destroyed, so a Global removed while binds were still outstanding can
// finally be unlinked.
func (d *Display) ReleaseGlobalBind(g *Global) {
	if g.decref() {
		d.unlinkGlobal(g)
	}
}

func (d *Display) sendRegistryGlobal(r *Resource, g *Global) {
	sig := []codec.Sig{{Kind: codec.KindUint}, {Kind: codec.KindString}, {Kind: codec.KindUint}}
	args := []codec.ArgValue{
		{Kind: codec.KindUint, Uint: g.Name},
		{Kind: codec.KindString, Str: g.Interface},
		{Kind: codec.KindUint, Uint: g.Version},
	}
	frame, _, err := codec.Marshal(r.ID, registryEventGlobal, sig, args)
	if err == nil {
		_ = r.Client.Conn.Queue(frame)
	}
}

// Serial returns the current serial without advancing it.
func (d *Display) Serial() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serial
}

// NextSerial increments and returns the new serial.
func (d *Display) NextSerial() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.serial++
	return d.serial
}

// Sync creates a callback resource at id, emits callback::done(serial)
// using the current (non-advancing) serial, then destroys the callback,
// per display::sync.
func (d *Display) Sync(c *Client, id uint32) error {
	cb := NewResource(c, id, d.callbackInterface, 1)
	c.Objects.InsertAt(id, cb.legacyFlag(), cb)

	frame, _, err := codec.Marshal(id, callbackEventDone, []codec.Sig{{Kind: codec.KindUint}}, []codec.ArgValue{{Kind: codec.KindUint, Uint: d.Serial()}})
	if err != nil {
		return err
	}
	if err = c.Conn.Queue(frame); err != nil {
		return err
	}

	cb.Destroy()
	return nil
}

// GetRegistry creates a registry resource at id for c, registers it in the
// display's registry list, and replays every currently-live global to it.
func (d *Display) GetRegistry(c *Client, id uint32) error {
	r := NewResource(c, id, d.registryInterface, 1)
	r.SetDispatcher(d.dispatchRegistry, func(res *Resource) {
		d.mu.Lock()
		for i, x := range d.registry {
			if x == res {
				d.registry = append(d.registry[:i], d.registry[i+1:]...)
				break
			}
		}
		d.mu.Unlock()
	})
	c.Objects.InsertAt(id, r.legacyFlag(), r)

	d.mu.Lock()
	d.registry = append(d.registry, r)
	globals := append([]*Global(nil), d.globals...)
	d.mu.Unlock()

	for _, g := range globals {
		if !g.isRemoved() {
			d.sendRegistryGlobal(r, g)
		}
	}
	return nil
}

func (d *Display) dispatchRegistry(r *Resource, opcode uint16, args []codec.ArgValue) error {
	if opcode != registryRequestBind {
		r.Client.PostError(r.ID, uint32(codeInvalidMethod), "unknown registry request")
		return nil
	}
	return d.bind(r, args)
}

func (d *Display) bind(r *Resource, args []codec.ArgValue) error {
	if len(args) != 2 {
		r.Client.PostError(r.ID, uint32(codeInvalidMethod), "bind: bad argument count")
		return nil
	}
	name := args[0].Uint
	// args[1] is the generic new_id: interface, version, new id.
	reqVersion := args[1].Version
	newID := args[1].NewID

	d.mu.Lock()
	var g *Global
	for _, x := range d.globals {
		if x.Name == name && !x.isRemoved() {
			g = x
			break
		}
	}
	d.mu.Unlock()

	if g == nil {
		r.Client.PostError(r.ID, uint32(codeInvalidObject), "bind: unknown global name")
		return nil
	}
	if g.Version < reqVersion {
		r.Client.PostError(r.ID, uint32(codeInvalidObject), "bind: version too high")
		return nil
	}

	g.incref()
	if err := g.Bind(r.Client, g.Data, reqVersion, newID); err != nil {
		g.decref()
		r.Client.PostError(r.ID, uint32(codeNoMemory), "bind: construction failed")
		return nil
	}
	return nil
}

// addClient registers a freshly-accepted client.
func (d *Display) addClient(c *Client) {
	d.mu.Lock()
	d.clients = append(d.clients, c)
	d.mu.Unlock()
}

func (d *Display) removeClient(c *Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, x := range d.clients {
		if x == c {
			d.clients = append(d.clients[:i], d.clients[i+1:]...)
			return
		}
	}
}

// Clients returns a snapshot of the currently-connected clients.
func (d *Display) Clients() []*Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Client(nil), d.clients...)
}

// acceptClient builds a Client from a freshly-accepted connection and
// registers it with the display. pollFile, if non-nil, is retained by the
// client for the lifetime of the connection so a reactor can poll it.
func (d *Display) acceptClient(sock *wire.Connection, fd int, pollFile *os.File) *Client {
	c := newClient(d, sock, fd, pollFile)
	d.addClient(c)
	return c
}

const (
	registryRequestBind       uint16 = 0
	registryEventGlobal       uint16 = 0
	registryEventGlobalRemove uint16 = 1
	callbackEventDone         uint16 = 0

	codeInvalidObject uint16 = 0
	codeInvalidMethod uint16 = 1
	codeNoMemory      uint16 = 2
)

func registryInterfaceModel() *model.Interface {
	return &model.Interface{
		Name:    "wl_registry",
		Version: 1,
		Requests: []model.Message{
			{Name: "bind", Opcode: 0, Since: 1, Args: []model.Argument{
				{Name: "name", Kind: model.ArgUint},
				{Name: "id", Kind: model.ArgNewID},
			}},
		},
		Events: []model.Message{
			{Name: "global", Opcode: 0, Since: 1, Args: []model.Argument{
				{Name: "name", Kind: model.ArgUint}, {Name: "interface", Kind: model.ArgString}, {Name: "version", Kind: model.ArgUint}}},
			{Name: "global_remove", Opcode: 1, Since: 1, Args: []model.Argument{{Name: "name", Kind: model.ArgUint}}},
		},
	}
}

func callbackInterfaceModel() *model.Interface {
	return &model.Interface{
		Name:    "wl_callback",
		Version: 1,
		Events: []model.Message{
			{Name: "done", Opcode: 0, Since: 1, Args: []model.Argument{{Name: "callback_data", Kind: model.ArgUint}}},
		},
	}
}
