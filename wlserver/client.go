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
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nabbar/wlserver/objmap"
	"github.com/nabbar/wlserver/scanner/model"
	"github.com/nabbar/wlserver/wire"
	"github.com/nabbar/wlserver/wire/codec"
)

// ClientState is the client connection's lifecycle state.
type ClientState uint8

const (
	ClientAlive ClientState = iota
	ClientDraining
	ClientDead
)

// Credentials is the pid/uid/gid snapshot captured once at accept time via
// SO_PEERCRED, exposed read-only for the lifetime of the client.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

// DisplayResourceID is the fixed object id of a client's display resource.
const DisplayResourceID uint32 = 1

// Client holds a connection, a credentials snapshot, an object map, the
// display resource, an error flag, and destroy listeners.
type Client struct {
	mu sync.Mutex

	Conn        *wire.Connection
	Objects     *objmap.Map
	Display     *Display
	Credentials Credentials

	state     ClientState
	errorFlag bool

	displayResource *Resource
	destroySignal   Signal

	pendingDeleteIDs []uint32

	pollFile *os.File
}

// newClient wraps an accepted Unix connection fd into a Client whose
// display resource occupies id 1, per the object id space invariant.
// pollFile, if non-nil, is a duplicated descriptor kept open for the
// lifetime of the client purely so an external reactor can poll on it
// (see Fd); the connection itself is read and written through sock.
func newClient(disp *Display, sock *wire.Connection, fd int, pollFile *os.File) *Client {
	c := &Client{
		Conn:     sock,
		Objects:  &objmap.Map{},
		Display:  disp,
		pollFile: pollFile,
	}
	c.Credentials = credentialsFromFD(fd)

	c.displayResource = NewResource(c, DisplayResourceID, disp.displayInterface, disp.displayInterface.Version)
	c.displayResource.SetDispatcher(c.dispatchDisplay, nil)
	c.Objects.InsertAt(DisplayResourceID, c.displayResource.legacyFlag(), c.displayResource)

	return c
}

// Fd returns the descriptor an external reactor should poll for this
// client's readiness, or -1 if the client was not constructed with one
// (e.g. built directly in a test via a net.Pipe-backed connection).
func (c *Client) Fd() int {
	if c.pollFile == nil {
		return -1
	}
	return int(c.pollFile.Fd())
}

// credentialsFromFD reads SO_PEERCRED off an accepted Unix socket fd.
func credentialsFromFD(fd int) Credentials {
	cred, err := unix.GetsockoptUcred(fd, unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil || cred == nil {
		return Credentials{}
	}
	return Credentials{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}
}

// State returns the client's current lifecycle state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PostError marks the client's error flag and arranges for an
// invalid_object/invalid_method/no_memory display::error event to be
// queued, mirroring wl_resource_post_error / wl_client_post_implementation_error.
func (c *Client) PostError(resourceID uint32, code uint32, message string) {
	c.queueDisplayError(resourceID, code, message)
	c.setError()
}

func (c *Client) setError() {
	c.mu.Lock()
	c.errorFlag = true
	c.mu.Unlock()
}

// HasError reports whether the client's error flag is set; the dispatcher
// checks this after every invocation and destroys the client if so.
func (c *Client) HasError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorFlag
}

// AddDestroyListener registers f to run when the client is destroyed.
func (c *Client) AddDestroyListener(f func()) {
	c.destroySignal.AddListener(f)
}

// queueDeleteID records a client-allocated id whose display::delete_id
// event must be sent before the corresponding object map slot is
// considered reclaimable by the client.
func (c *Client) queueDeleteID(id uint32) {
	c.mu.Lock()
	c.pendingDeleteIDs = append(c.pendingDeleteIDs, id)
	c.mu.Unlock()

	frame, _, err := codec.Marshal(DisplayResourceID, displayEventDeleteID, []codec.Sig{{Kind: codec.KindUint}}, []codec.ArgValue{{Kind: codec.KindUint, Uint: id}})
	if err == nil {
		_ = c.Conn.Queue(frame)
	}
}

func (c *Client) queueDisplayError(resourceID uint32, code uint32, message string) {
	sig := []codec.Sig{{Kind: codec.KindObject}, {Kind: codec.KindUint}, {Kind: codec.KindString}}
	args := []codec.ArgValue{
		{Kind: codec.KindObject, Object: resourceID},
		{Kind: codec.KindUint, Uint: code},
		{Kind: codec.KindString, Str: message},
	}
	frame, _, err := codec.Marshal(DisplayResourceID, displayEventError, sig, args)
	if err == nil {
		_ = c.Conn.Queue(frame)
	}
}

// Flush writes any queued events to the connection, best-effort.
func (c *Client) Flush() (int, error) {
	return c.Conn.Flush()
}

// Destroy runs the client teardown sequence: destroy signal, best-effort
// flush, every resource destroyed in ascending id order, fds closed,
// connection closed, then removal from the display's client list. It is
// idempotent.
func (c *Client) Destroy() {
	c.mu.Lock()
	if c.state == ClientDead {
		c.mu.Unlock()
		return
	}
	c.state = ClientDraining
	c.mu.Unlock()

	c.destroySignal.Emit()
	_, _ = c.Conn.Flush()

	type entry struct {
		id  uint32
		res *Resource
	}
	var entries []entry
	c.Objects.ForEach(func(id uint32, ptr interface{}, flags objmap.Flags) {
		if r, ok := ptr.(*Resource); ok {
			entries = append(entries, entry{id: id, res: r})
		}
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	for _, e := range entries {
		e.res.Destroy()
	}

	_ = c.Conn.Close()
	if c.pollFile != nil {
		_ = c.pollFile.Close()
	}

	c.mu.Lock()
	c.state = ClientDead
	c.mu.Unlock()

	c.Display.removeClient(c)
}

// dispatchDisplay is the generic dispatcher for the always-present wl_display
// resource (id 1): sync and get_registry.
func (c *Client) dispatchDisplay(r *Resource, opcode uint16, args []codec.ArgValue) error {
	switch opcode {
	case displayRequestSync:
		if len(args) != 1 {
			c.PostError(r.ID, uint32(codeInvalidMethod), "sync: bad argument count")
			return nil
		}
		return c.Display.Sync(c, args[0].NewID)
	case displayRequestGetRegistry:
		if len(args) != 1 {
			c.PostError(r.ID, uint32(codeInvalidMethod), "get_registry: bad argument count")
			return nil
		}
		return c.Display.GetRegistry(c, args[0].NewID)
	default:
		c.PostError(r.ID, uint32(codeInvalidMethod), "wl_display: unknown opcode")
		return nil
	}
}

// LookupObject implements codec.ObjectResolver against this client's
// object map, for the demarshal lazy lookup-objects pass.
func (c *Client) LookupObject(id uint32) bool {
	return c.Objects.Lookup(id) != nil
}

var _ codec.ObjectResolver = (*clientResolver)(nil)

type clientResolver struct{ c *Client }

func (r *clientResolver) Lookup(id uint32) bool { return r.c.LookupObject(id) }

// displayInterfaceModel is the minimal wl_display interface descriptor
// needed at runtime: enough requests/events to dispatch sync/get_registry
// and to emit error/delete_id, independent of any scanner-generated table.
func displayInterfaceModel() *model.Interface {
	return &model.Interface{
		Name:    "wl_display",
		Version: 1,
		Requests: []model.Message{
			{Name: "sync", Opcode: 0, Since: 1, Args: []model.Argument{{Name: "callback", Kind: model.ArgNewID, Interface: "wl_callback"}}},
			{Name: "get_registry", Opcode: 1, Since: 1, Args: []model.Argument{{Name: "registry", Kind: model.ArgNewID, Interface: "wl_registry"}}},
		},
		Events: []model.Message{
			{Name: "error", Opcode: 0, Since: 1, Args: []model.Argument{
				{Name: "object_id", Kind: model.ArgObject}, {Name: "code", Kind: model.ArgUint}, {Name: "message", Kind: model.ArgString}}},
			{Name: "delete_id", Opcode: 1, Since: 1, Args: []model.Argument{{Name: "id", Kind: model.ArgUint}}},
		},
	}
}

const (
	displayRequestSync        uint16 = 0
	displayRequestGetRegistry uint16 = 1
	displayEventError         uint16 = 0
	displayEventDeleteID      uint16 = 1
)
