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

// Package objmap implements the per-client object id space: a map from
// 32-bit id to a (flags, pointer) slot, split into a client-allocated half
// and a server-allocated half, each a dense array grown by doubling.
package objmap

import "sync"

// ServerIDStart is the first id of the server-allocated range; ids below it
// are client-allocated.
const ServerIDStart uint32 = 0xFF000000

// ClientIDMax is the last id of the client-allocated range.
const ClientIDMax uint32 = 0x00FFFFFF

// Flags records per-slot metadata. FlagLegacy marks a resource dispatched
// through the compatibility vtable path rather than the generic per-
// resource dispatcher trampoline, and must never be freed by the map
// itself (per spec.md's object map note).
type Flags uint8

const (
	FlagLegacy Flags = 1 << iota
)

type slot struct {
	ptr    interface{}
	flags  Flags
	zombie bool
}

func (s slot) live() bool {
	return s.ptr != nil && !s.zombie
}

// Map is the id space for one client. The zero value is ready to use.
type Map struct {
	mu sync.Mutex

	clientSlots []slot // index 0 == id 1
	serverSlots []slot // index 0 == id ServerIDStart
}

func clientIndex(id uint32) (int, bool) {
	if id < 1 || id > ClientIDMax {
		return 0, false
	}
	return int(id - 1), true
}

func serverIndex(id uint32) (int, bool) {
	if id < ServerIDStart {
		return 0, false
	}
	return int(id - ServerIDStart), true
}

func growTo(slots []slot, idx int) []slot {
	if idx < len(slots) {
		return slots
	}
	newCap := len(slots)
	if newCap == 0 {
		newCap = 16
	}
	for newCap <= idx {
		newCap *= 2
	}
	grown := make([]slot, newCap)
	copy(grown, slots)
	return grown
}

// InsertNew allocates the first free client-allocated id and stores ptr
// with flags; it never returns a server-allocated id (that range is only
// reachable via InsertAt, matching the source's split allocator).
func (m *Map) InsertNew(flags Flags, ptr interface{}) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.clientSlots {
		if s.ptr == nil && !s.zombie {
			m.clientSlots[i] = slot{ptr: ptr, flags: flags}
			return uint32(i + 1)
		}
	}

	idx := len(m.clientSlots)
	m.clientSlots = growTo(m.clientSlots, idx)
	m.clientSlots[idx] = slot{ptr: ptr, flags: flags}
	return uint32(idx + 1)
}

// InsertAt places ptr at the specific id, which may be client- or
// server-allocated. It fails (returns false) if the id is already live;
// inserting a nil ptr zombies the slot instead of failing.
func (m *Map) InsertAt(id uint32, flags Flags, ptr interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ci, ok := clientIndex(id); ok {
		m.clientSlots = growTo(m.clientSlots, ci)
		if m.clientSlots[ci].live() {
			return false
		}
		m.clientSlots[ci] = slot{ptr: ptr, flags: flags, zombie: ptr == nil}
		return true
	}

	if si, ok := serverIndex(id); ok {
		m.serverSlots = growTo(m.serverSlots, si)
		if m.serverSlots[si].live() {
			return false
		}
		m.serverSlots[si] = slot{ptr: ptr, flags: flags, zombie: ptr == nil}
		return true
	}

	return false
}

// Lookup returns the pointer stored at id, or nil if the slot is free,
// zombie, or id is out of range.
func (m *Map) Lookup(id uint32) interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ci, ok := clientIndex(id); ok && ci < len(m.clientSlots) {
		s := m.clientSlots[ci]
		if s.live() {
			return s.ptr
		}
		return nil
	}
	if si, ok := serverIndex(id); ok && si < len(m.serverSlots) {
		s := m.serverSlots[si]
		if s.live() {
			return s.ptr
		}
		return nil
	}
	return nil
}

// LookupFlags returns the flags stored at id and whether the slot exists
// at all (including zombie slots, which still carry their last flags).
func (m *Map) LookupFlags(id uint32) (Flags, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ci, ok := clientIndex(id); ok && ci < len(m.clientSlots) {
		return m.clientSlots[ci].flags, true
	}
	if si, ok := serverIndex(id); ok && si < len(m.serverSlots) {
		return m.serverSlots[si].flags, true
	}
	return 0, false
}

// Remove frees id. A server-allocated id is freed outright (the slot
// becomes reusable immediately); a client-allocated id's slot is instead
// zombied until the client acknowledges via delete_id — see Reclaim.
func (m *Map) Remove(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ci, ok := clientIndex(id); ok && ci < len(m.clientSlots) {
		m.clientSlots[ci].ptr = nil
		m.clientSlots[ci].zombie = true
		return
	}
	if si, ok := serverIndex(id); ok && si < len(m.serverSlots) {
		m.serverSlots[si] = slot{}
	}
}

// Reclaim clears the zombie bit on a client-allocated id after the client's
// delete_id acknowledgment, making the slot reusable by InsertNew (InsertAt
// already accepts a zombie slot).
func (m *Map) Reclaim(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ci, ok := clientIndex(id); ok && ci < len(m.clientSlots) {
		m.clientSlots[ci] = slot{}
	}
}

// IsZombie reports whether id names a freed-but-unacknowledged
// client-allocated slot.
func (m *Map) IsZombie(id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ci, ok := clientIndex(id); ok && ci < len(m.clientSlots) {
		return m.clientSlots[ci].zombie
	}
	return false
}

// ForEach invokes f for every live object, in ascending id order (client
// ids first, then server ids), as used during client teardown.
func (m *Map) ForEach(f func(id uint32, ptr interface{}, flags Flags)) {
	m.mu.Lock()
	type entry struct {
		id    uint32
		ptr   interface{}
		flags Flags
	}
	var entries []entry
	for i, s := range m.clientSlots {
		if s.live() {
			entries = append(entries, entry{id: uint32(i + 1), ptr: s.ptr, flags: s.flags})
		}
	}
	for i, s := range m.serverSlots {
		if s.live() {
			entries = append(entries, entry{id: ServerIDStart + uint32(i), ptr: s.ptr, flags: s.flags})
		}
	}
	m.mu.Unlock()

	for _, e := range entries {
		f(e.id, e.ptr, e.flags)
	}
}
