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

package objmap_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/wlserver/objmap"
)

func TestObjmap(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "objmap")
}

var _ = Describe("InsertNew", func() {
	It("allocates ascending client ids starting at 1", func() {
		m := &objmap.Map{}
		Expect(m.InsertNew(0, "a")).To(Equal(uint32(1)))
		Expect(m.InsertNew(0, "b")).To(Equal(uint32(2)))
	})

	It("reuses a slot freed by Remove only after Reclaim", func() {
		m := &objmap.Map{}
		id := m.InsertNew(0, "a")
		m.Remove(id)
		Expect(m.InsertNew(0, "b")).NotTo(Equal(id))
		m.Reclaim(id)
		Expect(m.InsertNew(0, "c")).To(Equal(id))
	})
})

var _ = Describe("InsertAt", func() {
	It("accepts an explicit client id and a server id", func() {
		m := &objmap.Map{}
		Expect(m.InsertAt(5, 0, "client-obj")).To(BeTrue())
		Expect(m.InsertAt(objmap.ServerIDStart+1, 0, "server-obj")).To(BeTrue())
		Expect(m.Lookup(5)).To(Equal("client-obj"))
		Expect(m.Lookup(objmap.ServerIDStart + 1)).To(Equal("server-obj"))
	})

	It("refuses to overwrite a live slot", func() {
		m := &objmap.Map{}
		Expect(m.InsertAt(5, 0, "first")).To(BeTrue())
		Expect(m.InsertAt(5, 0, "second")).To(BeFalse())
		Expect(m.Lookup(5)).To(Equal("first"))
	})

	It("allows re-insertion at a zombie client id", func() {
		m := &objmap.Map{}
		Expect(m.InsertAt(5, 0, "first")).To(BeTrue())
		m.Remove(5)
		Expect(m.IsZombie(5)).To(BeTrue())
		Expect(m.InsertAt(5, 0, "second")).To(BeTrue())
		Expect(m.Lookup(5)).To(Equal("second"))
	})

	It("rejects an id outside both ranges", func() {
		m := &objmap.Map{}
		Expect(m.InsertAt(0, 0, "x")).To(BeFalse())
	})
})

var _ = Describe("Remove", func() {
	It("zombies a client id instead of freeing it outright", func() {
		m := &objmap.Map{}
		id := m.InsertNew(0, "a")
		m.Remove(id)
		Expect(m.Lookup(id)).To(BeNil())
		Expect(m.IsZombie(id)).To(BeTrue())
	})

	It("frees a server id outright, leaving it non-zombie", func() {
		m := &objmap.Map{}
		id := objmap.ServerIDStart + 3
		Expect(m.InsertAt(id, 0, "a")).To(BeTrue())
		m.Remove(id)
		Expect(m.Lookup(id)).To(BeNil())
		Expect(m.IsZombie(id)).To(BeFalse())
		Expect(m.InsertAt(id, 0, "b")).To(BeTrue())
	})
})

var _ = Describe("LookupFlags", func() {
	It("reports the stored flags and presence", func() {
		m := &objmap.Map{}
		Expect(m.InsertAt(7, objmap.FlagLegacy, "a")).To(BeTrue())
		flags, ok := m.LookupFlags(7)
		Expect(ok).To(BeTrue())
		Expect(flags & objmap.FlagLegacy).NotTo(Equal(objmap.Flags(0)))
	})

	It("reports not found for an id never touched", func() {
		m := &objmap.Map{}
		_, ok := m.LookupFlags(99)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("ForEach", func() {
	It("visits client ids ascending, then server ids ascending", func() {
		m := &objmap.Map{}
		Expect(m.InsertAt(2, 0, "c2")).To(BeTrue())
		Expect(m.InsertAt(1, 0, "c1")).To(BeTrue())
		Expect(m.InsertAt(objmap.ServerIDStart+5, 0, "s5")).To(BeTrue())
		Expect(m.InsertAt(objmap.ServerIDStart+1, 0, "s1")).To(BeTrue())

		var seen []uint32
		m.ForEach(func(id uint32, ptr interface{}, flags objmap.Flags) {
			seen = append(seen, id)
		})
		Expect(seen).To(Equal([]uint32{1, 2, objmap.ServerIDStart + 1, objmap.ServerIDStart + 5}))
	})

	It("skips zombie and free slots", func() {
		m := &objmap.Map{}
		id := m.InsertNew(0, "a")
		m.Remove(id)
		count := 0
		m.ForEach(func(id uint32, ptr interface{}, flags objmap.Flags) { count++ })
		Expect(count).To(Equal(0))
	})
})
