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

package sig_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/wlserver/scanner/model"
	"github.com/nabbar/wlserver/scanner/sig"
)

func TestSig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "scanner/sig")
}

var _ = Describe("Signature", func() {
	It("emits one character per argument in declaration order", func() {
		m := model.Message{Args: []model.Argument{
			{Kind: model.ArgUint}, {Kind: model.ArgString}, {Kind: model.ArgFD},
		}}
		Expect(sig.Signature(m)).To(Equal("ush"))
	})

	It("prefixes a nullable argument with ?", func() {
		m := model.Message{Args: []model.Argument{
			{Kind: model.ArgString, Nullable: true}, {Kind: model.ArgUint},
		}}
		Expect(sig.Signature(m)).To(Equal("?su"))
	})

	It("expands a generic new_id to the sun triple", func() {
		m := model.Message{Args: []model.Argument{
			{Kind: model.ArgUint}, {Kind: model.ArgNewID},
		}}
		Expect(sig.Signature(m)).To(Equal("usun"))
	})

	It("does not expand a typed new_id", func() {
		m := model.Message{Args: []model.Argument{
			{Kind: model.ArgNewID, Interface: "wl_surface"},
		}}
		Expect(sig.Signature(m)).To(Equal("n"))
	})

	It("prefixes the since version only when greater than 1", func() {
		m1 := model.Message{Since: 1, Args: []model.Argument{{Kind: model.ArgUint}}}
		m2 := model.Message{Since: 3, Args: []model.Argument{{Kind: model.ArgUint}}}
		Expect(sig.Signature(m1)).To(Equal("u"))
		Expect(sig.Signature(m2)).To(Equal("3u"))
	})
})

var _ = Describe("EmitInterface", func() {
	It("leaves TypeOffset at zero for messages with no peer argument", func() {
		iface := &model.Interface{
			Requests: []model.Message{
				{Name: "r1", Args: []model.Argument{{Kind: model.ArgUint}}},
			},
		}
		sig.EmitInterface(iface)
		Expect(iface.Requests[0].Signature).To(Equal("u"))
		Expect(iface.Requests[0].TypeOffset).To(Equal(0))
	})

	It("appends one types entry per argument for messages with a peer argument", func() {
		iface := &model.Interface{
			Requests: []model.Message{
				{Name: "bind", Args: []model.Argument{
					{Kind: model.ArgUint},
					{Kind: model.ArgNewID, Interface: "wl_target"},
				}},
			},
		}
		sig.EmitInterface(iface)
		req := iface.Requests[0]
		Expect(req.TypeOffset).To(Equal(0))
		Expect(iface.Types).To(Equal([]string{"", "wl_target"}))
	})

	It("offsets later peer-bearing messages past earlier ones", func() {
		iface := &model.Interface{
			Requests: []model.Message{
				{Name: "bind_a", Args: []model.Argument{{Kind: model.ArgObject, Interface: "wl_a"}}},
				{Name: "bind_b", Args: []model.Argument{{Kind: model.ArgObject, Interface: "wl_b"}}},
			},
		}
		sig.EmitInterface(iface)
		Expect(iface.Requests[0].TypeOffset).To(Equal(0))
		Expect(iface.Requests[1].TypeOffset).To(Equal(1))
		Expect(iface.Types).To(Equal([]string{"wl_a", "wl_b"}))
	})
})

var _ = Describe("EmitProtocol", func() {
	It("fills in every interface's signatures", func() {
		p := &model.Protocol{Interfaces: []model.Interface{
			{Name: "wl_a", Requests: []model.Message{{Name: "r", Args: []model.Argument{{Kind: model.ArgInt}}}}},
			{Name: "wl_b", Events: []model.Message{{Name: "e", Args: []model.Argument{{Kind: model.ArgFixed}}}}},
		}}
		sig.EmitProtocol(p)
		Expect(p.Interfaces[0].Requests[0].Signature).To(Equal("i"))
		Expect(p.Interfaces[1].Events[0].Signature).To(Equal("f"))
	})
})

var _ = Describe("PeerInterfaces", func() {
	It("returns the sorted, deduplicated set of referenced interface names", func() {
		p := &model.Protocol{Interfaces: []model.Interface{
			{Name: "wl_a", Requests: []model.Message{
				{Args: []model.Argument{{Kind: model.ArgNewID, Interface: "wl_surface"}}},
			}},
			{Name: "wl_b", Events: []model.Message{
				{Args: []model.Argument{{Kind: model.ArgObject, Interface: "wl_buffer"}}},
				{Args: []model.Argument{{Kind: model.ArgObject, Interface: "wl_surface"}}},
			}},
		}}
		Expect(sig.PeerInterfaces(p)).To(Equal([]string{"wl_buffer", "wl_surface"}))
	})

	It("returns an empty slice when nothing references a peer interface", func() {
		p := &model.Protocol{Interfaces: []model.Interface{
			{Name: "wl_a", Requests: []model.Message{{Args: []model.Argument{{Kind: model.ArgUint}}}}},
		}}
		Expect(sig.PeerInterfaces(p)).To(BeEmpty())
	})
})
