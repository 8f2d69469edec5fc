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

package model_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/wlserver/scanner/model"
)

func TestModel(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "scanner/model")
}

var _ = Describe("ArgKind", func() {
	DescribeTable("round-trips through its XML token",
		func(kind model.ArgKind, token string) {
			Expect(kind.String()).To(Equal(token))
			parsed, ok := model.ParseArgKind(token)
			Expect(ok).To(BeTrue())
			Expect(parsed).To(Equal(kind))
		},
		Entry("int", model.ArgInt, "int"),
		Entry("uint", model.ArgUint, "uint"),
		Entry("fixed", model.ArgFixed, "fixed"),
		Entry("string", model.ArgString, "string"),
		Entry("object", model.ArgObject, "object"),
		Entry("new_id", model.ArgNewID, "new_id"),
		Entry("array", model.ArgArray, "array"),
		Entry("fd", model.ArgFD, "fd"),
	)

	It("rejects an unknown token", func() {
		_, ok := model.ParseArgKind("bogus")
		Expect(ok).To(BeFalse())
	})

	DescribeTable("reports nullable eligibility",
		func(kind model.ArgKind, eligible bool) {
			Expect(kind.NullableEligible()).To(Equal(eligible))
		},
		Entry("string nullable", model.ArgString, true),
		Entry("object nullable", model.ArgObject, true),
		Entry("new_id nullable", model.ArgNewID, true),
		Entry("array nullable", model.ArgArray, true),
		Entry("int not nullable", model.ArgInt, false),
		Entry("uint not nullable", model.ArgUint, false),
		Entry("fixed not nullable", model.ArgFixed, false),
		Entry("fd not nullable", model.ArgFD, false),
	)

	DescribeTable("maps to its signature character",
		func(kind model.ArgKind, char byte) {
			Expect(kind.SigChar()).To(Equal(char))
		},
		Entry("int", model.ArgInt, byte('i')),
		Entry("uint", model.ArgUint, byte('u')),
		Entry("fixed", model.ArgFixed, byte('f')),
		Entry("string", model.ArgString, byte('s')),
		Entry("object", model.ArgObject, byte('o')),
		Entry("new_id", model.ArgNewID, byte('n')),
		Entry("array", model.ArgArray, byte('a')),
		Entry("fd", model.ArgFD, byte('h')),
	)
})

var _ = Describe("Argument.IsGenericNewID", func() {
	It("is true only for a new_id with no static interface", func() {
		Expect(model.Argument{Kind: model.ArgNewID}.IsGenericNewID()).To(BeTrue())
		Expect(model.Argument{Kind: model.ArgNewID, Interface: "wl_surface"}.IsGenericNewID()).To(BeFalse())
		Expect(model.Argument{Kind: model.ArgObject}.IsGenericNewID()).To(BeFalse())
	})
})

var _ = Describe("Interface.Messages", func() {
	It("returns requests before events, preserving order", func() {
		iface := &model.Interface{
			Requests: []model.Message{{Name: "a"}, {Name: "b"}},
			Events:   []model.Message{{Name: "c"}},
		}
		names := make([]string, 0, 3)
		for _, m := range iface.Messages() {
			names = append(names, m.Name)
		}
		Expect(names).To(Equal([]string{"a", "b", "c"}))
	})
})

var _ = Describe("Protocol.InterfaceByName", func() {
	It("finds a declared interface by name", func() {
		p := &model.Protocol{Interfaces: []model.Interface{{Name: "wl_display"}, {Name: "wl_registry"}}}
		found, ok := p.InterfaceByName("wl_registry")
		Expect(ok).To(BeTrue())
		Expect(found.Name).To(Equal("wl_registry"))
	})

	It("reports false for an undeclared interface", func() {
		p := &model.Protocol{}
		_, ok := p.InterfaceByName("wl_missing")
		Expect(ok).To(BeFalse())
	})
})
