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

package wlerr_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/wlserver/wlerr"
)

var _ = Describe("DefaultReturn", func() {
	It("captures the main error and renders it as JSON", func() {
		r := wlerr.NewDefaultReturn()
		r.SetError(2001, "invalid object", "display.go", 42)

		Expect(r.Code).To(Equal("2001"))
		Expect(r.Message).To(Equal("invalid object"))
		Expect(string(r.JSON())).To(ContainSubstring(`"Message":"invalid object"`))
	})

	It("accumulates parent errors without overwriting the main one", func() {
		r := wlerr.NewDefaultReturn()
		r.SetError(2001, "invalid object", "display.go", 42)
		r.AddParent(1000, "invalid argument", "wire.go", 7)

		Expect(r.Code).To(Equal("2001"))
		Expect(r.Message).To(Equal("invalid object"))
	})

	It("feeds a full Error chain through Return", func() {
		base := wlerr.New(2002, "invalid method")
		base.Add(wlerr.New(1000, "invalid argument"))

		r := wlerr.NewDefaultReturn()
		base.Return(r)

		Expect(r.Code).To(Equal("2002"))
		Expect(r.Message).To(Equal("invalid method"))
	})
})
