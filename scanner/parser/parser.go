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

// Package parser turns a protocol description XML document into the model
// tree defined by scanner/model. Required-attribute and since-ordering rules
// are enforced here, with a source line attached to every fatal error.
package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/nabbar/wlserver/scanner/model"
)

// Error is a parse failure carrying the 1-based source line it was detected
// on, matching the CLI contract's "diagnostic including source line".
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Warning is a non-fatal parse observation (e.g. a decreasing since value).
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: warning: %s", w.Line, w.Message)
}

// Parse reads a full description document from r and returns the model
// tree. Warnings is non-nil only when at least one non-fatal condition (a
// decreasing since value) was observed; err is non-nil on any fatal rule
// violation or malformed XML, wrapped with a source line.
func Parse(r io.Reader) (*model.Protocol, []Warning, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}

	lt := newLineTracker(raw)
	dec := xml.NewDecoder(bytes.NewReader(raw))

	p := &model.Protocol{}
	var warnings []Warning

	var (
		curIface *model.Interface
		curMsg   *model.Message
		curEnum  *model.Enum
		// descFor selects which struct the next <description> chardata
		// applies to: "protocol", "interface", or "message".
		descFor string
	)

	line := func() int { return lt.lineAt(dec.InputOffset()) }

	fail := func(format string, args ...interface{}) (*model.Protocol, []Warning, error) {
		return nil, warnings, &Error{Line: line(), Message: fmt.Sprintf(format, args...)}
	}

	for {
		tok, terr := dec.Token()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return fail("xml: %s", terr.Error())
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "protocol":
				name, ok := attr(t, "name")
				if !ok || name == "" {
					return fail("protocol: missing required attribute \"name\"")
				}
				p.Name = name

			case "copyright":
				descFor = "protocol"

			case "description":
				summary, ok := attr(t, "summary")
				if !ok {
					return fail("description: missing required attribute \"summary\"")
				}
				if curMsg != nil {
					curMsg.Summary = summary
					descFor = "message"
				} else if curIface != nil {
					curIface.Summary = summary
					descFor = "interface"
				} else {
					descFor = "protocol"
				}

			case "interface":
				name, ok := attr(t, "name")
				if !ok || name == "" {
					return fail("interface: missing required attribute \"name\"")
				}
				vs, ok := attr(t, "version")
				if !ok {
					return fail("interface %q: missing required attribute \"version\"", name)
				}
				v, verr := strconv.Atoi(vs)
				if verr != nil || v <= 0 {
					return fail("interface %q: version must be a positive integer", name)
				}
				p.Interfaces = append(p.Interfaces, model.Interface{Name: name, Version: v})
				curIface = &p.Interfaces[len(p.Interfaces)-1]

			case "request", "event":
				if curIface == nil {
					return fail("%s: declared outside any interface", t.Name.Local)
				}
				name, ok := attr(t, "name")
				if !ok || name == "" {
					return fail("%s: missing required attribute \"name\"", t.Name.Local)
				}
				kind := model.KindRequest
				if t.Name.Local == "event" {
					kind = model.KindEvent
				}
				since := 1
				if ss, ok := attr(t, "since"); ok {
					sv, serr := strconv.Atoi(ss)
					if serr != nil {
						return fail("%s %q: since must be an integer", t.Name.Local, name)
					}
					since = sv
				}
				last := lastSince(curIface, kind)
				if since < last {
					warnings = append(warnings, Warning{Line: line(), Message: fmt.Sprintf(
						"%s %q: since %d decreases from previous %d", t.Name.Local, name, since, last)})
				}
				destructor := false
				if tv, ok := attr(t, "type"); ok {
					if tv != "destructor" {
						return fail("%s %q: unknown type %q", t.Name.Local, name, tv)
					}
					destructor = true
				}
				if name == "destroy" && !destructor {
					return fail("%s %q: request named \"destroy\" must be type=\"destructor\"", t.Name.Local, name)
				}
				m := model.Message{Name: name, Kind: kind, Since: since, Destructor: destructor}
				if kind == model.KindRequest {
					m.Opcode = len(curIface.Requests)
					curIface.Requests = append(curIface.Requests, m)
					curMsg = &curIface.Requests[len(curIface.Requests)-1]
				} else {
					m.Opcode = len(curIface.Events)
					curIface.Events = append(curIface.Events, m)
					curMsg = &curIface.Events[len(curIface.Events)-1]
				}

			case "arg":
				if curMsg == nil {
					return fail("arg: declared outside any request/event")
				}
				name, ok := attr(t, "name")
				if !ok || name == "" {
					return fail("arg: missing required attribute \"name\"")
				}
				ts, ok := attr(t, "type")
				if !ok {
					return fail("arg %q: missing required attribute \"type\"", name)
				}
				kind, ok := model.ParseArgKind(ts)
				if !ok {
					return fail("arg %q: unknown type %q", name, ts)
				}
				a := model.Argument{Name: name, Kind: kind}
				if iv, ok := attr(t, "interface"); ok {
					if kind != model.ArgObject && kind != model.ArgNewID {
						return fail("arg %q: interface attribute only valid on object/new_id", name)
					}
					a.Interface = iv
				}
				if nv, ok := attr(t, "allow-null"); ok {
					if !kind.NullableEligible() {
						return fail("arg %q: allow-null not valid on type %q", name, ts)
					}
					a.Nullable = nv == "true"
				}
				curMsg.Args = append(curMsg.Args, a)

			case "enum":
				if curIface == nil {
					return fail("enum: declared outside any interface")
				}
				name, ok := attr(t, "name")
				if !ok || name == "" {
					return fail("enum: missing required attribute \"name\"")
				}
				e := model.Enum{Name: name}
				if bf, ok := attr(t, "bitfield"); ok {
					e.Bitfield = bf == "true"
				}
				if sv, ok := attr(t, "since"); ok {
					iv, ierr := strconv.Atoi(sv)
					if ierr == nil {
						e.Since = iv
					}
				}
				curIface.Enums = append(curIface.Enums, e)
				curEnum = &curIface.Enums[len(curIface.Enums)-1]

			case "entry":
				if curEnum == nil {
					return fail("entry: declared outside any enum")
				}
				name, ok := attr(t, "name")
				if !ok || name == "" {
					return fail("entry: missing required attribute \"name\"")
				}
				val, ok := attr(t, "value")
				if !ok {
					return fail("entry %q: missing required attribute \"value\"", name)
				}
				entry := model.Entry{Name: name, Value: val}
				if sm, ok := attr(t, "summary"); ok {
					entry.Summary = sm
				}
				if sv, ok := attr(t, "since"); ok {
					if iv, ierr := strconv.Atoi(sv); ierr == nil {
						entry.Since = iv
					}
				}
				curEnum.Entries = append(curEnum.Entries, entry)
			}

		case xml.CharData:
			switch descFor {
			case "message":
				if curMsg != nil {
					curMsg.Description += string(t)
				}
			case "interface":
				if curIface != nil {
					curIface.Description += string(t)
				}
			case "protocol":
				p.Copyright += string(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "description", "copyright":
				descFor = ""
			case "enum":
				curEnum = nil
			case "request", "event":
				curMsg = nil
			case "interface":
				curIface = nil
			}
		}
	}

	if p.Name == "" {
		return fail("protocol: missing required attribute \"name\"")
	}

	return p, warnings, nil
}

func attr(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func lastSince(i *model.Interface, kind model.MessageKind) int {
	if kind == model.KindRequest {
		if len(i.Requests) == 0 {
			return 1
		}
		return i.Requests[len(i.Requests)-1].Since
	}
	if len(i.Events) == 0 {
		return 1
	}
	return i.Events[len(i.Events)-1].Since
}

// lineTracker maps a byte offset into the original document to a 1-based
// line number, used to attach a source location to every fatal Error.
type lineTracker struct {
	offsets []int // byte offset of the start of each line
}

func newLineTracker(raw []byte) *lineTracker {
	lt := &lineTracker{offsets: []int{0}}
	for i, b := range raw {
		if b == '\n' {
			lt.offsets = append(lt.offsets, i+1)
		}
	}
	return lt
}

func (lt *lineTracker) lineAt(offset int64) int {
	lo, hi := 0, len(lt.offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if int64(lt.offsets[mid]) <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}
