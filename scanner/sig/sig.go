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

// Package sig computes, for each interface of a parsed protocol, the
// per-message signature string and the interface's flat "types" reference
// vector, with the run-length NULL-prefix optimization described for the
// generated code's peer-interface table.
package sig

import (
	"sort"
	"strconv"

	"github.com/nabbar/wlserver/scanner/model"
)

// Signature returns the wire signature string for m, per the argument-kind
// table: an optional leading since (when >1), then one character per
// argument, "?" prefixed when nullable, generic new_id expanding to "sun".
func Signature(m model.Message) string {
	s := make([]byte, 0, len(m.Args)+2)
	if m.Since > 1 {
		s = append(s, []byte(strconv.Itoa(m.Since))...)
	}
	for _, a := range m.Args {
		if a.Nullable {
			s = append(s, '?')
		}
		if a.IsGenericNewID() {
			s = append(s, 's', 'u', 'n')
		} else {
			s = append(s, a.Kind.SigChar())
		}
	}
	return string(s)
}

// EmitInterface fills in Signature and TypeOffset for every request and
// event of i, and the interface's Types reference vector, mutating i in
// place. It must run after parsing and before code generation.
func EmitInterface(i *model.Interface) {
	msgs := make([]*model.Message, 0, len(i.Requests)+len(i.Events))
	for k := range i.Requests {
		msgs = append(msgs, &i.Requests[k])
	}
	for k := range i.Events {
		msgs = append(msgs, &i.Events[k])
	}

	maxNullArgs := 0
	for _, m := range msgs {
		m.Signature = Signature(*m)
		if !hasPeerArg(m) && len(m.Args) > maxNullArgs {
			maxNullArgs = len(m.Args)
		}
	}

	types := make([]string, maxNullArgs)

	for _, m := range msgs {
		if !hasPeerArg(m) {
			m.TypeOffset = 0
			continue
		}
		offset := len(types)
		for _, a := range m.Args {
			types = append(types, a.Interface)
		}
		m.TypeOffset = offset
	}

	i.Types = types
}

func hasPeerArg(m *model.Message) bool {
	for _, a := range m.Args {
		if a.Interface != "" {
			return true
		}
	}
	return false
}

// EmitProtocol runs EmitInterface over every interface of p, in place.
func EmitProtocol(p *model.Protocol) {
	for k := range p.Interfaces {
		EmitInterface(&p.Interfaces[k])
	}
}

// PeerInterfaces returns the sorted, deduplicated set of interface names
// referenced by any object/new_id argument across the whole protocol, for
// declaration as external symbols by the consuming code generator.
func PeerInterfaces(p *model.Protocol) []string {
	seen := make(map[string]struct{})
	for _, i := range p.Interfaces {
		for _, m := range i.Messages() {
			for _, a := range m.Args {
				if a.Interface != "" {
					seen[a.Interface] = struct{}{}
				}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
