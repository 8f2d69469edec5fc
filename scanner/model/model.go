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

// Package model holds the in-memory description of a protocol: the tree built
// by the parser and consumed by the signature emitter and code generator.
// Nothing here touches XML or text output; it is a plain data model with the
// ordering guarantees the rest of the compiler depends on.
package model

// ArgKind is the closed set of wire argument kinds a protocol description can
// declare. The zero value is not a valid kind.
type ArgKind uint8

const (
	ArgInt ArgKind = iota + 1
	ArgUint
	ArgFixed
	ArgString
	ArgObject
	ArgNewID
	ArgArray
	ArgFD
)

// String renders the kind using the same token the description XML uses.
func (k ArgKind) String() string {
	switch k {
	case ArgInt:
		return "int"
	case ArgUint:
		return "uint"
	case ArgFixed:
		return "fixed"
	case ArgString:
		return "string"
	case ArgObject:
		return "object"
	case ArgNewID:
		return "new_id"
	case ArgArray:
		return "array"
	case ArgFD:
		return "fd"
	default:
		return "unknown"
	}
}

// ParseArgKind maps an XML type token to its ArgKind, or false if unknown.
func ParseArgKind(s string) (ArgKind, bool) {
	switch s {
	case "int":
		return ArgInt, true
	case "uint":
		return ArgUint, true
	case "fixed":
		return ArgFixed, true
	case "string":
		return ArgString, true
	case "object":
		return ArgObject, true
	case "new_id":
		return ArgNewID, true
	case "array":
		return ArgArray, true
	case "fd":
		return ArgFD, true
	default:
		return 0, false
	}
}

// NullableEligible reports whether a "?" prefix / allow-null is legal for k.
func (k ArgKind) NullableEligible() bool {
	switch k {
	case ArgString, ArgObject, ArgNewID, ArgArray:
		return true
	default:
		return false
	}
}

// SigChar is the signature-string character for k, per the wire format.
// Generic new_id (no Interface set) is handled by the caller since it expands
// to three characters ("sun"); this returns the single-char form.
func (k ArgKind) SigChar() byte {
	switch k {
	case ArgInt:
		return 'i'
	case ArgUint:
		return 'u'
	case ArgFixed:
		return 'f'
	case ArgString:
		return 's'
	case ArgObject:
		return 'o'
	case ArgNewID:
		return 'n'
	case ArgArray:
		return 'a'
	case ArgFD:
		return 'h'
	default:
		return 0
	}
}

// MessageKind distinguishes a client->server request from a server->client
// event; the two keep independent, densely-numbered opcode spaces.
type MessageKind uint8

const (
	KindRequest MessageKind = iota + 1
	KindEvent
)

// Entry is one named constant within an Enum.
type Entry struct {
	Name    string
	Value   string // preserved as literal text, any integer base
	Summary string
	Since   int
}

// Enum is a named, optionally-bitfield set of Entry values scoped to an
// Interface.
type Enum struct {
	Name     string
	Bitfield bool
	Since    int
	Entries  []Entry
}

// Argument is one positional slot of a Message.
type Argument struct {
	Name      string
	Kind      ArgKind
	Nullable  bool
	Interface string // peer interface name; set only for object/new_id
	Summary   string
}

// IsGenericNewID reports whether this new_id argument carries no static peer
// interface and therefore expands on the wire to (string, uint, new_id).
func (a Argument) IsGenericNewID() bool {
	return a.Kind == ArgNewID && a.Interface == ""
}

// Message is one request or event of an Interface.
type Message struct {
	Name        string
	Kind        MessageKind
	Opcode      int
	Since       int
	Destructor  bool
	Summary     string
	Description string
	Args        []Argument

	// Signature and TypeOffset are filled in by the signature emitter
	// (scanner/sig); they are zero-valued immediately after parsing.
	Signature  string
	TypeOffset int
}

// Interface is a named, versioned capability: an ordered list of requests,
// an ordered list of events, and the enums scoped to it.
type Interface struct {
	Name        string
	Version     int
	Summary     string
	Description string
	Requests    []Message
	Events      []Message
	Enums       []Enum

	// Types is the flat reference vector produced by the signature
	// emitter: a shared prefix of "" slots used by every message with no
	// peer-interface argument, then one slot per argument of each message
	// that has one (Requests then Events), holding either a peer interface
	// name or "" (NULL, a scalar-typed argument).
	Types []string
}

// Protocol is the parse result for one description document: its declared
// name and the ordered list of interfaces it defines, in source order.
type Protocol struct {
	Name       string
	Copyright  string
	Interfaces []Interface
}

// InterfaceByName returns the interface with the given name, or false if the
// protocol declares none.
func (p *Protocol) InterfaceByName(name string) (Interface, bool) {
	for _, i := range p.Interfaces {
		if i.Name == name {
			return i, true
		}
	}
	return Interface{}, false
}

// Messages returns requests then events, the order the signature emitter
// walks an interface in.
func (i *Interface) Messages() []Message {
	out := make([]Message, 0, len(i.Requests)+len(i.Events))
	out = append(out, i.Requests...)
	out = append(out, i.Events...)
	return out
}
