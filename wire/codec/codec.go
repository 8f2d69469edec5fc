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

// Package codec implements Marshal and Demarshal: the translation between a
// typed argument list and the little-endian, 4-byte-aligned wire frame
// format described for the protocol's messages.
package codec

import (
	"encoding/binary"

	"github.com/nabbar/wlserver/wlerr"
)

// MaxFrameSize is the hard ceiling on a single frame, header included.
const MaxFrameSize = 4096

// ArgValue is a typed argument variant: exactly one of the typed fields is
// meaningful, selected by Kind. It replaces the varargs marshal/demarshal
// calling convention with a tagged union, per the source's identified
// "varargs is a language crutch" note.
type ArgValue struct {
	Kind ArgKind

	Int    int32
	Uint   uint32
	Fixed  int32
	Str    string
	Null   bool // true for a null string/object/new_id/array
	Object uint32
	// NewID fields: Interface/Version are populated only for a generic
	// new_id (interface unknown statically); both typed and generic new_id
	// carry the id itself in NewID.
	Interface string
	Version   uint32
	NewID     uint32
	Array     []byte
	FD        int
}

// ArgKind mirrors scanner/model.ArgKind without importing the scanner
// package, keeping the wire codec independent of the protocol compiler.
type ArgKind uint8

const (
	KindInt ArgKind = iota + 1
	KindUint
	KindFixed
	KindString
	KindObject
	KindNewIDTyped
	KindNewIDGeneric
	KindArray
	KindFD
)

// Sig is one parsed signature character, its nullability, and (for the
// expanded generic new_id) whether it is the leading "sun" triple.
type Sig struct {
	Kind     ArgKind
	Nullable bool
}

// ParseSignature turns a signature string into the ordered list of argument
// kinds it describes; the optional leading since-version digits are skipped.
func ParseSignature(s string) ([]Sig, error) {
	var out []Sig
	nullable := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			// leading since-version digits; not an argument.
			continue
		}
		switch c {
		case '?':
			nullable = true
			continue
		case 'i':
			out = append(out, Sig{Kind: KindInt})
		case 'u':
			out = append(out, Sig{Kind: KindUint})
		case 'f':
			out = append(out, Sig{Kind: KindFixed})
		case 'o':
			out = append(out, Sig{Kind: KindObject, Nullable: nullable})
		case 'a':
			out = append(out, Sig{Kind: KindArray, Nullable: nullable})
		case 'h':
			out = append(out, Sig{Kind: KindFD})
		case 's':
			// "s" starts either a plain string or, when followed by "un",
			// the generic new_id expansion.
			if i+2 < len(s) && s[i+1] == 'u' && s[i+2] == 'n' {
				out = append(out, Sig{Kind: KindNewIDGeneric, Nullable: nullable})
				i += 2
			} else {
				out = append(out, Sig{Kind: KindString, Nullable: nullable})
			}
		case 'n':
			out = append(out, Sig{Kind: KindNewIDTyped, Nullable: nullable})
		default:
			return nil, wlerr.ErrEINVAL.Errorf(c)
		}
		nullable = false
	}
	return out, nil
}

func pad4(n int) int {
	return (n + 3) &^ 3
}

// Closure is the in-memory form of one request or event: its frame header
// fields, decoded/to-encode arguments, and any fds travelling with it.
type Closure struct {
	Sender uint32
	Opcode uint16
	Size   uint32 // total frame size including the 8-byte header
	Args   []ArgValue
	FDs    []int
}

// Marshal builds a Closure and its wire bytes for sending args as opcode on
// sender, validated against sig. It fails EINVAL if a non-nullable
// string/object/array/new_id carries a null value, and E2BIG if the
// resulting frame would exceed MaxFrameSize. fds are returned separately so
// the caller can hand them to Connection.SendFDs only after a successful
// queue.
func Marshal(sender uint32, opcode uint16, sig []Sig, args []ArgValue) ([]byte, []int, error) {
	if len(args) != len(sig) {
		return nil, nil, wlerr.ErrEINVAL.Error()
	}

	payload := make([]byte, 0, 64)
	var fds []int

	for i, s := range sig {
		a := args[i]
		switch s.Kind {
		case KindInt:
			payload = appendU32(payload, uint32(a.Int))
		case KindUint:
			payload = appendU32(payload, a.Uint)
		case KindFixed:
			payload = appendU32(payload, uint32(a.Fixed))
		case KindObject:
			if a.Null {
				if !s.Nullable {
					return nil, nil, wlerr.ErrEINVAL.Error()
				}
				payload = appendU32(payload, 0)
			} else {
				payload = appendU32(payload, a.Object)
			}
		case KindNewIDTyped:
			if a.Null {
				if !s.Nullable {
					return nil, nil, wlerr.ErrEINVAL.Error()
				}
				payload = appendU32(payload, 0)
			} else {
				payload = appendU32(payload, a.NewID)
			}
		case KindNewIDGeneric:
			if a.Null && !s.Nullable {
				return nil, nil, wlerr.ErrEINVAL.Error()
			}
			payload = appendString(payload, a.Interface)
			payload = appendU32(payload, a.Version)
			payload = appendU32(payload, a.NewID)
		case KindString:
			if a.Null {
				if !s.Nullable {
					return nil, nil, wlerr.ErrEINVAL.Error()
				}
				payload = appendU32(payload, 0)
			} else {
				payload = appendString(payload, a.Str)
			}
		case KindArray:
			if a.Null {
				if !s.Nullable {
					return nil, nil, wlerr.ErrEINVAL.Error()
				}
				payload = appendU32(payload, 0)
			} else {
				payload = appendU32(payload, uint32(len(a.Array)))
				payload = append(payload, a.Array...)
				for len(payload)%4 != 0 {
					payload = append(payload, 0)
				}
			}
		case KindFD:
			fds = append(fds, a.FD)
		default:
			return nil, nil, wlerr.ErrEINVAL.Error()
		}
	}

	total := 8 + len(payload)
	if total > MaxFrameSize {
		return nil, nil, wlerr.ErrE2BIG.Error()
	}

	frame := make([]byte, 8, total)
	binary.LittleEndian.PutUint32(frame[0:4], sender)
	binary.LittleEndian.PutUint32(frame[4:8], (uint32(total)<<16)|uint32(opcode))
	frame = append(frame, payload...)

	return frame, fds, nil
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// appendString writes a NUL-terminated string with its length (including
// the trailing NUL) as a leading 32-bit field, then pads to 4 bytes.
func appendString(b []byte, s string) []byte {
	n := len(s) + 1
	b = appendU32(b, uint32(n))
	b = append(b, s...)
	b = append(b, 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// ObjectResolver resolves an object id to a liveness flag, used by
// Demarshal's lazy lookup-objects pass; it does not itself know about
// resources, only whether an id currently names a live object.
type ObjectResolver interface {
	// Lookup reports whether id currently names a live (non-zombie, non-
	// free) object.
	Lookup(id uint32) bool
}

// DemarshalResult carries the decoded closure plus a record of which
// object-typed argument indices still need lazy resolution against the
// client's object map.
type DemarshalResult struct {
	Closure     Closure
	ObjectArgs  []int // indices into Closure.Args naming a non-null object
}

// Demarshal parses payload (the frame body, without the 8-byte header)
// strictly per sig, reading fds from recvFDs in argument order. It returns
// EINVAL on an unknown signature character or truncated payload; it does
// not itself resolve object ids — call LookupObjects on the result with an
// ObjectResolver for that, per the spec's lazy-resolution design.
func Demarshal(sender uint32, opcode uint16, sig []Sig, payload []byte, recvFDs func() (int, bool)) (*DemarshalResult, error) {
	res := &DemarshalResult{Closure: Closure{Sender: sender, Opcode: opcode, Size: uint32(8 + len(payload))}}

	off := 0
	readU32 := func() (uint32, error) {
		if off+4 > len(payload) {
			return 0, wlerr.ErrEINVAL.Error()
		}
		v := binary.LittleEndian.Uint32(payload[off : off+4])
		off += 4
		return v, nil
	}
	readString := func() (string, bool, error) {
		n, err := readU32()
		if err != nil {
			return "", false, err
		}
		if n == 0 {
			return "", true, nil
		}
		end := off + int(n)
		if end > len(payload) || n == 0 {
			return "", false, wlerr.ErrEINVAL.Error()
		}
		s := string(payload[off : off+int(n)-1]) // drop trailing NUL
		off += pad4(int(n))
		return s, false, nil
	}

	for _, s := range sig {
		var a ArgValue
		a.Kind = s.Kind

		switch s.Kind {
		case KindInt:
			v, err := readU32()
			if err != nil {
				return nil, err
			}
			a.Int = int32(v)
		case KindUint:
			v, err := readU32()
			if err != nil {
				return nil, err
			}
			a.Uint = v
		case KindFixed:
			v, err := readU32()
			if err != nil {
				return nil, err
			}
			a.Fixed = int32(v)
		case KindObject:
			v, err := readU32()
			if err != nil {
				return nil, err
			}
			if v == 0 {
				if !s.Nullable {
					return nil, wlerr.ErrEINVAL.Error()
				}
				a.Null = true
			} else {
				a.Object = v
				res.ObjectArgs = append(res.ObjectArgs, len(res.Closure.Args))
			}
		case KindNewIDTyped:
			v, err := readU32()
			if err != nil {
				return nil, err
			}
			a.NewID = v
		case KindNewIDGeneric:
			iface, null, err := readString()
			if err != nil {
				return nil, err
			}
			ver, err := readU32()
			if err != nil {
				return nil, err
			}
			id, err := readU32()
			if err != nil {
				return nil, err
			}
			if null && !s.Nullable {
				return nil, wlerr.ErrEINVAL.Error()
			}
			a.Null = null
			a.Interface = iface
			a.Version = ver
			a.NewID = id
		case KindString:
			str, null, err := readString()
			if err != nil {
				return nil, err
			}
			if null && !s.Nullable {
				return nil, wlerr.ErrEINVAL.Error()
			}
			a.Str = str
			a.Null = null
		case KindArray:
			n, err := readU32()
			if err != nil {
				return nil, err
			}
			if n == 0 {
				if !s.Nullable {
					// an empty, non-nullable array is legal; only a
					// missing length field would have failed above.
				}
				a.Array = []byte{}
			} else {
				if off+int(n) > len(payload) {
					return nil, wlerr.ErrEINVAL.Error()
				}
				a.Array = append([]byte(nil), payload[off:off+int(n)]...)
				off += pad4(int(n))
			}
		case KindFD:
			fd, ok := recvFDs()
			if !ok {
				return nil, wlerr.ErrEINVAL.Error()
			}
			a.FD = fd
		default:
			return nil, wlerr.ErrEINVAL.Error()
		}

		res.Closure.Args = append(res.Closure.Args, a)
	}

	return res, nil
}

// LookupObjects runs the lazy object-resolution pass: every argument index
// recorded in ObjectArgs is checked against resolver. The first id that
// does not resolve is returned (by argument index) so the caller can report
// it as an invalid_object protocol error; ok is true when every object
// argument resolved.
func (r *DemarshalResult) LookupObjects(resolver ObjectResolver) (badIndex int, ok bool) {
	for _, idx := range r.ObjectArgs {
		if !resolver.Lookup(r.Closure.Args[idx].Object) {
			return idx, false
		}
	}
	return -1, true
}
