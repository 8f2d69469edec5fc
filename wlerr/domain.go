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

package wlerr

// Two code ranges are registered here: a local-failure range returned to the
// embedding Go caller (mirrors errno values the C implementation returned),
// and a protocol range mirroring wl_display error codes posted to clients
// through a display::error event. The two ranges never overlap so a single
// CodeError value unambiguously belongs to one domain.
const (
	// ErrEINVAL marks a malformed argument: a non-nullable argument carrying
	// a null value, a signature mismatch, or an out-of-range object id.
	ErrEINVAL CodeError = iota + 1000
	// ErrE2BIG marks a message or frame that exceeds the maximum frame size.
	ErrE2BIG
	// ErrENOMEM marks an allocation failure in the object map or wire buffers.
	ErrENOMEM
	// ErrENOENT marks a lookup miss: unknown object id, unknown interface.
	ErrENOENT
	// ErrENAMETOOLONG marks a socket path exceeding sun_path capacity.
	ErrENAMETOOLONG
)

const (
	// ErrInvalidObject is posted to a client that referenced an object id
	// that does not exist or has been destroyed.
	ErrInvalidObject CodeError = iota + 2000
	// ErrInvalidMethod is posted to a client that invoked an opcode with no
	// matching message, or below the method's since-version.
	ErrInvalidMethod
	// ErrNoMemory is posted to a client when the server cannot allocate the
	// resources required to service a request.
	ErrNoMemory
)

func localMessage(code CodeError) string {
	switch code {
	case ErrEINVAL:
		return "invalid argument"
	case ErrE2BIG:
		return "frame too large"
	case ErrENOMEM:
		return "out of memory"
	case ErrENOENT:
		return "object or interface not found"
	case ErrENAMETOOLONG:
		return "socket path too long"
	default:
		return NullMessage
	}
}

func protocolMessage(code CodeError) string {
	switch code {
	case ErrInvalidObject:
		return "invalid object"
	case ErrInvalidMethod:
		return "invalid method"
	case ErrNoMemory:
		return "no memory"
	default:
		return NullMessage
	}
}

func init() {
	RegisterIdFctMessage(ErrEINVAL, localMessage)
	RegisterIdFctMessage(ErrInvalidObject, protocolMessage)
}

// IsProtocolError reports whether code belongs to the protocol range that
// must be posted to the client via a display::error event rather than
// returned as a local Go error to the embedding application.
func IsProtocolError(code CodeError) bool {
	return code >= ErrInvalidObject && code <= ErrNoMemory
}

// IsLocalError reports whether code belongs to the local-failure range
// returned to the embedding Go caller.
func IsLocalError(code CodeError) bool {
	return code >= ErrEINVAL && code <= ErrENAMETOOLONG
}
