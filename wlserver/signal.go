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

// Package wlserver implements the display server core: the dispatcher, the
// display/registry, socket management, and the client/resource state
// machines built on top of wire, wire/codec, objmap, and scanner/model.
package wlserver

import "sync"

// Signal is a minimal destroy-listener list, fired exactly once. It backs
// both client and resource destroy signals.
type Signal struct {
	mu      sync.Mutex
	fired   bool
	listen  []func()
}

// AddListener registers f to run when the signal fires. If the signal has
// already fired, f runs immediately.
func (s *Signal) AddListener(f func()) {
	s.mu.Lock()
	if s.fired {
		s.mu.Unlock()
		f()
		return
	}
	s.listen = append(s.listen, f)
	s.mu.Unlock()
}

// Emit fires the signal, running every registered listener in registration
// order. A second call is a no-op, matching the "destroy signal fires
// exactly once" invariant.
func (s *Signal) Emit() {
	s.mu.Lock()
	if s.fired {
		s.mu.Unlock()
		return
	}
	s.fired = true
	listeners := s.listen
	s.listen = nil
	s.mu.Unlock()

	for _, f := range listeners {
		f()
	}
}
