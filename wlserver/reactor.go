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

package wlserver

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ReactorCallbacks are the fd-readiness handlers a Reactor invokes; they
// mirror exactly the external collaborator interface the dispatcher core
// expects (spec.md explicitly disclaims owning a reactor implementation —
// this is the minimal level-triggered poller needed to drive the shipped
// example binary and tests).
type ReactorCallbacks struct {
	Readable func()
	Writable func()
	Error    func()
	Hangup   func()
}

type watch struct {
	fd int
	cb ReactorCallbacks
}

// Reactor is a minimal level-triggered fd poller built on
// golang.org/x/sys/unix.Poll.
type Reactor struct {
	mu      sync.Mutex
	watches map[int]*watch
	stop    chan struct{}
}

// NewReactor constructs an empty Reactor.
func NewReactor() *Reactor {
	return &Reactor{watches: make(map[int]*watch), stop: make(chan struct{})}
}

// Watch registers fd for readiness notification via cb. Calling Watch again
// for the same fd replaces its callbacks.
func (r *Reactor) Watch(fd int, cb ReactorCallbacks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watches[fd] = &watch{fd: fd, cb: cb}
}

// Unwatch removes fd from the reactor.
func (r *Reactor) Unwatch(fd int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watches, fd)
}

// Stop causes Run to return after its current poll iteration.
func (r *Reactor) Stop() {
	close(r.stop)
}

// Run polls registered fds until Stop is called. A single iteration: build
// a pollfd set, block in unix.Poll (or, while nothing is yet registered,
// sleep for timeoutMs so new watches - e.g. from an accept-loop goroutine
// racing this one - get picked up promptly), then dispatch
// readable/writable/error/hangup callbacks for whichever fds became ready.
func (r *Reactor) Run(timeoutMs int) error {
	for {
		select {
		case <-r.stop:
			return nil
		default:
		}

		r.mu.Lock()
		fds := make([]unix.PollFd, 0, len(r.watches))
		order := make([]int, 0, len(r.watches))
		for fd := range r.watches {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN | unix.POLLOUT})
			order = append(order, fd)
		}
		r.mu.Unlock()

		if len(fds) == 0 {
			select {
			case <-r.stop:
				return nil
			case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
			}
			continue
		}

		n, err := unix.Poll(fds, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		for i, pfd := range fds {
			if pfd.Revents == 0 {
				continue
			}
			r.mu.Lock()
			w := r.watches[order[i]]
			r.mu.Unlock()
			if w == nil {
				continue
			}

			switch {
			case pfd.Revents&(unix.POLLERR) != 0 && w.cb.Error != nil:
				w.cb.Error()
			case pfd.Revents&(unix.POLLHUP|unix.POLLNVAL) != 0 && w.cb.Hangup != nil:
				w.cb.Hangup()
			default:
				if pfd.Revents&unix.POLLIN != 0 && w.cb.Readable != nil {
					w.cb.Readable()
				}
				if pfd.Revents&unix.POLLOUT != 0 && w.cb.Writable != nil {
					w.cb.Writable()
				}
			}
		}
	}
}
