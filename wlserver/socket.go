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
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/nabbar/wlserver/wire"
	"github.com/nabbar/wlserver/wlerr"
)

// maxSockPath is sun_path's capacity including the terminating NUL.
const maxSockPath = 108

// listener is one listening Unix-domain socket owned by a Display.
type listener struct {
	path     string
	lockPath string
	lockFD   int
	ln       *net.UnixListener
}

// AddSocket constructs a Unix-domain listening socket named name (or, if
// name is "", the first free "wayland-N" auto-name) inside runtimeDir,
// acquires its advisory lockfile, unlinks a stale socket file if safe to do
// so, binds and listens (backlog 1), and attaches to disp. It returns the
// resolved display name.
func (d *Display) AddSocket(runtimeDir, name string) (string, error) {
	if runtimeDir == "" {
		return "", wlerr.ErrENOENT.Error()
	}

	if name != "" {
		l, err := tryBindSocket(runtimeDir, name)
		if err != nil {
			return "", err
		}
		d.mu.Lock()
		d.sockets = append(d.sockets, l)
		d.mu.Unlock()
		go d.acceptLoop(l)
		return name, nil
	}

	for n := 0; n <= 32; n++ {
		candidate := fmt.Sprintf("wayland-%d", n)
		l, err := tryBindSocket(runtimeDir, candidate)
		if err != nil {
			continue
		}
		d.mu.Lock()
		d.sockets = append(d.sockets, l)
		d.mu.Unlock()
		go d.acceptLoop(l)
		return candidate, nil
	}

	return "", fmt.Errorf("wlserver: no free display name in wayland-0..wayland-32")
}

func tryBindSocket(runtimeDir, name string) (*listener, error) {
	path := filepath.Join(runtimeDir, name)
	if len(path)+1 > maxSockPath {
		return nil, wlerr.ErrENAMETOOLONG.Error()
	}
	lockPath := path + ".lock"

	lockFD, err := unix.Open(lockPath, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0660)
	if err != nil {
		return nil, err
	}
	if err = unix.Flock(lockFD, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = unix.Close(lockFD)
		return nil, err
	}

	if fi, err := os.Stat(path); err == nil {
		mode := fi.Mode().Perm()
		if mode&0220 != 0 {
			_ = os.Remove(path)
		}
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		_ = unix.Close(lockFD)
		return nil, err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		_ = unix.Close(lockFD)
		return nil, err
	}
	// net.ListenUnix uses the system default backlog; listen again with 1.
	if rc, rerr := ln.SyscallConn(); rerr == nil {
		_ = rc.Control(func(fd uintptr) { _ = unix.Listen(int(fd), 1) })
	}
	if f, ferr := ln.File(); ferr == nil {
		_, _ = unix.FcntlInt(f.Fd(), unix.F_SETFD, unix.FD_CLOEXEC)
		_ = f.Close()
	}

	return &listener{path: path, lockPath: lockPath, lockFD: lockFD, ln: ln}, nil
}

func (d *Display) acceptLoop(l *listener) {
	for {
		conn, err := l.ln.AcceptUnix()
		if err != nil {
			return
		}

		f, ferr := conn.File()
		if ferr != nil {
			_ = conn.Close()
			continue
		}
		fd := int(f.Fd())
		_, _ = unix.FcntlInt(f.Fd(), unix.F_SETFD, unix.FD_CLOEXEC)

		c := d.acceptClient(wire.NewConnection(conn), fd, f)

		d.mu.Lock()
		hook := d.onAccept
		d.mu.Unlock()
		if hook != nil {
			hook(c)
		}
	}
}

// CloseSocket unlinks both the socket path and the lock path and closes
// both fds for every listener the display holds.
func (d *Display) CloseSocket() {
	d.mu.Lock()
	sockets := d.sockets
	d.sockets = nil
	d.mu.Unlock()

	for _, l := range sockets {
		_ = l.ln.Close()
		_ = unix.Close(l.lockFD)
		_ = os.Remove(l.path)
		_ = os.Remove(l.lockPath)
	}
}
