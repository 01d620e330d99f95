/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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
 *
 */

//go:build linux

// Package tcp is the stream transport: listen/accept and dial over
// the reactor-backed socket layer.
package tcp

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/network/protocol"
	"github.com/sabouaram/coco/reactor"
	"github.com/sabouaram/coco/socket"
	"github.com/sabouaram/coco/transport/internal/addr"
)

const defaultBacklog = 512

var listenBacklog atomic.Int64

func init() {
	listenBacklog.Store(defaultBacklog)
}

// SetListenBacklog re-arms the backlog applied by subsequent Listen
// calls. A non-positive value leaves the current setting untouched.
func SetListenBacklog(n int) {
	if n > 0 {
		listenBacklog.Store(int64(n))
	}
}

// Conn is a connected TCP socket.
type Conn struct {
	*socket.Socket
}

// RemoteAddr returns "ip:port" for the connected peer, or "" on
// failure, using the OS peer-name syscall.
func (c *Conn) RemoteAddr() string {
	sa, err := unix.Getpeername(c.Fd())
	if err != nil {
		return ""
	}
	return addr.String(sa)
}

// Listener owns a listening Conn and hands out accepted Conns.
type Listener struct {
	conn *Conn
	r    *reactor.Reactor
}

// Listen resolves ip:port (numeric host), creates a stream socket,
// sets SO_REUSEADDR, binds, listens, and registers the descriptor with
// the reactor. proto must name a TCP family (tcp, tcp4, tcp6).
func Listen(r *reactor.Reactor, proto protocol.NetworkProtocol, ip string, port int) (*Listener, errs.Error) {
	if !proto.IsStream() || proto.IsUnix() {
		return nil, errs.CodeSocketCreate.Error()
	}

	fd, err := unix.Socket(addr.DomainFor(proto, ip), unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errs.CodeSocketCreate.Error(err)
	}

	if serr := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); serr != nil {
		_ = unix.Close(fd)
		return nil, errs.CodeSocketCreate.Error(serr)
	}

	sa, serr := addr.SockaddrFor(ip, port)
	if serr != nil {
		_ = unix.Close(fd)
		return nil, errs.CodeSystemIPInvalid.Error(serr)
	}

	if berr := unix.Bind(fd, sa); berr != nil {
		_ = unix.Close(fd)
		return nil, errs.CodeSocketBind.Error(berr)
	}

	if lerr := unix.Listen(fd, int(listenBacklog.Load())); lerr != nil {
		_ = unix.Close(fd)
		return nil, errs.CodeSocketListen.Error(lerr)
	}

	s, rerr := socket.New(fd, r)
	if rerr != nil {
		_ = unix.Close(fd)
		return nil, rerr
	}

	return &Listener{conn: &Conn{Socket: s}, r: r}, nil
}

// Accept blocks on a readiness-backed accept and returns a new Conn
// for the peer.
func (l *Listener) Accept(deadline time.Time) (*Conn, errs.Error) {
	for {
		nfd, _, err := unix.Accept(l.conn.Fd())
		if err == nil {
			s, rerr := socket.New(nfd, l.r)
			if rerr != nil {
				_ = unix.Close(nfd)
				return nil, rerr
			}
			return &Conn{Socket: s}, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := l.r.WaitReadable(l.conn.Fd(), deadline); werr != nil {
				return nil, werr
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return nil, errs.CodeSocketConnect.Error(err)
	}
}

func (l *Listener) Close() error { return l.conn.Close() }

// Addr returns "ip:port" for the listening socket, which is how a
// caller that bound to port 0 discovers the port the OS assigned.
func (l *Listener) Addr() string {
	sa, err := unix.Getsockname(l.conn.Fd())
	if err != nil {
		return ""
	}
	return addr.String(sa)
}

// Dial resolves host:port, creates a socket, registers it with the
// reactor, and performs a reactor-suspending connect. On failure the
// descriptor is closed and a nil Conn is returned alongside the error.
func Dial(r *reactor.Reactor, proto protocol.NetworkProtocol, host string, port int, timeout time.Duration) (*Conn, errs.Error) {
	if !proto.IsStream() || proto.IsUnix() {
		return nil, errs.CodeSocketCreate.Error()
	}

	fd, err := unix.Socket(addr.DomainFor(proto, host), unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errs.CodeSocketCreate.Error(err)
	}

	if serr := unix.SetNonblock(fd, true); serr != nil {
		_ = unix.Close(fd)
		return nil, errs.CodeSocketCreate.Error(serr)
	}

	sa, aerr := addr.SockaddrFor(host, port)
	if aerr != nil {
		_ = unix.Close(fd)
		return nil, errs.CodeSystemIPInvalid.Error(aerr)
	}

	s, rerr := socket.New(fd, r)
	if rerr != nil {
		_ = unix.Close(fd)
		return nil, rerr
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	cerr := unix.Connect(fd, sa)
	if cerr != nil && cerr != unix.EINPROGRESS {
		_ = s.Close()
		return nil, errs.CodeSocketConnect.Error(cerr)
	}
	if cerr == unix.EINPROGRESS {
		if werr := r.WaitWritable(fd, deadline); werr != nil {
			_ = s.Close()
			return nil, werr
		}
		if soerr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); gerr == nil && soerr != 0 {
			_ = s.Close()
			return nil, errs.CodeSocketConnect.Error(unix.Errno(soerr))
		}
	}

	return &Conn{Socket: s}, nil
}
