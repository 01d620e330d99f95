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

// Package udp is the datagram transport. A dialed Conn remembers its
// remote address so Write reduces to Sendto against it and Read to
// Recvfrom;
// a listener exposes Recvfrom/Sendto directly and has no Accept.
package udp

import (
	"golang.org/x/sys/unix"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/network/protocol"
	"github.com/sabouaram/coco/reactor"
	"github.com/sabouaram/coco/socket"
	"github.com/sabouaram/coco/transport/internal/addr"
)

// Conn is a datagram socket, optionally bound to a single remote peer.
type Conn struct {
	*socket.Socket
	remote unix.Sockaddr
}

// Listen creates, binds and registers a datagram socket. There is no
// Accept for UDP; callers use Recvfrom/Sendto directly. proto must
// name a UDP family (udp, udp4, udp6).
func Listen(r *reactor.Reactor, proto protocol.NetworkProtocol, ip string, port int) (*Conn, errs.Error) {
	if proto.IsStream() || proto.IsUnix() {
		return nil, errs.CodeSocketCreate.Error()
	}

	fd, err := unix.Socket(addr.DomainFor(proto, ip), unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, errs.CodeSocketCreate.Error(err)
	}

	sa, aerr := addr.SockaddrFor(ip, port)
	if aerr != nil {
		_ = unix.Close(fd)
		return nil, errs.CodeSystemIPInvalid.Error(aerr)
	}

	if berr := unix.Bind(fd, sa); berr != nil {
		_ = unix.Close(fd)
		return nil, errs.CodeSocketBind.Error(berr)
	}

	s, rerr := socket.New(fd, r)
	if rerr != nil {
		_ = unix.Close(fd)
		return nil, rerr
	}

	return &Conn{Socket: s}, nil
}

// Dial creates and registers a datagram socket remembering host:port
// as the remote address every Read/Write targets.
func Dial(r *reactor.Reactor, proto protocol.NetworkProtocol, host string, port int) (*Conn, errs.Error) {
	if proto.IsStream() || proto.IsUnix() {
		return nil, errs.CodeSocketCreate.Error()
	}

	fd, err := unix.Socket(addr.DomainFor(proto, host), unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, errs.CodeSocketCreate.Error(err)
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

	return &Conn{Socket: s, remote: sa}, nil
}

// Read receives the next datagram into buf. The sender is not checked
// against the remote address recorded by Dial.
func (c *Conn) Read(buf []byte) (int, errs.Error) {
	n, _, err := c.Recvfrom(buf)
	return n, err
}

// Write sends buf to the remote address recorded by Dial. Only valid
// on a Conn returned by Dial.
func (c *Conn) Write(buf []byte) errs.Error {
	return c.Sendto(buf, c.remote)
}

// Addr returns "ip:port" for the bound local address.
func (c *Conn) Addr() string {
	sa, err := unix.Getsockname(c.Fd())
	if err != nil {
		return ""
	}
	return addr.String(sa)
}
