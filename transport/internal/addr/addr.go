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

// Package addr turns a numeric host and port into a raw unix.Sockaddr,
// and back, shared by the tcp and udp transports. Resolution is
// numeric-only; DNS is deliberately out of scope for the transports.
package addr

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/coco/network/protocol"
)

// DomainFor returns the socket family for proto, falling back to the
// host literal when the protocol leaves the family unspecified
// (tcp/udp as opposed to tcp4/tcp6/udp4/udp6).
func DomainFor(proto protocol.NetworkProtocol, host string) int {
	switch proto {
	case protocol.NetworkTCP4, protocol.NetworkUDP4, protocol.NetworkIP4:
		return unix.AF_INET
	case protocol.NetworkTCP6, protocol.NetworkUDP6, protocol.NetworkIP6:
		return unix.AF_INET6
	}

	ip := net.ParseIP(host)
	if ip != nil && ip.To4() == nil {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

// SockaddrFor builds a unix.Sockaddr for host:port. An empty host binds
// to the wildcard address.
func SockaddrFor(host string, port int) (unix.Sockaddr, error) {
	if host == "" {
		return &unix.SockaddrInet4{Port: port}, nil
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, &net.AddrError{Err: "invalid numeric host", Addr: host}
	}

	if v4 := ip.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], v4)
		return sa, nil
	}

	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa, nil
}

// String renders a unix.Sockaddr as "ip:port", or "" if the type is
// not one SockaddrFor ever produces.
func String(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	}
	return ""
}
