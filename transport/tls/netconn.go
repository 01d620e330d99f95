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

package tls

import (
	"net"
	"time"

	"github.com/sabouaram/coco/socket"
)

// netConn adapts a reactor-backed socket.Socket to net.Conn so the
// stdlib crypto/tls state machine can drive it directly. crypto/tls
// already performs the read-feed-retry handshake loop internally, so
// the only job left here is translating its reads and writes onto the
// suspension points socket.Socket already provides.
type netConn struct {
	s       *socket.Socket
	readBuf []byte
	readDL  time.Time
	writeDL time.Time
}

func newNetConn(s *socket.Socket) *netConn {
	return &netConn{s: s, readBuf: make([]byte, 16*1024)}
}

func (c *netConn) Read(b []byte) (int, error) {
	n := len(b)
	if n > len(c.readBuf) {
		n = len(c.readBuf)
	}
	nr, err := c.s.Read(c.readBuf[:n], n)
	if err != nil {
		return 0, err
	}
	copy(b, c.readBuf[:nr])
	return nr, nil
}

func (c *netConn) Write(b []byte) (int, error) {
	n, err := c.s.Write(b, len(b))
	if err != nil {
		return n, err
	}
	return n, nil
}

func (c *netConn) Close() error { return nil }

func (c *netConn) LocalAddr() net.Addr  { return nil }
func (c *netConn) RemoteAddr() net.Addr { return nil }

func (c *netConn) SetDeadline(t time.Time) error {
	_ = c.SetReadDeadline(t)
	_ = c.SetWriteDeadline(t)
	return nil
}

func (c *netConn) SetReadDeadline(t time.Time) error {
	c.readDL = t
	c.s.SetRecvTimeout(untilOrZero(t))
	return nil
}

func (c *netConn) SetWriteDeadline(t time.Time) error {
	c.writeDL = t
	c.s.SetSendTimeout(untilOrZero(t))
	return nil
}

func untilOrZero(t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	return time.Until(t)
}
