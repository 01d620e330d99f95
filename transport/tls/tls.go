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

// Package tls is the TLS stream transport. A Conn takes sole
// ownership of the underlying reactor-backed socket.Socket: the
// socket's descriptor is only closed once, by Conn.Close, and the
// caller must not use the socket directly afterwards.
package tls

import (
	stdtls "crypto/tls"
	"time"

	"github.com/sabouaram/coco/certificates"
	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/socket"
)

// Conn is a TLS stream layered over a reactor-backed socket.
type Conn struct {
	nc *netConn
	tc *stdtls.Conn
}

// Server performs the server-side handshake. It loads no certificates
// itself; the caller configures cfg beforehand via
// AddCertificatePairFile/AddCertificatePairString. The handshake is
// driven synchronously; every read/write against nc suspends at the
// reactor the same way a plain socket.Socket call would, so the
// reactor thread itself is never blocked on crypto progress.
func Server(s *socket.Socket, cfg *certificates.Config) (*Conn, errs.Error) {
	nc := newNetConn(s)
	tc := stdtls.Server(nc, cfg.TLSConfig())

	if e := tc.Handshake(); e != nil {
		return nil, errs.CodeHTTPSHandshake.Error(e)
	}

	return &Conn{nc: nc, tc: tc}, nil
}

// Client performs the client-side handshake, symmetric with Server:
// it drives Handshake to completion itself rather than leaving it to
// the first Read, so a returned Conn is always ready for traffic.
func Client(s *socket.Socket, serverName string, insecureSkipVerify bool) (*Conn, errs.Error) {
	nc := newNetConn(s)
	tc := stdtls.Client(nc, &stdtls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: insecureSkipVerify,
		MinVersion:         stdtls.VersionTLS12,
	})

	if e := tc.Handshake(); e != nil {
		return nil, errs.CodeHTTPSHandshake.Error(e)
	}

	return &Conn{nc: nc, tc: tc}, nil
}

// Read reads 1..n plaintext bytes into buf, mirroring the single-read
// contract of socket.Socket.Read so a shared fast buffer can Grow from
// either transport interchangeably.
func (c *Conn) Read(buf []byte, n int) (int, errs.Error) {
	nr, err := c.tc.Read(buf[:n])
	if nr > 0 {
		return nr, nil
	}
	if err != nil {
		if ce, ok := err.(errs.Error); ok {
			return 0, ce
		}
		return 0, errs.CodeHTTPSRead.Error(err)
	}
	return 0, errs.CodeHTTPSRead.Error()
}

// Write emits n plaintext bytes from buf as one or more TLS records.
func (c *Conn) Write(buf []byte, n int) (int, errs.Error) {
	nw, err := c.tc.Write(buf[:n])
	if err != nil {
		return nw, errs.CodeHTTPSWrite.Error(err)
	}
	return nw, nil
}

// WriteLargeIovs is Writev without a platform iovec ceiling to respect:
// each iovec already becomes its own TLS record here, so the two names
// coincide for this transport.
func (c *Conn) WriteLargeIovs(iov [][]byte) (int, errs.Error) {
	return c.Writev(iov)
}

// Writev is Write applied per iovec.
func (c *Conn) Writev(iov [][]byte) (int, errs.Error) {
	total := 0
	for _, b := range iov {
		if len(b) == 0 {
			continue
		}
		n, err := c.Write(b, len(b))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// SetRecvTimeout applies to every underlying socket read a TLS record
// read performs, mirroring socket.Socket's per-call deadline model.
func (c *Conn) SetRecvTimeout(d time.Duration) { c.nc.s.SetRecvTimeout(d) }

// SetSendTimeout is the write-side equivalent of SetRecvTimeout.
func (c *Conn) SetSendTimeout(d time.Duration) { c.nc.s.SetSendTimeout(d) }

// Close closes the TLS session and the underlying socket. The
// underlying net.Conn adapter no-ops its own Close so the descriptor
// is only released here, once.
func (c *Conn) Close() error {
	_ = c.tc.Close()
	return c.nc.s.Close()
}
