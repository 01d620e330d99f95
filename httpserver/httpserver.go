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

// Package httpserver is the HTTP server/client connection engine: a
// ServerConn drives one accepted stream through
// parse/dispatch/drain/keep-alive cycles, and a Client drives the
// matching request side, both over the same Stream capability that
// socket.Socket and transport/tls.Conn both already satisfy.
package httpserver

import (
	"sync/atomic"
	"time"

	"github.com/sabouaram/coco/errs"
)

// recvTimeout is the per-request idle read timeout a ServerConn arms
// before its first parse.
var recvTimeout atomic.Int64

func init() {
	recvTimeout.Store(int64(60 * time.Second))
}

// SetRecvTimeout re-arms the idle read timeout applied by ServerConns
// from their next cycle on. A non-positive value leaves the current
// setting untouched.
func SetRecvTimeout(d time.Duration) {
	if d > 0 {
		recvTimeout.Store(int64(d))
	}
}

// Stream is everything a ServerConn or Client needs from the
// transport underneath it, satisfied directly by socket.Socket and by
// transport/tls.Conn.
type Stream interface {
	Read(buf []byte, n int) (int, errs.Error)
	Write(buf []byte, n int) (int, errs.Error)
	WriteLargeIovs(iov [][]byte) (int, errs.Error)
	SetRecvTimeout(d time.Duration)
	SetSendTimeout(d time.Duration)
	Close() error
}
