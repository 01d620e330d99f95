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

// Package socket is the synchronous-looking blocking socket API:
// every operation here suspends the calling goroutine on the reactor
// instead of the OS, but reads like ordinary blocking I/O to its
// caller.
package socket

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/metrics"
	"github.com/sabouaram/coco/reactor"
)

// noTimeout is the sentinel "never" value for recv/send timeouts.
const noTimeout = 0

var (
	defaultRecvTimeout atomic.Int64 // nanoseconds; 0 = never
	defaultSendTimeout atomic.Int64
)

// SetDefaultTimeouts re-arms the recv/send timeouts new Sockets start
// with. Zero means "never"; a negative value leaves the current
// setting untouched.
func SetDefaultTimeouts(recv, send time.Duration) {
	if recv >= 0 {
		defaultRecvTimeout.Store(int64(recv))
	}
	if send >= 0 {
		defaultSendTimeout.Store(int64(send))
	}
}

// Socket wraps a reactor-registered file descriptor with per-socket
// recv/send timeouts and cumulative byte counters. Never share a
// Socket between coroutines except via a strictly serialised protocol
// engine above it.
type Socket struct {
	fd   int
	desc *reactor.Descriptor
	r    *reactor.Reactor

	recvTimeout time.Duration
	sendTimeout time.Duration
	recvBytes   int64
	sendBytes   int64
}

// New wraps fd, already an open, connected (or about-to-be) OS
// descriptor, and registers it with r.
func New(fd int, r *reactor.Reactor) (*Socket, errs.Error) {
	d, err := r.Register(fd)
	if err != nil {
		return nil, err
	}
	return &Socket{
		fd:          fd,
		desc:        d,
		r:           r,
		recvTimeout: time.Duration(defaultRecvTimeout.Load()),
		sendTimeout: time.Duration(defaultSendTimeout.Load()),
	}, nil
}

func (s *Socket) Fd() int { return s.fd }

// SetRecvTimeout sets the read-side timeout; it applies starting at
// the socket's next suspension point.
func (s *Socket) SetRecvTimeout(d time.Duration) { s.recvTimeout = d }

// SetSendTimeout sets the write-side timeout; it applies starting at
// the socket's next suspension point.
func (s *Socket) SetSendTimeout(d time.Duration) { s.sendTimeout = d }

func (s *Socket) RecvBytes() int64 { return s.recvBytes }
func (s *Socket) SendBytes() int64 { return s.sendBytes }

func (s *Socket) recvDeadline() time.Time {
	if s.recvTimeout == noTimeout {
		return time.Time{}
	}
	return time.Now().Add(s.recvTimeout)
}

func (s *Socket) sendDeadline() time.Time {
	if s.sendTimeout == noTimeout {
		return time.Time{}
	}
	return time.Now().Add(s.sendTimeout)
}

// Close deregisters the socket from the reactor and closes the fd.
func (s *Socket) Close() error {
	_ = s.desc.Close()
	return unix.Close(s.fd)
}

// Read reads 1..n bytes into buf. A peer close is reported as
// socket_read; a deadline miss as socket_timeout. On success recvBytes
// is incremented by the number of bytes read.
func (s *Socket) Read(buf []byte, n int) (int, errs.Error) {
	for {
		nr, err := unix.Read(s.fd, buf[:n])
		if err == nil {
			if nr == 0 {
				return 0, errs.CodeSocketRead.Error()
			}
			s.recvBytes += int64(nr)
			metrics.SocketRead(nr)
			return nr, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := s.r.WaitReadable(s.fd, s.recvDeadline()); werr != nil {
				return 0, werr
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return 0, errs.CodeSocketRead.Error(err)
	}
}

// ReadFully returns only once exactly n bytes have been read; a short
// read (peer closed mid-way) is reported as socket_read_fully.
func (s *Socket) ReadFully(buf []byte, n int) (int, errs.Error) {
	total := 0
	for total < n {
		nr, err := s.Read(buf[total:n], n-total)
		if err != nil {
			if total > 0 {
				return total, errs.CodeSocketReadFully.Error(err)
			}
			return total, err
		}
		total += nr
	}
	return total, nil
}

// Write writes all n bytes from buf, retrying short writes internally.
func (s *Socket) Write(buf []byte, n int) (int, errs.Error) {
	total := 0
	for total < n {
		nw, err := unix.Write(s.fd, buf[total:n])
		if err == nil {
			total += nw
			s.sendBytes += int64(nw)
			metrics.SocketWritten(nw)
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := s.r.WaitWritable(s.fd, s.sendDeadline()); werr != nil {
				return total, werr
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return total, errs.CodeSocketWrite.Error(err)
	}
	return total, nil
}

// Writev writes iov in full, as Write but over an iovec array.
func (s *Socket) Writev(iov [][]byte) (int, errs.Error) {
	total := 0
	remaining := iov
	for len(remaining) > 0 {
		nw, err := unix.Writev(s.fd, remaining)
		if err == nil {
			total += nw
			s.sendBytes += int64(nw)
			metrics.SocketWritten(nw)
			remaining = dropWritten(remaining, nw)
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := s.r.WaitWritable(s.fd, s.sendDeadline()); werr != nil {
				return total, werr
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return total, errs.CodeSocketWrite.Error(err)
	}
	return total, nil
}

func dropWritten(iov [][]byte, n int) [][]byte {
	for len(iov) > 0 {
		if n < len(iov[0]) {
			iov[0] = iov[0][n:]
			return iov
		}
		n -= len(iov[0])
		iov = iov[1:]
	}
	return iov
}

// writevLimit is the ceiling on a single vectored write, historically
// 1024 iovecs on Linux.
var writevLimit atomic.Int64

func init() {
	writevLimit.Store(1024)
}

// SetWritevLimit re-arms the per-call iovec ceiling. A non-positive
// value leaves the current setting untouched.
func SetWritevLimit(n int) {
	if n > 0 {
		writevLimit.Store(int64(n))
	}
}

// WriteLargeIovs writes an iovec array of any fan-out: below the
// platform ceiling it delegates straight to Writev; above it, it loops
// in ceiling-sized chunks.
func (s *Socket) WriteLargeIovs(iov [][]byte) (int, errs.Error) {
	limit := int(writevLimit.Load())
	if len(iov) < limit {
		return s.Writev(iov)
	}

	total := 0
	for i := 0; i < len(iov); i += limit {
		end := i + limit
		if end > len(iov) {
			end = len(iov)
		}
		n, err := s.Writev(iov[i:end])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Recvfrom reads a datagram and the sender's address.
func (s *Socket) Recvfrom(buf []byte) (int, unix.Sockaddr, errs.Error) {
	for {
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if err == nil {
			s.recvBytes += int64(n)
			return n, from, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := s.r.WaitReadable(s.fd, s.recvDeadline()); werr != nil {
				return 0, nil, werr
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return 0, nil, errs.CodeSocketRead.Error(err)
	}
}

// Sendto writes a datagram to the given address.
func (s *Socket) Sendto(buf []byte, to unix.Sockaddr) errs.Error {
	for {
		err := unix.Sendto(s.fd, buf, 0, to)
		if err == nil {
			s.sendBytes += int64(len(buf))
			return nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := s.r.WaitWritable(s.fd, s.sendDeadline()); werr != nil {
				return werr
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return errs.CodeSocketWrite.Error(err)
	}
}

// Recvmsg reads a datagram plus ancillary control data.
func (s *Socket) Recvmsg(buf, oob []byte) (n, oobn int, recvflags int, from unix.Sockaddr, rerr errs.Error) {
	for {
		nr, noob, flags, sa, err := unix.Recvmsg(s.fd, buf, oob, 0)
		if err == nil {
			s.recvBytes += int64(nr)
			return nr, noob, flags, sa, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := s.r.WaitReadable(s.fd, s.recvDeadline()); werr != nil {
				return 0, 0, 0, nil, werr
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return 0, 0, 0, nil, errs.CodeSocketRead.Error(err)
	}
}

// Sendmsg writes a datagram plus ancillary control data.
func (s *Socket) Sendmsg(buf, oob []byte, to unix.Sockaddr) errs.Error {
	for {
		err := unix.Sendmsg(s.fd, buf, oob, to, 0)
		if err == nil {
			s.sendBytes += int64(len(buf))
			return nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := s.r.WaitWritable(s.fd, s.sendDeadline()); werr != nil {
				return werr
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return errs.CodeSocketWrite.Error(err)
	}
}
