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

package httpserver

import (
	"context"
	"time"

	"github.com/sabouaram/coco/certificates"
	"github.com/sabouaram/coco/connmgr"
	"github.com/sabouaram/coco/corort"
	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
	"github.com/sabouaram/coco/httpmsg"
	"github.com/sabouaram/coco/httpmux"
	"github.com/sabouaram/coco/httpwriter"
	"github.com/sabouaram/coco/logger"
	"github.com/sabouaram/coco/metrics"
	"github.com/sabouaram/coco/reactor"
	"github.com/sabouaram/coco/transport/tcp"
	"github.com/sabouaram/coco/transport/tls"
)

// ServerConn drives one accepted stream through the
// parse/dispatch/drain/keep-alive cycle.
type ServerConn struct {
	stream Stream
	mux    *httpmux.Mux
	buf    *fastbuf.Buffer
	log    logger.Logger
}

// NewServerConn wraps an already-accepted (and, if applicable,
// TLS-handshaken) stream for one connection's worth of requests.
func NewServerConn(stream Stream, mux *httpmux.Mux, log logger.Logger) *ServerConn {
	if log == nil {
		log = logger.NilLogger()
	}
	return &ServerConn{stream: stream, mux: mux, buf: fastbuf.New(), log: log}
}

// DoCycle serves requests until the connection stops being
// keep-alive. The TLS handshake itself already ran (if any) before
// this ServerConn was constructed, so this only sets the idle timeout
// and loops parse/serve/drain.
func (sc *ServerConn) DoCycle(ctx context.Context) errs.Error {
	sc.stream.SetRecvTimeout(time.Duration(recvTimeout.Load()))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := httpmsg.Parse(sc.stream, sc.buf, true)
		if err != nil {
			sc.log.Warn("connection lost while reading request", logger.Fields{"error": err})
			return err
		}

		rw := httpwriter.New(sc.stream)
		if merr := sc.mux.ServeHTTP(rw, msg); merr != nil {
			return merr
		}
		if ferr := rw.FinalRequest(); ferr != nil {
			return ferr
		}
		metrics.HTTPRequest(msg.Method(), rw.Status())

		if !msg.Body.IsEOF() {
			if _, derr := httpmsg.ReadAll(msg.Body); derr != nil {
				return derr
			}
		}

		if !msg.KeepAlive {
			return nil
		}
	}
}

// Server is a ListenRoutine that accepts connections, wraps them in
// TLS when Cfg is set, and starts a ConnRoutine running a ServerConn's
// DoCycle for each.
type Server struct {
	Mgr    *connmgr.Manager
	Mux    *httpmux.Mux
	Cfg    *certificates.Config // nil: plaintext
	React  *reactor.Reactor
	Log    logger.Logger
	ln     *tcp.Listener
	listen *connmgr.ListenRoutine
}

// NewServer wires a listener already bound by tcp.Listen into a
// ListenRoutine the manager can drive.
func NewServer(r *reactor.Reactor, ln *tcp.Listener, mux *httpmux.Mux, cfg *certificates.Config, mgr *connmgr.Manager, log logger.Logger) *Server {
	if log == nil {
		log = logger.NilLogger()
	}
	s := &Server{Mgr: mgr, Mux: mux, Cfg: cfg, React: r, Log: log, ln: ln}
	s.listen = connmgr.NewListenRoutine(mgr, s.acceptOne, func() bool { return false })
	return s
}

// Routine exposes the underlying ListenRoutine so a caller can wrap it
// in a corort.Coroutine and Start it.
func (s *Server) Routine() *connmgr.ListenRoutine { return s.listen }

// Addr returns the bound listener's "ip:port".
func (s *Server) Addr() string { return s.ln.Addr() }

// Close closes the listening socket.
func (s *Server) Close() error { return s.ln.Close() }

// acceptOne is the per-iteration body of the listen routine: accept
// one connection, perform the TLS handshake if configured, then start
// a ConnRoutine for it. A per-connection handshake failure is logged
// and does not bring the listener down.
func (s *Server) acceptOne(ctx context.Context) errs.Error {
	if aerr := s.Mgr.Acquire(ctx); aerr != nil {
		return errs.CodeSocketClosed.Error(aerr)
	}

	conn, err := s.ln.Accept(time.Time{})
	if err != nil {
		// A closed listener (reactor shutdown or Server.Close) ends the
		// loop; anything else is a transient accept failure.
		if ctx.Err() != nil || err.Is(errs.CodeSocketRead) {
			return err
		}
		s.Log.Warn("accept failed", logger.Fields{"error": err})
		return nil
	}

	var stream Stream = conn
	if s.Cfg != nil {
		tconn, terr := tls.Server(conn.Socket, s.Cfg)
		if terr != nil {
			_ = conn.Close()
			s.Log.Warn("tls handshake failed", logger.Fields{"error": terr})
			return nil
		}
		stream = tconn
	}

	sc := NewServerConn(stream, s.Mux, s.Log)
	routine := connmgr.NewConnRoutine(s.Mgr, sc.DoCycle, stream.Close)
	s.Mgr.Push(routine)

	co := corort.New("http-conn", corort.HandlerFunc(routine.Cycle), s.React, s.Log)
	return co.Start(ctx)
}
