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

package coco

import (
	"context"

	"github.com/sabouaram/coco/config"
	"github.com/sabouaram/coco/connmgr"
	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
	"github.com/sabouaram/coco/httpserver"
	"github.com/sabouaram/coco/logger"
	"github.com/sabouaram/coco/reactor"
	"github.com/sabouaram/coco/socket"
	"github.com/sabouaram/coco/transport/tcp"
	"github.com/sabouaram/coco/websocket"
)

// Runtime bundles the process-wide pieces a caller needs before
// starting any listener or client routine: the reactor driving every
// registered socket, a connection manager tracking live/zombie
// routines, the logger facade every subpackage logs through, and the
// config manager holding the runtime knobs.
type Runtime struct {
	React  *reactor.Reactor
	Mgr    *connmgr.Manager
	Log    logger.Logger
	Config *config.Manager

	cancel context.CancelFunc
	done   chan error
}

// Init is the process-wide entry point: it probes the OS for a
// reactor backend, builds an unbounded connection manager, and starts
// the reactor's event loop on its own goroutine. Callers needing to
// bound concurrently-live connections should replace Runtime.Mgr with
// connmgr.NewWithLimit before starting any listener.
func Init(ctx context.Context, log logger.Logger) (*Runtime, errs.Error) {
	if log == nil {
		log = logger.NilLogger()
	}

	r, err := reactor.Init(log)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)

	cfg := config.NewManager()
	applyKnobs(cfg.Current())
	cfg.OnReload(applyKnobs)

	rt := &Runtime{
		React:  r,
		Mgr:    connmgr.New(),
		Log:    log,
		Config: cfg,
		cancel: cancel,
		done:   make(chan error, 1),
	}

	go func() {
		rt.done <- r.Run()
	}()

	go func() {
		<-runCtx.Done()
		_ = r.Close()
	}()

	return rt, nil
}

// applyKnobs pushes a freshly loaded Runtime config into every package
// that consumes one of its knobs. Registered as the config manager's
// reload hook, so editing a watched config file re-arms the timeouts,
// caps and limits without a restart.
func applyKnobs(rc config.Runtime) {
	socket.SetDefaultTimeouts(rc.RecvTimeout, rc.SendTimeout)
	socket.SetWritevLimit(rc.WritevChunkLimit)
	fastbuf.SetSizes(rc.FastBufSoftSize, rc.FastBufHardCap)
	tcp.SetListenBacklog(rc.ListenBacklog)
	websocket.SetMaxPacket(rc.MaxWSPacket)
	httpserver.SetRecvTimeout(rc.HTTPRecvTimeout)
	httpserver.SetClientTimeout(rc.HTTPClientTimeout)
}

// Close stops the reactor's event loop and waits for it to return,
// aggregating the reactor's own shutdown error with whatever is left
// in the ConnManager's zombie list at the time of the call.
func (rt *Runtime) Close() error {
	rt.cancel()
	runErr := <-rt.done
	destroyErr := rt.Mgr.Destroy()
	return errs.Aggregate(runErr, destroyErr)
}
