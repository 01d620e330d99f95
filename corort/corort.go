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

// Package corort is the coroutine runtime: it gives a goroutine a
// start/interrupt/stop/join lifecycle. Interrupt cancels the Cycle's
// context and wakes the reactor's event loop; it does not release a
// wait already suspended inside the reactor.
package corort

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/logger"
	"github.com/sabouaram/coco/metrics"
	"github.com/sabouaram/coco/reactor"
)

// nextContextID hands out 32-bit context ids starting at 100, strictly
// increasing and never reused within a process lifetime.
var nextContextID uint32 = 99

func allocContextID() uint32 {
	return atomic.AddUint32(&nextContextID, 1)
}

// Handler is the coroutine body a Coroutine drives. Cycle runs until it
// returns, polling ShouldTermCycle between I/O operations for
// long-running inner loops.
type Handler interface {
	Cycle(ctx context.Context) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context) error

func (f HandlerFunc) Cycle(ctx context.Context) error { return f(ctx) }

// Coroutine is a named, joinable task scheduled cooperatively on top of
// the reactor. Exactly one goroutine backs each Coroutine's Cycle call.
type Coroutine struct {
	name    string
	handler Handler
	react   *reactor.Reactor
	log     logger.Logger

	mu         sync.Mutex
	started    bool
	disposed   bool
	interrupt  bool
	cycleDone  bool
	contextID  uint32
	lastErr    errs.Error
	cancel     context.CancelFunc
	joinCh     chan struct{}
}

// New constructs a Coroutine with the given name and handler, driven by
// the supplied reactor for interrupt delivery.
func New(name string, h Handler, r *reactor.Reactor, log logger.Logger) *Coroutine {
	if log == nil {
		log = logger.NilLogger()
	}
	return &Coroutine{name: name, handler: h, react: r, log: log}
}

func (c *Coroutine) Name() string { return c.name }

// ContextID returns the 32-bit id this coroutine allocated for itself
// while its Cycle is running, or 0 if it is not currently running.
func (c *Coroutine) ContextID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contextID
}

// Start launches Cycle on a new goroutine. It fails CodeAlreadyRunning
// if previously started and CodeDisposed if already finalised.
func (c *Coroutine) Start(parent context.Context) errs.Error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return errs.CodeDisposed.Error()
	}
	if c.started {
		c.mu.Unlock()
		return errs.CodeAlreadyRunning.Error()
	}

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.joinCh = make(chan struct{})
	c.started = true
	c.mu.Unlock()

	metrics.CoroutineStarted()
	go c.run(ctx)

	return nil
}

func (c *Coroutine) run(ctx context.Context) {
	id := allocContextID()

	c.mu.Lock()
	c.contextID = id
	c.mu.Unlock()

	err := c.handler.Cycle(ctx)

	c.mu.Lock()
	c.contextID = 0
	c.cycleDone = true
	if err != nil {
		if ce, ok := err.(errs.Error); ok {
			c.lastErr = ce
		} else {
			c.lastErr = errs.CodeThreadTerminated.Error(err)
		}
	}
	close(c.joinCh)
	c.mu.Unlock()

	metrics.CoroutineStopped(err != nil)
}

// Interrupt marks the coroutine interrupted, cancels the context its
// Cycle received and wakes the reactor's event loop. A Cycle blocked on
// that context returns; a Cycle suspended in a reactor wait
// (WaitReadable, WaitWritable, Sleep) is not released and stays there
// until the wait completes, times out, or its descriptor or the reactor
// is closed. Idempotent; must not be called after the cycle has already
// completed.
func (c *Coroutine) Interrupt() errs.Error {
	c.mu.Lock()
	already := c.interrupt
	done := c.cycleDone
	cancel := c.cancel
	c.interrupt = true
	c.mu.Unlock()

	if done || already {
		return nil
	}

	if cancel != nil {
		cancel()
	}
	if c.react != nil {
		c.react.Wake()
	}
	return nil
}

// Stop disposes the coroutine: sets disposed, interrupts it, joins the
// backing goroutine, and records thread_terminated if the task ran but
// never recorded an error of its own. Safe to call multiple times.
func (c *Coroutine) Stop() errs.Error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	started := c.started
	joinCh := c.joinCh
	c.mu.Unlock()

	_ = c.Interrupt()

	if started && joinCh != nil {
		<-joinCh
	}

	c.mu.Lock()
	if started && c.lastErr == nil {
		c.lastErr = errs.CodeThreadTerminated.Error()
	}
	last := c.lastErr
	c.mu.Unlock()

	return last
}

// ShouldTermCycle reports whether the coroutine has been interrupted or
// disposed, or has recorded a non-success error. Long inner loops inside a Handler must poll this between
// I/O operations so Interrupt/Stop can actually unwind them.
func (c *Coroutine) ShouldTermCycle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupt || c.disposed || c.lastErr != nil
}

// LastError returns the error recorded by the most recent Cycle, if any.
func (c *Coroutine) LastError() errs.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// IsRunning reports whether the backing goroutine is currently between
// Start and cycle completion.
func (c *Coroutine) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started && !c.cycleDone
}
