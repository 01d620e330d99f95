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

// Package connmgr is the connection manager and routine base classes:
// a ConnRoutine never deletes itself inline, instead moving from the
// manager's live list to its zombies list at cycle exit, so a
// listener's periodic Destroy() never races a routine tearing down its
// own bookkeeping.
package connmgr

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sabouaram/coco/errs"
)

// Routine is anything the manager tracks: a ConnRoutine or a
// ListenRoutine, identified by pointer equality for Push's dedup.
type Routine interface {
	Cycle(ctx context.Context) error
	ShouldTermCycle() bool
	Close() error
}

// Manager holds the live and zombies lists. Destroy must only ever be
// called by a coroutine that is not itself present in zombies; the
// standard ListenRoutine.Cycle pattern guarantees this.
type Manager struct {
	mu      sync.Mutex
	live    []Routine
	zombies []Routine
	sem     *semaphore.Weighted
}

func New() *Manager {
	return &Manager{}
}

// NewWithLimit is New bounded by a weighted semaphore: at most limit
// ConnRoutines may be live at once. A ListenRoutine's AcceptOne should
// call Acquire before spawning each one, and Remove releases the slot
// as soon as a routine's cycle ends.
func NewWithLimit(limit int64) *Manager {
	return &Manager{sem: semaphore.NewWeighted(limit)}
}

// Acquire blocks until a live-routine slot is available, or ctx is
// cancelled. A no-op on a Manager built with plain New.
func (m *Manager) Acquire(ctx context.Context) error {
	if m.sem == nil {
		return nil
	}
	return m.sem.Acquire(ctx, 1)
}

// Push adds r to the live list, deduplicating by pointer equality.
func (m *Manager) Push(r Routine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.live {
		if e == r {
			return
		}
	}
	m.live = append(m.live, r)
}

// Remove moves r from live to zombies. A no-op if r is not in live.
func (m *Manager) Remove(r Routine) {
	m.mu.Lock()
	found := false
	for i, e := range m.live {
		if e == r {
			m.live = append(m.live[:i], m.live[i+1:]...)
			m.zombies = append(m.zombies, r)
			found = true
			break
		}
	}
	m.mu.Unlock()

	if found && m.sem != nil {
		m.sem.Release(1)
	}
}

// Destroy closes and drops every routine currently in zombies,
// aggregating every independent Close failure instead of letting one
// mask another.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	z := m.zombies
	m.zombies = nil
	m.mu.Unlock()

	var errsList []error
	for _, r := range z {
		if err := r.Close(); err != nil {
			errsList = append(errsList, err)
		}
	}
	return errs.Aggregate(errsList...)
}

// Live reports how many routines are currently tracked as live.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Zombies reports how many routines are awaiting Destroy.
func (m *Manager) Zombies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.zombies)
}

// ConnRoutine is the per-connection supervisor shape: run DoCycle,
// remap a graceful close to CodeSocketClosed, then ask the manager to
// move this routine to zombies. DoCycle is supplied by the protocol
// engine above (HTTP, WebSocket, ...).
type ConnRoutine struct {
	Manager *Manager
	DoCycle func(ctx context.Context) errs.Error
	closer  func() error
}

// NewConnRoutine wires DoCycle and an underlying resource closer into
// a routine the Manager can track.
func NewConnRoutine(mgr *Manager, doCycle func(ctx context.Context) errs.Error, closer func() error) *ConnRoutine {
	return &ConnRoutine{Manager: mgr, DoCycle: doCycle, closer: closer}
}

func (c *ConnRoutine) Cycle(ctx context.Context) error {
	err := c.DoCycle(ctx)
	if err != nil && errs.IsGracefulClose(err.Code()) {
		err = errs.CodeSocketClosed.Error(err)
	}
	c.Manager.Remove(c)
	if err == nil {
		return nil
	}
	return err
}

func (c *ConnRoutine) ShouldTermCycle() bool { return false }

func (c *ConnRoutine) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

// ListenRoutine accepts connections and spawns ConnRoutines. Cycle
// calls Manager.Destroy() at the top of every iteration, then blocks
// on AcceptOne, so no zombie outlives the next accept tick.
type ListenRoutine struct {
	Manager   *Manager
	AcceptOne func(ctx context.Context) errs.Error
	term      func() bool
}

func NewListenRoutine(mgr *Manager, acceptOne func(ctx context.Context) errs.Error, shouldTerm func() bool) *ListenRoutine {
	return &ListenRoutine{Manager: mgr, AcceptOne: acceptOne, term: shouldTerm}
}

func (l *ListenRoutine) Cycle(ctx context.Context) error {
	for !l.ShouldTermCycle() {
		if err := l.Manager.Destroy(); err != nil {
			return err
		}
		if err := l.AcceptOne(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *ListenRoutine) ShouldTermCycle() bool {
	return l.term != nil && l.term()
}

func (l *ListenRoutine) Close() error { return nil }
