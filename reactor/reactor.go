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

// Package reactor is the single-threaded, epoll-backed event loop that
// every blocking-looking call in socket/ actually suspends on. One OS
// thread runs Reactor.Run; everything else is cooperative goroutines
// parked on channels until the reactor says they are ready.
package reactor

import (
	"container/heap"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/logger"
)

// Interest is a bitmask of readiness a caller can suspend on.
type Interest uint32

const (
	Readable Interest = 1 << iota
	Writable
)

const maxEvents = 256

// Descriptor is the opaque handle a caller holds once a file descriptor
// has been registered with the reactor.
type Descriptor struct {
	fd int
	r  *Reactor
}

func (d *Descriptor) Fd() int { return d.fd }

// Close deregisters the descriptor from the reactor. It does not close
// the underlying fd; callers own that.
func (d *Descriptor) Close() error {
	return d.r.deregister(d.fd)
}

type fdState struct {
	fd       int
	mask     uint32 // epoll bits currently armed
	readCh   chan error
	writeCh  chan error
	readDL   *timerEntry
	writeDL  *timerEntry
}

type timerEntry struct {
	deadline time.Time
	ch       chan error
	index    int
	canceled bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Reactor is the epoll event loop. Exactly one goroutine ever runs
// Run; every other goroutine only ever touches the reactor through
// Register/Wait*/Wake, all of which are channel-safe.
type Reactor struct {
	epfd   int
	wakeFd int
	log    logger.Logger

	mu      sync.Mutex
	fds     map[int]*fdState
	timers  timerHeap
	closed  bool
	closeCh chan struct{}
}

// Init probes the OS for a usable readiness backend (epoll on Linux),
// selects it, and returns an initialised, not-yet-running Reactor.
// Failure to obtain a backend is CodeSetEpoll; any other setup failure
// is CodeInitialize.
func Init(log logger.Logger) (*Reactor, errs.Error) {
	if log == nil {
		log = logger.NilLogger()
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errs.CodeSetEpoll.Error(err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, errs.CodeInitialize.Error(err)
	}

	r := &Reactor{
		epfd:    epfd,
		wakeFd:  wakeFd,
		log:     log,
		fds:     make(map[int]*fdState),
		closeCh: make(chan struct{}),
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFd)
		return nil, errs.CodeInitialize.Error(err)
	}

	return r, nil
}

// Register begins tracking fd with the reactor. No readiness interest
// is armed until a WaitReadable/WaitWritable call requests it.
func (r *Reactor) Register(fd int) (*Descriptor, errs.Error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, errs.CodeInitialize.Error(err)
	}

	ev := unix.EpollEvent{Events: 0, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return nil, errs.CodeInitialize.Error(err)
	}

	r.mu.Lock()
	r.fds[fd] = &fdState{fd: fd}
	r.mu.Unlock()

	return &Descriptor{fd: fd, r: r}, nil
}

func (r *Reactor) deregister(fd int) error {
	r.mu.Lock()
	st := r.fds[fd]
	delete(r.fds, fd)
	var aborted []chan error
	if st != nil {
		aborted = takeWaiters(st)
	}
	r.mu.Unlock()

	for _, ch := range aborted {
		ch <- unix.ECANCELED
	}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// takeWaiters detaches any armed waiter channels from st so the caller
// can unblock them. Must be called with r.mu held; the detached
// channels are buffered, so the post-unlock send never blocks.
func takeWaiters(st *fdState) []chan error {
	var chans []chan error
	if st.readCh != nil {
		if st.readDL != nil {
			st.readDL.canceled = true
			st.readDL = nil
		}
		chans = append(chans, st.readCh)
		st.readCh = nil
	}
	if st.writeCh != nil {
		if st.writeDL != nil {
			st.writeDL.canceled = true
			st.writeDL = nil
		}
		chans = append(chans, st.writeCh)
		st.writeCh = nil
	}
	return chans
}

// WaitReadable is a suspension point: it blocks the calling goroutine
// until fd is readable, the deadline elapses, or fd is deregistered or
// the reactor closed; Wake does not end it. A zero deadline means
// "never".
func (r *Reactor) WaitReadable(fd int, deadline time.Time) errs.Error {
	return r.wait(fd, Readable, deadline)
}

// WaitWritable mirrors WaitReadable for write readiness.
func (r *Reactor) WaitWritable(fd int, deadline time.Time) errs.Error {
	return r.wait(fd, Writable, deadline)
}

func (r *Reactor) wait(fd int, interest Interest, deadline time.Time) errs.Error {
	ch := make(chan error, 1)

	r.mu.Lock()
	st, ok := r.fds[fd]
	if !ok {
		r.mu.Unlock()
		return errs.CodeSocketRead.Error()
	}

	var te *timerEntry
	if interest == Readable {
		st.readCh = ch
		st.mask |= unix.EPOLLIN
	} else {
		st.writeCh = ch
		st.mask |= unix.EPOLLOUT
	}
	if !deadline.IsZero() {
		te = &timerEntry{deadline: deadline, ch: ch}
		heap.Push(&r.timers, te)
		if interest == Readable {
			st.readDL = te
		} else {
			st.writeDL = te
		}
	}
	ev := unix.EpollEvent{Events: st.mask | unix.EPOLLRDHUP, Fd: int32(fd)}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	r.mu.Unlock()

	err := <-ch
	if err == nil {
		return nil
	}
	if err == errTimeout {
		return errs.CodeSocketTimeout.Error()
	}
	return errs.CodeSocketRead.Error(err)
}

var errTimeout = &timeoutErr{}

type timeoutErr struct{}

func (*timeoutErr) Error() string { return "reactor: wait deadline exceeded" }

// Run drives the epoll loop on the calling goroutine. Callers must
// dedicate one OS thread to it (runtime.LockOSThread) and never call
// reactor methods that could themselves suspend from inside Run.
func (r *Reactor) Run() errs.Error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r.log.Debug(logger.DebugReactor, "event loop running", nil)

	events := make([]unix.EpollEvent, maxEvents)
	wakeBuf := make([]byte, 8)

	for {
		select {
		case <-r.closeCh:
			return nil
		default:
		}

		timeout := r.nextTimeoutMs()
		n, err := unix.EpollWait(r.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			select {
			case <-r.closeCh:
				// Close tore down the epoll fd under us.
				return nil
			default:
			}
			return errs.CodeInitialize.Error(err)
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)
			if fd == r.wakeFd {
				for {
					if _, rerr := unix.Read(r.wakeFd, wakeBuf); rerr != nil {
						break
					}
				}
				continue
			}
			r.dispatch(fd, ev.Events)
		}

		r.fireExpiredTimers()
	}
}

func (r *Reactor) dispatch(fd int, events uint32) {
	r.mu.Lock()
	st, ok := r.fds[fd]
	if !ok {
		r.mu.Unlock()
		return
	}

	var readCh, writeCh chan error
	var rerr, werr error
	hup := events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0

	if (events&unix.EPOLLIN != 0 || hup) && st.readCh != nil {
		readCh = st.readCh
		st.readCh = nil
		st.mask &^= unix.EPOLLIN
		if st.readDL != nil {
			st.readDL.canceled = true
			st.readDL = nil
		}
		if hup && events&unix.EPOLLIN == 0 {
			rerr = unix.ECONNRESET
		}
	}
	if (events&unix.EPOLLOUT != 0 || hup) && st.writeCh != nil {
		writeCh = st.writeCh
		st.writeCh = nil
		st.mask &^= unix.EPOLLOUT
		if st.writeDL != nil {
			st.writeDL.canceled = true
			st.writeDL = nil
		}
		if hup && events&unix.EPOLLOUT == 0 {
			werr = unix.ECONNRESET
		}
	}

	ev := unix.EpollEvent{Events: st.mask | unix.EPOLLRDHUP, Fd: int32(fd)}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	r.mu.Unlock()

	if readCh != nil {
		readCh <- rerr
	}
	if writeCh != nil {
		writeCh <- werr
	}
}

func (r *Reactor) nextTimeoutMs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.timers) == 0 {
		return 1000 // re-check the close channel at least once a second
	}
	d := time.Until(r.timers[0].deadline)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > 1000 {
		ms = 1000 // re-check the close channel at least once a second
	}
	return int(ms)
}

func (r *Reactor) fireExpiredTimers() {
	now := time.Now()
	var expired []*timerEntry

	r.mu.Lock()
	for len(r.timers) > 0 && (r.timers[0].canceled || !r.timers[0].deadline.After(now)) {
		te := heap.Pop(&r.timers).(*timerEntry)
		if !te.canceled {
			expired = append(expired, te)
		}
	}
	r.mu.Unlock()

	for _, te := range expired {
		te.ch <- errTimeout
	}
}

// Sleep is the explicit-sleep suspension point: it parks the calling
// goroutine on the reactor's timer wheel for d. A Close while asleep
// returns early.
func (r *Reactor) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}

	ch := make(chan error, 1)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	heap.Push(&r.timers, &timerEntry{deadline: time.Now().Add(d), ch: ch})
	r.mu.Unlock()

	r.Wake()
	<-ch
}

// SleepMs is Sleep in milliseconds.
func (r *Reactor) SleepMs(ms int) {
	r.Sleep(time.Duration(ms) * time.Millisecond)
}

// Wake interrupts a blocked epoll_wait so Run re-checks its close
// channel and timers. It does not release a goroutine suspended in
// WaitReadable, WaitWritable or Sleep.
func (r *Reactor) Wake() {
	one := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	_, _ = unix.Write(r.wakeFd, one)
}

// Close stops Run, unblocks every coroutine still suspended on a
// wait, and releases the epoll and eventfd descriptors.
func (r *Reactor) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.closeCh)
	var aborted []chan error
	for _, st := range r.fds {
		aborted = append(aborted, takeWaiters(st)...)
	}
	r.fds = make(map[int]*fdState)
	for len(r.timers) > 0 {
		te := heap.Pop(&r.timers).(*timerEntry)
		if !te.canceled {
			aborted = append(aborted, te.ch)
		}
	}
	r.mu.Unlock()

	for _, ch := range aborted {
		ch <- unix.ECANCELED
	}

	r.Wake()
	_ = unix.Close(r.wakeFd)
	return unix.Close(r.epfd)
}
