// Package emuthread runs an emulator core that has no top-level main
// loop of its own. The core runs on a dedicated thread, and control is
// handed back and forth between it and the host thread with Switch:
// exactly one of the two threads is runnable at any time, so the
// emulated machine's state needs no locking at all.
package emuthread

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Canceled is the panic value used to unwind the emulation thread when
// the session ends. It is raised by Switch on the emulation side after
// Stop has been called, and must be allowed to propagate through every
// stack frame of the core's call chain: recover handlers inside the
// core must re-panic any value that is not theirs.
type Canceled struct{}

func (Canceled) String() string { return "emulation thread canceled" }

const (
	hostSide = iota
	emulationSide
)

// Switcher coordinates the host thread and the emulation thread.
// The zero value is not usable; call New.
type Switcher struct {
	// turn[s] is set when side s may run. Writes happen under mu so
	// that a cond waiter cannot miss them; reads may be lock-free in
	// spin mode.
	turn [2]atomic.Bool
	spin atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond

	owner  atomic.Int32
	cancel atomic.Bool
	done   chan struct{}
}

// New returns a Switcher with the host side owning execution.
func New() *Switcher {
	s := &Switcher{}
	s.cond = sync.NewCond(&s.mu)
	s.owner.Store(hostSide)
	return s
}

// Switch blocks the calling thread and unblocks the other one. It is
// called identically from both sides: the host calls it to run the
// core until its next yield point, the core calls it at each yield
// point to hand the resulting frame to the host. It returns when it is
// the caller's turn again.
//
// If the session has been stopped, Switch panics with Canceled instead
// of returning on the emulation side. The caller must not touch any
// shared state after that point.
func (s *Switcher) Switch() {
	me := s.owner.Load()
	s.owner.Store(1 - me)
	s.wake(1 - me)
	s.wait(me)
	if me == emulationSide && s.cancel.Load() {
		panic(Canceled{})
	}
}

// UseSpinlock selects the wait strategy used by subsequent handoffs:
// busy-spin when true, condition wait when false. Spinning wakes a few
// microseconds faster at the cost of burning a core. May be called
// from either thread at any time; a handoff already in flight may
// still use the previous strategy.
func (s *Switcher) UseSpinlock(use bool) {
	s.spin.Store(use)
}

// Start launches the emulation thread. The thread blocks until the
// host performs the first handoff, then calls run. run must yield via
// Switch and must never return: the only way out is the Canceled
// panic, which Start's thread entry catches (and nothing else) before
// the thread exits.
//
// A Switcher owns at most one emulation thread; calling Start twice
// panics.
func (s *Switcher) Start(run func()) {
	if s.done != nil {
		panic("emuthread: Start called twice")
	}
	s.done = make(chan struct{})
	go func() {
		// A real OS thread, so that the core may use thread-local
		// facilities and so the host thread is never starved by it.
		runtime.LockOSThread()
		defer close(s.done)
		defer func() {
			if e := recover(); e != nil {
				if _, ok := e.(Canceled); ok {
					return
				}
				panic(e)
			}
		}()
		s.wait(emulationSide)
		if s.cancel.Load() {
			panic(Canceled{})
		}
		run()
		panic("emuthread: core run loop returned")
	}()
}

// Stop requests cancellation, wakes the emulation thread from whatever
// wait it is blocked in, and joins it. The cancellation token is
// single-shot: it is never cleared again, and later Stop calls just
// wait for the thread to finish. Must be called from the host side
// while the host owns execution.
func (s *Switcher) Stop() {
	if s.done == nil {
		return
	}
	if s.cancel.CompareAndSwap(false, true) {
		s.owner.Store(emulationSide)
		s.wake(emulationSide)
	}
	<-s.done
}

func (s *Switcher) wake(side int32) {
	s.mu.Lock()
	s.turn[side].Store(true)
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Switcher) wait(side int32) {
	if s.spin.Load() {
		for !s.turn[side].CompareAndSwap(true, false) {
			runtime.Gosched()
		}
		return
	}
	s.mu.Lock()
	for !s.turn[side].Load() {
		s.cond.Wait()
	}
	s.turn[side].Store(false)
	s.mu.Unlock()
}
