package emuthread

import (
	"sync/atomic"
	"testing"
	"time"
)

// The core increments a step counter once per yield. After each host
// handoff exactly one more step must have completed: the counter read
// by the host always equals the number of host calls made so far.
func TestAlternation(t *testing.T) {
	for _, c := range []struct {
		name   string
		toggle func(s *Switcher, i int)
	}{
		{"cond", func(s *Switcher, i int) {}},
		{"spin", func(s *Switcher, i int) { s.UseSpinlock(true) }},
		{"toggle", func(s *Switcher, i int) {
			if i%100 == 0 {
				s.UseSpinlock(i%200 == 0)
			}
		}},
	} {
		t.Run(c.name, func(t *testing.T) {
			var (
				s     = New()
				steps = 0 // shared, but only one side runs at a time
			)
			s.Start(func() {
				for {
					steps++
					s.Switch()
				}
			})
			defer s.Stop()

			for i := 1; i <= 1000; i++ {
				c.toggle(s, i)
				s.Switch()
				if steps != i {
					t.Fatalf("after %d handoffs: %d emulation steps", i, steps)
				}
			}
		})
	}
}

func TestStop(t *testing.T) {
	for _, c := range []struct {
		name string
		spin bool
	}{
		{"cond", false},
		{"spin", true},
	} {
		t.Run(c.name, func(t *testing.T) {
			s := New()
			s.UseSpinlock(c.spin)
			s.Start(func() {
				for {
					s.Switch()
				}
			})
			for i := 0; i < 10; i++ {
				s.Switch()
			}

			stopped := make(chan bool)
			go func() {
				s.Stop()
				s.Stop() // second call must be a no-op
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(5 * time.Second):
				t.Fatal("emulation thread did not stop")
			}
		})
	}
}

func TestStopBeforeFirstHandoff(t *testing.T) {
	s := New()
	s.Start(func() {
		t.Error("core ran without the host asking for a frame")
		for {
			s.Switch()
		}
	})
	stopped := make(chan bool)
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("emulation thread did not stop")
	}
}

// Cancellation must pass through intermediate recover handlers
// unmodified and reach the thread entry exactly once.
func TestCanceledDeliveredOnce(t *testing.T) {
	var (
		s    = New()
		seen atomic.Int32
	)
	inner := func() {
		defer func() {
			if e := recover(); e != nil {
				// Not ours: count and hand it on, like any core-level
				// fault handler should.
				if _, ok := e.(Canceled); ok {
					seen.Add(1)
				}
				panic(e)
			}
		}()
		for {
			s.Switch()
		}
	}
	s.Start(func() {
		defer func() {
			if e := recover(); e != nil {
				if _, ok := e.(Canceled); ok {
					seen.Add(1)
				}
				panic(e)
			}
		}()
		inner()
	})
	for i := 0; i < 3; i++ {
		s.Switch()
	}
	s.Stop()
	if g, w := seen.Load(), int32(2); g != w {
		t.Errorf("cancellation seen by %d of %d handlers on the unwind path", g, w)
	}
}

func TestStartTwicePanics(t *testing.T) {
	s := New()
	s.Start(func() {
		for {
			s.Switch()
		}
	})
	defer s.Stop()
	defer func() {
		if recover() == nil {
			t.Error("second Start did not panic")
		}
	}()
	s.Start(func() {})
}
