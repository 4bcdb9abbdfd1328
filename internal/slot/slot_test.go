package slot

import (
	"bytes"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func never() bool { return false }

func TestNewEmpty(t *testing.T) {
	s := New()
	if !s.LastPush().IsZero() {
		t.Errorf("expected zero last push, got %v", s.LastPush())
	}
	st := s.Stats()
	if st.Pending || st.Pushed != 0 {
		t.Errorf("expected empty slot, got %+v", st)
	}
}

func TestLatestWins(t *testing.T) {
	s := New()
	a := []byte("frame-a")
	b := []byte("frame-b")

	if s.Push(a) {
		t.Error("first push should not report a drop")
	}
	if !s.Push(b) {
		t.Error("second push should report overwriting frame a")
	}

	var got [][]byte
	ok, err := s.Deliver(never, true, func(f []byte) error {
		got = append(got, f)
		return nil
	})
	if !ok || err != nil {
		t.Fatalf("deliver: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || !bytes.Equal(got[0], b) {
		t.Fatalf("expected only frame b, got %q", got)
	}

	st := s.Stats()
	if st.Pushed != 2 || st.Dropped != 1 || st.Taken != 1 || st.Pending {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestDeliverBlocksUntilPush(t *testing.T) {
	s := New()
	delivered := make(chan []byte, 1)

	go func() {
		s.Deliver(never, false, func(f []byte) error {
			delivered <- f
			return nil
		})
	}()

	select {
	case <-delivered:
		t.Fatal("deliver returned before any push")
	case <-time.After(50 * time.Millisecond):
	}

	s.Push([]byte{1, 2, 3})

	select {
	case f := <-delivered:
		if !bytes.Equal(f, []byte{1, 2, 3}) {
			t.Errorf("unexpected frame %v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("deliver did not wake after push")
	}
}

func TestWakeStopsWaiter(t *testing.T) {
	s := New()
	var stopped atomic.Bool
	done := make(chan bool, 1)

	go func() {
		ok, _ := s.Deliver(stopped.Load, true, func([]byte) error {
			t.Error("fn must not run after stop")
			return nil
		})
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	stopped.Store(true)
	s.Wake()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected deliver to report stop")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Wake")
	}
}

func TestStoppedWinsOverPendingFrame(t *testing.T) {
	s := New()
	s.Push([]byte("x"))
	ok, err := s.Deliver(func() bool { return true }, true, func([]byte) error {
		t.Error("fn must not run when stopped")
		return nil
	})
	if ok || err != nil {
		t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
	}
	if !s.Stats().Pending {
		t.Error("frame should still be pending")
	}
}

func TestDeliverReturnsFnError(t *testing.T) {
	s := New()
	s.Push([]byte("x"))
	boom := errors.New("boom")
	ok, err := s.Deliver(never, false, func([]byte) error { return boom })
	if !ok || !errors.Is(err, boom) {
		t.Errorf("expected (true, boom), got (%v, %v)", ok, err)
	}
	if s.Stats().Pending {
		t.Error("frame should be taken even when fn fails")
	}
}

// Holding the slot across fn makes a concurrent Push wait; releasing it does not.
func TestHoldBlocksPush(t *testing.T) {
	for _, hold := range []bool{true, false} {
		s := New()
		s.Push([]byte("first"))

		inFn := make(chan struct{})
		release := make(chan struct{})
		go s.Deliver(never, hold, func([]byte) error {
			close(inFn)
			<-release
			return nil
		})
		<-inFn

		pushed := make(chan struct{})
		go func() {
			s.Push([]byte("second"))
			close(pushed)
		}()

		select {
		case <-pushed:
			if hold {
				t.Error("hold=true: push completed while fn was running")
			}
		case <-time.After(100 * time.Millisecond):
			if !hold {
				t.Error("hold=false: push blocked while fn was running")
			}
		}
		close(release)
		<-pushed
	}
}

func TestClearKeepsLastPush(t *testing.T) {
	s := New()
	s.Push([]byte("x"))
	last := s.LastPush()
	s.Clear()
	if s.Stats().Pending {
		t.Error("expected empty slot after Clear")
	}
	if !s.LastPush().Equal(last) {
		t.Error("Clear should not reset the last push time")
	}
}

func TestZeroLengthFrameIsPending(t *testing.T) {
	s := New()
	s.Push([]byte{})
	var n = -1
	ok, _ := s.Deliver(never, true, func(f []byte) error {
		n = len(f)
		return nil
	})
	if !ok || n != 0 {
		t.Errorf("expected a zero-length frame to be delivered to fn, got ok=%v len=%d", ok, n)
	}
}

func TestLastPushIsMonotonic(t *testing.T) {
	s := New()
	before := time.Now()
	s.Push([]byte("x"))
	last := s.LastPush()

	// time.Time.String appends "m=" only when a monotonic reading is present.
	if !strings.Contains(last.String(), "m=") {
		t.Fatalf("last push time has no monotonic reading: %v", last)
	}
	if last.Before(before) {
		t.Errorf("last push %v is before the push started %v", last, before)
	}
	if d := time.Since(last); d < 0 || d > time.Second {
		t.Errorf("unexpected elapsed time since push: %v", d)
	}

	time.Sleep(5 * time.Millisecond)
	s.Push([]byte("y"))
	if !s.LastPush().After(last) {
		t.Errorf("second push %v not after first %v", s.LastPush(), last)
	}
}
