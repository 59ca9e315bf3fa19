package controller

import (
	"errors"
	"testing"
	"time"
)

// TestFutureSettlesOnce tests that a Future keeps its first settlement; a
// late Resolve or Reject cannot change an aborted chain's fate.
func TestFutureSettlesOnce(t *testing.T) {
	first := errors.New("first")
	f := NewFuture()
	f.Reject(first)
	f.Resolve()
	f.Reject(errors.New("second"))

	select {
	case <-f.Settled():
	default:
		t.Fatal("Expected the future to be settled")
	}
	if !errors.Is(f.Err(), first) {
		t.Errorf("Expected the first rejection to stick, got %v", f.Err())
	}
}

// TestFutureGoResolves tests that Go resolves the future when fn returns
// nil.
func TestFutureGoResolves(t *testing.T) {
	f := Go(func() error { return nil })

	select {
	case <-f.Settled():
	case <-time.After(time.Second):
		t.Fatal("Expected the future to settle")
	}
	if f.Err() != nil {
		t.Errorf("Expected resolution, got %v", f.Err())
	}
}

// TestFutureGoRejects tests that Go rejects the future with fn's error.
func TestFutureGoRejects(t *testing.T) {
	boom := errors.New("boom")
	f := Go(func() error { return boom })

	select {
	case <-f.Settled():
	case <-time.After(time.Second):
		t.Fatal("Expected the future to settle")
	}
	if !errors.Is(f.Err(), boom) {
		t.Errorf("Expected rejection with boom, got %v", f.Err())
	}
}

// TestFutureGoRecoversPanic tests that a panic in fn rejects the future
// instead of crashing the process.
func TestFutureGoRecoversPanic(t *testing.T) {
	f := Go(func() error { panic("unexpected") })

	select {
	case <-f.Settled():
	case <-time.After(time.Second):
		t.Fatal("Expected the future to settle")
	}
	if f.Err() == nil {
		t.Error("Expected the panic to reject the future")
	}
}

// TestResolvedAndRejected tests the pre-settled constructors.
func TestResolvedAndRejected(t *testing.T) {
	if err := Resolved().Err(); err != nil {
		t.Errorf("Expected Resolved future with nil error, got %v", err)
	}

	boom := errors.New("boom")
	if err := Rejected(boom).Err(); !errors.Is(err, boom) {
		t.Errorf("Expected Rejected future with boom, got %v", err)
	}
}

// TestSignalSingleShot tests that the done trigger keeps its first firing.
func TestSignalSingleShot(t *testing.T) {
	s := newSignal()
	first := errors.New("first")
	s.trigger(first)
	s.trigger(nil)

	fired, err := s.state()
	if !fired {
		t.Fatal("Expected the signal to be fired")
	}
	if !errors.Is(err, first) {
		t.Errorf("Expected the first firing to stick, got %v", err)
	}

	select {
	case got := <-s.ch:
		if !errors.Is(got, first) {
			t.Errorf("Expected the channel to carry the first firing, got %v", got)
		}
	default:
		t.Error("Expected exactly one channel send")
	}
}
