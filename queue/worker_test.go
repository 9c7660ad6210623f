// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package queue

import (
	"errors"
	"testing"
	"time"
)

func echoSolve(job Job) ([]uint32, bool, error) {
	return []uint32{uint32(job.EdgeBits)}, true, nil
}

func TestWorkerStartStopLifecycle(t *testing.T) {
	w := NewWorker(echoSolve)
	if !w.HasStopped() {
		t.Fatal("new worker should report stopped")
	}

	w.Start()
	if w.HasStopped() {
		t.Fatal("worker should report running after Start")
	}

	if err := w.Submit(Job{EdgeBits: 16}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var res Result
	var ok bool
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		res, ok = w.PollResult()
		if ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !ok {
		t.Fatal("timed out waiting for result")
	}
	if !res.Found || res.Proof[0] != 16 {
		t.Fatalf("unexpected result: %+v", res)
	}

	w.Stop()
	if !w.HasStopped() {
		t.Fatal("worker should report stopped after Stop")
	}
}

func TestWorkerSubmitRejectsWhenFull(t *testing.T) {
	blocked := make(chan struct{})
	w := NewWorker(func(job Job) ([]uint32, bool, error) {
		<-blocked
		return nil, false, nil
	})
	w.Start()
	defer func() {
		close(blocked)
		w.Stop()
	}()

	var rejected error
	for i := 0; i < w.InputCap()+4; i++ {
		if err := w.Submit(Job{EdgeBits: uint8(i)}); err != nil {
			rejected = err
			break
		}
	}
	if !errors.Is(rejected, ErrInputFull) {
		t.Fatalf("expected ErrInputFull once queue saturates, got %v", rejected)
	}
}

func TestWorkerClearQueues(t *testing.T) {
	w := NewWorker(echoSolve)
	if err := w.Submit(Job{EdgeBits: 1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	w.ClearQueues()
	if w.InputLen() != 0 {
		t.Fatalf("expected empty input queue after ClearQueues, got len=%d", w.InputLen())
	}
}

func TestWorkerIsUnderLimit(t *testing.T) {
	w := NewWorker(echoSolve)
	if !w.IsUnderLimit() {
		t.Fatal("fresh worker should be under its input limit")
	}
	for i := 0; i < w.InputCap(); i++ {
		if err := w.Submit(Job{EdgeBits: uint8(i)}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	if w.IsUnderLimit() {
		t.Fatal("saturated worker should not report under limit")
	}
}

func TestWorkerSubmitRejectsOverlongData(t *testing.T) {
	w := NewWorker(echoSolve)
	job := Job{Header: make([]byte, MaxDataLen+1)}
	if err := w.Submit(job); !errors.Is(err, ErrDataTooLong) {
		t.Fatalf("expected ErrDataTooLong, got %v", err)
	}
}

func TestWorkerIDAndNonceRoundTrip(t *testing.T) {
	w := NewWorker(echoSolve)
	w.Start()
	defer w.Stop()

	job := Job{ID: 7, Nonce: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, EdgeBits: 9}
	if err := w.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var res Result
	var ok bool
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		res, ok = w.PollResult()
		if ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !ok {
		t.Fatal("timed out waiting for result")
	}
	if res.ID != job.ID || res.Nonce != job.Nonce {
		t.Fatalf("result did not carry the job's id/nonce: got %+v, want id=%d nonce=%v", res, job.ID, job.Nonce)
	}
	if res.Size != len(res.Proof) {
		t.Fatalf("result Size %d does not match len(Proof) %d", res.Size, len(res.Proof))
	}
}

// TestWorkerStopRejectsSubsequentSubmit exercises the push/stop/poll/push
// sequence: push an input, stop the worker, poll until has_stopped
// reports true, then check a further push is rejected as stopped.
func TestWorkerStopRejectsSubsequentSubmit(t *testing.T) {
	w := NewWorker(echoSolve)
	w.Start()

	if err := w.Submit(Job{EdgeBits: 1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	w.Stop()

	deadline := time.Now().Add(time.Second)
	for !w.HasStopped() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !w.HasStopped() {
		t.Fatal("worker did not report stopped")
	}

	if err := w.Submit(Job{EdgeBits: 2}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped for a submit after Stop, got %v", err)
	}

	w.Reset()
	if err := w.Submit(Job{EdgeBits: 3}); err != nil {
		t.Fatalf("expected Submit to succeed after Reset, got %v", err)
	}
	if w.InputLen() == 0 {
		t.Fatal("Reset should not have drained the input queue")
	}
}

func TestWorkerResetDoesNotRestartOrDrain(t *testing.T) {
	w := NewWorker(echoSolve)
	w.Start()
	w.Stop()

	if err := w.Submit(Job{EdgeBits: 1}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped before Reset, got %v", err)
	}

	w.Reset()
	if !w.HasStopped() {
		t.Fatal("Reset must not restart the worker goroutine")
	}

	if err := w.Submit(Job{EdgeBits: 2}); err != nil {
		t.Fatalf("Submit after Reset should succeed: %v", err)
	}
	if w.InputLen() != 1 {
		t.Fatalf("job queued after Reset should sit unprocessed until Start: got len=%d", w.InputLen())
	}
}

// TestWorkerBackPressureRecovers saturates the input queue against a
// gated solver, checks the exact bound, then releases the gate and
// waits for the queue to fall back under its limit.
func TestWorkerBackPressureRecovers(t *testing.T) {
	gate := make(chan struct{})
	w := NewWorker(func(job Job) ([]uint32, bool, error) {
		<-gate
		return nil, false, nil
	})
	w.Start()
	defer w.Stop()

	// The worker may have one job in flight (blocked on the gate), so
	// the queue itself plus the in-flight job absorb InputCap()+1
	// submissions before Submit must reject.
	var accepted int
	var rejected bool
	for i := 0; i < w.InputCap()+2; i++ {
		if err := w.Submit(Job{ID: uint64(i), Header: make([]byte, 80)}); err != nil {
			if !errors.Is(err, ErrInputFull) {
				t.Fatalf("submit %d: got %v, want ErrInputFull", i, err)
			}
			rejected = true
			break
		}
		accepted++
	}
	if !rejected {
		t.Fatalf("accepted %d submissions without hitting the bound", accepted)
	}
	if accepted > w.InputCap()+1 {
		t.Fatalf("accepted %d submissions, bound is %d plus one in flight", accepted, w.InputCap())
	}

	close(gate)

	deadline := time.Now().Add(2 * time.Second)
	for !w.IsUnderLimit() {
		if time.Now().After(deadline) {
			t.Fatal("queue never fell back under its limit after the solver unblocked")
		}
		time.Sleep(time.Millisecond)
	}
}
