// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxDataLen bounds a Job's Header payload.
const MaxDataLen = 2048

var (
	// ErrInputFull is returned by Worker.Submit when the bounded input
	// queue has no free slot.
	ErrInputFull = errors.New("queue: input queue is full")

	// ErrDataTooLong is returned by Worker.Submit when Job.Header
	// exceeds MaxDataLen.
	ErrDataTooLong = errors.New("queue: job data exceeds the maximum length")

	// ErrStopped is returned by Worker.Submit once Stop has been called
	// and Reset has not yet cleared the stop flag.
	ErrStopped = errors.New("queue: worker is stopped, rejecting new input")
)

// idleBackoff is how long the worker goroutine sleeps between empty
// polls of the input queue: a sub-millisecond busy-poll with backoff.
const idleBackoff = time.Microsecond

// Job is one unit of work submitted to a Worker. ID is caller-assigned
// and carried through unchanged to the matching Result so a consumer
// reading the output queue can correlate it back to this submission;
// Nonce is likewise opaque to the Worker and just round-tripped.
type Job struct {
	ID       uint64
	Header   []byte
	Nonce    [8]byte
	EdgeBits uint8
}

// Result is what a Worker emits for each Job it runs, in completion
// order (not necessarily submission order). ID and Nonce are copied
// from the originating Job.
type Result struct {
	ID    uint64
	Nonce [8]byte
	Proof []uint32 // nil when Found is false
	Size  int      // len(Proof); 0 when Found is false
	Found bool
	Err   error
}

// Solve is the function a Worker calls for every Job it dequeues. It is
// a field, not a hardcoded call into package cuckoo, so queue stays
// decoupled from the solver it happens to run today.
type Solve func(job Job) (proof []uint32, found bool, err error)

// Worker runs Solve against jobs pulled from a bounded input ring,
// pushing results onto a larger output ring, on its own goroutine. The
// lifecycle (start/stop/has_stopped/reset) follows a quit-channel-plus-
// select shape, with an idle-backoff loop when the input ring is empty.
// stopFlag is distinct from running: Stop sets it immediately (so
// Submit starts rejecting new work right away) and it is cleared only
// by an explicit Reset, independent of whether the worker goroutine is
// ever restarted.
type Worker struct {
	solve Solve

	input  *ring[Job]
	output *ring[Result]

	mu       sync.Mutex
	running  bool
	stopFlag bool
	stopped  chan struct{}
	quit     chan struct{}
}

// defaultInputCapacity is the default bound on the number of jobs that
// may be queued before Submit rejects more.
const defaultInputCapacity = 20

// defaultOutputCapacity is generous because the output side is meant to
// behave as best-effort unbounded: large enough that a consumer
// lagging by less than this many results never blocks the worker.
const defaultOutputCapacity = 4096

// NewWorker returns a stopped Worker. Call Start to begin processing.
func NewWorker(solve Solve) *Worker {
	return &Worker{
		solve:  solve,
		input:  newRing[Job](defaultInputCapacity),
		output: newRing[Result](defaultOutputCapacity),
	}
}

// Submit enqueues a job, returning ErrDataTooLong if Header exceeds
// MaxDataLen, ErrStopped if the stop flag is set, or ErrInputFull if the
// bounded input ring has no room.
func (w *Worker) Submit(job Job) error {
	if len(job.Header) > MaxDataLen {
		return ErrDataTooLong
	}

	w.mu.Lock()
	stopped := w.stopFlag
	w.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	if !w.input.offer(job) {
		return ErrInputFull
	}
	return nil
}

// InputLen reports the current input queue occupancy.
func (w *Worker) InputLen() int { return w.input.len() }

// InputCap reports the input queue's fixed capacity.
func (w *Worker) InputCap() int { return w.input.cap() }

// IsUnderLimit reports whether the input queue has room for at least
// one more job.
func (w *Worker) IsUnderLimit() bool { return w.input.len() < w.input.cap() }

// PollResult removes and returns the oldest available result, if any.
func (w *Worker) PollResult() (Result, bool) { return w.output.poll() }

// Start begins processing jobs on a new goroutine. Calling Start while
// already running is a no-op. Start does not touch the stop flag: a
// worker stopped and restarted without an intervening Reset still
// rejects submissions until Reset runs.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	w.running = true
	w.quit = make(chan struct{})
	w.stopped = make(chan struct{})

	go w.run(w.quit, w.stopped)
}

func (w *Worker) run(quit, stopped chan struct{}) {
	defer close(stopped)

	for {
		select {
		case <-quit:
			w.drain()
			return
		default:
		}

		job, ok := w.input.poll()
		if !ok {
			time.Sleep(idleBackoff)
			continue
		}
		w.runJob(job)
	}
}

// drain runs every job still sitting in the input queue before the
// worker goroutine exits, so Stop never silently discards submitted
// work.
func (w *Worker) drain() {
	for {
		job, ok := w.input.poll()
		if !ok {
			return
		}
		w.runJob(job)
	}
}

func (w *Worker) runJob(job Job) {
	proof, found, err := w.solve(job)
	if err != nil {
		logrus.Errorf("queue: job %d failed: %v", job.ID, err)
	} else {
		logrus.Debugf("queue: job %d done, found=%v edgebits=%d", job.ID, found, job.EdgeBits)
	}

	size := 0
	if found {
		size = len(proof)
	}
	result := Result{ID: job.ID, Nonce: job.Nonce, Proof: proof, Size: size, Found: found, Err: err}
	for !w.output.offer(result) {
		// Best-effort-unbounded: if the output ring is ever genuinely
		// full the consumer has fallen far behind. Block briefly rather
		// than drop a finished solve on the floor.
		time.Sleep(idleBackoff)
	}
}

// Stop sets the stop flag (so Submit starts rejecting new jobs
// immediately), then signals the worker goroutine to drain its input
// queue and exit, blocking until it has. Calling Stop when not running
// still sets the stop flag.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopFlag = true
	if !w.running {
		w.mu.Unlock()
		return
	}
	quit, stopped := w.quit, w.stopped
	w.mu.Unlock()

	close(quit)
	<-stopped

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// HasStopped reports whether the worker goroutine and its last in-flight
// solve have both finished after a Stop call.
func (w *Worker) HasStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.running
}

// Reset clears the stop flag so Submit accepts jobs again. It does not
// restart the worker goroutine (call Start separately if processing
// should resume) and it does not touch either queue's contents; see
// ClearQueues for that.
func (w *Worker) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopFlag = false
}

// ClearQueues discards any queued jobs and any unread results without
// touching the running or stop-flag state.
func (w *Worker) ClearQueues() {
	for {
		if _, ok := w.input.poll(); !ok {
			break
		}
	}
	for {
		if _, ok := w.output.poll(); !ok {
			break
		}
	}
}
