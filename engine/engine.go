// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package engine wraps one cuckoo solver and one queue.Worker behind a
// process-wide singleton, exposing a fixed set of named operations as
// plain Go functions that look up the one-and-only engine via a
// process-wide init (no cgo export surface).
package engine

import (
	"encoding/hex"
	"errors"
	"os"
	"sync"

	"github.com/dblokhin/cuckoosolve/cuckoo"
	"github.com/dblokhin/cuckoosolve/queue"
	"github.com/sirupsen/logrus"
)

func init() {
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
}

// ErrNotInitialized is returned by every engine operation called before
// Init.
var ErrNotInitialized = errors.New("engine: not initialized, call Init first")

type engine struct {
	worker     *queue.Worker
	properties *cuckoo.PropertyRegistry
}

var (
	mu   sync.Mutex
	inst *engine
)

// Init constructs the one-and-only engine and starts its worker. It is
// safe to call Init again after Shutdown.
func Init() {
	mu.Lock()
	defer mu.Unlock()

	if inst != nil {
		return
	}

	e := &engine{properties: cuckoo.DefaultPropertyRegistry()}
	e.worker = queue.NewWorker(func(job queue.Job) ([]uint32, bool, error) {
		proof, found, err := cuckoo.Solve(job.Header, job.EdgeBits)
		if !found || err != nil {
			return nil, found, err
		}
		return proof.Nonces[:], true, nil
	})
	e.worker.Start()

	inst = e
	logrus.Info("engine: initialized")
}

func current() (*engine, error) {
	mu.Lock()
	defer mu.Unlock()
	if inst == nil {
		return nil, ErrNotInitialized
	}
	return inst, nil
}

// CuckooCall runs one synchronous solve against header (raw bytes, not
// hex) at the given edge-bit size, bypassing the job queue entirely.
// It is the direct-call entry point alongside the queued path.
func CuckooCall(header []byte, edgeBits uint8) (*cuckoo.Proof, bool, error) {
	if _, err := current(); err != nil {
		return nil, false, err
	}
	return cuckoo.Solve(header, edgeBits)
}

// CuckooCallHex is CuckooCall with a hex-encoded header, the form
// cmd/cuckoosolve accepts on argv.
func CuckooCallHex(headerHex string, edgeBits uint8) (*cuckoo.Proof, bool, error) {
	header, err := hex.DecodeString(headerHex)
	if err != nil {
		return nil, false, err
	}
	return CuckooCall(header, edgeBits)
}

// PushToInputQueue submits a job to the background worker, correlating
// id and nonce through to the matching Result. It returns
// queue.ErrDataTooLong if header exceeds queue.MaxDataLen,
// queue.ErrStopped if the worker's stop flag is set, or
// queue.ErrInputFull if the bounded input ring is saturated.
func PushToInputQueue(id uint64, header []byte, nonce [8]byte, edgeBits uint8) error {
	e, err := current()
	if err != nil {
		return err
	}
	return e.worker.Submit(queue.Job{ID: id, Header: header, Nonce: nonce, EdgeBits: edgeBits})
}

// ReadFromOutputQueue removes and returns the oldest available result,
// if any. The returned queue.Result carries the id and nonce of the job
// it completes.
func ReadFromOutputQueue() (queue.Result, bool, error) {
	e, err := current()
	if err != nil {
		return queue.Result{}, false, err
	}
	res, ok := e.worker.PollResult()
	return res, ok, nil
}

// StartProcessing (re)starts the background worker goroutine.
func StartProcessing() error {
	e, err := current()
	if err != nil {
		return err
	}
	e.worker.Start()
	return nil
}

// StopProcessing signals the background worker to drain and stop,
// blocking until it has, and sets its stop flag so further
// PushToInputQueue calls are rejected until ResetProcessing runs.
func StopProcessing() error {
	e, err := current()
	if err != nil {
		return err
	}
	e.worker.Stop()
	return nil
}

// HasProcessingStopped reports whether the worker goroutine and its
// last in-flight solve have both finished after StopProcessing.
func HasProcessingStopped() (bool, error) {
	e, err := current()
	if err != nil {
		return false, err
	}
	return e.worker.HasStopped(), nil
}

// ResetProcessing clears the worker's stop flag so PushToInputQueue
// accepts jobs again. It does not restart the worker goroutine (call
// StartProcessing for that) and does not touch queue contents (see
// ClearQueues).
func ResetProcessing() error {
	e, err := current()
	if err != nil {
		return err
	}
	e.worker.Reset()
	return nil
}

// IsQueueUnderLimit reports whether the input queue has room for at
// least one more job.
func IsQueueUnderLimit() (bool, error) {
	e, err := current()
	if err != nil {
		return false, err
	}
	return e.worker.IsUnderLimit(), nil
}

// ClearQueues discards queued jobs and unread results without changing
// the worker's running or stop-flag state.
func ClearQueues() error {
	e, err := current()
	if err != nil {
		return err
	}
	e.worker.ClearQueues()
	return nil
}

// SetProperty registers or updates a named plugin property descriptor.
func SetProperty(d cuckoo.PropertyDescriptor) error {
	e, err := current()
	if err != nil {
		return err
	}
	return e.properties.Register(d)
}

// GetProperty reads a named plugin property descriptor.
func GetProperty(name string) (cuckoo.PropertyDescriptor, bool, error) {
	e, err := current()
	if err != nil {
		return cuckoo.PropertyDescriptor{}, false, err
	}
	d, ok := e.properties.Get(name)
	return d, ok, nil
}

// Properties returns the engine's property registry, serializable as a
// JSON array of descriptors.
func Properties() (*cuckoo.PropertyRegistry, error) {
	e, err := current()
	if err != nil {
		return nil, err
	}
	return e.properties, nil
}

// Shutdown stops the worker and releases the singleton, so a later
// Init starts clean. Intended for tests; production embedders normally
// call Init once per process lifetime.
func Shutdown() {
	mu.Lock()
	e := inst
	inst = nil
	mu.Unlock()

	if e != nil {
		e.worker.Stop()
	}
}
