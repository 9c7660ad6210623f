// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/dblokhin/cuckoosolve/cuckoo"
	"github.com/dblokhin/cuckoosolve/queue"
)

func TestOperationsFailBeforeInit(t *testing.T) {
	Shutdown() // ensure clean slate regardless of test order

	if _, _, err := CuckooCall(nil, 8); err != ErrNotInitialized {
		t.Errorf("CuckooCall before Init: got %v, want ErrNotInitialized", err)
	}
	if err := PushToInputQueue(0, nil, [8]byte{}, 8); err != ErrNotInitialized {
		t.Errorf("PushToInputQueue before Init: got %v, want ErrNotInitialized", err)
	}
}

func TestInitStartStopLifecycle(t *testing.T) {
	Shutdown()
	Init()
	defer Shutdown()

	if stopped, err := HasProcessingStopped(); err != nil || stopped {
		t.Fatalf("expected running after Init, got stopped=%v err=%v", stopped, err)
	}

	if err := StopProcessing(); err != nil {
		t.Fatalf("StopProcessing: %v", err)
	}
	if stopped, err := HasProcessingStopped(); err != nil || !stopped {
		t.Fatalf("expected stopped after StopProcessing, got stopped=%v err=%v", stopped, err)
	}

	if err := ResetProcessing(); err != nil {
		t.Fatalf("ResetProcessing: %v", err)
	}
	if err := StartProcessing(); err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}
}

func TestPropertyRoundTrip(t *testing.T) {
	Shutdown()
	Init()
	defer Shutdown()

	d := cuckoo.PropertyDescriptor{Name: "EdgeBits", Description: "edge bits", Default: 16, Min: 1, Max: 63}
	if err := SetProperty(d); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}

	got, ok, err := GetProperty("EdgeBits")
	if err != nil || !ok || got.Default != 16 {
		t.Fatalf("GetProperty: ok=%v err=%v got=%+v", ok, err, got)
	}
}

func TestDefaultPropertiesRegisteredOnInit(t *testing.T) {
	Shutdown()
	Init()
	defer Shutdown()

	props, err := Properties()
	if err != nil {
		t.Fatalf("Properties: %v", err)
	}
	if len(props.Names()) == 0 {
		t.Fatal("Init should pre-populate the engine's property registry with the solver's tunables")
	}
}

func TestQueueRoundTrip(t *testing.T) {
	Shutdown()
	Init()
	defer Shutdown()

	header := make([]byte, 32)
	nonce := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := PushToInputQueue(42, header, nonce, 8); err != nil {
		t.Fatalf("PushToInputQueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if res, ok, err := ReadFromOutputQueue(); err == nil && ok {
			if res.ID != 42 || res.Nonce != nonce {
				t.Fatalf("result did not correlate id/nonce back to the submission: got %+v", res)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for queued job to complete")
}

func TestPushAfterStopProcessingReturnsStopped(t *testing.T) {
	Shutdown()
	Init()
	defer Shutdown()

	if err := StopProcessing(); err != nil {
		t.Fatalf("StopProcessing: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		stopped, err := HasProcessingStopped()
		if err != nil {
			t.Fatalf("HasProcessingStopped: %v", err)
		}
		if stopped {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker did not report stopped")
		}
		time.Sleep(time.Millisecond)
	}

	err := PushToInputQueue(1, nil, [8]byte{}, 8)
	if !errors.Is(err, queue.ErrStopped) {
		t.Fatalf("expected queue.ErrStopped after StopProcessing, got %v", err)
	}

	if err := ResetProcessing(); err != nil {
		t.Fatalf("ResetProcessing: %v", err)
	}
	if err := PushToInputQueue(2, nil, [8]byte{}, 8); err != nil {
		t.Fatalf("expected push to succeed after ResetProcessing, got %v", err)
	}
}
