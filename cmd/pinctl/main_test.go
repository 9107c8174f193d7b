package main

import (
	"io"
	"testing"
	"time"

	"arduinoio/boardio"
	"arduinoio/transports"
)

func newTestSession(t *testing.T) (*boardio.Session, *transports.MockTransport) {
	t.Helper()
	mock := &transports.MockTransport{}
	logger := boardio.NewLogger(boardio.LogQuiet)
	logger.SetOutput(io.Discard)
	s := boardio.NewSession(boardio.SessionConfig{
		Transport:     mock,
		SafeState:     0,
		InitSettle:    time.Nanosecond,
		ModeSettle:    time.Nanosecond,
		DigitalSettle: time.Nanosecond,
		AnalogSettle:  time.Nanosecond,
		RetryDelay:    time.Nanosecond,
		Logger:        logger,
	})
	if !s.Connected() {
		t.Fatalf("session not connected: %v", s.Err())
	}
	return s, mock
}

// An interrupt must stop the worker and wait for it to finish before the
// session is closed, since sessions take no concurrent callers.
func TestInterruptDrainsWorkerBeforeClose(t *testing.T) {
	session, mock := newTestSession(t)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		runTasks(session, 13, -1, stop)
	}()

	// Let the worker start blinking, then deliver the stop signal.
	time.Sleep(10 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after the stop signal")
	}

	if err := session.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if !mock.Closed {
		t.Fatal("transport not closed")
	}
	if session.Connected() {
		t.Fatal("session still reports connected after Close")
	}
}

func TestBlinkStopsBetweenToggles(t *testing.T) {
	session, mock := newTestSession(t)
	defer session.Close()

	stop := make(chan struct{})
	close(stop)

	if blink(session, 13, 5, stop) {
		t.Fatal("blink reported completion despite the stop signal")
	}

	// One toggle at most went out before the stop was observed.
	var writes int
	for _, b := range mock.Written() {
		if b == 0xF5 {
			writes++
		}
	}
	if writes > 1 {
		t.Fatalf("blink issued %d writes after stop, want at most 1", writes)
	}
}

func TestBlinkCompletesWithoutStop(t *testing.T) {
	session, mock := newTestSession(t)
	defer session.Close()

	stop := make(chan struct{})
	if !blink(session, 13, 2, stop) {
		t.Fatal("blink did not complete")
	}

	var writes int
	for _, b := range mock.Written() {
		if b == 0xF5 {
			writes++
		}
	}
	if writes != 4 {
		t.Fatalf("blink issued %d digital writes, want 4", writes)
	}
}
