package firmata

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"arduinoio/transports"
)

func newTestClient(t *testing.T, mock *transports.MockTransport) *Client {
	t.Helper()

	c, err := Connect(ClientConfig{
		Transport:     mock,
		MinCommandGap: time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestConnect_RequiresTransportOrAddress(t *testing.T) {
	_, err := Connect(ClientConfig{})
	if err == nil {
		t.Fatal("expected error when neither Transport nor Address is set")
	}
}

func TestConnect_ConfiguresInjectedTransport(t *testing.T) {
	mock := &transports.MockTransport{}
	c, err := Connect(ClientConfig{
		Transport:   mock,
		ReadTimeout: 42 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	if mock.ReadTimeout != 42*time.Millisecond {
		t.Errorf("read timeout = %v, want 42ms", mock.ReadTimeout)
	}
	if !mock.Flushed {
		t.Error("stale input was not flushed on connect")
	}
}

func TestConnect_SetReadTimeoutFailureClosesTransport(t *testing.T) {
	mock := &transports.MockTransport{
		ReadTimeoutErr: errors.New("bad timeout"),
	}
	_, err := Connect(ClientConfig{Transport: mock})
	if err == nil {
		t.Fatal("expected error when the transport rejects the read timeout")
	}
	if !mock.Closed {
		t.Error("transport left open after failed setup")
	}
}

func TestClient_SetPinMode(t *testing.T) {
	mock := &transports.MockTransport{}
	c := newTestClient(t, mock)

	if err := c.SetPinMode(13, ModeOutput); err != nil {
		t.Fatalf("SetPinMode failed: %v", err)
	}

	want := []byte{0xF4, 0x0D, 0x01}
	if !bytes.Equal(mock.Written(), want) {
		t.Errorf("wrote %X, want %X", mock.Written(), want)
	}
}

func TestClient_DigitalWrite(t *testing.T) {
	mock := &transports.MockTransport{}
	c := newTestClient(t, mock)

	if err := c.DigitalWrite(13, 1); err != nil {
		t.Fatalf("DigitalWrite failed: %v", err)
	}

	want := []byte{0xF5, 0x0D, 0x01}
	if !bytes.Equal(mock.Written(), want) {
		t.Errorf("wrote %X, want %X", mock.Written(), want)
	}

	// The snapshot mirrors the commanded value.
	v, ok := c.DigitalValue(13)
	if !ok || v != 1 {
		t.Errorf("DigitalValue = (%d, %v), want (1, true)", v, ok)
	}
}

func TestClient_DigitalWrite_RejectsNonBinary(t *testing.T) {
	mock := &transports.MockTransport{}
	c := newTestClient(t, mock)

	if err := c.DigitalWrite(13, 2); err == nil {
		t.Fatal("expected error for non-binary value")
	}
	if len(mock.Written()) != 0 {
		t.Errorf("rejected write still reached the transport: %X", mock.Written())
	}
}

func TestClient_InvalidPin(t *testing.T) {
	mock := &transports.MockTransport{}
	c := newTestClient(t, mock)

	tests := []struct {
		name string
		err  error
	}{
		{"mode on out-of-range pin", c.SetPinMode(99, ModeOutput)},
		{"write on negative pin", c.DigitalWrite(-1, 0)},
		{"report on out-of-range channel", c.ReportAnalog(6, true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, ErrInvalidPin) {
				t.Errorf("got %v, want ErrInvalidPin", tt.err)
			}
		})
	}

	if len(mock.Written()) != 0 {
		t.Errorf("invalid pin commands reached the transport: %X", mock.Written())
	}
}

func TestClient_ReaderUpdatesAnalogSnapshot(t *testing.T) {
	mock := &transports.MockTransport{}
	c := newTestClient(t, mock)

	if _, ok := c.AnalogValue(2); ok {
		t.Fatal("expected no sample before the board reports")
	}

	// Channel 2 reports 328 (0x148): lsb 0x48, msb 0x02
	mock.Feed([]byte{0xE2, 0x48, 0x02})

	waitFor(t, func() bool {
		v, ok := c.AnalogValue(2)
		return ok && v == 328
	})
}

func TestClient_ReaderUpdatesDigitalSnapshot(t *testing.T) {
	mock := &transports.MockTransport{}
	c := newTestClient(t, mock)

	// Port 0 report with pin 5 high.
	mock.Feed([]byte{0x90, 0x20, 0x00})

	waitFor(t, func() bool {
		v, ok := c.DigitalValue(5)
		return ok && v == 1
	})

	// Pin 2 is in the same port and reported low.
	v, ok := c.DigitalValue(2)
	if !ok || v != 0 {
		t.Errorf("DigitalValue(2) = (%d, %v), want (0, true)", v, ok)
	}
}

func TestClient_ReaderSurvivesGarbage(t *testing.T) {
	mock := &transports.MockTransport{}
	c := newTestClient(t, mock)

	// Garbage, an unknown command byte, then a firmware report.
	mock.Feed([]byte{0x01, 0x02, 0xF6})
	mock.Feed([]byte{0xF0, 0x79, 2, 5, 'S', 0x00, 'F', 0x00, 0xF7})

	waitFor(t, func() bool {
		name, _, _ := c.Firmware()
		return name == "SF"
	})

	_, major, minor := c.Firmware()
	if major != 2 || minor != 5 {
		t.Errorf("firmware version: got %d.%d, want 2.5", major, minor)
	}
}

func TestClient_Close(t *testing.T) {
	mock := &transports.MockTransport{}
	c := newTestClient(t, mock)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !mock.Closed {
		t.Error("transport not closed")
	}

	// Reader must have exited as part of teardown.
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not exit after Close")
	}

	// Closed clients refuse commands.
	if err := c.SetPinMode(13, ModeOutput); !errors.Is(err, ErrClientClosed) {
		t.Errorf("got %v, want ErrClientClosed", err)
	}

	// Second close is a no-op.
	if err := c.Close(); err != nil {
		t.Errorf("second Close returned %v, want nil", err)
	}
}
