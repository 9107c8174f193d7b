package transports

import (
	"io"
	"sync"
	"time"
)

// MockTransport implements the client transport for testing. The client's
// reader goroutine consumes ReadData concurrently with test code, so all
// state is mutex-guarded.
type MockTransport struct {
	mu          sync.Mutex
	ReadData    []byte
	ReadErr     error
	WriteData   []byte
	WriteErr    error
	Closed      bool
	ReadTimeout time.Duration

	// ReadTimeoutErr, when set, is returned by SetReadTimeout.
	ReadTimeoutErr error

	Flushed bool

	// ReadFunc allows custom read behavior for complex tests.
	ReadFunc func(p []byte) (int, error)
}

func (m *MockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadFunc != nil {
		return m.ReadFunc(p)
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if m.Closed {
		return 0, io.EOF
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	// An open port with nothing buffered looks like a timed-out read,
	// not EOF; the reader keeps polling until Close.
	return n, nil
}

func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.WriteData = append(m.WriteData, p...)
	return len(p), nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadTimeoutErr != nil {
		return m.ReadTimeoutErr
	}
	m.ReadTimeout = timeout
	return nil
}

func (m *MockTransport) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Keep ReadData intact: tests preload mock responses before connecting.
	m.Flushed = true
	return nil
}

// Written returns a copy of everything written so far.
func (m *MockTransport) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.WriteData))
	copy(out, m.WriteData)
	return out
}

// ResetWrites clears the write log.
func (m *MockTransport) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteData = nil
}

// FailWrites makes subsequent writes return err (nil re-enables writes).
func (m *MockTransport) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteErr = err
}

// Feed appends inbound bytes for the reader to consume.
func (m *MockTransport) Feed(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadData = append(m.ReadData, data...)
}
