package firmata

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"arduinoio/transports"
)

// Client manages one connection to a Firmata board. Outbound commands are
// serialized through an internal mutex; inbound traffic is drained by a
// background reader goroutine that keeps per-pin snapshots current.
//
// Reads against the client (AnalogValue, DigitalValue) observe the reader's
// last-updated snapshot, not a synchronous hardware round-trip: after a
// command, the snapshot is only guaranteed to reflect hardware once the
// board has had time to report back.
type Client struct {
	transport Transport

	pinCount    int
	analogCount int

	mu          sync.Mutex
	closed      bool
	lastCmdTime time.Time
	minCmdGap   time.Duration

	analog    []int    // last sample per analog channel, -1 when none yet
	ports     []uint16 // last known bits per digital port
	known     []uint16 // which bits of each port have a known value
	fwName    string
	fwMajor   byte
	fwMinor   byte
	readErr   error
	done      chan struct{}
}

// ClientConfig holds configuration for connecting to a board.
type ClientConfig struct {
	// Transport is the underlying communication transport.
	// If nil, Address must be specified to open a serial connection.
	Transport Transport

	// Address is the serial port path (e.g., "/dev/ttyACM0").
	// Ignored if Transport is provided.
	Address string

	// BaudRate is the communication speed. Default is 57600, the
	// StandardFirmata default.
	BaudRate int

	// PinCount is the number of digital pins on the board. Default is 14
	// (Uno-style layout).
	PinCount int

	// AnalogPinCount is the number of analog input channels. Default is 6.
	AnalogPinCount int

	// MinCommandGap is the minimum time between outbound commands.
	// Default is 1ms.
	MinCommandGap time.Duration

	// ReadTimeout bounds each transport read in the reader loop.
	// Default is 100ms.
	ReadTimeout time.Duration
}

// Connect opens a connection to a board and starts the background reader.
// The board announces its firmware on reset; callers that need the
// handshake to complete should allow a settling window before commanding.
func Connect(cfg ClientConfig) (*Client, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 57600
	}
	if cfg.PinCount == 0 {
		cfg.PinCount = 14
	}
	if cfg.AnalogPinCount == 0 {
		cfg.AnalogPinCount = 6
	}
	if cfg.MinCommandGap == 0 {
		cfg.MinCommandGap = time.Millisecond
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}

	transport := cfg.Transport
	if transport == nil {
		if cfg.Address == "" {
			return nil, errors.New("either Transport or Address must be specified")
		}
		var err error
		transport, err = transports.OpenSerial(transports.SerialConfig{
			Port:     cfg.Address,
			BaudRate: cfg.BaudRate,
			Timeout:  cfg.ReadTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port: %w", err)
		}
	}

	// The read timeout bounds every blocking read in the reader loop, so
	// injected transports get it applied the same way opened ones do.
	if err := transport.SetReadTimeout(cfg.ReadTimeout); err != nil {
		transport.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	// Boards reset on connect and may have leftover bytes buffered from a
	// previous session; drop them before the reader starts decoding.
	if err := transport.Flush(); err != nil {
		transport.Close()
		return nil, fmt.Errorf("failed to flush transport: %w", err)
	}

	portCount := (cfg.PinCount + 7) / 8

	c := &Client{
		transport:   transport,
		pinCount:    cfg.PinCount,
		analogCount: cfg.AnalogPinCount,
		minCmdGap:   cfg.MinCommandGap,
		lastCmdTime: time.Now(),
		analog:      make([]int, cfg.AnalogPinCount),
		ports:       make([]uint16, portCount),
		known:       make([]uint16, portCount),
		done:        make(chan struct{}),
	}
	for i := range c.analog {
		c.analog[i] = -1
	}

	go c.readLoop()

	return c, nil
}

// Close shuts down the connection. Closing the transport is what stops the
// background reader; Close waits for it to exit before returning. Calling
// Close on an already-closed client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	err := c.transport.Close()
	c.mu.Unlock()

	<-c.done
	return err
}

// Done is closed when the background reader has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadErr returns the error that stopped the background reader, if any.
func (c *Client) ReadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// PinCount returns the number of digital pins the client addresses.
func (c *Client) PinCount() int { return c.pinCount }

// AnalogPinCount returns the number of analog channels the client addresses.
func (c *Client) AnalogPinCount() int { return c.analogCount }

// Firmware returns the firmware name and version reported by the board,
// or an empty name if the handshake report has not arrived yet.
func (c *Client) Firmware() (name string, major, minor byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fwName, c.fwMajor, c.fwMinor
}

// Commands

// SetPinMode configures the mode of a digital pin.
func (c *Client) SetPinMode(pin int, mode PinMode) error {
	if err := c.validatePin(pin); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(SetPinModePacket(byte(pin), mode), "set pin mode")
}

// DigitalWrite sets a digital pin to 0 or 1.
func (c *Client) DigitalWrite(pin, value int) error {
	if err := c.validatePin(pin); err != nil {
		return err
	}
	if value != 0 && value != 1 {
		return fmt.Errorf("digital value must be 0 or 1, got %d", value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendLocked(DigitalWritePacket(byte(pin), byte(value)), "digital write"); err != nil {
		return err
	}

	// Mirror the write into the snapshot so reads of output pins reflect
	// the last commanded value.
	port, bit := pin/8, uint(pin%8)
	if value == 1 {
		c.ports[port] |= 1 << bit
	} else {
		c.ports[port] &^= 1 << bit
	}
	c.known[port] |= 1 << bit

	return nil
}

// AnalogWrite sets the PWM duty of a pin. Value range is 0-255 for
// standard boards.
func (c *Client) AnalogWrite(pin, value int) error {
	if err := c.validatePin(pin); err != nil {
		return err
	}
	if value < 0 || value > 0x3FFF {
		return fmt.Errorf("analog value out of range: %d", value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(AnalogWritePacket(byte(pin), value), "analog write")
}

// ReportAnalog enables or disables streaming of an analog channel.
// Enabling an already-enabled channel is harmless.
func (c *Client) ReportAnalog(pin int, enable bool) error {
	if err := c.validateAnalogPin(pin); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(ReportAnalogPacket(byte(pin), enable), "report analog")
}

// ReportDigital enables or disables streaming of a digital port.
func (c *Client) ReportDigital(port int, enable bool) error {
	if port < 0 || port >= len(c.ports) {
		return fmt.Errorf("%w: port %d", ErrInvalidPin, port)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(ReportDigitalPacket(byte(port), enable), "report digital")
}

// QueryFirmware asks the board to report its firmware name and version.
// The response arrives asynchronously via the reader and is visible
// through Firmware.
func (c *Client) QueryFirmware() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(FirmwareQueryPacket(), "query firmware")
}

// Snapshot reads

// AnalogValue returns the last sample seen for an analog channel (0-1023)
// and whether any sample has arrived at all.
func (c *Client) AnalogValue(pin int) (int, bool) {
	if pin < 0 || pin >= c.analogCount {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.analog[pin]
	if v < 0 {
		return 0, false
	}
	return v, true
}

// DigitalValue returns the last known level of a digital pin and whether
// its level is known at all (from an inbound report or a prior write).
func (c *Client) DigitalValue(pin int) (int, bool) {
	if pin < 0 || pin >= c.pinCount {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	port, bit := pin/8, uint(pin%8)
	if c.known[port]&(1<<bit) == 0 {
		return 0, false
	}
	return int(c.ports[port] >> bit & 1), true
}

// Internal methods

func (c *Client) validatePin(pin int) error {
	if pin < 0 || pin >= c.pinCount {
		return fmt.Errorf("%w: %d (valid range: 0-%d)", ErrInvalidPin, pin, c.pinCount-1)
	}
	return nil
}

func (c *Client) validateAnalogPin(pin int) error {
	if pin < 0 || pin >= c.analogCount {
		return fmt.Errorf("%w: A%d (valid range: A0-A%d)", ErrInvalidPin, pin, c.analogCount-1)
	}
	return nil
}

func (c *Client) enforceCommandGap() {
	elapsed := time.Since(c.lastCmdTime)
	if elapsed < c.minCmdGap {
		time.Sleep(c.minCmdGap - elapsed)
	}
}

func (c *Client) sendLocked(packet []byte, op string) error {
	if c.closed {
		return ErrClientClosed
	}

	c.enforceCommandGap()

	n, err := c.transport.Write(packet)
	if err != nil {
		return &CommError{Op: op, Err: err}
	}
	if n != len(packet) {
		return &CommError{Op: op, Err: fmt.Errorf("incomplete write: %d of %d bytes", n, len(packet))}
	}

	c.lastCmdTime = time.Now()
	return nil
}

// readLoop drains inbound messages into the pin snapshots until the
// transport fails or the client is closed.
func (c *Client) readLoop() {
	defer close(c.done)

	buf := make([]byte, 256)
	var pending []byte

	for {
		n, err := c.transport.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = c.drain(pending)
		}
		if err != nil {
			c.mu.Lock()
			if !c.closed {
				c.readErr = err
			}
			c.mu.Unlock()
			return
		}
		if n == 0 {
			// Nothing available; yield briefly rather than spin.
			time.Sleep(time.Millisecond)
		}
	}
}

// drain parses as many complete messages as pending holds and returns the
// unconsumed remainder.
func (c *Client) drain(pending []byte) []byte {
	for len(pending) > 0 {
		msg, consumed, err := Decode(pending)
		if consumed == 0 {
			// Start of a message without its tail yet.
			break
		}
		pending = pending[consumed:]
		if err != nil {
			continue
		}
		c.dispatch(msg)
	}
	return pending
}

func (c *Client) dispatch(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case MessageAnalog:
		if msg.Pin < len(c.analog) {
			c.analog[msg.Pin] = msg.Value
		}
	case MessageDigital:
		if msg.Pin < len(c.ports) {
			c.ports[msg.Pin] = uint16(msg.Value)
			c.known[msg.Pin] = 0xFF
		}
	case MessageVersion:
		c.fwMajor, c.fwMinor = msg.Major, msg.Minor
	case MessageFirmware:
		c.fwMajor, c.fwMinor = msg.Major, msg.Minor
		c.fwName = string(msg.Data)
	}
}
