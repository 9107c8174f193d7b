// Package boardio provides a defensive, retry-tolerant wrapper around a
// Firmata client for controlling microcontroller pins from a host process.
//
// The single entry point is the Session: it owns one board connection,
// drives configured actuator pins to a safe state at startup and shutdown,
// caches pin modes to avoid redundant mode-switch commands, and turns every
// hardware failure into an explicit error value instead of a fault.
//
// Sessions assume single-threaded callers. If multiple goroutines must
// share one session, wrap each operation in external mutual exclusion.
package boardio

import (
	"fmt"
	"time"

	"arduinoio/firmata"
)

// SessionConfig holds parameters for opening a board session.
type SessionConfig struct {
	// Address is the serial endpoint (e.g., "/dev/ttyACM0").
	// Ignored if Transport is provided.
	Address string

	// Transport, when non-nil, is used instead of opening Address.
	Transport firmata.Transport

	// OutputPins are driven to SafeState at startup and restored to it
	// on Close. The set grows as digital writes touch further pins.
	OutputPins []int

	// SafeState is the binary level (0 or 1) that keeps attached
	// actuators inert. There is no safe implicit default: the zero value
	// means LOW, and supplying the wrong level can energize actuators at
	// startup. Always set it explicitly for the hardware at hand.
	// Values outside {0, 1} are coerced to 1 with a warning.
	SafeState int

	// BaudRate for the serial link. Default 57600.
	BaudRate int

	// InitSettle is the handshake window after connecting and the final
	// pause after startup configuration. Default 50ms.
	InitSettle time.Duration

	// ModeSettle is the pause after a pin mode change. Default 10ms.
	ModeSettle time.Duration

	// DigitalSettle is the pause before reading a digital pin, giving
	// the poller time to deliver the state. Default 20ms.
	DigitalSettle time.Duration

	// AnalogSettle is the pause after enabling analog reporting before
	// the first read attempt. Default 50ms.
	AnalogSettle time.Duration

	// RetryAttempts bounds analog read attempts. Default 5.
	RetryAttempts int

	// RetryDelay is the fixed pause between analog read attempts.
	// Default 50ms.
	RetryDelay time.Duration

	// Logger receives diagnostics. Defaults to a normal-verbosity
	// stderr logger.
	Logger *Logger
}

// Session owns one connection to a microcontroller and mediates all pin
// access through it.
type Session struct {
	client     *firmata.Client
	connectErr error

	safeState  int
	outputPins []int
	modeCache  map[int]firmata.PinMode

	log *Logger

	initSettle    time.Duration
	modeSettle    time.Duration
	digitalSettle time.Duration
	analogSettle  time.Duration
	retryAttempts int
	retryDelay    time.Duration
}

// NewSession opens a connection to the board, starts the background
// poller, and drives every pin in cfg.OutputPins to cfg.SafeState.
//
// A failed connection attempt is absorbed, not returned: the session comes
// back disconnected, the cause is available via Err, and every operation
// on it reports ErrNotConnected. Callers must check Connected before use.
func NewSession(cfg SessionConfig) *Session {
	if cfg.InitSettle == 0 {
		cfg.InitSettle = 50 * time.Millisecond
	}
	if cfg.ModeSettle == 0 {
		cfg.ModeSettle = 10 * time.Millisecond
	}
	if cfg.DigitalSettle == 0 {
		cfg.DigitalSettle = 20 * time.Millisecond
	}
	if cfg.AnalogSettle == 0 {
		cfg.AnalogSettle = 50 * time.Millisecond
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = NewLogger(LogNormal)
	}

	s := &Session{
		safeState:     cfg.SafeState,
		modeCache:     make(map[int]firmata.PinMode),
		log:           cfg.Logger,
		initSettle:    cfg.InitSettle,
		modeSettle:    cfg.ModeSettle,
		digitalSettle: cfg.DigitalSettle,
		analogSettle:  cfg.AnalogSettle,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
	}

	if cfg.SafeState != 0 && cfg.SafeState != 1 {
		s.log.Warn("safe state must be 0 (LOW) or 1 (HIGH), got %d; defaulting to 1 (HIGH)", cfg.SafeState)
		s.safeState = 1
	}

	client, err := firmata.Connect(firmata.ClientConfig{
		Transport: cfg.Transport,
		Address:   cfg.Address,
		BaudRate:  cfg.BaudRate,
	})
	if err != nil {
		s.connectErr = err
		s.log.Error("failed to connect to board: %v", err)
		s.log.Error("ensure StandardFirmata is uploaded and the serial address is correct")
		return s
	}
	s.client = client
	s.log.Info("connected to board on %s", cfg.Address)

	// Handshake window before the first command.
	time.Sleep(s.initSettle)

	for _, pin := range cfg.OutputPins {
		if err := s.configureOutputPin(pin); err != nil {
			s.log.Warn("could not configure pin %d: %v", pin, err)
			continue
		}
		time.Sleep(s.modeSettle)
	}

	time.Sleep(s.initSettle)

	return s
}

// Connected reports whether the session holds a live connection.
func (s *Session) Connected() bool {
	return s.client != nil
}

// Err returns the connection error recorded at construction, if any.
func (s *Session) Err() error {
	return s.connectErr
}

// SafeState returns the validated safe output level.
func (s *Session) SafeState() int {
	return s.safeState
}

// OutputPins returns the pins that Close will restore to the safe state,
// in configuration order.
func (s *Session) OutputPins() []int {
	out := make([]int, len(s.outputPins))
	copy(out, s.outputPins)
	return out
}

// AnalogRead reads an analog input channel (0-5 on standard boards) and
// returns the sample normalized to [0, 1]. Because the poller may not have
// delivered a first sample yet, the read is retried a bounded number of
// times; ErrNoValue is returned once the budget is exhausted.
func (s *Session) AnalogRead(pin int) (float64, error) {
	const op = "analog read"

	if s.client == nil {
		return 0, s.disconnectedErr(pin, op)
	}

	ap, err := s.client.AnalogPin(pin)
	if err != nil {
		s.log.Error("invalid analog pin A%d: %v", pin, err)
		return 0, &PinError{Pin: pin, Op: op, Err: ErrInvalidPin}
	}

	// Idempotent: already-streaming channels ignore the repeat enable.
	if err := ap.EnableReporting(); err != nil {
		s.log.Error("enabling reporting on A%d: %v", pin, err)
		return 0, &PinError{Pin: pin, Op: op, Err: err}
	}
	time.Sleep(s.analogSettle)

	raw, ok := retryValue(s.retryAttempts, s.retryDelay, ap.Read)
	if !ok {
		s.log.Warn("no reading from analog pin A%d after %d attempts", pin, s.retryAttempts)
		return 0, &PinError{Pin: pin, Op: op, Err: ErrNoValue}
	}

	return float64(raw) / 1023.0, nil
}

// AnalogWrite sets the PWM duty of a pin. Duty must lie in [0.0, 1.0]
// inclusive; out-of-range values are rejected before any hardware command
// is issued.
func (s *Session) AnalogWrite(pin int, duty float64) error {
	const op = "analog write"

	if s.client == nil {
		return s.disconnectedErr(pin, op)
	}

	if duty < 0 || duty > 1 {
		s.log.Error("PWM duty must be between 0.0 and 1.0, got %v", duty)
		return &PinError{Pin: pin, Op: op, Err: ErrInvalidValue}
	}

	p, err := s.ensureMode(pin, firmata.ModePWM, op)
	if err != nil {
		return err
	}

	if err := p.WritePWM(int(duty*255 + 0.5)); err != nil {
		s.log.Error("writing PWM to pin %d: %v", pin, err)
		return &PinError{Pin: pin, Op: op, Err: err}
	}

	return nil
}

// DigitalRead reads a digital input pin, returning 0 or 1. The pin is
// switched to input mode if needed, and a short settling delay gives the
// poller time to deliver the state.
func (s *Session) DigitalRead(pin int) (int, error) {
	const op = "digital read"

	if s.client == nil {
		return 0, s.disconnectedErr(pin, op)
	}

	p, err := s.ensureMode(pin, firmata.ModeInput, op)
	if err != nil {
		return 0, err
	}

	time.Sleep(s.digitalSettle)

	v, ok := p.Read()
	if !ok {
		s.log.Warn("no state reported yet for digital pin %d", pin)
		return 0, &PinError{Pin: pin, Op: op, Err: ErrNoValue}
	}

	return v, nil
}

// DigitalWrite sets a digital output pin to 0 or 1 and echoes the written
// value. Values outside {0, 1} are rejected before any hardware command.
// A successfully written pin joins the tracked output set so Close will
// restore it to the safe state.
func (s *Session) DigitalWrite(pin, value int) (int, error) {
	const op = "digital write"

	if s.client == nil {
		return 0, s.disconnectedErr(pin, op)
	}

	if value != 0 && value != 1 {
		s.log.Error("digital value must be 0 (LOW) or 1 (HIGH), got %d", value)
		return 0, &PinError{Pin: pin, Op: op, Err: ErrInvalidValue}
	}

	p, err := s.ensureMode(pin, firmata.ModeOutput, op)
	if err != nil {
		return 0, err
	}

	if err := p.Write(value); err != nil {
		s.log.Error("writing to digital pin %d: %v", pin, err)
		return 0, &PinError{Pin: pin, Op: op, Err: err}
	}

	s.trackOutputPin(pin)
	return value, nil
}

// Close restores every tracked output pin to the safe state, then releases
// the connection. Closing the connection is what stops the background
// poller; it is never signaled separately once teardown has begun. Per-pin
// restoration failures are logged and do not stop the remaining pins.
// Close on an already-closed or never-connected session is a no-op.
func (s *Session) Close() error {
	if s.client == nil {
		s.log.Info("no active board connection to close")
		return nil
	}

	s.log.Info("closing board connection")

	for _, pin := range s.outputPins {
		p, err := s.client.Pin(pin)
		if err != nil {
			s.log.Warn("could not set pin %d to safe state on close: %v", pin, err)
			continue
		}
		// Force output mode regardless of the cache: the safe state
		// must land even if the mode was changed out from under us.
		if err := p.SetMode(firmata.ModeOutput); err != nil {
			s.log.Warn("could not set pin %d to safe state on close: %v", pin, err)
			continue
		}
		if err := p.Write(s.safeState); err != nil {
			s.log.Warn("could not set pin %d to safe state on close: %v", pin, err)
		}
		time.Sleep(s.modeSettle)
	}

	err := s.client.Close()
	s.client = nil
	s.modeCache = make(map[int]firmata.PinMode)

	if err != nil {
		s.log.Error("releasing board connection: %v", err)
		return err
	}
	return nil
}

// Internal methods

// configureOutputPin puts a pin into output mode at the safe state and
// records it for restoration on Close.
func (s *Session) configureOutputPin(pin int) error {
	p, err := s.client.Pin(pin)
	if err != nil {
		return err
	}
	if err := p.SetMode(firmata.ModeOutput); err != nil {
		return err
	}
	if err := p.Write(s.safeState); err != nil {
		return err
	}
	s.modeCache[pin] = firmata.ModeOutput
	s.trackOutputPin(pin)
	s.log.Verbose("pin %d configured as output at safe state %d", pin, s.safeState)
	return nil
}

// ensureMode returns a handle to the pin, switching its mode first if the
// cached mode differs. Mode changes are followed by a settling delay;
// cache hits issue no hardware command at all.
func (s *Session) ensureMode(pin int, mode firmata.PinMode, op string) (*firmata.Pin, error) {
	p, err := s.client.Pin(pin)
	if err != nil {
		s.log.Error("invalid pin number %d for this board: %v", pin, err)
		return nil, &PinError{Pin: pin, Op: op, Err: ErrInvalidPin}
	}

	if cur, ok := s.modeCache[pin]; !ok || cur != mode {
		if err := p.SetMode(mode); err != nil {
			s.log.Error("configuring pin %d as %s: %v", pin, mode, err)
			return nil, &PinError{Pin: pin, Op: op, Err: err}
		}
		if mode == firmata.ModeInput {
			// Input state arrives via port reports; ask for them.
			if err := s.client.ReportDigital(pin/8, true); err != nil {
				s.log.Warn("enabling reports for pin %d: %v", pin, err)
			}
		}
		s.modeCache[pin] = mode
		time.Sleep(s.modeSettle)
	}

	return p, nil
}

func (s *Session) trackOutputPin(pin int) {
	for _, p := range s.outputPins {
		if p == pin {
			return
		}
	}
	s.outputPins = append(s.outputPins, pin)
}

func (s *Session) disconnectedErr(pin int, op string) error {
	s.log.Error("not connected to board")
	err := ErrNotConnected
	if s.connectErr != nil {
		err = fmt.Errorf("%w: %v", ErrNotConnected, s.connectErr)
	}
	return &PinError{Pin: pin, Op: op, Err: err}
}
