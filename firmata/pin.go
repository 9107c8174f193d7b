package firmata

// Pin provides a high-level interface for one digital pin.
type Pin struct {
	client *Client
	num    int
}

// Pin returns a handle for the digital pin with the given index.
func (c *Client) Pin(num int) (*Pin, error) {
	if err := c.validatePin(num); err != nil {
		return nil, err
	}
	return &Pin{client: c, num: num}, nil
}

// Number returns the pin's index.
func (p *Pin) Number() int {
	return p.num
}

// SetMode configures the pin's mode.
func (p *Pin) SetMode(mode PinMode) error {
	return p.client.SetPinMode(p.num, mode)
}

// Write sets the pin to 0 or 1. The pin must be in output mode.
func (p *Pin) Write(value int) error {
	return p.client.DigitalWrite(p.num, value)
}

// WritePWM sets the pin's PWM duty (0-255). The pin must be in PWM mode.
func (p *Pin) WritePWM(value int) error {
	return p.client.AnalogWrite(p.num, value)
}

// Read returns the pin's last known level and whether it is known at all.
// The level reflects the reader's snapshot, not a hardware round-trip.
func (p *Pin) Read() (int, bool) {
	return p.client.DigitalValue(p.num)
}

// AnalogPin provides a high-level interface for one analog input channel.
type AnalogPin struct {
	client *Client
	num    int
}

// AnalogPin returns a handle for the analog channel with the given index.
func (c *Client) AnalogPin(num int) (*AnalogPin, error) {
	if err := c.validateAnalogPin(num); err != nil {
		return nil, err
	}
	return &AnalogPin{client: c, num: num}, nil
}

// Number returns the channel's index.
func (a *AnalogPin) Number() int {
	return a.num
}

// EnableReporting asks the board to stream samples for this channel.
// Safe to call repeatedly.
func (a *AnalogPin) EnableReporting() error {
	return a.client.ReportAnalog(a.num, true)
}

// DisableReporting stops the board streaming samples for this channel.
func (a *AnalogPin) DisableReporting() error {
	return a.client.ReportAnalog(a.num, false)
}

// Read returns the last sample (0-1023) and whether any sample has
// arrived since reporting was enabled.
func (a *AnalogPin) Read() (int, bool) {
	return a.client.AnalogValue(a.num)
}
