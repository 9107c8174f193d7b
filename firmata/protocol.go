// Package firmata implements the client side of the Firmata protocol for
// talking to microcontrollers running StandardFirmata over a serial link.
package firmata

import (
	"errors"
	"fmt"
)

// PinMode identifies the configured function of a pin.
type PinMode byte

const (
	ModeInput  PinMode = 0x00
	ModeOutput PinMode = 0x01
	ModeAnalog PinMode = 0x02
	ModePWM    PinMode = 0x03
	ModeServo  PinMode = 0x04
)

func (m PinMode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeOutput:
		return "output"
	case ModeAnalog:
		return "analog"
	case ModePWM:
		return "pwm"
	case ModeServo:
		return "servo"
	default:
		return fmt.Sprintf("mode(0x%02X)", byte(m))
	}
}

// Command bytes per the Firmata 2.5 protocol specification.
// The low nibble of channel commands carries the pin or port number.
const (
	cmdAnalogMessage  byte = 0xE0
	cmdDigitalMessage byte = 0x90
	cmdReportAnalog   byte = 0xC0
	cmdReportDigital  byte = 0xD0

	cmdSetPinMode      byte = 0xF4
	cmdSetDigitalValue byte = 0xF5
	cmdReportVersion   byte = 0xF9
	cmdSystemReset     byte = 0xFF

	cmdSysexStart byte = 0xF0
	cmdSysexEnd   byte = 0xF7
)

// Sysex sub-command bytes.
const (
	SysexReportFirmware  byte = 0x79
	SysexStringData      byte = 0x71
	SysexCapabilityQuery byte = 0x6B
	SysexCapabilityResp  byte = 0x6C
	SysexAnalogMapQuery  byte = 0x69
	SysexAnalogMapResp   byte = 0x6A
	SysexPinStateQuery   byte = 0x6D
	SysexPinStateResp    byte = 0x6E
	SysexExtendedAnalog  byte = 0x6F
)

// MessageType classifies a decoded inbound message.
type MessageType int

const (
	MessageAnalog MessageType = iota
	MessageDigital
	MessageVersion
	MessageFirmware
	MessageString
	MessageSysex // any sysex not decoded into a dedicated type
)

// Message is a single inbound protocol message.
type Message struct {
	Type MessageType

	// Pin is the analog channel for MessageAnalog, or the digital port
	// number for MessageDigital.
	Pin int

	// Value is the 14-bit payload: analog sample or digital port bits.
	Value int

	// Major/Minor carry the protocol version for MessageVersion and
	// MessageFirmware.
	Major, Minor byte

	// Sysex is the sub-command byte for sysex messages.
	Sysex byte

	// Data is the raw sysex payload after the sub-command byte, or the
	// decoded text for MessageString and MessageFirmware.
	Data []byte
}

// Decode errors.
var (
	errIncomplete = errors.New("incomplete message")
	errNoCommand  = errors.New("no command byte found")
)

// Decode parses one inbound message from data. It skips any garbage before
// the first command byte and returns the message plus the number of bytes
// consumed. When data holds the start of a message but not all of it,
// Decode returns zero consumed bytes so the caller can keep buffering.
func Decode(data []byte) (Message, int, error) {
	// Skip to the first command byte.
	start := -1
	for i, b := range data {
		if b >= 0x80 {
			start = i
			break
		}
	}
	if start < 0 {
		return Message{}, len(data), errNoCommand
	}

	buf := data[start:]
	cmd := buf[0]

	switch {
	case cmd&0xF0 == cmdAnalogMessage:
		if len(buf) < 3 {
			return Message{}, 0, errIncomplete
		}
		return Message{
			Type:  MessageAnalog,
			Pin:   int(cmd & 0x0F),
			Value: decode14(buf[1], buf[2]),
		}, start + 3, nil

	case cmd&0xF0 == cmdDigitalMessage:
		if len(buf) < 3 {
			return Message{}, 0, errIncomplete
		}
		return Message{
			Type:  MessageDigital,
			Pin:   int(cmd & 0x0F),
			Value: decode14(buf[1], buf[2]),
		}, start + 3, nil

	case cmd == cmdReportVersion:
		if len(buf) < 3 {
			return Message{}, 0, errIncomplete
		}
		return Message{Type: MessageVersion, Major: buf[1], Minor: buf[2]}, start + 3, nil

	case cmd == cmdSysexStart:
		end := -1
		for i := 1; i < len(buf); i++ {
			if buf[i] == cmdSysexEnd {
				end = i
				break
			}
		}
		if end < 0 {
			return Message{}, 0, errIncomplete
		}
		if end < 2 {
			// Empty sysex, nothing to dispatch.
			return Message{Type: MessageSysex}, start + end + 1, nil
		}
		msg := decodeSysex(buf[1], buf[2:end])
		return msg, start + end + 1, nil

	default:
		// Unknown or host-direction command byte; drop it and let the
		// caller resynchronize on the next one.
		return Message{}, start + 1, fmt.Errorf("unexpected command byte 0x%02X", cmd)
	}
}

func decodeSysex(sub byte, payload []byte) Message {
	switch sub {
	case SysexReportFirmware:
		msg := Message{Type: MessageFirmware, Sysex: sub}
		if len(payload) >= 2 {
			msg.Major = payload[0]
			msg.Minor = payload[1]
			msg.Data = decode7bitPairs(payload[2:])
		}
		return msg
	case SysexStringData:
		return Message{Type: MessageString, Sysex: sub, Data: decode7bitPairs(payload)}
	default:
		return Message{Type: MessageSysex, Sysex: sub, Data: payload}
	}
}

// decode14 reassembles a 14-bit value from its LSB/MSB 7-bit halves.
func decode14(lsb, msb byte) int {
	return int(lsb&0x7F) | int(msb&0x7F)<<7
}

// encode14 splits a 14-bit value into LSB/MSB 7-bit halves.
func encode14(value int) (lsb, msb byte) {
	return byte(value & 0x7F), byte(value >> 7 & 0x7F)
}

// decode7bitPairs reassembles bytes that were transmitted as two 7-bit
// halves each, the encoding sysex payloads use for 8-bit data.
func decode7bitPairs(data []byte) []byte {
	out := make([]byte, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		out = append(out, data[i]&0x7F|data[i+1]<<7)
	}
	return out
}

// Outbound packet builders.

// SetPinModePacket configures the mode of a pin.
func SetPinModePacket(pin byte, mode PinMode) []byte {
	return []byte{cmdSetPinMode, pin, byte(mode)}
}

// DigitalWritePacket sets the value of a single digital pin.
func DigitalWritePacket(pin byte, value byte) []byte {
	return []byte{cmdSetDigitalValue, pin, value}
}

// AnalogWritePacket sets the PWM duty of a pin. Value is 0-16383, though
// boards typically use 0-255.
func AnalogWritePacket(pin byte, value int) []byte {
	lsb, msb := encode14(value)
	return []byte{cmdAnalogMessage | pin&0x0F, lsb, msb}
}

// ReportAnalogPacket enables or disables streaming of an analog channel.
func ReportAnalogPacket(pin byte, enable bool) []byte {
	var en byte
	if enable {
		en = 1
	}
	return []byte{cmdReportAnalog | pin&0x0F, en}
}

// ReportDigitalPacket enables or disables streaming of a digital port.
func ReportDigitalPacket(port byte, enable bool) []byte {
	var en byte
	if enable {
		en = 1
	}
	return []byte{cmdReportDigital | port&0x0F, en}
}

// VersionRequestPacket asks the board to report its protocol version.
func VersionRequestPacket() []byte {
	return []byte{cmdReportVersion}
}

// FirmwareQueryPacket asks the board to report its firmware name and version.
func FirmwareQueryPacket() []byte {
	return []byte{cmdSysexStart, SysexReportFirmware, cmdSysexEnd}
}

// CapabilityQueryPacket asks the board for its pin capability table.
func CapabilityQueryPacket() []byte {
	return []byte{cmdSysexStart, SysexCapabilityQuery, cmdSysexEnd}
}

// PinStateQueryPacket asks the board for the mode and state of one pin.
func PinStateQueryPacket(pin byte) []byte {
	return []byte{cmdSysexStart, SysexPinStateQuery, pin, cmdSysexEnd}
}

// SystemResetPacket commands a firmware-level reset.
func SystemResetPacket() []byte {
	return []byte{cmdSystemReset}
}
