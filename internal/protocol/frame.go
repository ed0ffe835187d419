package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Peripheral module identifiers on the bus.
const (
	ModuleMain     byte = 0x01
	ModuleTank     byte = 0x10
	ModuleGrow     byte = 0x20
	ModuleNutrient byte = 0x30
	ModuleFeed     byte = 0x40
)

// Frame commands.
const (
	CmdSensor  byte = 0x01
	CmdStatus  byte = 0x02
	CmdCommand byte = 0x10
	CmdAck     byte = 0x11
	CmdError   byte = 0x12
)

const (
	frameHeaderLen = 8
	frameCRCLen    = 2

	// MinFrameLen is the smallest valid frame: header plus checksum, empty payload.
	MinFrameLen = frameHeaderLen + frameCRCLen
)

var (
	// ErrMalformed indicates a frame or packet too short or structurally invalid.
	ErrMalformed = errors.New("protocol: malformed frame")
	// ErrChecksumMismatch indicates the trailing CRC does not match the content.
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
)

// Frame is one peripheral-bus message.
// Header layout (little-endian): source(1) command(1) flags(1) reserved(1) timestamp_ms(4).
type Frame struct {
	Source      byte
	Command     byte
	Flags       byte
	TimestampMs uint32
	Payload     []byte
}

// Marshal encodes the frame as header + payload + CRC16 over header+payload.
func (f *Frame) Marshal() []byte {
	buf := make([]byte, frameHeaderLen+len(f.Payload)+frameCRCLen)
	buf[0] = f.Source
	buf[1] = f.Command
	buf[2] = f.Flags
	buf[3] = 0
	binary.LittleEndian.PutUint32(buf[4:8], f.TimestampMs)
	copy(buf[frameHeaderLen:], f.Payload)
	crc := CRC16(buf[:frameHeaderLen+len(f.Payload)])
	binary.LittleEndian.PutUint16(buf[frameHeaderLen+len(f.Payload):], crc)
	return buf
}

// UnmarshalFrame decodes and validates a raw bus frame.
// The payload schema is the caller's concern; only length and CRC are checked here.
func UnmarshalFrame(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameLen {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformed, len(raw), MinFrameLen)
	}
	body := raw[:len(raw)-frameCRCLen]
	want := binary.LittleEndian.Uint16(raw[len(raw)-frameCRCLen:])
	if got := CRC16(body); got != want {
		return nil, fmt.Errorf("%w: got 0x%04X, want 0x%04X", ErrChecksumMismatch, got, want)
	}
	f := &Frame{
		Source:      raw[0],
		Command:     raw[1],
		Flags:       raw[2],
		TimestampMs: binary.LittleEndian.Uint32(raw[4:8]),
		Payload:     append([]byte(nil), raw[frameHeaderLen:len(raw)-frameCRCLen]...),
	}
	return f, nil
}
