package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Uplink packet delimiters and types.
const (
	STX byte = 0x02
	ETX byte = 0x03

	// PacketStatus carries a serialized status record.
	PacketStatus byte = 0x01

	// MaxPacketBody bounds the body length accepted by the scanner. A length
	// prefix beyond this is treated as corruption and resynchronized past.
	MaxPacketBody = 4096

	// minPacketLen: STX + length(2) + type + CRC(2) + ETX with an empty body.
	minPacketLen = 7
)

// Packet is one delimiter-framed uplink message.
// Wire layout: STX | length(2 LE, covers type+body) | type | body | CRC16(2 LE, over type+body) | ETX.
type Packet struct {
	Type byte
	Body []byte
}

// PackPacket frames type+body for transmission on the uplink byte stream.
func PackPacket(typ byte, body []byte) []byte {
	length := uint16(1 + len(body))
	buf := make([]byte, 0, minPacketLen+len(body))
	buf = append(buf, STX)
	buf = binary.LittleEndian.AppendUint16(buf, length)
	buf = append(buf, typ)
	buf = append(buf, body...)
	crc := CRC16(buf[3 : 3+int(length)])
	buf = binary.LittleEndian.AppendUint16(buf, crc)
	buf = append(buf, ETX)
	return buf
}

// UnpackPacket decodes a single complete uplink packet.
func UnpackPacket(raw []byte) (*Packet, error) {
	s := NewScanner()
	s.Push(raw)
	pkt, err := s.Next()
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, fmt.Errorf("%w: incomplete packet", ErrMalformed)
	}
	return pkt, nil
}

// Scanner extracts packets from a continuous uplink byte stream. It scans
// for the start delimiter and, after any validation failure, resynchronizes
// at the next candidate rather than terminating the link.
type Scanner struct {
	buf []byte
}

func NewScanner() *Scanner {
	return &Scanner{}
}

// Push appends received bytes to the scan buffer.
func (s *Scanner) Push(p []byte) {
	s.buf = append(s.buf, p...)
}

// Next returns the next complete packet. A nil packet with nil error means
// more bytes are needed. A non-nil error reports one corrupt candidate; the
// scanner has already advanced past it and Next may be called again.
func (s *Scanner) Next() (*Packet, error) {
	for {
		start := bytes.IndexByte(s.buf, STX)
		if start < 0 {
			s.buf = s.buf[:0]
			return nil, nil
		}
		if start > 0 {
			s.buf = s.buf[start:]
		}
		if len(s.buf) < 3 {
			return nil, nil
		}
		length := int(binary.LittleEndian.Uint16(s.buf[1:3]))
		if length == 0 || length > MaxPacketBody+1 {
			s.buf = s.buf[1:]
			return nil, fmt.Errorf("%w: implausible length %d", ErrMalformed, length)
		}
		total := 1 + 2 + length + 2 + 1
		if len(s.buf) < total {
			return nil, nil
		}
		if s.buf[total-1] != ETX {
			s.buf = s.buf[1:]
			return nil, fmt.Errorf("%w: missing end delimiter", ErrMalformed)
		}
		content := s.buf[3 : 3+length]
		want := binary.LittleEndian.Uint16(s.buf[3+length : 5+length])
		if got := CRC16(content); got != want {
			s.buf = s.buf[1:]
			return nil, fmt.Errorf("%w: got 0x%04X, want 0x%04X", ErrChecksumMismatch, got, want)
		}
		pkt := &Packet{
			Type: content[0],
			Body: append([]byte(nil), content[1:]...),
		}
		s.buf = append(s.buf[:0], s.buf[total:]...)
		return pkt, nil
	}
}
