package bus

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxPayload is the classic bus data field width.
	MaxPayload = 8
	// WireLen is the encoded datagram size: id(4) | len(1) | data(8).
	WireLen = 4 + 1 + MaxPayload
)

var (
	ErrPayloadTooLarge = errors.New("bus: payload too large")
	ErrShortFrame      = errors.New("bus: short frame")
	ErrInvalidLength   = errors.New("bus: invalid frame length")
)

// Frame is one bus message.
type Frame struct {
	ID   uint32
	Data [MaxPayload]byte
	Len  uint8
}

func NewFrame(id uint32, payload []byte) (Frame, error) {
	if len(payload) > MaxPayload {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	f := Frame{ID: id, Len: uint8(len(payload))}
	copy(f.Data[:], payload)
	return f, nil
}

// Payload returns a copy of the first Len data bytes.
func (f Frame) Payload() []byte {
	n := int(f.Len)
	if n > MaxPayload {
		n = MaxPayload
	}
	out := make([]byte, n)
	copy(out, f.Data[:n])
	return out
}

func (f Frame) Validate() error {
	if f.Len > MaxPayload {
		return fmt.Errorf("%w: %d", ErrInvalidLength, f.Len)
	}
	return nil
}

func EncodeFrame(f Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, WireLen)
	binary.BigEndian.PutUint32(buf[0:4], f.ID)
	buf[4] = f.Len
	copy(buf[5:], f.Data[:f.Len])
	return buf, nil
}

func DecodeFrame(b []byte) (Frame, error) {
	if len(b) < WireLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	f := Frame{
		ID:  binary.BigEndian.Uint32(b[0:4]),
		Len: b[4],
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	copy(f.Data[:f.Len], b[5:5+int(f.Len)])
	return f, nil
}
