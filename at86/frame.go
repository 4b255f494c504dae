package at86

import (
	"errors"
	"fmt"
)

// MaxFrameLength is the largest PHY payload the chip accepts.
const MaxFrameLength = 127

var ErrFrameTooLong = errors.New("frame exceeds 127 bytes")

// LoadPayload writes a length byte followed by payload into the frame
// buffer. The contents are not inspected.
func (d *Device) LoadPayload(payload []byte) error {
	if len(payload) > MaxFrameLength {
		return fmt.Errorf("load %d bytes: %w", len(payload), ErrFrameTooLong)
	}
	buf := make([]byte, 1+len(payload))
	buf[0] = uint8(len(payload))
	copy(buf[1:], payload)
	return d.bus.WriteBuffer(0, buf)
}

// ReadReceived disables all chip interrupts and reads count bytes from the
// frame buffer at offset. Offset 0 is the length byte and is read in the
// fast access mode.
func (d *Device) ReadReceived(count int, offset uint8) ([]byte, error) {
	if err := d.bus.WriteRegister(RegIrqMask, 0); err != nil {
		return nil, fmt.Errorf("failed to mask interrupts: %w", err)
	}
	if offset == 0 {
		return d.bus.ReadBufferFast(count)
	}
	return d.bus.ReadBuffer(offset, count)
}

// ReadFrame reads the received frame from the start of the frame buffer
// using the fast access mode and returns the payload without its length
// byte.
func (d *Device) ReadFrame() ([]byte, error) {
	hdr, err := d.bus.ReadBufferFast(1)
	if err != nil {
		return nil, err
	}
	n := int(hdr[0] & MaxFrameLength)
	if n == 0 {
		return []byte{}, nil
	}
	data, err := d.bus.ReadBufferFast(1 + n)
	if err != nil {
		return nil, err
	}
	return data[1:], nil
}
