package at86

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
)

// SPI access modes. The first byte of every transaction selects the mode.
const (
	opRegRead   = 0x80 // | address
	opRegWrite  = 0xC0 // | address
	opSramRead  = 0x00
	opSramWrite = 0x40
	opFbRead    = 0x20

	// FrameBufferSize is the size of the chip's shared frame buffer.
	FrameBufferSize = 128
)

var (
	ErrRegisterRange = errors.New("register address out of range")
	ErrBufferRange   = errors.New("frame buffer access out of range")
)

// Line is a GPIO output. *gpiocdev.Line satisfies it.
type Line interface {
	SetValue(value int) error
}

// Bus frames register, SRAM and frame buffer transactions for the
// AT86RF233 SPI interface.
//
// Every transaction holds the bus lock from chip select assertion to
// release. The interrupt path runs its handler through Critical, so an
// edge that arrives in the middle of a multi-byte exchange is handled only
// after the exchange completes.
type Bus struct {
	conn conn.Conn
	cs   Line
	mu   sync.Mutex
}

// NewBus returns a Bus on c, a full-duplex SPI connection such as a
// periph.io spi.Conn. cs is an optional manual chip select line (active
// low); pass nil when the SPI driver frames chip select itself.
func NewBus(c conn.Conn, cs Line) *Bus {
	return &Bus{conn: c, cs: cs}
}

// Critical runs fn with the bus held, excluding any transaction.
func (b *Bus) Critical(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}

// transfer performs one transaction: assert chip select, exchange w,
// release chip select. It returns the bytes clocked in.
func (b *Bus) transfer(w []byte) ([]byte, error) {
	r := make([]byte, len(w))

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cs != nil {
		if err := b.cs.SetValue(0); err != nil {
			return nil, fmt.Errorf("failed to assert chip select: %w", err)
		}
	}

	err := b.conn.Tx(w, r)

	if b.cs != nil {
		if csErr := b.cs.SetValue(1); csErr != nil && err == nil {
			err = fmt.Errorf("failed to release chip select: %w", csErr)
		}
	}

	if err != nil {
		return nil, err
	}
	return r, nil
}

// WriteRegister writes value to the register at addr.
func (b *Bus) WriteRegister(addr uint8, value uint8) error {
	if addr > MaxRegister {
		return fmt.Errorf("write 0x%02X: %w", addr, ErrRegisterRange)
	}
	if _, err := b.transfer([]byte{opRegWrite | addr, value}); err != nil {
		return fmt.Errorf("failed to write register 0x%02X: %w", addr, err)
	}
	return nil
}

// ReadRegister reads the register at addr.
func (b *Bus) ReadRegister(addr uint8) (uint8, error) {
	if addr > MaxRegister {
		return 0, fmt.Errorf("read 0x%02X: %w", addr, ErrRegisterRange)
	}
	r, err := b.transfer([]byte{opRegRead | addr, 0x00})
	if err != nil {
		return 0, fmt.Errorf("failed to read register 0x%02X: %w", addr, err)
	}
	return r[1], nil
}

// WriteBuffer writes data into the frame buffer starting at offset.
func (b *Bus) WriteBuffer(offset uint8, data []byte) error {
	if int(offset)+len(data) > FrameBufferSize {
		return fmt.Errorf("write %d bytes at %d: %w", len(data), offset, ErrBufferRange)
	}
	w := make([]byte, 2+len(data))
	w[0] = opSramWrite
	w[1] = offset
	copy(w[2:], data)
	if _, err := b.transfer(w); err != nil {
		return fmt.Errorf("failed to write frame buffer at %d: %w", offset, err)
	}
	return nil
}

// ReadBuffer reads count bytes from the frame buffer starting at offset.
func (b *Bus) ReadBuffer(offset uint8, count int) ([]byte, error) {
	if count < 0 || int(offset)+count > FrameBufferSize {
		return nil, fmt.Errorf("read %d bytes at %d: %w", count, offset, ErrBufferRange)
	}
	w := make([]byte, 2+count)
	w[0] = opSramRead
	w[1] = offset
	r, err := b.transfer(w)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame buffer at %d: %w", offset, err)
	}
	return r[2:], nil
}

// ReadBufferFast reads count bytes from the start of the frame buffer
// using the frame buffer access mode, which needs no offset byte.
func (b *Bus) ReadBufferFast(count int) ([]byte, error) {
	if count < 0 || count > FrameBufferSize {
		return nil, fmt.Errorf("fast read %d bytes: %w", count, ErrBufferRange)
	}
	w := make([]byte, 1+count)
	w[0] = opFbRead
	r, err := b.transfer(w)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame buffer: %w", err)
	}
	return r[1:], nil
}
