// Package at86test provides an in-memory AT86RF233 that speaks the SPI
// framing of package at86, for tests of code built on the driver.
package at86test

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3"

	"github.com/linht/rf-manager/at86"
)

// Chip emulates the register file and frame buffer of an AT86RF233 behind
// a periph.io conn.Conn. Reads of IRQ_STATUS clear it, TRX_STATUS follows
// a script, and every transaction is logged as shifted out.
type Chip struct {
	mu       sync.Mutex
	regs     [at86.MaxRegister + 1]uint8
	sram     [at86.FrameBufferSize]uint8
	log      [][]byte
	commands []at86.Command
	statuses []at86.Status
	reads    map[uint8]int

	// OnCommand is called after a command is written to TRX_STATE.
	OnCommand func(cmd at86.Command)
	// OnRead is called after every register read with the address read.
	OnRead func(addr uint8)
	// OnIRQ is called when Raise sets an enabled cause.
	OnIRQ func()
}

// NewChip returns a Chip reporting P_ON with the AT86RF233 reset values of
// the identification registers.
func NewChip() *Chip {
	c := &Chip{reads: make(map[uint8]int)}
	c.regs[at86.RegTrxCtrl0] = 0x09
	c.regs[at86.RegPhyCcCca] = 0x2B
	c.regs[at86.RegPartNum] = at86.PartNumAT86RF233
	c.regs[at86.RegVersionNum] = at86.VersionRevB
	c.regs[at86.RegManID0] = 0x1F
	c.regs[at86.RegShortAddr0] = 0xFF
	c.regs[at86.RegShortAddr1] = 0xFF
	c.regs[at86.RegPanID0] = 0xFF
	c.regs[at86.RegPanID1] = 0xFF
	return c
}

func (c *Chip) String() string {
	return "at86test"
}

// Duplex implements conn.Conn.
func (c *Chip) Duplex() conn.Duplex {
	return conn.Full
}

// Tx implements conn.Conn.
func (c *Chip) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return fmt.Errorf("tx and rx buffers must be the same length")
	}
	if len(w) == 0 {
		return fmt.Errorf("empty transaction")
	}

	c.mu.Lock()
	c.log = append(c.log, append([]byte(nil), w...))

	var (
		cmd     *at86.Command
		readReg = -1
	)
	op := w[0]
	switch {
	case op&0xC0 == 0xC0:
		addr := op & 0x3F
		if len(w) > 1 {
			c.regs[addr] = w[1]
			if addr == at86.RegTrxState {
				v := at86.Command(w[1] & 0x1F)
				c.commands = append(c.commands, v)
				cmd = &v
			}
		}
	case op&0xC0 == 0x80:
		addr := op & 0x3F
		if len(w) > 1 {
			r[1] = c.readLocked(addr)
			readReg = int(addr)
		}
	case op == 0x40:
		if len(w) > 1 && int(w[1]) < len(c.sram) {
			copy(c.sram[w[1]:], w[2:])
		}
	case op == 0x00:
		if len(w) > 1 && int(w[1]) < len(c.sram) {
			copy(r[2:], c.sram[w[1]:])
		}
	case op == 0x20:
		copy(r[1:], c.sram[:])
	default:
		c.mu.Unlock()
		return fmt.Errorf("unknown access mode 0x%02X", op)
	}
	c.mu.Unlock()

	if cmd != nil && c.OnCommand != nil {
		c.OnCommand(*cmd)
	}
	if readReg >= 0 && c.OnRead != nil {
		c.OnRead(uint8(readReg))
	}
	return nil
}

func (c *Chip) readLocked(addr uint8) uint8 {
	c.reads[addr]++
	switch addr {
	case at86.RegTrxStatus:
		if len(c.statuses) > 0 {
			s := c.statuses[0]
			if len(c.statuses) > 1 {
				c.statuses = c.statuses[1:]
			}
			c.regs[addr] = c.regs[addr]&0xE0 | uint8(s)
		}
	case at86.RegIrqStatus:
		v := c.regs[addr]
		c.regs[addr] = 0
		return v
	}
	return c.regs[addr]
}

// ScriptStatus replaces the TRX_STATUS script. Each status read consumes
// one entry; the last entry repeats.
func (c *Chip) ScriptStatus(s ...at86.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append([]at86.Status(nil), s...)
}

// Raise sets causes in IRQ_STATUS and calls OnIRQ if any of them is enabled
// in IRQ_MASK.
func (c *Chip) Raise(cause at86.IRQ) {
	c.mu.Lock()
	c.regs[at86.RegIrqStatus] |= uint8(cause)
	enabled := c.regs[at86.RegIrqMask]&uint8(cause) != 0
	c.mu.Unlock()

	if enabled && c.OnIRQ != nil {
		c.OnIRQ()
	}
}

// Reg returns a register without side effects.
func (c *Chip) Reg(addr uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[addr]
}

// SetReg sets a register without logging a transaction.
func (c *Chip) SetReg(addr, value uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[addr] = value
}

// SRAM returns a copy of n frame buffer bytes starting at offset.
func (c *Chip) SRAM(offset, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.sram[offset:offset+n]...)
}

// LoadSRAM writes data into the frame buffer at offset.
func (c *Chip) LoadSRAM(offset int, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.sram[offset:], data)
}

// Log returns every transaction shifted out so far.
func (c *Chip) Log() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.log))
	for i, w := range c.log {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Commands returns the commands written to TRX_STATE so far.
func (c *Chip) Commands() []at86.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]at86.Command(nil), c.commands...)
}

// Reads returns how many times addr was read.
func (c *Chip) Reads(addr uint8) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[addr]
}

// Reset clears the transaction log and command history.
func (c *Chip) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = nil
	c.commands = nil
	c.reads = make(map[uint8]int)
}
