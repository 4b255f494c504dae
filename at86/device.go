// Package at86 drives an Atmel/Microchip AT86RF233 2.4 GHz transceiver over
// SPI in basic operating mode.
//
// The driver issues state commands and observes TRX_STATUS; it never checks
// that a call is legal in the current state. Callers follow the sequence
//
//	PrepareTransmit -> WaitStatus(PLL_ON) -> LoadPayload -> StartTransmit
//	PrepareReceive -> RX_START -> AcknowledgeReceiveStart -> TRX_END -> ReadReceived
//
// and poll either IrqPending or ReadInterruptCause to detect events.
package at86

import (
	"context"
	"fmt"
	"time"
)

// Control performs the power and reset sequencing of the chip's control
// lines before the first register access.
type Control interface {
	PowerUp() error
}

// Device is an AT86RF233 behind a Bus.
type Device struct {
	bus   *Bus
	ctrl  Control
	latch *Latch

	// PollInterval is the pause between status reads while waiting for a
	// state. Zero spins.
	PollInterval time.Duration
}

// New returns a Device. ctrl may be nil when the chip is already powered.
// latch receives the chip's IRQ edges and is owned by the Device from here on.
func New(bus *Bus, ctrl Control, latch *Latch) *Device {
	if latch == nil {
		latch = new(Latch)
	}
	return &Device{bus: bus, ctrl: ctrl, latch: latch}
}

// Bus returns the underlying bus.
func (d *Device) Bus() *Bus {
	return d.bus
}

// Latch returns the interrupt latch.
func (d *Device) Latch() *Latch {
	return d.latch
}

// Init powers the chip, masks and clears all interrupt causes and forces
// it into TRX_OFF. The wait for TRX_OFF has no timeout of its own: a chip
// that never reports TRX_OFF is faulty, and Init only returns when ctx ends.
func (d *Device) Init(ctx context.Context) error {
	d.latch.Disarm()
	d.latch.Clear()

	if d.ctrl != nil {
		if err := d.ctrl.PowerUp(); err != nil {
			return fmt.Errorf("failed to power up transceiver: %w", err)
		}
	}

	if err := d.bus.WriteRegister(RegIrqMask, 0); err != nil {
		return fmt.Errorf("failed to mask interrupts: %w", err)
	}
	if _, err := d.bus.ReadRegister(RegIrqStatus); err != nil {
		return fmt.Errorf("failed to clear interrupt status: %w", err)
	}

	if err := d.SendCommand(CmdForceTrxOff); err != nil {
		return err
	}
	return d.WaitStatus(ctx, StatusTrxOff)
}

// Status reads the current transceiver status.
func (d *Device) Status() (Status, error) {
	v, err := d.Field(FieldTrxStatus)
	if err != nil {
		return 0, fmt.Errorf("failed to read status: %w", err)
	}
	return Status(v), nil
}

// SendCommand writes cmd to TRX_STATE.
func (d *Device) SendCommand(cmd Command) error {
	if err := d.bus.WriteRegister(RegTrxState, uint8(cmd)); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}
	return nil
}

// WaitStatus polls until the chip reports want.
func (d *Device) WaitStatus(ctx context.Context, want Status) error {
	_, err := d.poll(ctx, func(s Status) bool { return s == want })
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", want, err)
	}
	return nil
}

// poll reads the status until done accepts it and returns that status.
func (d *Device) poll(ctx context.Context, done func(Status) bool) (Status, error) {
	for {
		s, err := d.Status()
		if err != nil {
			return 0, err
		}
		if done(s) {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, fmt.Errorf("last status %s: %w", s, ctx.Err())
		default:
		}
		if d.PollInterval > 0 {
			time.Sleep(d.PollInterval)
		}
	}
}

// PrepareTransmit waits for any transmission in flight to finish, leaves
// receive mode if a frame is being received, and requests PLL_ON. The chip
// cannot go from BUSY_RX to PLL_ON directly. Callers wait for PLL_ON before
// loading and starting a transmission.
func (d *Device) PrepareTransmit(ctx context.Context) error {
	s, err := d.poll(ctx, func(s Status) bool { return s != StatusBusyTx })
	if err != nil {
		return fmt.Errorf("waiting for transmission to end: %w", err)
	}
	if s == StatusBusyRx {
		if err := d.SendCommand(CmdForceTrxOff); err != nil {
			return err
		}
	}
	return d.SendCommand(CmdPllOn)
}

// StartTransmit sends the frame buffer. The chip goes PLL_ON -> BUSY_TX and
// returns to PLL_ON by itself when the frame is out.
func (d *Device) StartTransmit() error {
	return d.SendCommand(CmdTxStart)
}

// PrepareReceive clears stale interrupt state, enables the RX_START and
// TRX_END causes, arms the latch and enters RX_ON.
func (d *Device) PrepareReceive() error {
	d.latch.Clear()
	if _, err := d.bus.ReadRegister(RegIrqStatus); err != nil {
		return fmt.Errorf("failed to clear interrupt status: %w", err)
	}
	if err := d.bus.WriteRegister(RegIrqMask, uint8(IrqRxStart|IrqTrxEnd)); err != nil {
		return fmt.Errorf("failed to enable receive interrupts: %w", err)
	}
	d.latch.Arm()
	return d.SendCommand(CmdRxOn)
}

// AcknowledgeReceiveStart consumes the RX_START event and re-arms the latch
// for TRX_END. The chip keeps its IRQ line high until IRQ_STATUS is read,
// so callers read the cause with ReadInterruptCause before acknowledging.
func (d *Device) AcknowledgeReceiveStart() {
	d.latch.Clear()
	d.latch.Arm()
}

// ReadInterruptCause reads IRQ_STATUS and clears the latch.
//
// The read is destructive: the chip clears IRQ_STATUS as a side effect, so
// every call consumes the causes it returns. Polling with this method
// instead of IrqPending clears causes on each iteration; a cause seen once
// is never reported again.
func (d *Device) ReadInterruptCause() (IRQ, error) {
	d.latch.Clear()
	v, err := d.bus.ReadRegister(RegIrqStatus)
	if err != nil {
		return 0, fmt.Errorf("failed to read interrupt status: %w", err)
	}
	return IRQ(v), nil
}

// IrqPending reports whether the IRQ line rose since it was last armed.
// It does not touch the bus.
func (d *Device) IrqPending() bool {
	return d.latch.Pending()
}
