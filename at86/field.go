package at86

import (
	"encoding/binary"
	"fmt"
)

// Field describes a bitfield inside a single register.
type Field struct {
	Reg   uint8
	Mask  uint8
	Shift uint8
}

// Max returns the largest value the field can hold.
func (f Field) Max() uint8 {
	return f.Mask >> f.Shift
}

// Extract returns the field value from a raw register byte.
func (f Field) Extract(reg uint8) uint8 {
	return (reg & f.Mask) >> f.Shift
}

// Insert returns reg with the field replaced by value. Bits outside the
// field are preserved and bits of value that do not fit are dropped.
func (f Field) Insert(reg uint8, value uint8) uint8 {
	return (reg &^ f.Mask) | ((value << f.Shift) & f.Mask)
}

// Field reads the register holding f and returns the field value.
func (d *Device) Field(f Field) (uint8, error) {
	reg, err := d.bus.ReadRegister(f.Reg)
	if err != nil {
		return 0, err
	}
	return f.Extract(reg), nil
}

// SetField updates f with a read-modify-write of its register.
func (d *Device) SetField(f Field, value uint8) error {
	reg, err := d.bus.ReadRegister(f.Reg)
	if err != nil {
		return err
	}
	return d.bus.WriteRegister(f.Reg, f.Insert(reg, value))
}

// readPair reads a 16-bit value stored little endian in lo and lo+1.
func (d *Device) readPair(lo uint8) (uint16, error) {
	var buf [2]byte
	var err error
	if buf[0], err = d.bus.ReadRegister(lo); err != nil {
		return 0, err
	}
	if buf[1], err = d.bus.ReadRegister(lo + 1); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// writePair writes v little endian into lo and lo+1, low byte first.
func (d *Device) writePair(lo uint8, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	if err := d.bus.WriteRegister(lo, buf[0]); err != nil {
		return err
	}
	return d.bus.WriteRegister(lo+1, buf[1])
}

// PartNumber reads PART_NUM. An AT86RF233 reports 0x0B.
func (d *Device) PartNumber() (uint8, error) {
	return d.bus.ReadRegister(RegPartNum)
}

// Version reads VERSION_NUM.
func (d *Device) Version() (uint8, error) {
	return d.bus.ReadRegister(RegVersionNum)
}

// ManufacturerID reads the JEDEC manufacturer ID (0x001F for Atmel).
func (d *Device) ManufacturerID() (uint16, error) {
	return d.readPair(RegManID0)
}

// ShortAddress reads the 16-bit short address.
func (d *Device) ShortAddress() (uint16, error) {
	return d.readPair(RegShortAddr0)
}

// SetShortAddress writes the 16-bit short address.
func (d *Device) SetShortAddress(addr uint16) error {
	return d.writePair(RegShortAddr0, addr)
}

// PANID reads the 16-bit PAN identifier.
func (d *Device) PANID() (uint16, error) {
	return d.readPair(RegPanID0)
}

// SetPANID writes the 16-bit PAN identifier.
func (d *Device) SetPANID(pan uint16) error {
	return d.writePair(RegPanID0, pan)
}

// IEEEAddress reads the 64-bit extended address from IEEE_ADDR_0..7.
func (d *Device) IEEEAddress() (uint64, error) {
	var buf [8]byte
	for i := range buf {
		v, err := d.bus.ReadRegister(RegIEEEAddr0 + uint8(i))
		if err != nil {
			return 0, err
		}
		buf[i] = v
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// SetIEEEAddress writes the 64-bit extended address.
func (d *Device) SetIEEEAddress(addr uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], addr)
	for i, v := range buf {
		if err := d.bus.WriteRegister(RegIEEEAddr0+uint8(i), v); err != nil {
			return err
		}
	}
	return nil
}

// Channel returns the RF channel number (11-26 in the 2.4 GHz band).
func (d *Device) Channel() (uint8, error) {
	return d.Field(FieldChannel)
}

// SetChannel selects the RF channel. Only the low five bits are used.
func (d *Device) SetChannel(channel uint8) error {
	return d.SetField(FieldChannel, channel)
}

// CCAMode returns the clear channel assessment mode.
func (d *Device) CCAMode() (uint8, error) {
	return d.Field(FieldCcaMode)
}

// SetCCAMode selects the clear channel assessment mode (0-3).
func (d *Device) SetCCAMode(mode uint8) error {
	if mode > FieldCcaMode.Max() {
		return fmt.Errorf("invalid CCA mode %d", mode)
	}
	return d.SetField(FieldCcaMode, mode)
}

// RSSI returns the current 5-bit RSSI value.
func (d *Device) RSSI() (uint8, error) {
	return d.Field(FieldRssi)
}

// CRCValid reports whether the last received frame passed its FCS check.
// The flag is meaningful from TRX_END until the next frame starts.
func (d *Device) CRCValid() (bool, error) {
	v, err := d.Field(FieldRxCrcValid)
	return v == 1, err
}

// BatteryOK reports the battery monitor comparator.
func (d *Device) BatteryOK() (bool, error) {
	v, err := d.Field(FieldBatmonOk)
	return v == 1, err
}

// EDLevel returns the result of the last energy detection.
func (d *Device) EDLevel() (uint8, error) {
	return d.bus.ReadRegister(RegPhyEdLevel)
}

// EnablePhaseMeasurement turns the phase measurement unit on or off.
func (d *Device) EnablePhaseMeasurement(enable bool) error {
	var v uint8
	if enable {
		v = 1
	}
	return d.SetField(FieldPmuEn, v)
}

// Phase reads one phase sample from PHY_PMU_VALUE. 0-255 spans one
// full turn.
func (d *Device) Phase() (uint8, error) {
	return d.bus.ReadRegister(RegPhyPmuVal)
}
