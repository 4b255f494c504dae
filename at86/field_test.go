package at86_test

import (
	"reflect"
	"testing"

	"github.com/linht/rf-manager/at86"
	"github.com/linht/rf-manager/at86/at86test"
)

var fields = map[string]at86.Field{
	"CLKM_CTRL":   at86.FieldClkmCtrl,
	"PMU_EN":      at86.FieldPmuEn,
	"IRQ_POL":     at86.FieldIrqPolarity,
	"AUTO_CRC":    at86.FieldTxAutoCrcOn,
	"TX_PWR":      at86.FieldTxPwr,
	"CHANNEL":     at86.FieldChannel,
	"CCA_MODE":    at86.FieldCcaMode,
	"CCA_REQUEST": at86.FieldCcaRequest,
	"CCA_THRES":   at86.FieldCcaEdThres,
	"TRAC_STATUS": at86.FieldTracState,
}

func TestFieldRoundTrip(t *testing.T) {
	for name, f := range fields {
		t.Run(name, func(t *testing.T) {
			for _, background := range []uint8{0x00, 0xFF, 0xA5, 0x5A} {
				for v := 0; v <= int(f.Max()); v++ {
					chip := at86test.NewChip()
					chip.SetReg(f.Reg, background)
					dev := at86.New(at86.NewBus(chip, nil), nil, nil)

					if err := dev.SetField(f, uint8(v)); err != nil {
						t.Fatal(err)
					}
					got, err := dev.Field(f)
					if err != nil {
						t.Fatal(err)
					}
					if got != uint8(v) {
						t.Errorf("bg 0x%02X: Field = %d, want %d", background, got, v)
					}
					if other := chip.Reg(f.Reg) &^ f.Mask; other != background&^f.Mask {
						t.Errorf("bg 0x%02X v %d: bits outside mask = 0x%02X, want 0x%02X",
							background, v, other, background&^f.Mask)
					}
				}
			}
		})
	}
}

func TestFieldInsertDropsOverflow(t *testing.T) {
	f := at86.Field{Reg: 0x08, Mask: 0x60, Shift: 5}
	if got := f.Insert(0x9F, 0xFF); got != 0xFF {
		t.Errorf("Insert(0x9F, 0xFF) = 0x%02X, want 0xFF", got)
	}
	if got := f.Insert(0xFF, 0x04); got != 0x9F {
		t.Errorf("Insert(0xFF, 0x04) = 0x%02X, want 0x9F", got)
	}
}

func TestSixteenBitRegisters(t *testing.T) {
	chip := at86test.NewChip()
	dev := at86.New(at86.NewBus(chip, nil), nil, nil)

	man, err := dev.ManufacturerID()
	if err != nil {
		t.Fatal(err)
	}
	if man != at86.ManufacturerAtmel {
		t.Errorf("ManufacturerID = 0x%04X, want 0x%04X", man, at86.ManufacturerAtmel)
	}

	chip.Reset()
	if err := dev.SetPANID(0xBEEF); err != nil {
		t.Fatal(err)
	}
	want := [][]byte{{0xC0 | at86.RegPanID0, 0xEF}, {0xC0 | at86.RegPanID1, 0xBE}}
	if got := chip.Log(); !reflect.DeepEqual(got, want) {
		t.Errorf("SetPANID wire = % X, want % X", got, want)
	}
	pan, err := dev.PANID()
	if err != nil {
		t.Fatal(err)
	}
	if pan != 0xBEEF {
		t.Errorf("PANID = 0x%04X, want 0xBEEF", pan)
	}

	if err := dev.SetShortAddress(0x1234); err != nil {
		t.Fatal(err)
	}
	if lo, hi := chip.Reg(at86.RegShortAddr0), chip.Reg(at86.RegShortAddr1); lo != 0x34 || hi != 0x12 {
		t.Errorf("short address registers = %02X %02X, want 34 12", lo, hi)
	}
	addr, err := dev.ShortAddress()
	if err != nil {
		t.Fatal(err)
	}
	if addr != 0x1234 {
		t.Errorf("ShortAddress = 0x%04X, want 0x1234", addr)
	}

	if err := dev.SetIEEEAddress(0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	if got := chip.Reg(at86.RegIEEEAddr0); got != 0x08 {
		t.Errorf("IEEE_ADDR_0 = 0x%02X, want 0x08", got)
	}
	ieee, err := dev.IEEEAddress()
	if err != nil {
		t.Fatal(err)
	}
	if ieee != 0x0102030405060708 {
		t.Errorf("IEEEAddress = 0x%016X", ieee)
	}
}

func TestIdentification(t *testing.T) {
	chip := at86test.NewChip()
	dev := at86.New(at86.NewBus(chip, nil), nil, nil)

	part, err := dev.PartNumber()
	if err != nil || part != at86.PartNumAT86RF233 {
		t.Errorf("PartNumber = 0x%02X, %v", part, err)
	}
	ver, err := dev.Version()
	if err != nil || ver != at86.VersionRevB {
		t.Errorf("Version = 0x%02X, %v", ver, err)
	}
	ch, err := dev.Channel()
	if err != nil || ch != 11 {
		t.Errorf("Channel = %d, %v; want reset value 11", ch, err)
	}
}

func TestPhaseMeasurement(t *testing.T) {
	chip := at86test.NewChip()
	dev := at86.New(at86.NewBus(chip, nil), nil, nil)

	if err := dev.EnablePhaseMeasurement(true); err != nil {
		t.Fatal(err)
	}
	if got := chip.Reg(at86.RegTrxCtrl0); got != 0x29 {
		t.Errorf("TRX_CTRL_0 = 0x%02X, want 0x29", got)
	}
	if err := dev.EnablePhaseMeasurement(false); err != nil {
		t.Fatal(err)
	}
	if got := chip.Reg(at86.RegTrxCtrl0); got != 0x09 {
		t.Errorf("TRX_CTRL_0 = 0x%02X, want 0x09", got)
	}

	chip.SetReg(at86.RegPhyPmuVal, 0x7F)
	if p, err := dev.Phase(); err != nil || p != 0x7F {
		t.Errorf("Phase = 0x%02X, %v", p, err)
	}
}

func TestCCAMode(t *testing.T) {
	chip := at86test.NewChip()
	dev := at86.New(at86.NewBus(chip, nil), nil, nil)

	if mode, err := dev.CCAMode(); err != nil || mode != 1 {
		t.Errorf("CCAMode = %d, %v; want reset value 1", mode, err)
	}
	if err := dev.SetCCAMode(3); err != nil {
		t.Fatal(err)
	}
	if got := chip.Reg(at86.RegPhyCcCca); got != 0x6B {
		t.Errorf("PHY_CC_CCA = 0x%02X, want 0x6B with channel kept", got)
	}
	if err := dev.SetCCAMode(4); err == nil {
		t.Error("SetCCAMode(4) accepted")
	}
}

func TestSignalQuality(t *testing.T) {
	chip := at86test.NewChip()
	dev := at86.New(at86.NewBus(chip, nil), nil, nil)
	chip.SetReg(at86.RegPhyRssi, 0x80|0x60|0x0C)
	chip.SetReg(at86.RegPhyEdLevel, 0x42)
	chip.SetReg(at86.RegBatmon, 0x20|0x0A)

	if rssi, err := dev.RSSI(); err != nil || rssi != 0x0C {
		t.Errorf("RSSI = 0x%02X, %v; want 0x0C", rssi, err)
	}
	if ok, err := dev.CRCValid(); err != nil || !ok {
		t.Errorf("CRCValid = %v, %v", ok, err)
	}
	if ed, err := dev.EDLevel(); err != nil || ed != 0x42 {
		t.Errorf("EDLevel = 0x%02X, %v", ed, err)
	}
	if ok, err := dev.BatteryOK(); err != nil || !ok {
		t.Errorf("BatteryOK = %v, %v", ok, err)
	}

	chip.SetReg(at86.RegPhyRssi, 0x0C)
	chip.SetReg(at86.RegBatmon, 0x0A)
	if ok, _ := dev.CRCValid(); ok {
		t.Error("CRCValid set without RX_CRC_VALID")
	}
	if ok, _ := dev.BatteryOK(); ok {
		t.Error("BatteryOK set without BATMON_OK")
	}
}
