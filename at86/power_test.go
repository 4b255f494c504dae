package at86_test

import (
	"testing"

	"github.com/linht/rf-manager/at86"
	"github.com/linht/rf-manager/at86/at86test"
)

func TestTxPowerQuantization(t *testing.T) {
	want := map[int]int{
		-30: -17, -18: -17, -17: -17, -16: -17, -15: -17,
		-14: -12, -13: -12, -12: -12, -11: -12,
		-10: -8, -9: -8, -8: -8,
		-7: -6, -6: -6,
		-5: -4, -4: -4,
		-3: -3, -2: -2, -1: -1, 0: 0, 1: 1, 2: 2,
		3: 3, 4: 4, 5: 4, 10: 4,
	}
	for x := -30; x <= 10; x++ {
		chip := at86test.NewChip()
		chip.SetReg(at86.RegPhyTxPwr, 0xF0)
		dev := at86.New(at86.NewBus(chip, nil), nil, nil)

		if err := dev.SetTxPower(x); err != nil {
			t.Fatal(err)
		}
		got, err := dev.TxPower()
		if err != nil {
			t.Fatal(err)
		}
		if exp := at86.PowerDbm(at86.PowerCode(x)); got != exp {
			t.Errorf("SetTxPower(%d): TxPower = %d, table says %d", x, got, exp)
		}
		if exp, ok := want[x]; ok && got != exp {
			t.Errorf("SetTxPower(%d): TxPower = %d, want %d", x, got, exp)
		}
		if hi := chip.Reg(at86.RegPhyTxPwr) & 0xF0; hi != 0xF0 {
			t.Errorf("SetTxPower(%d) clobbered reserved bits: 0x%02X", x, hi)
		}
	}
}

func TestPowerCodeClamps(t *testing.T) {
	tests := []struct {
		dbm  int
		code uint8
	}{
		{-100, 0x0F},
		{-17, 0x0F},
		{-14, 0x0E},
		{-11, 0x0E},
		{-10, 0x0D},
		{0, 0x07},
		{3, 0x03},
		{4, 0x00},
		{100, 0x00},
	}
	for _, tt := range tests {
		if got := at86.PowerCode(tt.dbm); got != tt.code {
			t.Errorf("PowerCode(%d) = 0x%02X, want 0x%02X", tt.dbm, got, tt.code)
		}
	}
	if got := at86.PowerDbm(0xF7); got != 0 {
		t.Errorf("PowerDbm(0xF7) = %d, want 0", got)
	}
}
