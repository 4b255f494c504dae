package radio_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/linht/rf-manager/at86"
	"github.com/linht/rf-manager/at86/at86test"
	"github.com/linht/rf-manager/radio"
)

func newService(cfg radio.Config) (*radio.Service, *at86.Device, *at86test.Chip) {
	chip := at86test.NewChip()
	dev := at86.New(at86.NewBus(chip, nil), nil, nil)
	return radio.NewService(dev, cfg), dev, chip
}

// startFrame makes the chip raise RX_START as soon as it enters RX_ON and
// TRX_END after the phase register has been read samples times.
func startFrame(chip *at86test.Chip, samples int, frame []byte) {
	chip.LoadSRAM(0, frame)
	chip.OnCommand = func(cmd at86.Command) {
		if cmd == at86.CmdRxOn {
			chip.Raise(at86.IrqRxStart)
		}
	}
	n := 0
	chip.OnRead = func(addr uint8) {
		if addr != at86.RegPhyPmuVal {
			return
		}
		n++
		chip.SetReg(at86.RegPhyPmuVal, 0x10+uint8(n))
		if n == samples {
			chip.Raise(at86.IrqTrxEnd)
		}
	}
	chip.SetReg(at86.RegPhyPmuVal, 0x10)
}

func TestInit(t *testing.T) {
	svc, _, chip := newService(radio.Config{})
	chip.ScriptStatus(at86.StatusPOn, at86.StatusTrxOff)

	info, err := svc.Init(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	want := radio.Info{PartNumber: 0x0B, Version: 2, ManufacturerID: 0x001F}
	if info != want {
		t.Errorf("info = %+v, want %+v", info, want)
	}
	if chip.Reg(at86.RegTrxCtrl0)&0x20 == 0 {
		t.Error("phase measurement not enabled")
	}
}

func TestInitRejectsOtherChips(t *testing.T) {
	svc, _, chip := newService(radio.Config{})
	chip.ScriptStatus(at86.StatusTrxOff)
	chip.SetReg(at86.RegPartNum, 0x0C)

	if _, err := svc.Init(context.Background(), false); !errors.Is(err, radio.ErrUnexpectedChip) {
		t.Errorf("Init error = %v, want ErrUnexpectedChip", err)
	}
}

func TestTransmit(t *testing.T) {
	svc, _, chip := newService(radio.Config{})
	chip.ScriptStatus(at86.StatusRxOn)
	chip.OnCommand = func(cmd at86.Command) {
		switch cmd {
		case at86.CmdPllOn:
			chip.ScriptStatus(at86.StatusPllOn)
		case at86.CmdTxStart:
			chip.ScriptStatus(at86.StatusPllOn, at86.StatusBusyTx, at86.StatusBusyTx, at86.StatusPllOn)
		}
	}

	frame := radio.BuildFrame(0xAA, 0xFF, 64)
	tx, err := svc.Transmit(context.Background(), frame)
	if err != nil {
		t.Fatal(err)
	}

	wantTrace := []at86.Status{at86.StatusPllOn, at86.StatusBusyTx, at86.StatusPllOn}
	if !reflect.DeepEqual(tx.Trace, wantTrace) {
		t.Errorf("trace = %v, want %v", tx.Trace, wantTrace)
	}
	if want := []string{"PLL_ON", "BUSY_TX", "PLL_ON"}; !reflect.DeepEqual(tx.States, want) {
		t.Errorf("states = %v, want %v", tx.States, want)
	}
	if got := chip.SRAM(0, 65); got[0] != 64 || !bytes.Equal(got[1:], frame) {
		t.Errorf("frame buffer = % X", got)
	}
	wantCmds := []at86.Command{at86.CmdPllOn, at86.CmdTxStart}
	if got := chip.Commands(); !reflect.DeepEqual(got, wantCmds) {
		t.Errorf("commands = %v, want %v", got, wantCmds)
	}
}

func TestTransmitCanceled(t *testing.T) {
	svc, _, chip := newService(radio.Config{})
	chip.ScriptStatus(at86.StatusBusyTx)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Transmit(ctx, []byte{0xAA}); !errors.Is(err, context.Canceled) {
		t.Errorf("Transmit error = %v, want context.Canceled", err)
	}
}

func TestReceive(t *testing.T) {
	tests := []struct {
		name        string
		style       radio.PollStyle
		samples     int
		frame       []byte
		wantValid   bool
		wantPhases  radio.HexBytes
		wantPayload radio.HexBytes
	}{
		{
			name:        "latch",
			style:       radio.PollLatch,
			samples:     5,
			frame:       []byte{32, 0xAA, 0xFF, 0xFF},
			wantValid:   true,
			wantPhases:  radio.HexBytes{0x10, 0x11, 0x12, 0x13, 0x14},
			wantPayload: radio.HexBytes{0xFF, 0xFF},
		},
		{
			name:        "cause",
			style:       radio.PollCause,
			samples:     3,
			frame:       []byte{32, 0xAA, 0xFF, 0xFF},
			wantValid:   true,
			wantPhases:  radio.HexBytes{0x10, 0x11, 0x12},
			wantPayload: radio.HexBytes{0xFF, 0xFF},
		},
		{
			name:        "wrong address",
			style:       radio.PollLatch,
			samples:     1,
			frame:       []byte{32, 0x55, 0x01, 0x02},
			wantValid:   false,
			wantPhases:  radio.HexBytes{0x10},
			wantPayload: radio.HexBytes{0x01, 0x02},
		},
		{
			name:        "wrong length",
			style:       radio.PollCause,
			samples:     2,
			frame:       []byte{12, 0xAA, 0xFF, 0xFF},
			wantValid:   false,
			wantPhases:  radio.HexBytes{0x10, 0x11},
			wantPayload: radio.HexBytes{0xFF, 0xFF},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dev, chip := newService(radio.Config{})
			chip.OnIRQ = dev.Latch().Fire
			chip.SetReg(at86.RegPhyRssi, 0x80|0x13)
			startFrame(chip, tt.samples, tt.frame)

			rx, err := svc.Receive(context.Background(), radio.ReceiveOptions{Style: tt.style})
			if err != nil {
				t.Fatal(err)
			}
			if rx.Valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", rx.Valid, tt.wantValid)
			}
			if rx.Length != int(tt.frame[0]) || rx.Address != tt.frame[1] {
				t.Errorf("length %d address 0x%02X, want %d 0x%02X", rx.Length, rx.Address, tt.frame[0], tt.frame[1])
			}
			if !bytes.Equal(rx.Phases, tt.wantPhases) {
				t.Errorf("phases = % X, want % X", rx.Phases, tt.wantPhases)
			}
			if !bytes.Equal(rx.Payload, tt.wantPayload) {
				t.Errorf("payload = % X, want % X", rx.Payload, tt.wantPayload)
			}
			if rx.RSSI != 0x13 || !rx.CRCValid {
				t.Errorf("rssi 0x%02X crc %v, want 0x13 true", rx.RSSI, rx.CRCValid)
			}
			if chip.Reg(at86.RegIrqMask) != 0 {
				t.Error("interrupts left enabled after read back")
			}
		})
	}
}

func TestReceiveShortFrame(t *testing.T) {
	// RX_START and TRX_END are both raised before the first cause read.
	for _, style := range []radio.PollStyle{radio.PollLatch, radio.PollCause} {
		t.Run(style.String(), func(t *testing.T) {
			svc, dev, chip := newService(radio.Config{})
			chip.OnIRQ = dev.Latch().Fire
			chip.LoadSRAM(0, []byte{32, 0xAA, 0xFF, 0xFF})
			chip.OnCommand = func(cmd at86.Command) {
				if cmd == at86.CmdRxOn {
					chip.Raise(at86.IrqRxStart | at86.IrqTrxEnd)
				}
			}

			rx, err := svc.Receive(context.Background(), radio.ReceiveOptions{Style: style})
			if err != nil {
				t.Fatal(err)
			}
			if !rx.Valid || len(rx.Phases) != 0 {
				t.Errorf("valid %v with %d phases, want valid with none", rx.Valid, len(rx.Phases))
			}
			if n := chip.Reads(at86.RegPhyPmuVal); n != 0 {
				t.Errorf("phase sampled %d times after TRX_END", n)
			}
			if chip.Reg(at86.RegIrqStatus) != 0 {
				t.Error("IRQ_STATUS left pending")
			}
		})
	}
}

func TestReceivePhaseLimit(t *testing.T) {
	svc, dev, chip := newService(radio.Config{})
	chip.OnIRQ = dev.Latch().Fire
	startFrame(chip, radio.MaxPhases+40, []byte{32, 0xAA, 0xFF, 0xFF})

	rx, err := svc.Receive(context.Background(), radio.ReceiveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rx.Phases) != radio.MaxPhases {
		t.Errorf("kept %d phases, want %d", len(rx.Phases), radio.MaxPhases)
	}
}

func TestReceiveCanceled(t *testing.T) {
	for _, style := range []radio.PollStyle{radio.PollLatch, radio.PollCause} {
		t.Run(style.String(), func(t *testing.T) {
			svc, _, _ := newService(radio.Config{})
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := svc.Receive(ctx, radio.ReceiveOptions{Style: style}); !errors.Is(err, context.Canceled) {
				t.Errorf("Receive error = %v, want context.Canceled", err)
			}
		})
	}
}

func TestSubscribers(t *testing.T) {
	svc, dev, chip := newService(radio.Config{History: 2})
	chip.OnIRQ = dev.Latch().Fire

	id, ch := svc.Subscribe()
	for i := 0; i < 3; i++ {
		startFrame(chip, 1, []byte{32, 0xAA, byte(i), 0})
		if _, err := svc.Receive(context.Background(), radio.ReceiveOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 3; i++ {
		rx := <-ch
		if rx.Payload[0] != byte(i) {
			t.Errorf("reception %d payload % X", i, rx.Payload)
		}
	}

	hist := svc.Receptions()
	if len(hist) != 2 || hist[0].Payload[0] != 1 || hist[1].Payload[0] != 2 {
		t.Errorf("history = %+v, want last two receptions", hist)
	}

	svc.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel open after Unsubscribe")
	}
	svc.Unsubscribe(id)
}

func TestHistoryDefault(t *testing.T) {
	for _, history := range []int{0, -1} {
		svc, dev, chip := newService(radio.Config{History: history})
		chip.OnIRQ = dev.Latch().Fire
		if got := svc.Config().History; got != 32 {
			t.Errorf("History %d became %d, want 32", history, got)
		}

		for i := 0; i < 3; i++ {
			startFrame(chip, 1, []byte{32, 0xAA, byte(i), 0})
			if _, err := svc.Receive(context.Background(), radio.ReceiveOptions{}); err != nil {
				t.Fatal(err)
			}
		}
		if n := len(svc.Receptions()); n != 3 {
			t.Errorf("History %d kept %d receptions, want 3", history, n)
		}
	}
}

func TestBusyDevice(t *testing.T) {
	svc, _, chip := newService(radio.Config{})
	listening := make(chan struct{}, 1)
	chip.OnCommand = func(cmd at86.Command) {
		if cmd == at86.CmdRxOn {
			select {
			case listening <- struct{}{}:
			default:
			}
		}
	}

	rxCtx, stopRx := context.WithCancel(context.Background())
	rxDone := make(chan error, 1)
	go func() {
		_, err := svc.Receive(rxCtx, radio.ReceiveOptions{})
		rxDone <- err
	}()
	<-listening

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := svc.Transmit(ctx, []byte{0xAA})
	if !errors.Is(err, radio.ErrBusy) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Transmit error = %v, want ErrBusy wrapping DeadlineExceeded", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("Transmit waited %v past its deadline", waited)
	}

	err = svc.Do(ctx, func(*at86.Device) error { return nil })
	if !errors.Is(err, radio.ErrBusy) {
		t.Errorf("Do error = %v, want ErrBusy", err)
	}

	stopRx()
	if err := <-rxDone; !errors.Is(err, context.Canceled) {
		t.Errorf("Receive error = %v, want context.Canceled", err)
	}

	ran := false
	err = svc.Do(context.Background(), func(*at86.Device) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Errorf("Do after release = %v, ran %v", err, ran)
	}
}

func TestBuildFrame(t *testing.T) {
	tests := []struct {
		size int
		want []byte
	}{
		{4, []byte{0xAA, 0xFF, 0xFF, 0xFF}},
		{1, []byte{0xAA}},
		{0, []byte{0xAA}},
	}
	for _, tt := range tests {
		if got := radio.BuildFrame(0xAA, 0xFF, tt.size); !bytes.Equal(got, tt.want) {
			t.Errorf("BuildFrame(size %d) = % X, want % X", tt.size, got, tt.want)
		}
	}
	if n := len(radio.BuildFrame(0xAA, 0xFF, 500)); n != 127 {
		t.Errorf("BuildFrame(500) length %d, want 127", n)
	}
}

func TestParsePollStyle(t *testing.T) {
	for in, want := range map[string]radio.PollStyle{"": radio.PollLatch, "latch": radio.PollLatch, "cause": radio.PollCause} {
		got, err := radio.ParsePollStyle(in)
		if err != nil || got != want {
			t.Errorf("ParsePollStyle(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := radio.ParsePollStyle("spin"); err == nil {
		t.Error("ParsePollStyle accepted spin")
	}
}
