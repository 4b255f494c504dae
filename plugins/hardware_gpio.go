package plugins

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/linht/rf-manager/at86"
)

// GPIOPins are the line offsets wired to the transceiver.
type GPIOPins struct {
	Power int `yaml:"power_pin" json:"power_pin"`
	Reset int `yaml:"reset_pin" json:"reset_pin"`
	Wake  int `yaml:"wake_pin" json:"wake_pin"`
	IRQ   int `yaml:"irq_pin" json:"irq_pin"`
	CS    int `yaml:"cs_pin" json:"cs_pin"`

	// ManualCS drives CS as a GPIO instead of leaving it to the SPI driver.
	ManualCS bool `yaml:"manual_cs" json:"manual_cs"`
}

// GPIOController owns the transceiver's control lines
type GPIOController struct {
	chip      *gpiocdev.Chip
	powerLine *gpiocdev.Line
	resetLine *gpiocdev.Line
	wakeLine  *gpiocdev.Line
	csLine    *gpiocdev.Line
	irqLine   *gpiocdev.Line
	chipPath  string
	pins      GPIOPins
}

// NewGPIOController requests the output lines. Power starts off, reset
// and chip select idle high, wake low. The IRQ line is requested
// separately by WatchIRQ.
func NewGPIOController(chipPath string, pins GPIOPins) (*GPIOController, error) {
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipPath, err)
	}

	g := &GPIOController{
		chip:     chip,
		chipPath: chipPath,
		pins:     pins,
	}

	type output struct {
		line     **gpiocdev.Line
		pin      int
		initial  int
		consumer string
	}
	outputs := []output{
		{&g.powerLine, pins.Power, 0, "at86-power"},
		{&g.resetLine, pins.Reset, 1, "at86-reset"},
		{&g.wakeLine, pins.Wake, 0, "at86-wake"},
	}
	if pins.ManualCS {
		outputs = append(outputs, output{&g.csLine, pins.CS, 1, "at86-cs"})
	}

	for _, out := range outputs {
		line, err := chip.RequestLine(
			out.pin,
			gpiocdev.AsOutput(out.initial),
			gpiocdev.WithConsumer(out.consumer),
		)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("failed to request %s pin %d: %w", out.consumer, out.pin, err)
		}
		*out.line = line
	}

	return g, nil
}

// WatchIRQ requests the IRQ line with rising edge detection. onEdge runs
// on the gpiocdev event goroutine for every edge.
func (g *GPIOController) WatchIRQ(onEdge func()) error {
	if g.chip == nil {
		return fmt.Errorf("GPIO chip not open")
	}
	if g.irqLine != nil {
		return fmt.Errorf("IRQ line already requested")
	}

	line, err := g.chip.RequestLine(
		g.pins.IRQ,
		gpiocdev.AsInput,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithConsumer("at86-irq"),
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			onEdge()
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to request IRQ pin %d: %w", g.pins.IRQ, err)
	}
	g.irqLine = line
	return nil
}

// ChipSelect returns the manual chip select line, or nil when the SPI
// driver frames transactions itself.
func (g *GPIOController) ChipSelect() at86.Line {
	if g.csLine == nil {
		return nil
	}
	return g.csLine
}

// PowerUp switches the supply on with reset released and wake low, then
// waits for the crystal to settle.
func (g *GPIOController) PowerUp() error {
	if g.powerLine == nil || g.resetLine == nil || g.wakeLine == nil {
		return fmt.Errorf("control lines not initialized")
	}
	if err := g.resetLine.SetValue(1); err != nil {
		return fmt.Errorf("failed to set reset pin HIGH: %w", err)
	}
	if err := g.wakeLine.SetValue(0); err != nil {
		return fmt.Errorf("failed to set wake pin LOW: %w", err)
	}
	if err := g.powerLine.SetValue(1); err != nil {
		return fmt.Errorf("failed to switch power on: %w", err)
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Reset pulses the active-low reset line. Register contents return to
// their reset values.
func (g *GPIOController) Reset() error {
	if g.resetLine == nil {
		return fmt.Errorf("reset line not initialized")
	}

	if err := g.resetLine.SetValue(0); err != nil {
		return fmt.Errorf("failed to set reset pin LOW: %w", err)
	}
	// tRST is 625 ns minimum
	time.Sleep(10 * time.Microsecond)

	if err := g.resetLine.SetValue(1); err != nil {
		return fmt.Errorf("failed to set reset pin HIGH: %w", err)
	}
	// tRST to TRX_OFF
	time.Sleep(1 * time.Millisecond)

	return nil
}

// PowerDown switches the supply off.
func (g *GPIOController) PowerDown() error {
	if g.powerLine == nil {
		return fmt.Errorf("power line not initialized")
	}
	if err := g.powerLine.SetValue(0); err != nil {
		return fmt.Errorf("failed to switch power off: %w", err)
	}
	return nil
}

// Close releases all GPIO resources
func (g *GPIOController) Close() error {
	var errs []error

	lines := []struct {
		line **gpiocdev.Line
		name string
	}{
		{&g.irqLine, "IRQ"},
		{&g.csLine, "chip select"},
		{&g.wakeLine, "wake"},
		{&g.resetLine, "reset"},
		{&g.powerLine, "power"},
	}
	for _, l := range lines {
		if *l.line == nil {
			continue
		}
		if err := (*l.line).Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s line: %w", l.name, err))
		}
		*l.line = nil
	}

	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close GPIO chip: %w", err))
		}
		g.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing GPIO: %v", errs)
	}

	return nil
}

// Info returns information about the GPIO controller
func (g *GPIOController) Info() string {
	if g.chip == nil {
		return fmt.Sprintf("GPIO: %s (closed)", g.chipPath)
	}
	return fmt.Sprintf("GPIO: %s (%s, %s), Power: %d, Reset: %d, Wake: %d, IRQ: %d",
		g.chipPath, g.chip.Name, g.chip.Label,
		g.pins.Power, g.pins.Reset, g.pins.Wake, g.pins.IRQ)
}
