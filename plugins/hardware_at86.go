package plugins

import (
	"context"
	"fmt"

	"github.com/linht/rf-manager/at86"
	"github.com/linht/rf-manager/radio"
)

// Transceiver is an opened radio with its host resources.
type Transceiver interface {
	Service() *radio.Service
	Reset(ctx context.Context) error
	Info() map[string]interface{}
	Close() error
}

// AT86Controller wires the SPI port and control lines of an AT86RF233 to
// a radio service
type AT86Controller struct {
	spi  *SPIDevice
	gpio *GPIOController
	dev  *at86.Device
	svc  *radio.Service
}

// NewAT86Controller opens the SPI port and GPIO lines and routes IRQ edges
// into the device latch. The chip is not powered until the service is
// initialized.
func NewAT86Controller(cfg HardwareConfig, radioCfg radio.Config) (*AT86Controller, error) {
	spi, err := NewSPIDevice(cfg.AT86.SPIDevice, cfg.AT86.SPISpeed)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SPI: %w", err)
	}

	gpio, err := NewGPIOController(cfg.AT86.GPIOChip, cfg.AT86.Pins)
	if err != nil {
		spi.Close()
		return nil, fmt.Errorf("failed to initialize GPIO: %w", err)
	}

	bus := at86.NewBus(spi, gpio.ChipSelect())
	dev := at86.New(bus, gpio, nil)
	dev.PollInterval = cfg.AT86.PollInterval

	latch := dev.Latch()
	if err := gpio.WatchIRQ(func() { bus.Critical(latch.Fire) }); err != nil {
		gpio.Close()
		spi.Close()
		return nil, fmt.Errorf("failed to initialize IRQ: %w", err)
	}

	return &AT86Controller{
		spi:  spi,
		gpio: gpio,
		dev:  dev,
		svc:  radio.NewService(dev, radioCfg),
	}, nil
}

// Service returns the radio service bound to this controller
func (a *AT86Controller) Service() *radio.Service {
	return a.svc
}

// Reset pulses the reset line while holding the device
func (a *AT86Controller) Reset(ctx context.Context) error {
	return a.svc.Do(ctx, func(*at86.Device) error {
		a.dev.Latch().Disarm()
		return a.gpio.Reset()
	})
}

// Info describes the host resources
func (a *AT86Controller) Info() map[string]interface{} {
	return map[string]interface{}{
		"spi":  a.spi.DeviceInfo(),
		"gpio": a.gpio.Info(),
	}
}

// Close powers the chip down and releases all resources
func (a *AT86Controller) Close() error {
	var errs []error

	if a.gpio != nil {
		if err := a.gpio.PowerDown(); err != nil {
			errs = append(errs, err)
		}
		if err := a.gpio.Close(); err != nil {
			errs = append(errs, fmt.Errorf("GPIO close error: %w", err))
		}
	}

	if a.spi != nil {
		if err := a.spi.Close(); err != nil {
			errs = append(errs, fmt.Errorf("SPI close error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing controller: %v", errs)
	}
	return nil
}
