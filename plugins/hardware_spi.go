package plugins

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultSPISpeed is the AT86RF233 bus clock used when none is configured.
const DefaultSPISpeed = 4000000

// SPIDevice is the transceiver's SPI port opened through periph.io.
// It implements conn.Conn with errors that name the port.
type SPIDevice struct {
	conn   spi.Conn
	port   spi.PortCloser
	device string
	speed  physic.Frequency
}

// NewSPIDevice opens device in mode 0 with 8-bit words
func NewSPIDevice(device string, speed uint32) (*SPIDevice, error) {
	if speed == 0 {
		speed = DefaultSPISpeed
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io: %w", err)
	}

	port, err := spireg.Open(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI device %s: %w", device, err)
	}

	// AT86RF233 samples MOSI on the rising edge with SCLK idle low
	conn, err := port.Connect(physic.Frequency(speed)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect to SPI device: %w", err)
	}

	return &SPIDevice{
		conn:   conn,
		port:   port,
		device: device,
		speed:  physic.Frequency(speed) * physic.Hertz,
	}, nil
}

// Close closes the SPI port
func (s *SPIDevice) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.conn = nil
	s.port = nil
	return err
}

// Tx performs one full-duplex transaction
func (s *SPIDevice) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return fmt.Errorf("tx and rx buffers must be the same length")
	}
	if s.conn == nil {
		return fmt.Errorf("SPI device not open")
	}
	if err := s.conn.Tx(w, r); err != nil {
		return fmt.Errorf("SPI transfer failed: %w", err)
	}
	return nil
}

func (s *SPIDevice) String() string {
	return s.device
}

// Duplex reports full duplex; every transaction clocks both directions
func (s *SPIDevice) Duplex() conn.Duplex {
	return conn.Full
}

// DeviceInfo describes the port
func (s *SPIDevice) DeviceInfo() string {
	if s.conn == nil {
		return fmt.Sprintf("Device: %s (closed)", s.device)
	}
	return fmt.Sprintf("Device: %s, Speed: %s", s.device, s.speed)
}
