// Package radio runs transmit and receive operations on an AT86RF233 and
// records what the chip saw.
package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linht/rf-manager/at86"
)

// PollStyle selects how receive waits for chip events.
type PollStyle int

const (
	// PollLatch watches the interrupt latch and reads IRQ_STATUS only
	// after an edge.
	PollLatch PollStyle = iota
	// PollCause reads IRQ_STATUS on every iteration. Each read clears the
	// causes it returns, so a cause is observed at most once.
	PollCause
)

func (p PollStyle) String() string {
	switch p {
	case PollLatch:
		return "latch"
	case PollCause:
		return "cause"
	}
	return fmt.Sprintf("PollStyle(%d)", int(p))
}

// ParsePollStyle accepts "latch", "cause" or an empty string (latch).
func ParsePollStyle(s string) (PollStyle, error) {
	switch s {
	case "", "latch":
		return PollLatch, nil
	case "cause":
		return PollCause, nil
	}
	return 0, fmt.Errorf("unknown poll style %q", s)
}

var (
	ErrUnexpectedChip = errors.New("unexpected transceiver identification")
	// ErrBusy is returned, wrapping the context error, when the device
	// stays held by another operation until the caller's context ends.
	ErrBusy = errors.New("transceiver busy")
)

// Config holds the expectations of the link test.
type Config struct {
	Address   uint8
	FrameSize int
	// ReadLength is how many frame buffer bytes a receive reads back,
	// starting with the length byte.
	ReadLength int
	// History is the number of receptions kept for Receptions.
	History int
}

// ReceiveOptions tunes a single receive.
type ReceiveOptions struct {
	Style      PollStyle
	ReadLength int
}

// Info identifies the chip.
type Info struct {
	PartNumber     uint8  `json:"part_number"`
	Version        uint8  `json:"version"`
	ManufacturerID uint16 `json:"manufacturer_id"`
}

// Service serializes radio operations on one device and fans receptions
// out to subscribers.
type Service struct {
	dev *at86.Device
	cfg Config

	// lock holds one token; a radio operation owns the device while it
	// holds the token.
	lock chan struct{}

	subsMu  sync.RWMutex
	subs    map[uuid.UUID]chan Reception
	history []Reception
}

// NewService returns a Service for dev. Zero config fields take the link
// test defaults.
func NewService(dev *at86.Device, cfg Config) *Service {
	if cfg.Address == 0 {
		cfg.Address = DefaultAddress
	}
	if cfg.FrameSize == 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if cfg.ReadLength == 0 {
		cfg.ReadLength = 4
	}
	if cfg.History <= 0 {
		cfg.History = 32
	}
	return &Service{
		dev:  dev,
		cfg:  cfg,
		lock: make(chan struct{}, 1),
		subs: make(map[uuid.UUID]chan Reception),
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// acquire waits for exclusive use of the device or for ctx to end.
func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	default:
	}
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}

func (s *Service) release() {
	<-s.lock
}

// Do runs fn with exclusive use of the device. It fails with ErrBusy if
// ctx ends while another operation holds the device.
func (s *Service) Do(ctx context.Context, fn func(dev *at86.Device) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return fn(s.dev)
}

// Init brings the chip to TRX_OFF, checks its identification and turns
// phase measurement on or off.
func (s *Service) Init(ctx context.Context, phase bool) (Info, error) {
	if err := s.acquire(ctx); err != nil {
		return Info{}, err
	}
	defer s.release()

	if err := s.dev.Init(ctx); err != nil {
		return Info{}, err
	}

	var info Info
	var err error
	if info.PartNumber, err = s.dev.PartNumber(); err != nil {
		return info, err
	}
	if info.Version, err = s.dev.Version(); err != nil {
		return info, err
	}
	if info.ManufacturerID, err = s.dev.ManufacturerID(); err != nil {
		return info, err
	}
	if info.PartNumber != at86.PartNumAT86RF233 || info.ManufacturerID != at86.ManufacturerAtmel {
		return info, fmt.Errorf("%w: part 0x%02X manufacturer 0x%04X",
			ErrUnexpectedChip, info.PartNumber, info.ManufacturerID)
	}
	if info.Version != at86.VersionRevB {
		slog.Warn("Transceiver revision differs from tested revision", "version", info.Version)
	}

	if err := s.dev.EnablePhaseMeasurement(phase); err != nil {
		return info, err
	}

	slog.Info("Transceiver initialized",
		"part", fmt.Sprintf("0x%02X", info.PartNumber),
		"version", info.Version,
		"phase", phase)
	return info, nil
}

// Transmit sends payload and returns the states the chip went through
// from PLL_ON until it returned to PLL_ON.
func (s *Service) Transmit(ctx context.Context, payload []byte) (Transmission, error) {
	if err := s.acquire(ctx); err != nil {
		return Transmission{}, err
	}
	defer s.release()

	tx := Transmission{
		ID:      uuid.New(),
		Payload: append(HexBytes(nil), payload...),
		Time:    time.Now(),
	}

	if err := s.dev.PrepareTransmit(ctx); err != nil {
		return tx, err
	}
	if err := s.dev.WaitStatus(ctx, at86.StatusPllOn); err != nil {
		return tx, err
	}
	if err := s.dev.LoadPayload(payload); err != nil {
		return tx, err
	}

	tx.Trace = []at86.Status{at86.StatusPllOn}
	start := time.Now()
	if err := s.dev.StartTransmit(); err != nil {
		return tx, err
	}

	for {
		st, err := s.dev.Status()
		if err != nil {
			return tx, err
		}
		if st != tx.Trace[len(tx.Trace)-1] {
			tx.Trace = append(tx.Trace, st)
		}
		if len(tx.Trace) > 2 && st == at86.StatusPllOn {
			break
		}
		select {
		case <-ctx.Done():
			return tx, fmt.Errorf("transmitting, last status %s: %w", st, ctx.Err())
		default:
		}
	}
	tx.Duration = time.Since(start)
	tx.States = statusNames(tx.Trace)

	slog.Info("Frame transmitted",
		"id", tx.ID,
		"length", len(payload),
		"duration", tx.Duration)
	return tx, nil
}

// Receive enters receive mode, samples the phase register while a frame
// arrives and reads back the start of the frame buffer.
func (s *Service) Receive(ctx context.Context, opts ReceiveOptions) (Reception, error) {
	if err := s.acquire(ctx); err != nil {
		return Reception{}, err
	}
	defer s.release()

	if opts.ReadLength <= 0 {
		opts.ReadLength = s.cfg.ReadLength
	}

	rx := Reception{ID: uuid.New()}

	if err := s.dev.PrepareReceive(); err != nil {
		return rx, err
	}

	ended, err := s.waitReceiveStart(ctx, opts.Style)
	if err != nil {
		return rx, err
	}
	rx.Time = time.Now()
	if rx.RSSI, err = s.dev.RSSI(); err != nil {
		return rx, err
	}

	if !ended {
		phases, err := s.samplePhases(ctx, opts.Style)
		if err != nil {
			return rx, err
		}
		rx.Phases = phases
	}
	rx.Duration = time.Since(rx.Time)

	if rx.CRCValid, err = s.dev.CRCValid(); err != nil {
		return rx, err
	}

	buf, err := s.dev.ReadReceived(opts.ReadLength, 0)
	if err != nil {
		return rx, err
	}
	if len(buf) > 0 {
		rx.Length = int(buf[0])
	}
	if len(buf) > 1 {
		rx.Address = buf[1]
	}
	if len(buf) > 2 {
		rx.Payload = append(HexBytes(nil), buf[2:]...)
	}
	rx.Valid = rx.Length == s.cfg.FrameSize && rx.Address == s.cfg.Address

	slog.Info("Frame received",
		"id", rx.ID,
		"valid", rx.Valid,
		"length", rx.Length,
		"rssi", rx.RSSI,
		"phases", len(rx.Phases))

	s.publish(rx)
	return rx, nil
}

// waitReceiveStart blocks until RX_START. It reports whether TRX_END was
// already raised, in which case there is nothing left to sample.
func (s *Service) waitReceiveStart(ctx context.Context, style PollStyle) (bool, error) {
	for {
		switch style {
		case PollCause:
			cause, err := s.dev.ReadInterruptCause()
			if err != nil {
				return false, err
			}
			if cause.Has(at86.IrqRxStart) {
				s.dev.AcknowledgeReceiveStart()
				return cause.Has(at86.IrqTrxEnd), nil
			}
		default:
			if s.dev.IrqPending() {
				s.dev.AcknowledgeReceiveStart()
				// Releases the IRQ line so TRX_END produces a new edge.
				cause, err := s.dev.ReadInterruptCause()
				if err != nil {
					return false, err
				}
				return cause.Has(at86.IrqTrxEnd), nil
			}
		}
		if err := ctx.Err(); err != nil {
			return false, fmt.Errorf("waiting for RX_START: %w", err)
		}
	}
}

// samplePhases reads the phase register until TRX_END.
func (s *Service) samplePhases(ctx context.Context, style PollStyle) (HexBytes, error) {
	phases := make(HexBytes, 0, MaxPhases)
	for {
		switch style {
		case PollCause:
			cause, err := s.dev.ReadInterruptCause()
			if err != nil {
				return phases, err
			}
			if cause.Has(at86.IrqTrxEnd) {
				return phases, nil
			}
		default:
			if s.dev.IrqPending() {
				if _, err := s.dev.ReadInterruptCause(); err != nil {
					return phases, err
				}
				return phases, nil
			}
		}
		if err := ctx.Err(); err != nil {
			return phases, fmt.Errorf("waiting for TRX_END: %w", err)
		}

		p, err := s.dev.Phase()
		if err != nil {
			return phases, err
		}
		if len(phases) < MaxPhases {
			phases = append(phases, p)
		}
	}
}

func statusNames(trace []at86.Status) []string {
	names := make([]string, len(trace))
	for i, st := range trace {
		names[i] = st.String()
	}
	return names
}
