package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/linht/rf-manager/at86"
	"github.com/linht/rf-manager/radio"
)

var ErrNotInitialized = errors.New("transceiver not initialized")

// deviceTimeout bounds the wait for a radio held by another operation
const deviceTimeout = 2 * time.Second

// RadioPlugin exposes an AT86RF233 over HTTP.
// The controller stays open between requests: IRQ edges must reach the
// latch even when no request is running.
type RadioPlugin struct {
	config         HardwareConfig
	open           func() (Transceiver, error)
	mu             sync.Mutex
	trx            Transceiver
	info           radio.Info
	tokenValidator TokenValidator
}

// HardwareConfig holds hardware configuration
type HardwareConfig struct {
	AT86 struct {
		SPIDevice    string        `yaml:"spi_device"`
		SPISpeed     uint32        `yaml:"spi_speed"`
		GPIOChip     string        `yaml:"gpio_chip"`
		Pins         GPIOPins      `yaml:",inline"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"at86"`
	Radio struct {
		Address      uint8         `yaml:"address"`
		FrameSize    int           `yaml:"frame_size"`
		ReadLength   int           `yaml:"read_length"`
		History      int           `yaml:"history"`
		PhaseEnabled bool          `yaml:"phase_enabled"`
		InitTimeout  time.Duration `yaml:"init_timeout"`
		TxTimeout    time.Duration `yaml:"tx_timeout"`
		RxTimeout    time.Duration `yaml:"rx_timeout"`
		BusyTimeout  time.Duration `yaml:"busy_timeout"`
	} `yaml:"radio"`
}

func (c HardwareConfig) radioConfig() radio.Config {
	return radio.Config{
		Address:    c.Radio.Address,
		FrameSize:  c.Radio.FrameSize,
		ReadLength: c.Radio.ReadLength,
		History:    c.Radio.History,
	}
}

// NewRadioPlugin creates a radio plugin. open is called on the first
// initialization; nil opens the hardware described by cfg.
func NewRadioPlugin(cfg HardwareConfig, open func() (Transceiver, error)) (*RadioPlugin, error) {
	if cfg.AT86.SPISpeed == 0 {
		cfg.AT86.SPISpeed = DefaultSPISpeed
	}
	if cfg.Radio.InitTimeout == 0 {
		cfg.Radio.InitTimeout = 2 * time.Second
	}
	if cfg.Radio.TxTimeout == 0 {
		cfg.Radio.TxTimeout = time.Second
	}
	if cfg.Radio.RxTimeout == 0 {
		cfg.Radio.RxTimeout = 10 * time.Second
	}
	if cfg.Radio.BusyTimeout <= 0 {
		cfg.Radio.BusyTimeout = deviceTimeout
	}

	if open == nil {
		open = func() (Transceiver, error) {
			return NewAT86Controller(cfg, cfg.radioConfig())
		}
	}

	slog.Info("Radio plugin initializing",
		"spi_device", cfg.AT86.SPIDevice,
		"spi_speed", cfg.AT86.SPISpeed,
		"gpio_chip", cfg.AT86.GPIOChip,
		"irq_pin", cfg.AT86.Pins.IRQ,
		"manual_cs", cfg.AT86.Pins.ManualCS)

	return &RadioPlugin{
		config: cfg,
		open:   open,
	}, nil
}

// SetTokenValidator sets the token validation function
func (p *RadioPlugin) SetTokenValidator(validator TokenValidator) {
	p.tokenValidator = validator
}

// Name returns the plugin identifier
func (p *RadioPlugin) Name() string {
	return "radio"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *RadioPlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/radio")

	// Device control endpoints
	api.Post("/init", p.handleInit)
	api.Post("/reset", p.handleReset)
	api.Post("/close", p.handleClose)
	api.Get("/status", p.handleStatus)
	api.Get("/info", p.handleInfo)
	api.Post("/state", p.handleSetState)

	// Register access endpoints
	api.Get("/register/:addr", p.handleReadRegister)
	api.Post("/register/:addr", p.handleWriteRegister)
	api.Get("/registers", p.handleReadAllRegisters)
	api.Get("/fields", p.handleReadFields)

	// Configuration endpoints
	api.Get("/channel", p.handleGetChannel)
	api.Post("/channel", p.handleSetChannel)
	api.Get("/power", p.handleGetPower)
	api.Post("/power", p.handleSetPower)
	api.Get("/pan", p.handleGetPAN)
	api.Post("/pan", p.handleSetPAN)
	api.Get("/short-addr", p.handleGetShortAddr)
	api.Post("/short-addr", p.handleSetShortAddr)
	api.Get("/ieee-addr", p.handleGetIEEEAddr)
	api.Post("/ieee-addr", p.handleSetIEEEAddr)
	api.Get("/cca", p.handleGetCCA)
	api.Post("/cca", p.handleSetCCA)
	api.Post("/phase", p.handleSetPhase)

	// Radio operations
	api.Post("/tx", p.handleTransmit)
	api.Post("/rx", p.handleReceive)
	api.Get("/receptions", p.handleReceptions)
	api.Get("/frame", p.handleReadFrame)
	api.Get("/events", p.handleEvents)
	api.Get("/ws", p.wsUpgrade, p.handleWebSocket())

	slog.Info("Radio plugin routes registered")
}

// Shutdown releases the transceiver
func (p *RadioPlugin) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.trx == nil {
		return nil
	}
	err := p.trx.Close()
	p.trx = nil
	return err
}

// Service returns the radio service, or ErrNotInitialized before the first
// successful init
func (p *RadioPlugin) Service() (*radio.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.trx == nil {
		return nil, ErrNotInitialized
	}
	return p.trx.Service(), nil
}

// Init opens the transceiver if needed, initializes it and runs the init
// hooks of the other plugins
func (p *RadioPlugin) Init(ctx context.Context) (radio.Info, error) {
	p.mu.Lock()
	if p.trx == nil {
		trx, err := p.open()
		if err != nil {
			p.mu.Unlock()
			return radio.Info{}, err
		}
		p.trx = trx
	}
	svc := p.trx.Service()
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.config.Radio.InitTimeout)
	defer cancel()

	info, err := svc.Init(ctx, p.config.Radio.PhaseEnabled)
	if err != nil {
		return info, err
	}

	for _, other := range runningPlugins() {
		hook, ok := other.(RadioInitHook)
		if !ok {
			continue
		}
		if err := hook.AfterRadioInit(ctx, svc); err != nil {
			return info, fmt.Errorf("%s: %w", other.Name(), err)
		}
	}

	p.mu.Lock()
	p.info = info
	p.mu.Unlock()
	return info, nil
}

// withDevice runs fn with exclusive use of the device, waiting at most
// busy_timeout for another operation to finish
func (p *RadioPlugin) withDevice(ctx context.Context, fn func(*at86.Device) error) error {
	svc, err := p.Service()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.Radio.BusyTimeout)
	defer cancel()
	return svc.Do(ctx, fn)
}

// Device control handlers

func (p *RadioPlugin) handleInit(c *fiber.Ctx) error {
	info, err := p.Init(c.UserContext())
	if err != nil {
		slog.Error("Failed to initialize transceiver", "error", err)
		return SendRadioError(c, err)
	}

	slog.Info("Transceiver connection verified", "part", info.PartNumber, "version", info.Version)
	return SendSuccess(c, info, "Transceiver initialized")
}

func (p *RadioPlugin) handleReset(c *fiber.Ctx) error {
	p.mu.Lock()
	trx := p.trx
	p.mu.Unlock()
	if trx == nil {
		return SendRadioError(c, ErrNotInitialized)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), p.config.Radio.BusyTimeout)
	defer cancel()
	if err := trx.Reset(ctx); err != nil {
		slog.Error("Failed to reset transceiver", "error", err)
		return SendRadioError(c, err)
	}

	slog.Info("Transceiver reset")
	return SendSuccess(c, nil, "Transceiver reset, initialize before use")
}

func (p *RadioPlugin) handleClose(c *fiber.Ctx) error {
	if err := p.Shutdown(); err != nil {
		return SendError(c, 500, err)
	}
	return SendSuccess(c, nil, "Transceiver released")
}

func (p *RadioPlugin) handleStatus(c *fiber.Ctx) error {
	var (
		status    at86.Status
		channel   uint8
		power     int
		phase     uint8
		rssi      uint8
		edLevel   uint8
		ccaMode   uint8
		batteryOK bool
		pending   bool
	)

	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		var err error
		if status, err = dev.Status(); err != nil {
			return err
		}
		if channel, err = dev.Channel(); err != nil {
			return err
		}
		if power, err = dev.TxPower(); err != nil {
			return err
		}
		if phase, err = dev.Field(at86.FieldPmuEn); err != nil {
			return err
		}
		if rssi, err = dev.RSSI(); err != nil {
			return err
		}
		if edLevel, err = dev.EDLevel(); err != nil {
			return err
		}
		if ccaMode, err = dev.CCAMode(); err != nil {
			return err
		}
		if batteryOK, err = dev.BatteryOK(); err != nil {
			return err
		}
		pending = dev.IrqPending()
		return nil
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	return SendSuccess(c, map[string]interface{}{
		"initialized":  true,
		"status":       status.String(),
		"status_value": uint8(status),
		"channel":      channel,
		"tx_power_dbm": power,
		"phase":        phase == 1,
		"rssi":         rssi,
		"ed_level":     edLevel,
		"cca_mode":     ccaMode,
		"battery_ok":   batteryOK,
		"irq_pending":  pending,
	}, "")
}

func (p *RadioPlugin) handleInfo(c *fiber.Ctx) error {
	p.mu.Lock()
	trx := p.trx
	info := p.info
	p.mu.Unlock()

	data := map[string]interface{}{
		"config": p.config,
		"mode":   "persistent",
	}
	if trx != nil {
		data["chip"] = info
		data["host"] = trx.Info()
	}
	return SendSuccess(c, data, "")
}

func (p *RadioPlugin) handleSetState(c *fiber.Ctx) error {
	var req struct {
		Command string `json:"command"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	cmd, ok := stateCommands[req.Command]
	if !ok {
		return SendErrorMessage(c, 400, "Invalid command. Use: trx_off, force_trx_off, pll_on, force_pll_on, rx_on, tx_start, prep_deep_sleep or nop")
	}

	var status at86.Status
	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		if err := dev.SendCommand(cmd); err != nil {
			return err
		}
		var err error
		status, err = dev.Status()
		return err
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	slog.Info("State command sent", "command", cmd, "status", status)
	return SendSuccess(c, map[string]interface{}{
		"command": cmd.String(),
		"status":  status.String(),
	}, "")
}

// Register access handlers

func parseRegister(c *fiber.Ctx) (uint8, bool) {
	addr, err := c.ParamsInt("addr")
	if err != nil || addr < 0 || addr > at86.MaxRegister {
		return 0, false
	}
	return uint8(addr), true
}

func describeRegister(addr, value uint8) map[string]interface{} {
	desc := RegisterDescriptions[addr]
	if desc == "" {
		desc = "Unknown register"
	}
	return map[string]interface{}{
		"address":     fmt.Sprintf("0x%02X", addr),
		"value":       fmt.Sprintf("0x%02X", value),
		"value_dec":   value,
		"description": desc,
	}
}

func (p *RadioPlugin) handleReadRegister(c *fiber.Ctx) error {
	addr, ok := parseRegister(c)
	if !ok {
		return SendErrorMessage(c, 400, "Invalid register address")
	}
	if volatileRegisters[addr] {
		return SendErrorMessage(c, fiber.StatusConflict, "Register is cleared on read and belongs to the receive path")
	}

	var value uint8
	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		var err error
		value, err = dev.Bus().ReadRegister(addr)
		return err
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	return SendSuccess(c, describeRegister(addr, value), "")
}

func (p *RadioPlugin) handleWriteRegister(c *fiber.Ctx) error {
	addr, ok := parseRegister(c)
	if !ok {
		return SendErrorMessage(c, 400, "Invalid register address")
	}

	var req struct {
		Value uint8 `json:"value"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		return dev.Bus().WriteRegister(addr, req.Value)
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	slog.Info("Register write", "address", fmt.Sprintf("0x%02X", addr), "value", fmt.Sprintf("0x%02X", req.Value))
	return SendSuccess(c, nil, "Register written successfully")
}

func (p *RadioPlugin) handleReadAllRegisters(c *fiber.Ctx) error {
	regList := make([]map[string]interface{}, 0, len(RegisterDescriptions))

	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		for addr := uint8(0); addr <= at86.MaxRegister; addr++ {
			if _, known := RegisterDescriptions[addr]; !known || volatileRegisters[addr] {
				continue
			}
			value, err := dev.Bus().ReadRegister(addr)
			if err != nil {
				return fmt.Errorf("failed to read register 0x%02X: %w", addr, err)
			}
			regList = append(regList, describeRegister(addr, value))
		}
		return nil
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	return SendSuccess(c, map[string]interface{}{
		"registers": regList,
		"count":     len(regList),
	}, "")
}

func (p *RadioPlugin) handleReadFields(c *fiber.Ctx) error {
	fields := make(map[string]uint8, len(registerFields))

	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		for name, field := range registerFields {
			value, err := dev.Field(field)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", name, err)
			}
			fields[name] = value
		}
		return nil
	})
	if err != nil {
		return SendRadioError(c, err)
	}
	return SendSuccess(c, fields, "")
}

// Configuration handlers

func (p *RadioPlugin) handleGetChannel(c *fiber.Ctx) error {
	var channel uint8
	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		var err error
		channel, err = dev.Channel()
		return err
	})
	if err != nil {
		return SendRadioError(c, err)
	}
	return SendSuccess(c, map[string]interface{}{"channel": channel}, "")
}

func (p *RadioPlugin) handleSetChannel(c *fiber.Ctx) error {
	var req struct {
		Channel int `json:"channel"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}
	if req.Channel < 0 || req.Channel > int(at86.FieldChannel.Max()) {
		return SendErrorMessage(c, 400, "Channel out of range")
	}

	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		return dev.SetChannel(uint8(req.Channel))
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	slog.Info("Channel set", "channel", req.Channel)
	return SendSuccess(c, map[string]interface{}{"channel": req.Channel}, "Channel set successfully")
}

func (p *RadioPlugin) handleGetPower(c *fiber.Ctx) error {
	var dbm int
	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		var err error
		dbm, err = dev.TxPower()
		return err
	})
	if err != nil {
		return SendRadioError(c, err)
	}
	return SendSuccess(c, map[string]interface{}{"tx_power_dbm": dbm}, "")
}

func (p *RadioPlugin) handleSetPower(c *fiber.Ctx) error {
	var req struct {
		Dbm int `json:"dbm"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	var dbm int
	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		if err := dev.SetTxPower(req.Dbm); err != nil {
			return err
		}
		var err error
		dbm, err = dev.TxPower()
		return err
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	slog.Info("TX power set", "requested", req.Dbm, "dbm", dbm)
	return SendSuccess(c, map[string]interface{}{
		"tx_power_dbm": dbm,
		"code":         at86.PowerCode(req.Dbm),
	}, "TX power set successfully")
}

func (p *RadioPlugin) handleGetPAN(c *fiber.Ctx) error {
	var pan uint16
	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		var err error
		pan, err = dev.PANID()
		return err
	})
	if err != nil {
		return SendRadioError(c, err)
	}
	return SendSuccess(c, map[string]interface{}{"pan_id": pan}, "")
}

func (p *RadioPlugin) handleSetPAN(c *fiber.Ctx) error {
	var req struct {
		Value uint16 `json:"value"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		return dev.SetPANID(req.Value)
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	slog.Info("PAN ID set", "pan_id", fmt.Sprintf("0x%04X", req.Value))
	return SendSuccess(c, map[string]interface{}{"pan_id": req.Value}, "PAN ID set successfully")
}

func (p *RadioPlugin) handleGetShortAddr(c *fiber.Ctx) error {
	var addr uint16
	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		var err error
		addr, err = dev.ShortAddress()
		return err
	})
	if err != nil {
		return SendRadioError(c, err)
	}
	return SendSuccess(c, map[string]interface{}{"short_addr": addr}, "")
}

func (p *RadioPlugin) handleSetShortAddr(c *fiber.Ctx) error {
	var req struct {
		Value uint16 `json:"value"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		return dev.SetShortAddress(req.Value)
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	slog.Info("Short address set", "short_addr", fmt.Sprintf("0x%04X", req.Value))
	return SendSuccess(c, map[string]interface{}{"short_addr": req.Value}, "Short address set successfully")
}

func (p *RadioPlugin) handleSetPhase(c *fiber.Ctx) error {
	var req struct {
		Enable bool `json:"enable"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		return dev.EnablePhaseMeasurement(req.Enable)
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	slog.Info("Phase measurement", "enable", req.Enable)
	return SendSuccess(c, nil, fmt.Sprintf("Phase measurement %s", map[bool]string{true: "enabled", false: "disabled"}[req.Enable]))
}

func (p *RadioPlugin) handleGetIEEEAddr(c *fiber.Ctx) error {
	var addr uint64
	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		var err error
		addr, err = dev.IEEEAddress()
		return err
	})
	if err != nil {
		return SendRadioError(c, err)
	}
	return SendSuccess(c, map[string]interface{}{"ieee_addr": fmt.Sprintf("%016X", addr)}, "")
}

func (p *RadioPlugin) handleSetIEEEAddr(c *fiber.Ctx) error {
	var req struct {
		Value string `json:"value"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}
	digits := strings.TrimPrefix(strings.ToLower(req.Value), "0x")
	addr, err := strconv.ParseUint(digits, 16, 64)
	if err != nil || digits == "" {
		return SendErrorMessage(c, 400, "Invalid IEEE address, expected up to 16 hex digits")
	}

	err = p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		return dev.SetIEEEAddress(addr)
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	slog.Info("IEEE address set", "ieee_addr", fmt.Sprintf("%016X", addr))
	return SendSuccess(c, map[string]interface{}{"ieee_addr": fmt.Sprintf("%016X", addr)}, "IEEE address set successfully")
}

func (p *RadioPlugin) handleGetCCA(c *fiber.Ctx) error {
	var mode uint8
	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		var err error
		mode, err = dev.CCAMode()
		return err
	})
	if err != nil {
		return SendRadioError(c, err)
	}
	return SendSuccess(c, map[string]interface{}{"cca_mode": mode}, "")
}

func (p *RadioPlugin) handleSetCCA(c *fiber.Ctx) error {
	var req struct {
		Mode int `json:"mode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}
	if req.Mode < 0 || req.Mode > int(at86.FieldCcaMode.Max()) {
		return SendErrorMessage(c, 400, "CCA mode out of range")
	}

	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		return dev.SetCCAMode(uint8(req.Mode))
	})
	if err != nil {
		return SendRadioError(c, err)
	}

	slog.Info("CCA mode set", "mode", req.Mode)
	return SendSuccess(c, map[string]interface{}{"cca_mode": req.Mode}, "CCA mode set successfully")
}

// Radio operation handlers

func (p *RadioPlugin) handleTransmit(c *fiber.Ctx) error {
	var req struct {
		Payload radio.HexBytes `json:"payload"`
		Address *uint8         `json:"address"`
		Fill    *uint8         `json:"fill"`
		Size    int            `json:"size"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return SendErrorMessage(c, 400, "Invalid request body")
		}
	}

	svc, err := p.Service()
	if err != nil {
		return SendRadioError(c, err)
	}

	payload := []byte(req.Payload)
	if len(payload) == 0 {
		cfg := svc.Config()
		address, fill, size := cfg.Address, uint8(radio.DefaultFill), cfg.FrameSize
		if req.Address != nil {
			address = *req.Address
		}
		if req.Fill != nil {
			fill = *req.Fill
		}
		if req.Size > 0 {
			size = req.Size
		}
		payload = radio.BuildFrame(address, fill, size)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), p.config.Radio.TxTimeout)
	defer cancel()

	tx, err := svc.Transmit(ctx, payload)
	if err != nil {
		slog.Error("Transmit failed", "error", err)
		return SendRadioError(c, err)
	}
	return SendSuccess(c, tx, "Frame transmitted")
}

func (p *RadioPlugin) handleReceive(c *fiber.Ctx) error {
	var req struct {
		Style      string `json:"style"`
		ReadLength int    `json:"read_length"`
		TimeoutMs  int    `json:"timeout_ms"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return SendErrorMessage(c, 400, "Invalid request body")
		}
	}

	style, err := radio.ParsePollStyle(req.Style)
	if err != nil {
		return SendErrorMessage(c, 400, err.Error())
	}
	if req.ReadLength < 0 || req.ReadLength > at86.FrameBufferSize {
		return SendErrorMessage(c, 400, "Invalid read length")
	}

	svc, err := p.Service()
	if err != nil {
		return SendRadioError(c, err)
	}

	timeout := p.config.Radio.RxTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
	defer cancel()

	rx, err := svc.Receive(ctx, radio.ReceiveOptions{Style: style, ReadLength: req.ReadLength})
	if err != nil {
		slog.Warn("Receive failed", "error", err, "style", style)
		return SendRadioError(c, err)
	}

	msg := "Valid frame received"
	if !rx.Valid {
		msg = "Invalid frame received"
	}
	return SendSuccess(c, rx, msg)
}

func (p *RadioPlugin) handleReceptions(c *fiber.Ctx) error {
	svc, err := p.Service()
	if err != nil {
		return SendRadioError(c, err)
	}
	list := svc.Receptions()
	return SendSuccess(c, map[string]interface{}{
		"receptions": list,
		"count":      len(list),
	}, "")
}

// handleReadFrame returns the frame buffer contents as the last frame left
// them
func (p *RadioPlugin) handleReadFrame(c *fiber.Ctx) error {
	var frame []byte
	err := p.withDevice(c.UserContext(), func(dev *at86.Device) error {
		var err error
		frame, err = dev.ReadFrame()
		return err
	})
	if err != nil {
		return SendRadioError(c, err)
	}
	return SendSuccess(c, map[string]interface{}{
		"length":  len(frame),
		"payload": radio.HexBytes(frame),
	}, "")
}

// Register the plugin
func init() {
	Register("radio", func(config interface{}) (Plugin, error) {
		var hwConfig HardwareConfig
		switch cfg := config.(type) {
		case HardwareConfig:
			hwConfig = cfg
		case map[string]interface{}:
			if err := decodeConfig(cfg, &hwConfig); err != nil {
				return nil, fmt.Errorf("invalid config for radio plugin: %w", err)
			}
		case nil:
		default:
			return nil, fmt.Errorf("invalid config for radio plugin")
		}

		slog.Info("Radio plugin config parsed",
			"spi_device", hwConfig.AT86.SPIDevice,
			"gpio_chip", hwConfig.AT86.GPIOChip,
			"frame_size", hwConfig.Radio.FrameSize,
			"phase_enabled", hwConfig.Radio.PhaseEnabled)

		return NewRadioPlugin(hwConfig, nil)
	})
}
