package plugins

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.bug.st/serial"

	"github.com/linht/rf-manager/at86"
	"github.com/linht/rf-manager/radio"
)

// Console commands, one per line
const (
	ConsoleTransmit = "TX"
	ConsoleReceive  = "RX"
	ConsoleChannel  = "CH"
	ConsolePower    = "PW"
)

// Console runs the line protocol of the bench firmware over a byte stream.
// Every command line is answered with a bare newline before the command
// runs. TX, CH and PW take their argument from the following line.
type Console struct {
	rw        io.ReadWriter
	service   func() (*radio.Service, error)
	style     radio.PollStyle
	txTimeout time.Duration
	// rxTimeout of zero waits for a frame until the console stops
	rxTimeout time.Duration

	handled atomic.Int64
}

// NewConsole returns a console on rw. service is looked up for every
// command so the radio may be initialized after the console starts.
func NewConsole(rw io.ReadWriter, service func() (*radio.Service, error)) *Console {
	return &Console{
		rw:        rw,
		service:   service,
		txTimeout: time.Second,
	}
}

// Handled returns the number of commands processed
func (c *Console) Handled() int64 {
	return c.handled.Load()
}

// Serve processes commands until the stream ends or ctx is done
func (c *Console) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(c.rw)
	next := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, ok := next()
		if !ok {
			return scanner.Err()
		}
		if line == "" {
			continue
		}

		c.write("\n")
		c.handled.Add(1)

		switch line {
		case ConsoleTransmit:
			arg, ok := next()
			if !ok {
				return scanner.Err()
			}
			c.transmit(ctx, arg)
		case ConsoleReceive:
			c.receive(ctx)
		case ConsoleChannel:
			arg, ok := next()
			if !ok {
				return scanner.Err()
			}
			c.setChannel(ctx, arg)
		case ConsolePower:
			arg, ok := next()
			if !ok {
				return scanner.Err()
			}
			c.setPower(ctx, arg)
		default:
			c.write(line + "\n")
			c.errorf("unknown command")
		}
	}
}

func (c *Console) write(s string) {
	if _, err := io.WriteString(c.rw, s); err != nil {
		slog.Warn("Console write failed", "error", err)
	}
}

func (c *Console) errorf(format string, args ...interface{}) {
	c.write("(error) " + fmt.Sprintf(format, args...) + "\n")
}

func (c *Console) transmit(ctx context.Context, arg string) {
	data, err := strconv.Atoi(arg)
	if err != nil || data != data&0xFF {
		c.errorf("invalid byte: %s", arg)
		return
	}

	svc, err := c.service()
	if err != nil {
		c.errorf("%v", err)
		return
	}

	cfg := svc.Config()
	frame := radio.BuildFrame(cfg.Address, uint8(data), cfg.FrameSize)

	ctx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()
	if _, err := svc.Transmit(ctx, frame); err != nil {
		slog.Error("Console transmit failed", "error", err)
		c.errorf("%v", err)
		return
	}

	payload := uint8(0)
	if len(frame) > 1 {
		payload = frame[1]
	}
	c.write(fmt.Sprintf("(TX) Address: 0x%x, Payload: 0x%x\n", frame[0], payload))
}

func (c *Console) receive(ctx context.Context) {
	svc, err := c.service()
	if err != nil {
		c.errorf("%v", err)
		return
	}

	if c.rxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.rxTimeout)
		defer cancel()
	}

	rx, err := svc.Receive(ctx, radio.ReceiveOptions{Style: c.style})
	if err != nil {
		slog.Warn("Console receive failed", "error", err)
		c.errorf("%v", err)
		return
	}

	payload := uint8(0)
	if len(rx.Payload) > 0 {
		payload = rx.Payload[0]
	}
	if !rx.Valid {
		c.write(fmt.Sprintf("(invalid RX) Length: %d, Address: 0x%x, Payload: 0x%x\n", rx.Length, rx.Address, payload))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "(valid RX) Length: %d, Address: 0x%x, Payload: 0x%x\n", rx.Length, rx.Address, payload)
	for _, phase := range rx.Phases {
		fmt.Fprintf(&b, "%x\n", phase)
	}
	b.WriteString("done\n")
	c.write(b.String())
}

func (c *Console) setChannel(ctx context.Context, arg string) {
	channel, err := strconv.Atoi(arg)
	if err != nil || channel < 0 || channel > int(at86.FieldChannel.Max()) {
		c.errorf("invalid channel: %s", arg)
		return
	}

	svc, err := c.service()
	if err != nil {
		c.errorf("%v", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	var got uint8
	err = svc.Do(ctx, func(dev *at86.Device) error {
		if err := dev.SetChannel(uint8(channel)); err != nil {
			return err
		}
		got, err = dev.Channel()
		return err
	})
	if err != nil {
		c.errorf("%v", err)
		return
	}
	c.write(fmt.Sprintf("(CH) Channel: %d\n", got))
}

func (c *Console) setPower(ctx context.Context, arg string) {
	dbm, err := strconv.Atoi(arg)
	if err != nil {
		c.errorf("invalid power: %s", arg)
		return
	}

	svc, err := c.service()
	if err != nil {
		c.errorf("%v", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	var got int
	err = svc.Do(ctx, func(dev *at86.Device) error {
		if err := dev.SetTxPower(dbm); err != nil {
			return err
		}
		got, err = dev.TxPower()
		return err
	})
	if err != nil {
		c.errorf("%v", err)
		return
	}
	c.write(fmt.Sprintf("(PW) Power: %d dBm\n", got))
}

// ConsoleConfig holds the serial console configuration
type ConsoleConfig struct {
	Port      string        `yaml:"port"`
	BaudRate  int           `yaml:"baud_rate"`
	PollStyle string        `yaml:"poll_style"`
	RxTimeout time.Duration `yaml:"rx_timeout"`
}

// ConsolePlugin serves the console on a serial port
type ConsolePlugin struct {
	config  ConsoleConfig
	port    serial.Port
	console *Console
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	err     error
}

// NewConsolePlugin opens the serial port and starts serving commands
func NewConsolePlugin(cfg ConsoleConfig) (*ConsolePlugin, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("port is required in console plugin configuration")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	style, err := radio.ParsePollStyle(cfg.PollStyle)
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}

	console := NewConsole(port, radioService)
	console.style = style
	console.rxTimeout = cfg.RxTimeout

	ctx, cancel := context.WithCancel(context.Background())
	p := &ConsolePlugin{
		config:  cfg,
		port:    port,
		console: console,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		err := console.Serve(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Console stopped", "port", cfg.Port, "error", err)
		}
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
	}()

	slog.Info("Console listening", "port", cfg.Port, "baud_rate", cfg.BaudRate, "poll_style", style)
	return p, nil
}

// Name returns the plugin identifier
func (p *ConsolePlugin) Name() string {
	return "console"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *ConsolePlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/console")
	api.Get("/status", p.handleStatus)
}

// Shutdown closes the port, which ends the command loop
func (p *ConsolePlugin) Shutdown() error {
	p.cancel()
	err := p.port.Close()
	<-p.done
	return err
}

func (p *ConsolePlugin) handleStatus(c *fiber.Ctx) error {
	running := true
	select {
	case <-p.done:
		running = false
	default:
	}

	p.mu.Lock()
	lastErr := ""
	if p.err != nil {
		lastErr = p.err.Error()
	}
	p.mu.Unlock()

	return SendSuccess(c, map[string]interface{}{
		"port":       p.config.Port,
		"baud_rate":  p.config.BaudRate,
		"poll_style": p.console.style.String(),
		"running":    running,
		"handled":    p.console.Handled(),
		"error":      lastErr,
	}, "")
}

// Register the plugin
func init() {
	Register("console", func(config interface{}) (Plugin, error) {
		var cfg ConsoleConfig
		if configMap, ok := config.(map[string]interface{}); ok {
			if err := decodeConfig(configMap, &cfg); err != nil {
				return nil, fmt.Errorf("invalid config for console plugin: %w", err)
			}
		}
		return NewConsolePlugin(cfg)
	})
}
