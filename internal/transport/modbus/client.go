// internal/transport/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

const (
	ModeTCP = "tcp"
	ModeRTU = "rtu"
)

// Config selects and parameterizes one physical link.
// Endpoint is used for tcp, the serial fields for rtu.
type Config struct {
	Mode     string
	Endpoint string

	Port     string
	BaudRate int
	DataBits int
	Parity   string
	StopBits int

	Timeout time.Duration
}

// handler is the part of a goburrow handler the client drives directly.
type handler interface {
	modbus.ClientHandler
	io.Closer
	Connect() error
}

// Client is one link to one or more units.
// It serializes requests because it mutates SlaveId per request.
type Client struct {
	mu      sync.Mutex
	handler handler
	setUnit func(uint8)
	client  modbus.Client
}

// New builds a client for cfg. The link is opened lazily on first use, so a
// device that is offline at startup is retried on every poll.
func New(cfg Config) (*Client, error) {
	switch cfg.Mode {
	case ModeTCP, "":
		if cfg.Endpoint == "" {
			return nil, errors.New("transport modbus: endpoint required")
		}
		h := modbus.NewTCPClientHandler(cfg.Endpoint)
		h.Timeout = cfg.Timeout
		return newClient(h, func(u uint8) { h.SlaveId = u }), nil

	case ModeRTU:
		if cfg.Port == "" {
			return nil, errors.New("transport modbus: serial port required")
		}
		h := modbus.NewRTUClientHandler(cfg.Port)
		h.Timeout = cfg.Timeout
		if cfg.BaudRate > 0 {
			h.BaudRate = cfg.BaudRate
		}
		if cfg.DataBits > 0 {
			h.DataBits = cfg.DataBits
		}
		if cfg.Parity != "" {
			h.Parity = cfg.Parity
		}
		if cfg.StopBits > 0 {
			h.StopBits = cfg.StopBits
		}
		return newClient(h, func(u uint8) { h.SlaveId = u }), nil

	default:
		return nil, fmt.Errorf("transport modbus: unsupported mode %q", cfg.Mode)
	}
}

func newClient(h handler, setUnit func(uint8)) *Client {
	return &Client{
		handler: h,
		setUnit: setUnit,
		client:  modbus.NewClient(h),
	}
}

// Close closes the underlying connection or serial port.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// ---- engine.Client interface ----

func (c *Client) ReadHoldingRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUnit(unitID)
	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, c.fail(err)
	}
	return unpackRegisters(raw), nil
}

func (c *Client) ReadInputRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUnit(unitID)
	raw, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, c.fail(err)
	}
	return unpackRegisters(raw), nil
}

func (c *Client) WriteSingleRegister(unitID uint8, addr, value uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUnit(unitID)
	if _, err := c.client.WriteSingleRegister(addr, value); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Client) WriteMultipleRegisters(unitID uint8, addr uint16, values []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUnit(unitID)

	qty := uint16(len(values))
	payload := packRegisters(values)

	if _, err := c.client.WriteMultipleRegisters(addr, qty, payload); err != nil {
		return c.fail(err)
	}
	return nil
}

// fail drops the link on anything but a device exception so the next
// request reconnects. Exceptions mean the link itself is fine.
func (c *Client) fail(err error) error {
	var mbErr *modbus.ModbusError
	if !errors.As(err, &mbErr) {
		_ = c.handler.Close()
	}
	return err
}

// ---- helpers (pure geometry) ----

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
