// internal/poller/builder.go
package poller

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/modbus-devices/internal/config"
	"github.com/tamzrod/modbus-devices/internal/drivers"
	"github.com/tamzrod/modbus-devices/internal/engine"
	"github.com/tamzrod/modbus-devices/internal/logging"
	tmodbus "github.com/tamzrod/modbus-devices/internal/transport/modbus"
)

// Links hands out one transport client per physical link.
// Devices behind the same gateway or on the same serial bus share it; the
// client serializes their requests and switches the unit id per request.
type Links struct {
	mu      sync.Mutex
	clients map[string]*tmodbus.Client
	order   []string
}

func NewLinks() *Links {
	return &Links{clients: make(map[string]*tmodbus.Client)}
}

// Get returns the client for s, creating it on first use.
// The first device on a link decides its timeout and serial settings.
func (l *Links) Get(s cfg.SourceConfig) (*tmodbus.Client, error) {
	key := linkKey(s)

	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.clients[key]; ok {
		return c, nil
	}

	c, err := tmodbus.New(tmodbus.Config{
		Mode:     s.Mode,
		Endpoint: s.Endpoint,
		Port:     s.Serial.Port,
		BaudRate: s.Serial.BaudRate,
		DataBits: s.Serial.DataBits,
		Parity:   s.Serial.Parity,
		StopBits: s.Serial.StopBits,
		Timeout:  time.Duration(s.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	l.clients[key] = c
	l.order = append(l.order, key)
	return c, nil
}

// Len is the number of open links.
func (l *Links) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Close closes every link and returns the last error.
func (l *Links) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var last error
	for _, key := range l.order {
		if err := l.clients[key].Close(); err != nil {
			last = err
		}
	}
	l.clients = make(map[string]*tmodbus.Client)
	l.order = nil
	return last
}

func linkKey(s cfg.SourceConfig) string {
	if s.Mode == cfg.ModeRTU {
		return cfg.ModeRTU + "|" + s.Serial.Port
	}
	return cfg.ModeTCP + "|" + s.Endpoint
}

// Build constructs the schema, engine and coordinator of one configured
// device. The config must be validated and normalized. The link is opened
// lazily, so an unreachable device does not fail the build.
func Build(d cfg.DeviceConfig, reg *drivers.Registry, links *Links, log zerolog.Logger, onWrite func(key string, err error)) (*Coordinator, error) {
	dev, err := reg.New(d.Model)
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", d.Name, err)
	}

	client, err := links.Get(d.Source)
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", d.Name, err)
	}

	dlog := logging.ForDevice(log, d.Name, d.Model, dev.ID.String())

	eng := engine.New(dev, client, engine.Config{
		UnitID:       d.Source.UnitID,
		MaxRegisters: d.MaxRegisters,
	}, dlog)

	return New(Config{
		Name:         d.Name,
		Interval:     time.Duration(d.Poll.IntervalMs) * time.Millisecond,
		FastInterval: time.Duration(d.Poll.FastIntervalMs) * time.Millisecond,
		FastCycles:   d.Poll.FastCycles,
		CycleTimeout: time.Duration(d.Poll.CycleTimeoutMs) * time.Millisecond,
		OnWrite:      onWrite,
	}, eng, dlog)
}
