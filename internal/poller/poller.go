// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-devices/internal/engine"
	"github.com/tamzrod/modbus-devices/internal/schema"
)

// Coordinator schedules the reads of one device and serves its platform
// callers. One coordinator per device; it never shares an engine.
type Coordinator struct {
	cfg Config
	eng *engine.Engine
	dev *schema.Device
	log zerolog.Logger

	mu            sync.Mutex
	interval      time.Duration
	fastActive    bool
	fastRemaining int
	initErr       *DeviceInitError
	selected      int

	refresh chan struct{}
	resched chan struct{}

	subMu  sync.Mutex
	subs   map[int]subscription
	nextID int
}

// New creates a coordinator with immutable config.
func New(cfg Config, eng *engine.Engine, log zerolog.Logger) (*Coordinator, error) {
	if eng == nil {
		return nil, errors.New("poller: engine required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.FastInterval <= 0 {
		cfg.FastInterval = DefaultFastInterval
	}
	if cfg.FastCycles <= 0 {
		cfg.FastCycles = DefaultFastCycles
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultCycleTimeout
	}

	return &Coordinator{
		cfg:      cfg,
		eng:      eng,
		dev:      eng.Device(),
		log:      log,
		interval: cfg.Interval,
		refresh:  make(chan struct{}, 1),
		resched:  make(chan struct{}, 1),
		subs:     make(map[int]subscription),
	}, nil
}

func (c *Coordinator) Device() *schema.Device { return c.dev }
func (c *Coordinator) Name() string           { return c.cfg.Name }

// Schedule returns the scheduling config with defaults applied.
func (c *Coordinator) Schedule() Config { return c.cfg }

// halted returns the permanent init error, nil while the device is usable.
func (c *Coordinator) halted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initErr != nil {
		return c.initErr
	}
	return nil
}

// Interval returns the delay until the next scheduled cycle.
func (c *Coordinator) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// FastActive reports whether fast mode is on.
func (c *Coordinator) FastActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fastActive
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: the first failing group aborts the cycle.
func (c *Coordinator) PollOnce(ctx context.Context) (res PollResult) {
	res = PollResult{
		Device: c.cfg.Name,
		At:     time.Now(),
	}
	defer func() { res.Duration = time.Since(res.At) }()

	c.mu.Lock()
	if c.initErr != nil {
		res.Err = c.initErr
		c.mu.Unlock()
		return res
	}
	res.Fast = c.stepFastLocked()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CycleTimeout)
	defer cancel()

	c.dev.BeforeRead()

	first := c.dev.FirstRead()
	res.First = first

	for _, g := range c.dev.Groups() {
		if !due(g, first) {
			continue
		}
		if err := c.eng.ReadGroup(ctx, g.ID); err != nil {
			res.Group = g.Name
			res.Err = err
			c.log.Debug().Err(err).Str("group", g.Name).Msg("cycle aborted")
			return res
		}
	}

	if first {
		if err := c.dev.CompleteFirstRead(); err != nil {
			ie := &DeviceInitError{Device: c.cfg.Name, Err: err}
			c.mu.Lock()
			c.initErr = ie
			c.mu.Unlock()
			res.Err = ie
			c.log.Error().Err(err).Msg("device initialization failed")
			return res
		}
		id := c.dev.Identity()
		c.log.Info().
			Str("manufacturer", id.Manufacturer).
			Str("model", id.Model).
			Str("sw_version", id.SWVersion).
			Str("serial", id.SerialNumber).
			Msg("device initialized")
	}

	c.dev.AfterRead()
	c.publishAll()

	return res
}

// due reports whether group g is read in this cycle.
func due(g schema.Group, first bool) bool {
	k := g.Kind()
	if k.Mode == schema.ModeNone {
		return false
	}
	switch k.Poll {
	case schema.PollOn:
		return true
	case schema.PollOnce:
		return first
	default:
		return false
	}
}

// ---- fast mode ----

// stepFastLocked counts down fast mode at the start of a cycle.
// The cycle that exhausts the budget already schedules the normal interval.
func (c *Coordinator) stepFastLocked() bool {
	if !c.fastActive {
		return false
	}
	c.fastRemaining--
	if c.fastRemaining <= 0 {
		c.fastActive = false
		c.interval = c.cfg.Interval
		c.log.Debug().Dur("interval", c.interval).Msg("normal poll mode")
	}
	return true
}

// enterFast switches to the fast interval and reschedules the pending cycle.
func (c *Coordinator) enterFast() {
	c.mu.Lock()
	c.fastActive = true
	c.fastRemaining = c.cfg.FastCycles
	c.interval = c.cfg.FastInterval
	c.mu.Unlock()

	c.log.Debug().Dur("interval", c.cfg.FastInterval).Msg("fast poll mode")
	signal(c.resched)
}

// RequestUpdate triggers an immediate cycle.
func (c *Coordinator) RequestUpdate() {
	signal(c.refresh)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
