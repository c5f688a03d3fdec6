// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-devices/internal/codec"
	"github.com/tamzrod/modbus-devices/internal/planner"
	"github.com/tamzrod/modbus-devices/internal/schema"
)

// Client abstracts the register operations the engine needs.
// Implementations do the wire work; the engine never sees frames.
type Client interface {
	ReadHoldingRegisters(unitID uint8, addr, qty uint16) ([]uint16, error)   // FC 3
	ReadInputRegisters(unitID uint8, addr, qty uint16) ([]uint16, error)     // FC 4
	WriteSingleRegister(unitID uint8, addr, value uint16) error              // FC 6
	WriteMultipleRegisters(unitID uint8, addr uint16, values []uint16) error // FC 16
}

// Config is the per-device engine configuration.
type Config struct {
	UnitID       uint8
	MaxRegisters int
}

// Engine performs all register I/O of one device.
// Operations are serialized through a single slot; devices never share one.
type Engine struct {
	dev    *schema.Device
	client Client
	cfg    Config
	log    zerolog.Logger

	slot chan struct{}
}

// New creates an engine bound to one device and its client.
func New(dev *schema.Device, client Client, cfg Config, log zerolog.Logger) *Engine {
	if cfg.MaxRegisters <= 0 {
		cfg.MaxRegisters = planner.MaxRegisters
	}
	return &Engine{
		dev:    dev,
		client: client,
		cfg:    cfg,
		log:    log,
		slot:   make(chan struct{}, 1),
	}
}

func (e *Engine) Device() *schema.Device { return e.dev }

// ReadGroup reads a group's full span in one request and decodes every point.
func (e *Engine) ReadGroup(ctx context.Context, id schema.GroupID) error {
	g, ok := e.dev.Group(id)
	if !ok {
		return fmt.Errorf("%w: %d", schema.ErrUnknownGroup, id)
	}
	if g.Mode == schema.ModeNone {
		return &ReadError{Group: g.Name, Err: ErrVirtualGroup}
	}

	points, err := e.dev.Points(id)
	if err != nil {
		return err
	}

	extents := make([]planner.Extent, 0, len(points))
	for _, p := range points {
		extents = append(extents, planner.Extent{Address: p.Address, Length: p.Length})
	}

	rng, err := planner.Plan(g.Name, extents, e.cfg.MaxRegisters)
	if err != nil {
		return err
	}
	if rng.Empty() {
		e.log.Warn().Str("group", g.Name).Msg("no data points to read in group")
		return nil
	}

	words, err := e.read(ctx, g.Mode, rng.Start, rng.Count)
	if err != nil {
		return &ReadError{Group: g.Name, Start: rng.Start, Count: rng.Count, Err: err}
	}

	e.log.Debug().
		Str("group", g.Name).
		Uint16("addr", rng.Start).
		Uint16("qty", rng.Count).
		Msg("read group")

	for _, p := range points {
		off := rng.Offset(p.Address)
		e.store(id, g.Name, p, words[off:off+p.Length])
	}
	return nil
}

// ReadValue reads a single point's own range.
func (e *Engine) ReadValue(ctx context.Context, id schema.GroupID, key string) (codec.Value, error) {
	g, ok := e.dev.Group(id)
	if !ok {
		return codec.Unknown(), fmt.Errorf("%w: %d", schema.ErrUnknownGroup, id)
	}
	p, err := e.dev.Point(id, key)
	if err != nil {
		return codec.Unknown(), err
	}
	if g.Mode == schema.ModeNone {
		return codec.Unknown(), &ReadError{Group: g.Name, Key: key, Err: ErrVirtualGroup}
	}

	qty := uint16(p.Length)
	words, err := e.read(ctx, g.Mode, p.Address, qty)
	if err != nil {
		return codec.Unknown(), &ReadError{Group: g.Name, Key: key, Start: p.Address, Count: qty, Err: err}
	}

	e.log.Debug().Str("group", g.Name).Str("key", key).Msg("read value")

	return e.store(id, g.Name, schema.NamedPoint{Key: key, DataPoint: p}, words[:p.Length]), nil
}

// WriteValue encodes value and writes it to a holding-register point.
// On success the cached value becomes value as given; nothing is re-read.
func (e *Engine) WriteValue(ctx context.Context, id schema.GroupID, key string, value float64) error {
	g, ok := e.dev.Group(id)
	if !ok {
		return fmt.Errorf("%w: %d", schema.ErrUnknownGroup, id)
	}
	p, err := e.dev.Point(id, key)
	if err != nil {
		return err
	}
	if g.Mode != schema.ModeHolding {
		return fmt.Errorf("%w: %s/%s is in a %s group", ErrReadOnly, g.Name, key, g.Mode)
	}

	words, err := codec.Encode(value, p.Scaling, p.Length)
	if err != nil {
		return fmt.Errorf("engine: write %s/%s: %w", g.Name, key, err)
	}

	err = e.do(ctx, func() error {
		if len(words) == 1 {
			return e.client.WriteSingleRegister(e.cfg.UnitID, p.Address, words[0])
		}
		return e.client.WriteMultipleRegisters(e.cfg.UnitID, p.Address, words)
	})
	if err != nil {
		return &WriteError{Group: g.Name, Key: key, Address: p.Address, Err: err}
	}

	if err := e.dev.SetValue(id, key, codec.Number(value)); err != nil {
		return err
	}

	e.log.Debug().
		Str("group", g.Name).
		Str("key", key).
		Float64("value", value).
		Msg("wrote value")
	return nil
}

// store decodes one point and publishes the result. Decode failures leave
// the point Unknown and never abort the caller.
func (e *Engine) store(id schema.GroupID, group string, p schema.NamedPoint, words []uint16) codec.Value {
	v, err := codec.Decode(words, p.Scaling)
	if err != nil {
		e.log.Warn().Err(err).Str("group", group).Str("key", p.Key).Msg("decode failed")
	}
	if err := e.dev.SetValue(id, p.Key, v); err != nil {
		e.log.Warn().Err(err).Str("group", group).Str("key", p.Key).Msg("store failed")
	}
	return v
}

func (e *Engine) read(ctx context.Context, mode schema.Mode, addr, qty uint16) ([]uint16, error) {
	var words []uint16
	err := e.do(ctx, func() error {
		var err error
		switch mode {
		case schema.ModeInput:
			words, err = e.client.ReadInputRegisters(e.cfg.UnitID, addr, qty)
		case schema.ModeHolding:
			words, err = e.client.ReadHoldingRegisters(e.cfg.UnitID, addr, qty)
		default:
			err = ErrVirtualGroup
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(words) < int(qty) {
		return nil, fmt.Errorf("%w: got %d registers, want %d", ErrShortRead, len(words), qty)
	}
	return words, nil
}

// do runs fn while holding the device slot.
//
// If ctx ends first the caller gets ctx.Err() right away; the abandoned
// call keeps the slot until the transport returns, so the next operation
// never interleaves with it.
func (e *Engine) do(ctx context.Context, fn func() error) error {
	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-e.slot }()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsTimeout reports whether err was caused by an expired context.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
