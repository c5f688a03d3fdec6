// internal/poller/platform.go
package poller

import (
	"context"
	"fmt"

	"github.com/tamzrod/modbus-devices/internal/codec"
	"github.com/tamzrod/modbus-devices/internal/schema"
)

// ---- platform-facing operations ----

// GetValue returns the cached value of a point, Unknown if it does not exist.
func (c *Coordinator) GetValue(id schema.GroupID, key string) codec.Value {
	return c.dev.Value(id, key)
}

// GetAttributes returns a copy of a point's attributes, nil if it does not exist.
func (c *Coordinator) GetAttributes(id schema.GroupID, key string) map[string]string {
	return c.dev.Attrs(id, key)
}

// WriteValue writes a point and enters fast mode on success. A device that
// failed initialization rejects writes with its DeviceInitError.
// Writing the UI "Config Value" point writes the selected Config point.
func (c *Coordinator) WriteValue(ctx context.Context, id schema.GroupID, key string, value float64) error {
	if err := c.halted(); err != nil {
		return err
	}

	target, targetKey := id, key
	redirect := id == c.dev.UI() && key == schema.ConfigValueKey

	if redirect {
		k, err := c.selectedKey()
		if err != nil {
			return err
		}
		target, targetKey = c.dev.Config(), k
	}

	err := c.eng.WriteValue(ctx, target, targetKey, value)
	if c.cfg.OnWrite != nil {
		c.cfg.OnWrite(targetKey, err)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", targetKey).Float64("value", value).Msg("write failed")
		return err
	}

	if redirect {
		if err := c.dev.SetValue(id, key, c.dev.Value(target, targetKey)); err != nil {
			return err
		}
	}

	c.enterFast()
	c.publishPoint(id, key)
	return nil
}

// ConfigOptions lists the Config points in declaration order, indexed from 0.
func (c *Coordinator) ConfigOptions() []schema.Option {
	keys := c.dev.Keys(c.dev.Config())
	return schema.Enum(keys...)
}

// SelectedConfig returns the index of the currently selected Config point.
func (c *Coordinator) SelectedConfig() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// SelectConfig reads the Config point at index and mirrors it into the UI
// "Config Value" point. The Config Value event is published even when the
// read fails, carrying the last cached value.
func (c *Coordinator) SelectConfig(ctx context.Context, index int) error {
	if err := c.halted(); err != nil {
		return err
	}

	keys := c.dev.Keys(c.dev.Config())
	if len(keys) == 0 {
		return ErrNoConfigPoints
	}
	if index < 0 || index >= len(keys) {
		return fmt.Errorf("%w: config index %d of %d", schema.ErrUnknownDataPoint, index, len(keys))
	}
	key := keys[index]

	c.mu.Lock()
	c.selected = index
	c.mu.Unlock()

	ui := c.dev.UI()
	if err := c.dev.SetValue(ui, schema.ConfigSelectionKey, codec.Int(int64(index))); err != nil {
		return err
	}

	defer c.publishPoint(ui, schema.ConfigValueKey)

	_, readErr := c.eng.ReadValue(ctx, c.dev.Config(), key)
	if readErr != nil {
		c.log.Warn().Err(readErr).Str("key", key).Msg("config read failed")
	}

	if err := c.mirrorConfig(key); err != nil {
		return err
	}
	return readErr
}

// mirrorConfig copies the Config point's value and number metadata onto the
// UI Config Value point. Non-number points fall back to a plain 0..65535 box.
func (c *Coordinator) mirrorConfig(key string) error {
	src, err := c.dev.Point(c.dev.Config(), key)
	if err != nil {
		return err
	}

	t := schema.DefaultNumber()
	if src.Type.Kind == schema.KindNumber {
		t = src.Type
	}
	t.Category = "config"

	ui := c.dev.UI()
	if err := c.dev.UpdatePoint(ui, schema.ConfigValueKey, func(p *schema.DataPoint) { p.Type = t }); err != nil {
		return err
	}
	return c.dev.SetValue(ui, schema.ConfigValueKey, src.Value)
}

func (c *Coordinator) selectedKey() (string, error) {
	keys := c.dev.Keys(c.dev.Config())
	if len(keys) == 0 {
		return "", ErrNoConfigPoints
	}
	idx := c.SelectedConfig()
	if idx >= len(keys) {
		return "", fmt.Errorf("%w: config index %d of %d", schema.ErrUnknownDataPoint, idx, len(keys))
	}
	return keys[idx], nil
}
