// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/modbus-devices/internal/codec"
	"github.com/tamzrod/modbus-devices/internal/engine"
	"github.com/tamzrod/modbus-devices/internal/schema"
)

type fakeClient struct {
	mu        sync.Mutex
	regs      map[uint16]uint16
	reads     []uint16
	writes    int
	failAddr  map[uint16]error
	failWrite error
}

func newFakeClient() *fakeClient {
	return &fakeClient{regs: map[uint16]uint16{}, failAddr: map[uint16]error{}}
}

func (f *fakeClient) read(addr, qty uint16) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, addr)
	if err := f.failAddr[addr]; err != nil {
		return nil, err
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = f.regs[addr+uint16(i)]
	}
	return out, nil
}

func (f *fakeClient) ReadHoldingRegisters(_ uint8, addr, qty uint16) ([]uint16, error) {
	return f.read(addr, qty)
}

func (f *fakeClient) ReadInputRegisters(_ uint8, addr, qty uint16) ([]uint16, error) {
	return f.read(addr, qty)
}

func (f *fakeClient) WriteSingleRegister(_ uint8, addr, value uint16) error {
	return f.WriteMultipleRegisters(0, addr, []uint16{value})
}

func (f *fakeClient) WriteMultipleRegisters(_ uint8, addr uint16, values []uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failWrite != nil {
		return f.failWrite
	}
	for i, v := range values {
		f.regs[addr+uint16(i)] = v
	}
	return nil
}

func (f *fakeClient) readAddrs() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint16(nil), f.reads...)
}

func (f *fakeClient) resetReads() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = nil
}

// testDevice has one polled input group at 0, a once-only holding group at
// 100, a polled holding group at 200 and two config points at 300.
type testDevice struct {
	dev      *schema.Device
	sensors  schema.GroupID
	info     schema.GroupID
	commands schema.GroupID
}

func newTestDevice(t *testing.T) testDevice {
	t.Helper()
	d := schema.New("Acme", "X1")

	sensors, err := d.AddGroup(schema.GroupDef{Name: "Sensors", Mode: schema.ModeInput, Poll: schema.PollOn,
		Points: []schema.PointDef{{Key: "Temp", Address: 0, Scaling: 0.1}}})
	require.NoError(t, err)
	info, err := d.AddGroup(schema.GroupDef{Name: "Info", Mode: schema.ModeHolding, Poll: schema.PollOnce,
		Points: []schema.PointDef{{Key: "FW", Address: 100}}})
	require.NoError(t, err)
	commands, err := d.AddGroup(schema.GroupDef{Name: "Commands", Mode: schema.ModeHolding, Poll: schema.PollOn,
		Points: []schema.PointDef{{Key: "Setpoint", Address: 200, Scaling: 0.1,
			Type: schema.DataType{Kind: schema.KindNumber, Min: 10, Max: 30, Step: 0.5, Unit: "°C"}}}})
	require.NoError(t, err)
	require.NoError(t, d.AddPoints(d.Config(),
		schema.PointDef{Key: "Min Flow", Address: 300,
			Type: schema.DataType{Kind: schema.KindNumber, Min: 0, Max: 100, Step: 1, Unit: "%"}},
		schema.PointDef{Key: "Mode", Address: 301,
			Type: schema.DataType{Kind: schema.KindSelect, Options: schema.Enum("A", "B")}},
	))
	require.NoError(t, d.Finalize())

	return testDevice{dev: d, sensors: sensors, info: info, commands: commands}
}

func newCoordinator(t *testing.T, td testDevice, fc *fakeClient) *Coordinator {
	t.Helper()
	eng := engine.New(td.dev, fc, engine.Config{UnitID: 1}, zerolog.Nop())
	c, err := New(Config{
		Name:         "dev1",
		Interval:     time.Hour,
		FastInterval: time.Minute,
	}, eng, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Interval: time.Second}, nil, zerolog.Nop())
	require.Error(t, err)

	td := newTestDevice(t)
	eng := engine.New(td.dev, newFakeClient(), engine.Config{}, zerolog.Nop())
	_, err = New(Config{}, eng, zerolog.Nop())
	require.Error(t, err)

	c, err := New(Config{Interval: time.Second}, eng, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultFastCycles, c.cfg.FastCycles)
	assert.Equal(t, DefaultCycleTimeout, c.cfg.CycleTimeout)
}

func TestPollOnce_FirstAndLaterCycles(t *testing.T) {
	td := newTestDevice(t)
	fc := newFakeClient()
	fc.regs[0] = 215
	fc.regs[100] = 3
	c := newCoordinator(t, td, fc)

	res := c.PollOnce(context.Background())
	require.NoError(t, res.Err)
	assert.True(t, res.First)
	assert.Equal(t, []uint16{0, 100, 200}, fc.readAddrs(), "once groups on the first cycle only, config never")
	assert.False(t, td.dev.FirstRead())

	fc.resetReads()
	res = c.PollOnce(context.Background())
	require.NoError(t, res.Err)
	assert.False(t, res.First)
	assert.Equal(t, []uint16{0, 200}, fc.readAddrs())

	temp, _ := c.GetValue(td.sensors, "Temp").Float()
	assert.InDelta(t, 21.5, temp, 1e-9)
	fw, _ := c.GetValue(td.info, "FW").Int()
	assert.Equal(t, int64(3), fw)
}

func TestPollOnce_FailureAbortsCycle(t *testing.T) {
	td := newTestDevice(t)
	fc := newFakeClient()
	boom := errors.New("timeout")
	fc.failAddr[100] = boom

	var after int
	td.dev.Hooks.AfterRead = func(*schema.Device) { after++ }

	c := newCoordinator(t, td, fc)
	res := c.PollOnce(context.Background())

	require.ErrorIs(t, res.Err, engine.ErrModbusRead)
	require.ErrorIs(t, res.Err, boom)
	assert.Equal(t, "Info", res.Group)
	assert.Equal(t, []uint16{0, 100}, fc.readAddrs(), "remaining groups are not read")
	assert.True(t, td.dev.FirstRead(), "first read retried next cycle")
	assert.Equal(t, 0, after)

	delete(fc.failAddr, 100)
	fc.resetReads()
	res = c.PollOnce(context.Background())
	require.NoError(t, res.Err)
	assert.True(t, res.First)
	assert.Equal(t, []uint16{0, 100, 200}, fc.readAddrs())
	assert.Equal(t, 1, after)
}

func TestPollOnce_HookOrder(t *testing.T) {
	td := newTestDevice(t)
	var calls []string
	td.dev.Hooks.BeforeRead = func(*schema.Device) { calls = append(calls, "before") }
	td.dev.Hooks.AfterFirstRead = func(*schema.Device) error { calls = append(calls, "first"); return nil }
	td.dev.Hooks.AfterRead = func(*schema.Device) { calls = append(calls, "after") }

	c := newCoordinator(t, td, newFakeClient())
	c.PollOnce(context.Background())
	c.PollOnce(context.Background())

	assert.Equal(t, []string{"before", "first", "after", "before", "after"}, calls)
}

func TestPollOnce_DeviceInitErrorIsPermanent(t *testing.T) {
	td := newTestDevice(t)
	td.dev.Hooks.AfterFirstRead = func(*schema.Device) error { return errors.New("no zones") }

	fc := newFakeClient()
	c := newCoordinator(t, td, fc)

	res := c.PollOnce(context.Background())
	require.ErrorIs(t, res.Err, ErrDeviceInit)

	var ie *DeviceInitError
	require.ErrorAs(t, res.Err, &ie)
	assert.Equal(t, "dev1", ie.Device)

	fc.resetReads()
	res = c.PollOnce(context.Background())
	require.ErrorIs(t, res.Err, ErrDeviceInit)
	assert.Empty(t, fc.readAddrs(), "no I/O after init failure")
}

func TestPollOnce_DynamicGroupsReadNextCycle(t *testing.T) {
	td := newTestDevice(t)
	var zone schema.GroupID
	td.dev.Hooks.AfterFirstRead = func(d *schema.Device) error {
		id, err := d.AddGroup(schema.GroupDef{Name: "Zone 1", Mode: schema.ModeInput, Poll: schema.PollOn,
			Points: []schema.PointDef{{Key: "Temp", Address: 500}}})
		zone = id
		return err
	}

	fc := newFakeClient()
	fc.regs[500] = 19
	c := newCoordinator(t, td, fc)

	require.NoError(t, c.PollOnce(context.Background()).Err)
	assert.False(t, c.GetValue(zone, "Temp").Known())

	require.NoError(t, c.PollOnce(context.Background()).Err)
	v, _ := c.GetValue(zone, "Temp").Int()
	assert.Equal(t, int64(19), v)
}

func TestFastMode_WriteThenCountdown(t *testing.T) {
	td := newTestDevice(t)
	fc := newFakeClient()
	c := newCoordinator(t, td, fc)

	assert.Equal(t, time.Hour, c.Interval())

	require.NoError(t, c.WriteValue(context.Background(), td.commands, "Setpoint", 21.5))
	assert.True(t, c.FastActive())
	assert.Equal(t, time.Minute, c.Interval())

	for i := 1; i <= DefaultFastCycles; i++ {
		res := c.PollOnce(context.Background())
		require.NoError(t, res.Err)
		assert.True(t, res.Fast, "cycle %d", i)
	}

	assert.False(t, c.FastActive())
	assert.Equal(t, time.Hour, c.Interval())
	assert.False(t, c.PollOnce(context.Background()).Fast)
}

func TestFastMode_WriteRestartsBudget(t *testing.T) {
	td := newTestDevice(t)
	c := newCoordinator(t, td, newFakeClient())

	require.NoError(t, c.WriteValue(context.Background(), td.commands, "Setpoint", 20))
	c.PollOnce(context.Background())
	c.PollOnce(context.Background())
	require.NoError(t, c.WriteValue(context.Background(), td.commands, "Setpoint", 21))

	c.mu.Lock()
	remaining := c.fastRemaining
	c.mu.Unlock()
	assert.Equal(t, DefaultFastCycles, remaining)
}

func TestWriteValue_FailureKeepsNormalMode(t *testing.T) {
	td := newTestDevice(t)
	fc := newFakeClient()
	fc.failWrite = errors.New("exception 2")
	c := newCoordinator(t, td, fc)

	err := c.WriteValue(context.Background(), td.commands, "Setpoint", 21.5)
	require.ErrorIs(t, err, engine.ErrModbusWrite)
	assert.False(t, c.FastActive())
	assert.Equal(t, time.Hour, c.Interval())
}

func TestSelectConfig_MirrorsPoint(t *testing.T) {
	td := newTestDevice(t)
	fc := newFakeClient()
	fc.regs[300] = 40
	c := newCoordinator(t, td, fc)

	events, cancel := c.Subscribe(schema.ConfigValueKey)
	defer cancel()

	assert.Equal(t, schema.Enum("Min Flow", "Mode"), c.ConfigOptions())

	require.NoError(t, c.SelectConfig(context.Background(), 0))
	assert.Equal(t, 0, c.SelectedConfig())

	ui := td.dev.UI()
	v, _ := c.GetValue(ui, schema.ConfigValueKey).Int()
	assert.Equal(t, int64(40), v)

	p, err := td.dev.Point(ui, schema.ConfigValueKey)
	require.NoError(t, err)
	assert.Equal(t, "%", p.Type.Unit)
	assert.Equal(t, 100.0, p.Type.Max)
	assert.Equal(t, "config", p.Type.Category)

	ev := <-events
	assert.Equal(t, schema.ConfigValueKey, ev.Key)
	assert.Equal(t, codec.Int(40), ev.Value)

	// A select point falls back to the plain number box.
	fc.regs[301] = 1
	require.NoError(t, c.SelectConfig(context.Background(), 1))
	p, _ = td.dev.Point(ui, schema.ConfigValueKey)
	assert.Equal(t, schema.KindNumber, p.Type.Kind)
	assert.Equal(t, 65535.0, p.Type.Max)
	assert.Empty(t, p.Type.Unit)

	sel, _ := c.GetValue(ui, schema.ConfigSelectionKey).Int()
	assert.Equal(t, int64(1), sel)
}

func TestSelectConfig_ReadFailureStillPublishes(t *testing.T) {
	td := newTestDevice(t)
	fc := newFakeClient()
	fc.failAddr[300] = errors.New("timeout")
	c := newCoordinator(t, td, fc)

	events, cancel := c.Subscribe(schema.ConfigValueKey)
	defer cancel()

	err := c.SelectConfig(context.Background(), 0)
	require.ErrorIs(t, err, engine.ErrModbusRead)

	select {
	case ev := <-events:
		assert.False(t, ev.Value.Known())
	case <-time.After(time.Second):
		t.Fatal("expected a config value event")
	}
}

func TestSelectConfig_OutOfRange(t *testing.T) {
	td := newTestDevice(t)
	c := newCoordinator(t, td, newFakeClient())

	require.ErrorIs(t, c.SelectConfig(context.Background(), 2), schema.ErrUnknownDataPoint)
	require.ErrorIs(t, c.SelectConfig(context.Background(), -1), schema.ErrUnknownDataPoint)
}

func TestWriteValue_ConfigValueRedirects(t *testing.T) {
	td := newTestDevice(t)
	fc := newFakeClient()
	c := newCoordinator(t, td, fc)

	require.NoError(t, c.SelectConfig(context.Background(), 0))
	require.NoError(t, c.WriteValue(context.Background(), td.dev.UI(), schema.ConfigValueKey, 55))

	assert.Equal(t, uint16(55), fc.regs[300])
	v, _ := c.GetValue(td.dev.Config(), "Min Flow").Int()
	assert.Equal(t, int64(55), v)
	v, _ = c.GetValue(td.dev.UI(), schema.ConfigValueKey).Int()
	assert.Equal(t, int64(55), v)
	assert.True(t, c.FastActive())
}

func TestConfig_NoConfigPoints(t *testing.T) {
	d := schema.New("Acme", "Bare")
	require.NoError(t, d.Finalize())
	eng := engine.New(d, newFakeClient(), engine.Config{}, zerolog.Nop())
	c, err := New(Config{Interval: time.Second}, eng, zerolog.Nop())
	require.NoError(t, err)

	assert.Empty(t, c.ConfigOptions())
	require.ErrorIs(t, c.SelectConfig(context.Background(), 0), ErrNoConfigPoints)
	require.ErrorIs(t, c.WriteValue(context.Background(), d.UI(), schema.ConfigValueKey, 1), ErrNoConfigPoints)
}

func TestSubscribe_FilterAndCancel(t *testing.T) {
	td := newTestDevice(t)
	fc := newFakeClient()
	fc.regs[0] = 100
	c := newCoordinator(t, td, fc)

	temps, cancelTemps := c.Subscribe("Temp")
	all, cancelAll := c.Subscribe("")
	defer cancelAll()

	require.NoError(t, c.PollOnce(context.Background()).Err)

	ev := <-temps
	assert.Equal(t, "Temp", ev.Key)
	assert.Equal(t, "Sensors", ev.Name)
	assert.Len(t, temps, 0, "only Temp events on a keyed subscription")
	assert.GreaterOrEqual(t, len(all), 3)

	cancelTemps()
	_, open := <-temps
	assert.False(t, open)
	cancelTemps()
}

func TestGetAttributes(t *testing.T) {
	td := newTestDevice(t)
	c := newCoordinator(t, td, newFakeClient())

	require.NoError(t, td.dev.SetAttrs(td.sensors, "Temp", map[string]string{"source": "probe"}))
	assert.Equal(t, map[string]string{"source": "probe"}, c.GetAttributes(td.sensors, "Temp"))
	assert.Nil(t, c.GetAttributes(td.sensors, "Missing"))
	assert.False(t, c.GetValue(td.sensors, "Missing").Known())
}

func TestWriteValue_OnWriteObservesOutcome(t *testing.T) {
	td := newTestDevice(t)
	fc := newFakeClient()

	type seen struct {
		key string
		err error
	}
	var got []seen

	eng := engine.New(td.dev, fc, engine.Config{UnitID: 1}, zerolog.Nop())
	c, err := New(Config{
		Name:     "dev1",
		Interval: time.Hour,
		OnWrite:  func(key string, err error) { got = append(got, seen{key, err}) },
	}, eng, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, c.SelectConfig(context.Background(), 0))
	require.NoError(t, c.WriteValue(context.Background(), td.dev.UI(), schema.ConfigValueKey, 10))

	fc.failWrite = errors.New("exception 4")
	require.Error(t, c.WriteValue(context.Background(), td.commands, "Setpoint", 20))

	require.Len(t, got, 2)
	assert.Equal(t, "Min Flow", got[0].key)
	assert.NoError(t, got[0].err)
	assert.Equal(t, "Setpoint", got[1].key)
	assert.ErrorIs(t, got[1].err, engine.ErrModbusWrite)
}

func TestPlatform_HaltedAfterDeviceInitError(t *testing.T) {
	td := newTestDevice(t)
	td.dev.Hooks.AfterFirstRead = func(*schema.Device) error { return errors.New("no zones") }
	fc := newFakeClient()
	c := newCoordinator(t, td, fc)

	require.ErrorIs(t, c.PollOnce(context.Background()).Err, ErrDeviceInit)
	fc.resetReads()

	err := c.WriteValue(context.Background(), td.commands, "Setpoint", 21.5)
	require.ErrorIs(t, err, ErrDeviceInit)
	require.ErrorIs(t, c.SelectConfig(context.Background(), 0), ErrDeviceInit)

	assert.Zero(t, fc.writes)
	assert.Empty(t, fc.readAddrs())
	assert.False(t, c.FastActive())
	assert.Equal(t, time.Hour, c.Interval())
}
