// internal/schema/device_test.go
package schema

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/modbus-devices/internal/codec"
)

func TestNew_ReservedGroupsExist(t *testing.T) {
	d := New("Acme", "X1")

	cfg, ok := d.Group(d.Config())
	require.True(t, ok)
	assert.Equal(t, ConfigGroupName, cfg.Name)
	assert.Equal(t, ModeHolding, cfg.Mode)
	assert.Equal(t, PollOff, cfg.Poll)

	ui, ok := d.Group(d.UI())
	require.True(t, ok)
	assert.Equal(t, ModeNone, ui.Mode)

	require.NoError(t, d.Finalize())
	assert.Empty(t, d.Keys(d.UI()), "no config points, no config UI")
	assert.True(t, d.FirstRead())
}

func TestGroups_SameShapeAreDistinct(t *testing.T) {
	d := New("Acme", "X1")

	z1, err := d.AddGroup(GroupDef{Name: "Zone 1", Mode: ModeInput, Poll: PollOn,
		Points: []PointDef{{Key: "Temp", Address: 100}}})
	require.NoError(t, err)
	z2, err := d.AddGroup(GroupDef{Name: "Zone 2", Mode: ModeInput, Poll: PollOn,
		Points: []PointDef{{Key: "Temp", Address: 200}}})
	require.NoError(t, err)

	g1, _ := d.Group(z1)
	g2, _ := d.Group(z2)
	assert.NotEqual(t, z1, z2)
	assert.Equal(t, g1.Kind(), g2.Kind())

	p1, err := d.Point(z1, "Temp")
	require.NoError(t, err)
	p2, err := d.Point(z2, "Temp")
	require.NoError(t, err)
	assert.Equal(t, uint16(100), p1.Address)
	assert.Equal(t, uint16(200), p2.Address)
}

func TestAddGroup_Defaults(t *testing.T) {
	d := New("Acme", "X1")
	id, err := d.AddGroup(GroupDef{Name: "G", Mode: ModeHolding, Poll: PollOn,
		Points: []PointDef{{Key: "A", Address: 1}}})
	require.NoError(t, err)

	p, err := d.Point(id, "A")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Length)
	assert.Equal(t, 1.0, p.Scaling)
	assert.False(t, p.Value.Known(), "value must be unknown before first read")
}

func TestAddGroup_DuplicateKey(t *testing.T) {
	d := New("Acme", "X1")
	_, err := d.AddGroup(GroupDef{Name: "G", Mode: ModeHolding, Points: []PointDef{
		{Key: "A", Address: 1},
		{Key: "A", Address: 2},
	}})
	require.ErrorIs(t, err, ErrInvalidSchema)
}

func TestFinalize_AddsConfigUI(t *testing.T) {
	d := New("Acme", "X1")
	require.NoError(t, d.AddPoints(d.Config(),
		PointDef{Key: "Min Flow", Address: 120},
		PointDef{Key: "Max Flow", Address: 121},
	))
	require.NoError(t, d.Finalize())

	assert.Equal(t, []string{ConfigSelectionKey, ConfigValueKey}, d.Keys(d.UI()))

	sel, err := d.Point(d.UI(), ConfigSelectionKey)
	require.NoError(t, err)
	assert.Equal(t, KindSelect, sel.Type.Kind)
	want := []Option{{Value: 0, Label: "Min Flow"}, {Value: 1, Label: "Max Flow"}}
	if diff := cmp.Diff(want, sel.Type.Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}

	val, err := d.Point(d.UI(), ConfigValueKey)
	require.NoError(t, err)
	assert.Equal(t, KindNumber, val.Type.Kind)
	assert.Equal(t, 65535.0, val.Type.Max)
}

func TestFinalize_RejectsOverlap(t *testing.T) {
	d := New("Acme", "X1")
	_, err := d.AddGroup(GroupDef{Name: "G", Mode: ModeInput, Poll: PollOn, Points: []PointDef{
		{Key: "Name", Address: 10, Length: 4},
		{Key: "Temp", Address: 12},
	}})
	require.NoError(t, err)
	require.ErrorIs(t, d.Finalize(), ErrInvalidSchema)
}

func TestFinalize_RejectsOutOfSpace(t *testing.T) {
	d := New("Acme", "X1")
	_, err := d.AddGroup(GroupDef{Name: "G", Mode: ModeInput, Poll: PollOn, Points: []PointDef{
		{Key: "Tail", Address: 65534, Length: 3},
	}})
	require.NoError(t, err)
	require.ErrorIs(t, d.Finalize(), ErrInvalidSchema)
}

func TestFinalize_RejectsScaledText(t *testing.T) {
	d := New("Acme", "X1")
	_, err := d.AddGroup(GroupDef{Name: "G", Mode: ModeInput, Poll: PollOn, Points: []PointDef{
		{Key: "Serial", Address: 0, Length: 4, Scaling: 0.1},
	}})
	require.NoError(t, err)
	require.ErrorIs(t, d.Finalize(), ErrInvalidSchema)
}

func TestFinalize_VirtualGroupIgnoresGeometry(t *testing.T) {
	d := New("Acme", "X1")
	_, err := d.AddGroup(GroupDef{Name: "Derived", Mode: ModeNone, Points: []PointDef{
		{Key: "A"},
		{Key: "B"},
	}})
	require.NoError(t, err)
	require.NoError(t, d.Finalize())
}

func TestSealed_OnlyFirstReadMayExtend(t *testing.T) {
	d := New("Acme", "X1")
	require.NoError(t, d.Finalize())

	_, err := d.AddGroup(GroupDef{Name: "Late", Mode: ModeInput, Poll: PollOn})
	require.ErrorIs(t, err, ErrSchemaSealed)

	var added GroupID
	d.Hooks.AfterFirstRead = func(d *Device) error {
		id, err := d.AddGroup(GroupDef{Name: "Zone 1", Mode: ModeInput, Poll: PollOn,
			Points: []PointDef{{Key: "Temp", Address: 100, Scaling: 0.1}}})
		added = id
		return err
	}

	require.NoError(t, d.CompleteFirstRead())
	assert.False(t, d.FirstRead())

	_, ok := d.Group(added)
	assert.True(t, ok)

	_, err = d.AddGroup(GroupDef{Name: "Later", Mode: ModeInput, Poll: PollOn})
	require.ErrorIs(t, err, ErrSchemaSealed)
}

func TestCompleteFirstRead_HookErrorKeepsFlag(t *testing.T) {
	d := New("Acme", "X1")
	require.NoError(t, d.Finalize())

	boom := errors.New("boom")
	d.Hooks.AfterFirstRead = func(*Device) error { return boom }

	require.ErrorIs(t, d.CompleteFirstRead(), boom)
	assert.True(t, d.FirstRead())
}

func TestUpdatePoint_GeometryLockedAfterSeal(t *testing.T) {
	d := New("Acme", "X1")
	id, err := d.AddGroup(GroupDef{Name: "G", Mode: ModeHolding, Poll: PollOn,
		Points: []PointDef{{Key: "Setpoint", Address: 5100, Scaling: 0.1}}})
	require.NoError(t, err)

	require.NoError(t, d.UpdatePoint(id, "Setpoint", func(p *DataPoint) { p.Scaling = 1 }))
	require.NoError(t, d.Finalize())

	err = d.UpdatePoint(id, "Setpoint", func(p *DataPoint) { p.Scaling = 0.5 })
	require.ErrorIs(t, err, ErrSchemaSealed)

	require.NoError(t, d.UpdatePoint(id, "Setpoint", func(p *DataPoint) { p.Type.Unit = "°C" }))
	p, _ := d.Point(id, "Setpoint")
	assert.Equal(t, 1.0, p.Scaling)
	assert.Equal(t, "°C", p.Type.Unit)
}

func TestAccessors_ReturnCopies(t *testing.T) {
	d := New("Acme", "X1")
	id, err := d.AddGroup(GroupDef{Name: "Alarms", Mode: ModeInput, Poll: PollOn,
		Points: []PointDef{{Key: "Active", Address: 1}}})
	require.NoError(t, err)

	require.NoError(t, d.SetAttrs(id, "Active", map[string]string{"T1": "ALARM"}))
	attrs := d.Attrs(id, "Active")
	attrs["T2"] = "ALARM"
	assert.Len(t, d.Attrs(id, "Active"), 1)

	require.NoError(t, d.SetValue(id, "Active", codec.Int(1)))
	assert.True(t, d.Value(id, "Active").Truthy())

	assert.False(t, d.Value(id, "Missing").Known())
	assert.Nil(t, d.Attrs(id, "Missing"))

	_, err = d.Point(id, "Missing")
	require.ErrorIs(t, err, ErrUnknownDataPoint)
}

func TestSnapshot(t *testing.T) {
	d := New("Acme", "X1")
	id, err := d.AddGroup(GroupDef{Name: "Commands", Mode: ModeHolding, Poll: PollOn, Points: []PointDef{
		{Key: "Mode", Address: 0, Type: DataType{Kind: KindSelect, Options: Enum("Off", "On")}},
	}})
	require.NoError(t, err)
	require.NoError(t, d.Finalize())
	require.NoError(t, d.SetValue(id, "Mode", codec.Int(1)))

	s := d.Snapshot()
	require.Len(t, s.Groups, 3)
	assert.Equal(t, "Commands", s.Groups[2].Name)
	assert.Equal(t, "On", s.Groups[2].Points[0].Label)
	assert.Equal(t, d.ID.String(), s.ID)
}
