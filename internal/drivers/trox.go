// internal/drivers/trox.go
package drivers

import (
	"github.com/tamzrod/modbus-devices/internal/codec"
	"github.com/tamzrod/modbus-devices/internal/schema"
)

const (
	troxMain       = "Main"
	troxDeviceInfo = "Device Info"
	troxStatus     = "Status"

	troxFlowUnitKey = "201 Volume Flow Unit"
)

// Status register bits of the TVE actuator.
const (
	troxMechanicalOverload = 1 << 4
	troxInternalActivity   = 1 << 7
	troxBusTimeout         = 1 << 9
)

func flow() schema.DataType {
	t := sensor(unitM3PerHour, classFlow)
	t.Icon = iconWind
	return t
}

func flowLimit() schema.DataType {
	t := schema.DefaultNumber()
	t.Unit = unitM3PerHour
	t.DeviceClass = classFlow
	t.Icon = iconWind
	return t
}

// TroxTVE builds the Trox TVE VAV controller.
func TroxTVE() (*schema.Device, error) {
	d := schema.New("Trox", "TVE")

	main, err := d.AddGroup(schema.GroupDef{Name: troxMain, Mode: schema.ModeHolding, Poll: schema.PollOn, Points: []schema.PointDef{
		{Key: "Setpoint Flowrate", Address: 0, Scaling: 0.01, Type: number(unitPercent, "", 0, 100, 1)},
		{Key: "Override", Address: 1, Type: selection("None", "Open", "Closed", "Q Min", "Q Max")},
		{Key: "Command", Address: 2, Type: options(
			schema.Option{Value: 0, Label: "None"},
			schema.Option{Value: 1, Label: "Synchronization"},
			schema.Option{Value: 2, Label: "Test"},
			schema.Option{Value: 4, Label: "Reset"},
		)},
		{Key: "Unused", Address: 3},
		{Key: "Position", Address: 4, Scaling: 0.01, Type: sensor(unitPercent, "")},
		{Key: "Position Degrees", Address: 5, Type: sensor(unitDegree, "")},
		{Key: "Flowrate Percent", Address: 6, Scaling: 0.01, Type: sensor(unitPercent, "")},
		{Key: "Flowrate Actual", Address: 7, Type: flow()},
		{Key: "Analog Setpoint", Address: 8, Scaling: 0.001, Type: sensor(unitVolt, "")},
	}})
	if err != nil {
		return nil, err
	}

	info, err := d.AddGroup(schema.GroupDef{Name: troxDeviceInfo, Mode: schema.ModeHolding, Poll: schema.PollOn, Points: []schema.PointDef{
		{Key: "FW", Address: 103},
		{Key: "Status", Address: 104},
	}})
	if err != nil {
		return nil, err
	}

	status, err := d.AddGroup(schema.GroupDef{Name: troxStatus, Mode: schema.ModeNone, Poll: schema.PollOff, Points: []schema.PointDef{
		{Key: "Active Alarms", Type: problem()},
	}})
	if err != nil {
		return nil, err
	}

	err = d.AddPoints(d.Config(),
		schema.PointDef{Key: "105 Q Min Percent", Address: 105, Scaling: 0.01, Type: number(unitPercent, "", 0, 100, 1)},
		schema.PointDef{Key: "106 Q Max Percent", Address: 106, Scaling: 0.01, Type: number(unitPercent, "", 0, 100, 1)},
		schema.PointDef{Key: "108 Action on Bus Timeout", Address: 108},
		schema.PointDef{Key: "109 Bus Timeout", Address: 109, Type: number(unitSeconds, "", 0, 100, 1)},
		schema.PointDef{Key: "120 Q Min", Address: 120, Type: flowLimit()},
		schema.PointDef{Key: "121 Q Max", Address: 121, Type: flowLimit()},
		schema.PointDef{Key: "130 Modbus Address", Address: 130},
		schema.PointDef{Key: troxFlowUnitKey, Address: 201},
		schema.PointDef{Key: "231 Signal Voltage", Address: 231},
		schema.PointDef{Key: "568 Modbus Parameters", Address: 568},
		schema.PointDef{Key: "569 Modbus Response Delay", Address: 569, Type: number(unitMillis, "", 0, 255, 1)},
		schema.PointDef{Key: "572 Switching Threshold", Address: 572},
	)
	if err != nil {
		return nil, err
	}

	// Flow points follow the unit configured on the device. Config is never
	// polled, so an unread unit keeps the factory default of m³/h.
	d.Hooks.AfterFirstRead = func(d *schema.Device) error {
		unit := troxFlowUnit(d.Value(d.Config(), troxFlowUnitKey))
		setUnit := func(p *schema.DataPoint) { p.Type.Unit = unit }

		if err := d.UpdatePoint(main, "Flowrate Actual", setUnit); err != nil {
			return err
		}
		if err := d.UpdatePoint(d.Config(), "120 Q Min", setUnit); err != nil {
			return err
		}
		return d.UpdatePoint(d.Config(), "121 Q Max", setUnit)
	}

	d.Hooks.AfterRead = func(d *schema.Device) {
		if fw, ok := text(d.Value(info, "FW")); ok {
			d.UpdateIdentity(func(id *schema.Identity) { id.SWVersion = fw })
		}

		bits, ok := d.Value(info, "Status").Int()
		if !ok {
			return
		}
		active, attrs := troxAlarms(bits)
		_ = d.SetValue(status, "Active Alarms", codec.Bool(active))
		_ = d.SetAttrs(status, "Active Alarms", attrs)
	}

	return d, nil
}

func troxFlowUnit(v codec.Value) string {
	code, ok := v.Int()
	if !ok {
		return unitM3PerHour
	}
	switch code {
	case 0:
		return unitLPerSec
	case 6:
		return unitFt3PerMin
	default:
		return unitM3PerHour
	}
}

// troxAlarms decodes the status register. Only a mechanical overload counts
// as an active alarm; the other bits are warnings.
func troxAlarms(bits int64) (bool, map[string]string) {
	attrs := map[string]string{}
	active := false
	if bits&troxMechanicalOverload != 0 {
		attrs["Mechanical Overload"] = "ALARM"
		active = true
	}
	if bits&troxInternalActivity != 0 {
		attrs["Internal Activity"] = "WARNING"
	}
	if bits&troxBusTimeout != 0 {
		attrs["Bus Timeout"] = "WARNING"
	}
	return active, attrs
}
