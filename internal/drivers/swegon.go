// internal/drivers/swegon.go
package drivers

import (
	"fmt"

	"github.com/tamzrod/modbus-devices/internal/codec"
	"github.com/tamzrod/modbus-devices/internal/schema"
)

// Group names of the Swegon CASA models.
const (
	casaCommands    = "Commands"
	casaCommands2   = "Commands (write only)"
	casaSetpoints   = "Setpoints"
	casaDeviceInfo  = "Device Info"
	casaAlarms      = "Alarms"
	casaSensors     = "Sensors"
	casaUnitStatus  = "Unit Statuses"
	casaCalculated  = "Calculated"
	casaActiveAlarm = "Active Alarms"
)

// casaAlarmKeys are the alarm flags summarized as attributes on Active Alarms.
var casaAlarmKeys = []string{
	"T1_Failure", "T2_Failure", "T3_Failure", "T4_Failure",
	"T5_Failure", "T6_Failure", "T7_Failure", "T8_Failure",
	"T1_Failure_Unconf", "T2_Failure_Unconf", "T3_Failure_Unconf", "T4_Failure_Unconf",
	"T5_Failure_Unconf", "T6_Failure_Unconf", "T7_Failure_Unconf", "T8_Failure_Unconf",
	"Afterheater_Failure", "Afterheater_Failure_Unconf",
	"Preheater_Failure", "Preheater_Failure_Unconf",
	"Freezing_Danger", "Freezing_Danger_Unconf",
	"Internal_Error", "Internal_Error_Unconf",
	"Supply_Fan_Failure", "Supply_Fan_Failure_Unconf",
	"Exhaust_Fan_Failure", "Exhaust_Fan_Failure_Unconf",
	"Service_Info", "Filter_Guard_Info", "Emergency_Stop",
}

func casaAlarmPoints() []schema.PointDef {
	out := make([]schema.PointDef, 0, len(casaAlarmKeys)+2)
	for i, k := range casaAlarmKeys {
		out = append(out, schema.PointDef{Key: k, Address: 6100 + uint16(i)})
	}
	return append(out,
		schema.PointDef{Key: casaActiveAlarm, Address: 6131, Type: problem()},
		schema.PointDef{Key: "Info_Unconf", Address: 6132},
	)
}

func tempSensor() schema.DataType { return sensor(unitCelsius, classTemperature) }

func speed() schema.DataType { return number(unitPercent, "", 20, 100, 1) }

func nightCooling(hi float64) schema.DataType {
	return number(unitCelsius, classTemperature, 0, hi, 0.1)
}

// CasaR4 builds the Swegon CASA R4 air handling unit.
func CasaR4() (*schema.Device, error) {
	d := schema.New("Swegon", "CASA R4")

	defs := []schema.GroupDef{
		{Name: casaCommands, Mode: schema.ModeHolding, Poll: schema.PollOn, Points: []schema.PointDef{
			{Key: "Operating Mode", Address: 5000, Type: selection("Stopped", "Away", "Home", "Boost", "Travel")},
			{Key: "Fireplace Mode", Address: 5001, Type: schema.DataType{Kind: schema.KindSwitch}},
			{Key: "Travelling Mode", Address: 5003, Type: schema.DataType{Kind: schema.KindSwitch}},
		}},
		{Name: casaCommands2, Mode: schema.ModeHolding, Poll: schema.PollOff, Points: []schema.PointDef{
			{Key: "Reset Alarms", Address: 5406, Type: schema.DataType{Kind: schema.KindButton}},
		}},
		{Name: casaSetpoints, Mode: schema.ModeHolding, Poll: schema.PollOn, Points: []schema.PointDef{
			{Key: "Temperature Setpoint", Address: 5100, Scaling: 0.1, Type: number(unitCelsius, classTemperature, 13, 25, 0.1)},
		}},
		{Name: casaDeviceInfo, Mode: schema.ModeInput, Poll: schema.PollOnce, Points: []schema.PointDef{
			{Key: "FW Maj", Address: 6000},
			{Key: "FW Min", Address: 6001},
			{Key: "FW Build", Address: 6002},
			{Key: "Par Maj", Address: 6003},
			{Key: "Par Min", Address: 6004},
			{Key: "Model Name", Address: 6007, Length: 15},
			{Key: "Serial Number", Address: 6023, Length: 24},
		}},
		{Name: casaAlarms, Mode: schema.ModeInput, Poll: schema.PollOn, Points: casaAlarmPoints()},
		{Name: casaSensors, Mode: schema.ModeInput, Poll: schema.PollOn, Points: []schema.PointDef{
			{Key: "Fresh Air Temp", Address: 6200, Scaling: 0.1, Type: tempSensor()},
			{Key: "Supply Temp before re-heater", Address: 6201, Scaling: 0.1, Type: tempSensor()},
			{Key: "Supply Temp", Address: 6202, Scaling: 0.1, Type: tempSensor()},
			{Key: "Extract Temp", Address: 6203, Scaling: 0.1, Type: tempSensor()},
			{Key: "Exhaust Temp", Address: 6204, Scaling: 0.1, Type: tempSensor()},
			{Key: "Room_Temp", Address: 6205, Scaling: 0.1},
			{Key: "User Panel 1 Temp", Address: 6206, Scaling: 0.1, Type: tempSensor()},
			{Key: "User Panel 2 Temp", Address: 6207, Scaling: 0.1},
			{Key: "Water Radiator Temp", Address: 6208, Scaling: 0.1},
			{Key: "Pre-Heater Temp", Address: 6209, Scaling: 0.1},
			{Key: "External Fresh Air Temp", Address: 6210, Scaling: 0.1},
			{Key: "CO2 Unfiltered", Address: 6211},
			{Key: "CO2 Filtered", Address: 6212},
			{Key: "Relative Humidity", Address: 6213, Type: sensor(unitPercent, classHumidity)},
			{Key: "Absolute Humidity", Address: 6214, Scaling: 0.1, Type: sensor("g/m³", "")},
			{Key: "Absolute Humidity SP", Address: 6215, Scaling: 0.1},
			{Key: "VOC", Address: 6216},
			{Key: "Supply Pressure", Address: 6217},
			{Key: "Exhaust Pressure", Address: 6218},
			{Key: "Supply Flow", Address: 6219, Scaling: 3.6},
			{Key: "Exhaust Flow", Address: 6220, Scaling: 3.6},
			{Key: "Heat Exchanger", Address: 6233, Type: sensor(unitPercent, "")},
		}},
		{Name: casaUnitStatus, Mode: schema.ModeInput, Poll: schema.PollOn, Points: []schema.PointDef{
			{Key: "Unit_state", Address: 6300},
			{Key: "Speed_state", Address: 6301},
			{Key: "Supply Fan", Address: 6302, Type: sensor(unitPercent, "")},
			{Key: "Exhaust Fan", Address: 6303, Type: sensor(unitPercent, "")},
			{Key: "Supply_Fan_RPM", Address: 6304},
			{Key: "Exhaust_Fan_RPM", Address: 6305},
			{Key: "NotUsed", Address: 6306, Length: 10},
			{Key: "Heating Output", Address: 6316, Type: sensor(unitPercent, "")},
		}},
		{Name: casaCalculated, Mode: schema.ModeNone, Poll: schema.PollOff, Points: []schema.PointDef{
			{Key: "Efficiency", Type: sensor(unitPercent, "")},
		}},
	}

	ids := make(map[string]schema.GroupID, len(defs))
	for _, def := range defs {
		id, err := d.AddGroup(def)
		if err != nil {
			return nil, err
		}
		ids[def.Name] = id
	}

	err := d.AddPoints(d.Config(),
		schema.PointDef{Key: "Travelling Mode Speed Drop", Address: 5105, Type: number(unitPercent, "", 0, 20, 1)},
		schema.PointDef{Key: "Fireplace Run Time", Address: 5103, Type: number(unitMinutes, "", 0, 60, 1)},
		schema.PointDef{Key: "Fireplace Max Speed Difference", Address: 5104, Type: number(unitPercent, "", 0, 25, 1)},
		schema.PointDef{Key: "Night Cooling", Address: 5163, Type: schema.DefaultNumber()},
		schema.PointDef{Key: "Night Cooling FreshAir Max", Address: 5164, Scaling: 0.1, Type: nightCooling(25)},
		schema.PointDef{Key: "Night Cooling FreshAir Start", Address: 5165, Scaling: 0.1, Type: nightCooling(25)},
		schema.PointDef{Key: "Night Cooling RoomTemp Start", Address: 5166, Scaling: 0.1, Type: nightCooling(35)},
		schema.PointDef{Key: "Night Cooling SupplyTemp Min", Address: 5167, Scaling: 0.1, Type: number(unitCelsius, classTemperature, 10, 25, 0.1)},
		schema.PointDef{Key: "Away Supply Speed", Address: 5301, Type: speed()},
		schema.PointDef{Key: "Away Exhaust Speed", Address: 5302, Type: speed()},
		schema.PointDef{Key: "Home Supply Speed", Address: 5303, Type: speed()},
		schema.PointDef{Key: "Home Exhaust Speed", Address: 5304, Type: speed()},
		schema.PointDef{Key: "Boost Supply Speed", Address: 5305, Type: speed()},
		schema.PointDef{Key: "Boost Exhaust Speed", Address: 5306, Type: speed()},
	)
	if err != nil {
		return nil, err
	}

	info, sensors, alarms, calc := ids[casaDeviceInfo], ids[casaSensors], ids[casaAlarms], ids[casaCalculated]

	d.Hooks.AfterFirstRead = func(d *schema.Device) error {
		model, hasModel := text(d.Value(info, "Model Name"))
		serial, hasSerial := text(d.Value(info, "Serial Number"))
		fw := version(d.Value(info, "FW Maj"), d.Value(info, "FW Min"), d.Value(info, "FW Build"))

		d.UpdateIdentity(func(id *schema.Identity) {
			if hasModel && model != "" {
				id.Model = model
			}
			if hasSerial {
				id.SerialNumber = serial
			}
			id.SWVersion = fw
		})
		return nil
	}

	d.Hooks.AfterRead = func(d *schema.Device) {
		_ = d.SetValue(calc, "Efficiency", efficiency(
			d.Value(sensors, "Fresh Air Temp"),
			d.Value(sensors, "Supply Temp before re-heater"),
			d.Value(sensors, "Extract Temp"),
		))

		attrs := map[string]string{}
		for _, k := range d.Keys(alarms) {
			if d.Value(alarms, k).Truthy() {
				attrs[k] = "ALARM"
			}
		}
		_ = d.SetAttrs(alarms, casaActiveAlarm, attrs)
	}

	return d, nil
}

// CasaR15 is the CASA R4 schema with an unscaled temperature setpoint.
func CasaR15() (*schema.Device, error) {
	d, err := CasaR4()
	if err != nil {
		return nil, err
	}

	d.UpdateIdentity(func(id *schema.Identity) { id.Model = "CASA R15" })

	g, ok := d.GroupByName(casaSetpoints)
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrUnknownGroup, casaSetpoints)
	}
	if err := d.UpdatePoint(g.ID, "Temperature Setpoint", func(p *schema.DataPoint) { p.Scaling = 1 }); err != nil {
		return nil, err
	}
	return d, nil
}

// efficiency is the heat exchanger temperature efficiency in percent,
// rounded to one decimal. Equal extract and fresh air temperatures give 0.
func efficiency(fresh, supply, extract codec.Value) codec.Value {
	f, ok1 := fresh.Float()
	s, ok2 := supply.Float()
	e, ok3 := extract.Float()
	if !ok1 || !ok2 || !ok3 {
		return codec.Unknown()
	}
	if e == f {
		return codec.Int(0)
	}
	return codec.Number(round1((s - f) / (e - f) * 100))
}
