// internal/drivers/lksystems.go
package drivers

import (
	"fmt"

	"github.com/tamzrod/modbus-devices/internal/schema"
)

const (
	archubDeviceInfo = "Device Info"
	archubUnitStatus = "Unit Statuses"
	archubAlarms     = "Alarms"
	archubCommands   = "Commands"

	archubZonesKey = "Number Of Zones"

	// archubMaxZones is the number of actuator outputs on the hub.
	archubMaxZones = 12
)

// ArcHub builds the LK Systems ARC hub. Zone groups are added after the
// first read, once the hub has reported how many zones it serves.
func ArcHub() (*schema.Device, error) {
	d := schema.New("LKSystems", "ARCHUB")

	actuators := make([]schema.PointDef, 0, archubMaxZones)
	for i := 0; i < archubMaxZones; i++ {
		actuators = append(actuators, schema.PointDef{
			Key:     fmt.Sprintf("Actuator %d", i+1),
			Address: 60 + uint16(i),
			Type:    enumSensor("Closed", "Open", "Unallocated"),
		})
	}

	defs := []schema.GroupDef{
		{Name: archubDeviceInfo, Mode: schema.ModeInput, Poll: schema.PollOnce, Points: []schema.PointDef{
			{Key: "Serial Number", Address: 0, Length: 4},
			{Key: "Software Version Major", Address: 4},
			{Key: "Software Version Minor", Address: 5},
			{Key: "Software Version Micro", Address: 6},
			{Key: archubZonesKey, Address: 50},
		}},
		{Name: archubUnitStatus, Mode: schema.ModeInput, Poll: schema.PollOn, Points: actuators},
		{Name: archubAlarms, Mode: schema.ModeInput, Poll: schema.PollOn, Points: []schema.PointDef{
			{Key: "Cooling Emergency Mode", Address: 80, Type: enumSensor("Normal Mode", "Emergency Mode")},
		}},
		{Name: archubCommands, Mode: schema.ModeHolding, Poll: schema.PollOn, Points: []schema.PointDef{
			{Key: "Operating Mode", Address: 0, Type: selection("Undefined", "Heating", "Cooling")},
			{Key: "LED Enable", Address: 58, Type: selection("Disable", "Enable")},
		}},
	}

	var info schema.GroupID
	for _, def := range defs {
		id, err := d.AddGroup(def)
		if err != nil {
			return nil, err
		}
		if def.Name == archubDeviceInfo {
			info = id
		}
	}

	tempLimit := number(unitCelsius, classTemperature, -100, 100, 0.1)
	humLimit := number(unitPercent, classHumidity, 0, 100, 0.1)
	battLimit := number(unitPercent, classBattery, 0, 100, 0.1)

	err := d.AddPoints(d.Config(),
		schema.PointDef{Key: "Temperature Alarm High Level", Address: 50, Scaling: 0.1, Type: tempLimit},
		schema.PointDef{Key: "Temperature Alarm Low Level", Address: 51, Scaling: 0.1, Type: tempLimit},
		schema.PointDef{Key: "Humidity Alarm High Level", Address: 52, Scaling: 0.1, Type: humLimit},
		schema.PointDef{Key: "Humidity Alarm Low Level", Address: 53, Scaling: 0.1, Type: humLimit},
		schema.PointDef{Key: "Battery Alarm Low Level", Address: 54, Scaling: 0.1, Type: battLimit},
		schema.PointDef{Key: "Battery Alarm Critical Level", Address: 55, Scaling: 0.1, Type: battLimit},
		schema.PointDef{Key: "Cooling Emergency Number of Zones", Address: 56, Type: number("", "", 0, archubMaxZones, 1)},
		schema.PointDef{Key: "Cooling Mode Humidity Limit", Address: 57, Scaling: 0.1, Type: humLimit},
	)
	if err != nil {
		return nil, err
	}

	d.Hooks.AfterFirstRead = func(d *schema.Device) error {
		serial, hasSerial := text(d.Value(info, "Serial Number"))
		fw := version(
			d.Value(info, "Software Version Major"),
			d.Value(info, "Software Version Minor"),
			d.Value(info, "Software Version Micro"),
		)
		d.UpdateIdentity(func(id *schema.Identity) {
			if hasSerial {
				id.SerialNumber = serial
			}
			id.SWVersion = fw
		})

		n, ok := d.Value(info, archubZonesKey).Int()
		if !ok {
			return fmt.Errorf("archub: %s was not read", archubZonesKey)
		}
		if n < 0 || n > archubMaxZones {
			return fmt.Errorf("archub: %s out of range: %d", archubZonesKey, n)
		}

		for i := 1; i <= int(n); i++ {
			if err := addArcHubZone(d, i); err != nil {
				return err
			}
		}
		return nil
	}

	return d, nil
}

// addArcHubZone adds the sensor and setpoint groups of zone i at base i*100.
func addArcHubZone(d *schema.Device, i int) error {
	base := uint16(i * 100)
	zone := func(s string) string { return fmt.Sprintf("Zone %d %s", i, s) }

	_, err := d.AddGroup(schema.GroupDef{
		Name: fmt.Sprintf("Zone %d Sensors", i),
		Mode: schema.ModeInput,
		Poll: schema.PollOn,
		Points: []schema.PointDef{
			{Key: zone("Actual Temperature"), Address: base, Scaling: 0.1, Type: tempSensor()},
			{Key: zone("Actual Humidity"), Address: base + 1, Scaling: 0.1, Type: sensor(unitPercent, classHumidity)},
			{Key: zone("Actual Battery"), Address: base + 2, Type: sensor(unitPercent, classBattery)},
			{Key: zone("Actual Signal Strength"), Address: base + 3},
			{Key: zone("Thermostat Address"), Address: base + 4, Length: 2},
			{Key: zone("Connected Actuators"), Address: base + 6},
		},
	})
	if err != nil {
		return err
	}

	_, err = d.AddGroup(schema.GroupDef{
		Name: fmt.Sprintf("Zone %d Setpoints", i),
		Mode: schema.ModeHolding,
		Poll: schema.PollOn,
		Points: []schema.PointDef{
			{Key: zone("Target Temperature"), Address: base, Scaling: 0.1, Type: number(unitCelsius, classTemperature, -100, 100, 0.1)},
			{Key: zone("Override"), Address: base + 1, Type: selection("Inactive", "Active")},
			{Key: zone("Override Level"), Address: base + 2, Type: number("", "", 0, 255, 1)},
		},
	})
	return err
}
