// internal/drivers/renke.go
package drivers

import "github.com/tamzrod/modbus-devices/internal/schema"

// RenkeRSWS builds the Renke RS-WS-N01-8 temperature and humidity transmitter.
func RenkeRSWS() (*schema.Device, error) {
	d := schema.New("Shandong Renke", "RS-WS-N01-8")

	_, err := d.AddGroup(schema.GroupDef{Name: "Sensors", Mode: schema.ModeInput, Poll: schema.PollOn, Points: []schema.PointDef{
		{Key: "Humidity", Address: 0, Scaling: 0.1, Type: sensor(unitPercent, classHumidity)},
		{Key: "Temperature", Address: 1, Scaling: 0.1, Type: tempSensor()},
	}})
	if err != nil {
		return nil, err
	}
	return d, nil
}
