// internal/drivers/helpers.go
package drivers

import (
	"math"
	"strings"

	"github.com/tamzrod/modbus-devices/internal/codec"
	"github.com/tamzrod/modbus-devices/internal/schema"
)

// Unit and device-class strings shared by the built-in models.
const (
	unitCelsius   = "°C"
	unitPercent   = "%"
	unitMinutes   = "min"
	unitSeconds   = "s"
	unitMillis    = "ms"
	unitVolt      = "V"
	unitDegree    = "°"
	unitM3PerHour = "m³/h"
	unitLPerSec   = "l/s"
	unitFt3PerMin = "ft³/min"

	classTemperature = "temperature"
	classHumidity    = "humidity"
	classBattery     = "battery"
	classFlow        = "volume_flow_rate"
	classProblem     = "problem"

	iconBell = "mdi:bell"
	iconWind = "mdi:weather-windy"
)

func sensor(unit, class string) schema.DataType {
	return schema.DataType{Kind: schema.KindSensor, Unit: unit, DeviceClass: class}
}

func number(unit, class string, lo, hi, step float64) schema.DataType {
	return schema.DataType{Kind: schema.KindNumber, Unit: unit, DeviceClass: class, Min: lo, Max: hi, Step: step}
}

func selection(labels ...string) schema.DataType {
	return schema.DataType{Kind: schema.KindSelect, Options: schema.Enum(labels...)}
}

func options(opts ...schema.Option) schema.DataType {
	return schema.DataType{Kind: schema.KindSelect, Options: opts}
}

func enumSensor(labels ...string) schema.DataType {
	return schema.DataType{Kind: schema.KindSensor, Options: schema.Enum(labels...)}
}

func problem() schema.DataType {
	return schema.DataType{Kind: schema.KindBinarySensor, DeviceClass: classProblem, Icon: iconBell}
}

// version joins known integer values with dots; unknown parts become "?".
func version(vals ...codec.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if v.Known() {
			parts[i] = v.String()
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ".")
}

// text returns a Text value, or the value's string form for numbers.
func text(v codec.Value) (string, bool) {
	if !v.Known() {
		return "", false
	}
	return v.String(), true
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
