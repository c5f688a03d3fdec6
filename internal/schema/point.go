// internal/schema/point.go
package schema

import (
	"github.com/tamzrod/modbus-devices/internal/codec"
)

// PointDef is the static, data-only definition of a point.
// Zero Length means 1 register, zero Scaling means 1.0.
type PointDef struct {
	Key     string   `yaml:"key"`
	Address uint16   `yaml:"address"`
	Length  int      `yaml:"length,omitempty"`
	Scaling float64  `yaml:"scaling,omitempty"`
	Type    DataType `yaml:"type,omitempty"`
}

// GroupDef is the static definition of a group and its points, in order.
type GroupDef struct {
	Name   string     `yaml:"name"`
	Mode   Mode       `yaml:"mode"`
	Poll   PollMode   `yaml:"poll"`
	Points []PointDef `yaml:"points"`
}

// DataPoint is one named, typed, addressable value within a group.
type DataPoint struct {
	Address uint16
	Length  int
	Scaling float64
	Value   codec.Value
	Attrs   map[string]string
	Type    DataType
}

// NamedPoint pairs a point with its key.
type NamedPoint struct {
	Key string
	DataPoint
}

// IsText reports whether the point decodes as fixed-length text.
func (p DataPoint) IsText() bool { return p.Length > 2 }

func (p DataPoint) clone() DataPoint {
	p.Type = p.Type.clone()
	p.Attrs = cloneAttrs(p.Attrs)
	return p
}

func newPoint(def PointDef) *DataPoint {
	p := &DataPoint{
		Address: def.Address,
		Length:  def.Length,
		Scaling: def.Scaling,
		Type:    def.Type.clone(),
	}
	if p.Length == 0 {
		p.Length = 1
	}
	if p.Scaling == 0 {
		p.Scaling = 1.0
	}
	return p
}

func cloneAttrs(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
