// internal/schema/types.go
package schema

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// ---- GROUP IDENTITY ----

// GroupID is the unique token of one group instance.
// Two groups with the same mode and poll policy never share an ID.
type GroupID uint64

var lastGroupID atomic.Uint64

func newGroupID() GroupID { return GroupID(lastGroupID.Add(1)) }

// ---- ACCESS MODE ----

// Mode selects which register table a group lives in.
type Mode uint8

const (
	ModeNone    Mode = iota // virtual, computed locally, never reaches the transport
	ModeInput               // read-only input registers (FC 4)
	ModeHolding             // read/write holding registers (FC 3/6/16)
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeHolding:
		return "holding"
	default:
		return "none"
	}
}

func (m *Mode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "", "none", "virtual":
		*m = ModeNone
	case "input":
		*m = ModeInput
	case "holding":
		*m = ModeHolding
	default:
		return fmt.Errorf("schema: unknown mode %q", b)
	}
	return nil
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ---- POLL POLICY ----

// PollMode decides when the scheduler reads a group.
type PollMode uint8

const (
	PollOff  PollMode = iota // never auto-read
	PollOn                   // read every refresh cycle
	PollOnce                 // read only on the first successful cycle
)

func (p PollMode) String() string {
	switch p {
	case PollOn:
		return "on"
	case PollOnce:
		return "once"
	default:
		return "off"
	}
}

func (p *PollMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "", "off":
		*p = PollOff
	case "on":
		*p = PollOn
	case "once":
		*p = PollOnce
	default:
		return fmt.Errorf("schema: unknown poll mode %q", b)
	}
	return nil
}

func (p PollMode) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// ---- GROUP ----

// Group is a set of points sharing access mode and poll policy.
type Group struct {
	ID   GroupID
	Name string
	Mode Mode
	Poll PollMode
}

// GroupKind is the structural classification of a group.
// It is never used as identity.
type GroupKind struct {
	Mode Mode
	Poll PollMode
}

func (g Group) Kind() GroupKind { return GroupKind{Mode: g.Mode, Poll: g.Poll} }

func (g Group) String() string {
	return fmt.Sprintf("%s#%d(%s/%s)", g.Name, g.ID, g.Mode, g.Poll)
}

// ---- PRESENTATION ----

// Kind describes how a point is surfaced by the platform layer.
type Kind uint8

const (
	KindSensor Kind = iota
	KindNumber
	KindSelect
	KindBinarySensor
	KindButton
	KindSwitch
)

var kindNames = map[Kind]string{
	KindSensor:       "sensor",
	KindNumber:       "number",
	KindSelect:       "select",
	KindBinarySensor: "binary_sensor",
	KindButton:       "button",
	KindSwitch:       "switch",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k *Kind) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	if s == "" {
		*k = KindSensor
		return nil
	}
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("schema: unknown kind %q", b)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Option is one entry of an enumerated point.
type Option struct {
	Value int64  `yaml:"value"`
	Label string `yaml:"label"`
}

// DataType carries presentation metadata for a point.
// Min/Max/Step apply to KindNumber, Options to KindSelect and enumerated sensors.
type DataType struct {
	Kind        Kind     `yaml:"kind"`
	DeviceClass string   `yaml:"device_class,omitempty"`
	Category    string   `yaml:"category,omitempty"`
	Icon        string   `yaml:"icon,omitempty"`
	Unit        string   `yaml:"unit,omitempty"`
	Min         float64  `yaml:"min,omitempty"`
	Max         float64  `yaml:"max,omitempty"`
	Step        float64  `yaml:"step,omitempty"`
	Options     []Option `yaml:"options,omitempty"`
}

// DefaultNumber is the number presentation used when nothing more specific is known.
func DefaultNumber() DataType {
	return DataType{Kind: KindNumber, Min: 0, Max: 65535, Step: 1}
}

func (t DataType) clone() DataType {
	if t.Options != nil {
		t.Options = append([]Option(nil), t.Options...)
	}
	return t
}

// Label returns the option label for v.
func (t DataType) Label(v int64) (string, bool) {
	for _, o := range t.Options {
		if o.Value == v {
			return o.Label, true
		}
	}
	return "", false
}

// Enum builds an ordered option list from labels indexed 0..n-1.
func Enum(labels ...string) []Option {
	out := make([]Option, len(labels))
	for i, l := range labels {
		out[i] = Option{Value: int64(i), Label: l}
	}
	return out
}
