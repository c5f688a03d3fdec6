// internal/schema/snapshot.go
package schema

import (
	"github.com/tamzrod/modbus-devices/internal/codec"
)

// Snapshot is a point-in-time copy of a device, safe to hand to observers.
type Snapshot struct {
	ID       string          `yaml:"id"`
	Identity Identity        `yaml:"identity"`
	Groups   []GroupSnapshot `yaml:"groups"`
}

type GroupSnapshot struct {
	Name   string          `yaml:"name"`
	Mode   Mode            `yaml:"mode"`
	Poll   PollMode        `yaml:"poll"`
	Points []PointSnapshot `yaml:"points"`
}

type PointSnapshot struct {
	Key   string            `yaml:"key"`
	Value codec.Value       `yaml:"value"`
	Label string            `yaml:"label,omitempty"`
	Unit  string            `yaml:"unit,omitempty"`
	Attrs map[string]string `yaml:"attrs,omitempty"`
}

// Snapshot copies every group and point value under one read lock.
func (d *Device) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{
		ID:       d.ID.String(),
		Identity: d.identity,
		Groups:   make([]GroupSnapshot, 0, len(d.order)),
	}

	for _, id := range d.order {
		g := d.groups[id]
		gs := GroupSnapshot{
			Name:   g.Name,
			Mode:   g.Mode,
			Poll:   g.Poll,
			Points: make([]PointSnapshot, 0, len(g.keys)),
		}
		for _, k := range g.keys {
			p := g.points[k]
			ps := PointSnapshot{
				Key:   k,
				Value: p.Value,
				Unit:  p.Type.Unit,
				Attrs: cloneAttrs(p.Attrs),
			}
			if i, ok := p.Value.Int(); ok && p.Value.Kind() == codec.KindInt {
				ps.Label, _ = p.Type.Label(i)
			}
			gs.Points = append(gs.Points, ps)
		}
		s.Groups = append(s.Groups, gs)
	}
	return s
}
