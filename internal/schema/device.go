// internal/schema/device.go
package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tamzrod/modbus-devices/internal/codec"
)

var (
	ErrUnknownGroup     = errors.New("schema: unknown group")
	ErrUnknownDataPoint = errors.New("schema: unknown data point")
	ErrSchemaSealed     = errors.New("schema: schema is sealed")
	ErrInvalidSchema    = errors.New("schema: invalid schema")
)

// Reserved group names and the UI points driving config-by-index reads.
const (
	ConfigGroupName = "Config"
	UIGroupName     = "UI"

	ConfigSelectionKey = "Config Selection"
	ConfigValueKey     = "Config Value"
)

// Identity is the device metadata filled in during the first read.
type Identity struct {
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	SWVersion    string `yaml:"sw_version,omitempty"`
	SerialNumber string `yaml:"serial_number,omitempty"`
}

// Hooks are optional model-specific callbacks run by the scheduler.
// AfterFirstRead runs exactly once and is the only place the schema may grow
// after Finalize.
type Hooks struct {
	BeforeRead     func(d *Device)
	AfterRead      func(d *Device)
	AfterFirstRead func(d *Device) error
}

type groupEntry struct {
	Group
	keys   []string
	points map[string]*DataPoint
}

// Device owns the group map of one device instance.
// All value access goes through the device lock; accessors return copies.
type Device struct {
	ID    uuid.UUID
	Hooks Hooks

	mu        sync.RWMutex
	identity  Identity
	order     []GroupID
	groups    map[GroupID]*groupEntry
	byName    map[string]GroupID
	config    GroupID
	ui        GroupID
	sealed    bool
	extending bool
	firstRead bool
}

// New creates a device instance holding only the reserved Config and UI groups.
func New(manufacturer, model string) *Device {
	d := &Device{
		ID:        uuid.New(),
		identity:  Identity{Manufacturer: manufacturer, Model: model},
		groups:    make(map[GroupID]*groupEntry),
		byName:    make(map[string]GroupID),
		firstRead: true,
	}
	d.config = d.addGroupLocked(GroupDef{Name: ConfigGroupName, Mode: ModeHolding, Poll: PollOff})
	d.ui = d.addGroupLocked(GroupDef{Name: UIGroupName, Mode: ModeNone, Poll: PollOff})
	return d
}

func (d *Device) Config() GroupID { return d.config }
func (d *Device) UI() GroupID { return d.ui }

// ---- SCHEMA CONSTRUCTION ----

// AddGroup registers a new group with its points.
// After Finalize it is only allowed from the AfterFirstRead hook.
func (d *Device) AddGroup(def GroupDef) (GroupID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed && !d.extending {
		return 0, fmt.Errorf("%w: cannot add group %q", ErrSchemaSealed, def.Name)
	}
	if def.Name == "" {
		return 0, fmt.Errorf("%w: group name required", ErrInvalidSchema)
	}
	if _, exists := d.byName[def.Name]; exists {
		return 0, fmt.Errorf("%w: duplicate group name %q", ErrInvalidSchema, def.Name)
	}
	if err := checkKeys(def.Name, nil, def.Points); err != nil {
		return 0, err
	}

	return d.addGroupLocked(def), nil
}

// AddPoints appends points to an existing group, typically Config or UI.
func (d *Device) AddPoints(id GroupID, defs ...PointDef) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed && !d.extending {
		return fmt.Errorf("%w: cannot add points", ErrSchemaSealed)
	}
	g, ok := d.groups[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownGroup, id)
	}
	if err := checkKeys(g.Name, g.points, defs); err != nil {
		return err
	}
	for _, def := range defs {
		g.keys = append(g.keys, def.Key)
		g.points[def.Key] = newPoint(def)
	}
	return nil
}

func (d *Device) addGroupLocked(def GroupDef) GroupID {
	g := &groupEntry{
		Group: Group{
			ID:   newGroupID(),
			Name: def.Name,
			Mode: def.Mode,
			Poll: def.Poll,
		},
		points: make(map[string]*DataPoint, len(def.Points)),
	}
	for _, p := range def.Points {
		g.keys = append(g.keys, p.Key)
		g.points[p.Key] = newPoint(p)
	}

	d.groups[g.ID] = g
	d.byName[g.Name] = g.ID
	d.order = append(d.order, g.ID)
	return g.ID
}

func checkKeys(group string, existing map[string]*DataPoint, defs []PointDef) error {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if def.Key == "" {
			return fmt.Errorf("%w: group %q has a point without key", ErrInvalidSchema, group)
		}
		if _, dup := seen[def.Key]; dup {
			return fmt.Errorf("%w: group %q has duplicate key %q", ErrInvalidSchema, group, def.Key)
		}
		if _, dup := existing[def.Key]; dup {
			return fmt.Errorf("%w: group %q has duplicate key %q", ErrInvalidSchema, group, def.Key)
		}
		seen[def.Key] = struct{}{}
	}
	return nil
}

// Finalize runs once after the model builder: it validates the schema,
// adds the config selection UI points when the Config group is non-empty,
// and seals the schema.
func (d *Device) Finalize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed {
		return nil
	}

	cfg := d.groups[d.config]
	if len(cfg.keys) > 0 {
		ui := d.groups[d.ui]
		defs := []PointDef{
			{
				Key:  ConfigSelectionKey,
				Type: DataType{Kind: KindSelect, Category: "config", Options: Enum(cfg.keys...)},
			},
			{
				Key:  ConfigValueKey,
				Type: DataType{Kind: KindNumber, Category: "config", Min: 0, Max: 65535, Step: 1},
			},
		}
		if err := checkKeys(ui.Name, ui.points, defs); err != nil {
			return err
		}
		for _, def := range defs {
			ui.keys = append(ui.keys, def.Key)
			ui.points[def.Key] = newPoint(def)
		}
	}

	if err := d.validateLocked(); err != nil {
		return err
	}
	d.sealed = true
	return nil
}

// Validate checks register geometry of every transport-backed group.
func (d *Device) Validate() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.validateLocked()
}

func (d *Device) validateLocked() error {
	type span struct {
		key        string
		start, end int
	}

	for _, id := range d.order {
		g := d.groups[id]
		if g.Mode == ModeNone {
			continue
		}

		spans := make([]span, 0, len(g.keys))
		for _, k := range g.keys {
			p := g.points[k]
			if p.Length < 1 {
				return fmt.Errorf("%w: %s/%s: length %d", ErrInvalidSchema, g.Name, k, p.Length)
			}
			if p.Scaling == 0 {
				return fmt.Errorf("%w: %s/%s: zero scaling", ErrInvalidSchema, g.Name, k)
			}
			if p.IsText() && p.Scaling != 1 {
				return fmt.Errorf("%w: %s/%s: text points are not scaled", ErrInvalidSchema, g.Name, k)
			}
			end := int(p.Address) + p.Length
			if end > 1<<16 {
				return fmt.Errorf("%w: %s/%s: range %d+%d exceeds register space", ErrInvalidSchema, g.Name, k, p.Address, p.Length)
			}
			spans = append(spans, span{key: k, start: int(p.Address), end: end})
		}

		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		for i := 1; i < len(spans); i++ {
			if spans[i].start < spans[i-1].end {
				return fmt.Errorf(
					"%w: %s: %q [%d,%d) overlaps %q [%d,%d)",
					ErrInvalidSchema, g.Name,
					spans[i].key, spans[i].start, spans[i].end,
					spans[i-1].key, spans[i-1].start, spans[i-1].end,
				)
			}
		}
	}
	return nil
}

// ---- LIFECYCLE ----

// FirstRead reports whether the first successful cycle is still pending.
func (d *Device) FirstRead() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.firstRead
}

func (d *Device) BeforeRead() {
	if d.Hooks.BeforeRead != nil {
		d.Hooks.BeforeRead(d)
	}
}

func (d *Device) AfterRead() {
	if d.Hooks.AfterRead != nil {
		d.Hooks.AfterRead(d)
	}
}

// CompleteFirstRead runs the AfterFirstRead hook with schema extension
// enabled, validates the grown schema and clears the first-read flag.
// On error the flag stays set.
func (d *Device) CompleteFirstRead() error {
	d.mu.Lock()
	if !d.firstRead {
		d.mu.Unlock()
		return nil
	}
	d.extending = true
	d.mu.Unlock()

	var err error
	if d.Hooks.AfterFirstRead != nil {
		err = d.Hooks.AfterFirstRead(d)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.extending = false

	if err != nil {
		return err
	}
	if err := d.validateLocked(); err != nil {
		return err
	}
	d.firstRead = false
	return nil
}

// ---- ACCESSORS ----

func (d *Device) Identity() Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.identity
}

// UpdateIdentity mutates the identity metadata under the device lock.
// fn must not call back into the device.
func (d *Device) UpdateIdentity(fn func(id *Identity)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.identity)
}

func (d *Device) Group(id GroupID) (Group, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[id]
	if !ok {
		return Group{}, false
	}
	return g.Group, true
}

func (d *Device) GroupByName(name string) (Group, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[name]
	if !ok {
		return Group{}, false
	}
	return d.groups[id].Group, true
}

// Groups returns all groups in definition order.
func (d *Device) Groups() []Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Group, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.groups[id].Group)
	}
	return out
}

// Keys returns the point keys of a group in definition order.
func (d *Device) Keys(id GroupID) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[id]
	if !ok {
		return nil
	}
	return append([]string(nil), g.keys...)
}

func (d *Device) Point(id GroupID, key string) (DataPoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.pointLocked(id, key)
	if err != nil {
		return DataPoint{}, err
	}
	return p.clone(), nil
}

// Points returns copies of a group's points in definition order.
func (d *Device) Points(id GroupID) ([]NamedPoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGroup, id)
	}
	out := make([]NamedPoint, 0, len(g.keys))
	for _, k := range g.keys {
		out = append(out, NamedPoint{Key: k, DataPoint: g.points[k].clone()})
	}
	return out, nil
}

// Value returns the last known value, Unknown when absent.
func (d *Device) Value(id GroupID, key string) codec.Value {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.pointLocked(id, key)
	if err != nil {
		return codec.Unknown()
	}
	return p.Value
}

// Attrs returns a copy of the point's attributes, nil when absent.
func (d *Device) Attrs(id GroupID, key string) map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.pointLocked(id, key)
	if err != nil {
		return nil
	}
	return cloneAttrs(p.Attrs)
}

func (d *Device) SetValue(id GroupID, key string, v codec.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pointLocked(id, key)
	if err != nil {
		return err
	}
	p.Value = v
	return nil
}

func (d *Device) SetAttrs(id GroupID, key string, attrs map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pointLocked(id, key)
	if err != nil {
		return err
	}
	p.Attrs = cloneAttrs(attrs)
	return nil
}

// UpdatePoint applies fn to a copy of the point and stores it. fn runs under
// the device lock and must not call back into the device.
// Once sealed, register geometry may only change from AfterFirstRead.
func (d *Device) UpdatePoint(id GroupID, key string, fn func(p *DataPoint)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pointLocked(id, key)
	if err != nil {
		return err
	}

	next := p.clone()
	fn(&next)

	if d.sealed && !d.extending &&
		(next.Address != p.Address || next.Length != p.Length || next.Scaling != p.Scaling) {
		return fmt.Errorf("%w: cannot change geometry of %q", ErrSchemaSealed, key)
	}
	*p = next
	return nil
}

func (d *Device) pointLocked(id GroupID, key string) (*DataPoint, error) {
	g, ok := d.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGroup, id)
	}
	p, ok := g.points[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q in group %q", ErrUnknownDataPoint, key, g.Name)
	}
	return p, nil
}
