// internal/drivers/registry.go
package drivers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tamzrod/modbus-devices/internal/schema"
)

var ErrDriverNotFound = errors.New("drivers: driver not found")

// Builder returns a fresh, unsealed device schema.
// Every call must build new groups; devices never share them.
type Builder func() (*schema.Device, error)

// Registry maps driver ids ("Manufacturer.Model") to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Default returns a registry holding every built-in model.
func Default() *Registry {
	r := NewRegistry()
	for id, b := range builtins {
		r.builders[id] = b
	}
	return r
}

// Register adds a builder. Ids are unique.
func (r *Registry) Register(id string, b Builder) error {
	if id == "" {
		return errors.New("drivers: empty driver id")
	}
	if b == nil {
		return fmt.Errorf("drivers: nil builder for %q", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.builders[id]; dup {
		return fmt.Errorf("drivers: duplicate driver id %q", id)
	}
	r.builders[id] = b
	return nil
}

func (r *Registry) Lookup(id string) (Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotFound, id)
	}
	return b, nil
}

// IDs returns all registered ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for id := range r.builders {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// New builds and finalizes a device instance of model id.
func (r *Registry) New(id string) (*schema.Device, error) {
	b, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	d, err := b()
	if err != nil {
		return nil, fmt.Errorf("drivers: build %q: %w", id, err)
	}
	if err := d.Finalize(); err != nil {
		return nil, fmt.Errorf("drivers: finalize %q: %w", id, err)
	}
	return d, nil
}

var builtins = map[string]Builder{
	"Swegon.CASA_R4":    CasaR4,
	"Swegon.CASA_R15":   CasaR15,
	"Trox.TVE":          TroxTVE,
	"LKSystems.ARCHUB":  ArcHub,
	"Renke.RS-WS-N01-8": RenkeRSWS,
}
