// internal/drivers/yaml.go
package drivers

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tamzrod/modbus-devices/internal/schema"
)

// ModelFile is a data-only model definition.
//
// Identity entries reference points as "Group/Key"; SWVersion parts are
// joined with dots after the first read.
type ModelFile struct {
	ID           string            `yaml:"id"`
	Manufacturer string            `yaml:"manufacturer"`
	Model        string            `yaml:"model"`
	Groups       []schema.GroupDef `yaml:"groups"`
	Config       []schema.PointDef `yaml:"config"`
	Identity     IdentityMap       `yaml:"identity"`
}

type IdentityMap struct {
	Model        string   `yaml:"model"`
	SerialNumber string   `yaml:"serial_number"`
	SWVersion    []string `yaml:"sw_version"`
}

// LoadDir registers every *.yaml / *.yml model in dir.
func LoadDir(r *Registry, dir string) ([]string, error) {
	return LoadFS(r, os.DirFS(dir), ".")
}

// LoadFS registers every *.yaml / *.yml model in dir of fsys and returns the
// registered ids in file order.
func LoadFS(r *Registry, fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := path.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return ids, err
		}
		mf, err := ParseModel(b)
		if err != nil {
			return ids, fmt.Errorf("drivers: %s: %w", e.Name(), err)
		}
		if mf.ID == "" {
			mf.ID = strings.TrimSuffix(e.Name(), ext)
		}

		if err := r.Register(mf.ID, mf.Builder()); err != nil {
			return ids, err
		}
		ids = append(ids, mf.ID)
	}
	return ids, nil
}

// ParseModel decodes a model file strictly and checks it builds.
func ParseModel(b []byte) (*ModelFile, error) {
	var mf ModelFile

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil {
		return nil, err
	}

	if mf.Manufacturer == "" || mf.Model == "" {
		return nil, errors.New("manufacturer and model are required")
	}
	for _, g := range mf.Groups {
		if g.Name == schema.ConfigGroupName || g.Name == schema.UIGroupName {
			return nil, fmt.Errorf("group name %q is reserved", g.Name)
		}
	}

	// Build once so a broken file fails at load time, not per device.
	d, err := mf.Builder()()
	if err != nil {
		return nil, err
	}
	if err := d.Finalize(); err != nil {
		return nil, err
	}
	// Nothing has been read yet, so this only checks the references.
	if err := mf.Identity.apply(d); err != nil {
		return nil, err
	}
	return &mf, nil
}

// Builder returns a builder producing a fresh device from the file.
func (mf *ModelFile) Builder() Builder {
	return func() (*schema.Device, error) {
		d := schema.New(mf.Manufacturer, mf.Model)

		for _, g := range mf.Groups {
			if _, err := d.AddGroup(g); err != nil {
				return nil, err
			}
		}
		if len(mf.Config) > 0 {
			if err := d.AddPoints(d.Config(), mf.Config...); err != nil {
				return nil, err
			}
		}

		if !mf.Identity.empty() {
			im := mf.Identity
			d.Hooks.AfterFirstRead = func(d *schema.Device) error {
				return im.apply(d)
			}
		}
		return d, nil
	}
}

func (im IdentityMap) empty() bool {
	return im.Model == "" && im.SerialNumber == "" && len(im.SWVersion) == 0
}

func (im IdentityMap) apply(d *schema.Device) error {
	model, err := resolve(d, im.Model)
	if err != nil {
		return err
	}
	serial, err := resolve(d, im.SerialNumber)
	if err != nil {
		return err
	}

	var sw string
	if len(im.SWVersion) > 0 {
		parts := make([]string, len(im.SWVersion))
		for i, ref := range im.SWVersion {
			if parts[i], err = resolve(d, ref); err != nil {
				return err
			}
			if parts[i] == "" {
				parts[i] = "?"
			}
		}
		sw = strings.Join(parts, ".")
	}

	d.UpdateIdentity(func(id *schema.Identity) {
		if model != "" {
			id.Model = model
		}
		if serial != "" {
			id.SerialNumber = serial
		}
		if sw != "" {
			id.SWVersion = sw
		}
	})
	return nil
}

// resolve returns the string form of the point at ref ("Group/Key"),
// empty when ref is empty or the value is unknown.
func resolve(d *schema.Device, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	group, key, ok := strings.Cut(ref, "/")
	if !ok {
		return "", fmt.Errorf("drivers: identity reference %q is not Group/Key", ref)
	}
	g, ok := d.GroupByName(group)
	if !ok {
		return "", fmt.Errorf("%w: %q", schema.ErrUnknownGroup, group)
	}
	if _, err := d.Point(g.ID, key); err != nil {
		return "", err
	}
	s, _ := text(d.Value(g.ID, key))
	return s, nil
}
