// Package resolution holds the grid and timestep metadata a model run is
// configured with. One record is active per model, chosen by key when the
// model is constructed.
package resolution

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultKey selects the record used when no resolution is requested.
const DefaultKey = "default"

// ErrUnknownKey is returned when a resolution key is not in the table.
var ErrUnknownKey = errors.New("resolution: unknown key")

// Record is one resolution entry. Zero values mean the attribute is unset.
type Record struct {
	LateralResolution  string        `yaml:"lateral_resolution,omitempty"`
	VerticalResolution string        `yaml:"vertical_resolution,omitempty"`
	Timestep           time.Duration `yaml:"timestep,omitempty"`
	Nx                 int           `yaml:"nx,omitempty"`
	Ny                 int           `yaml:"ny,omitempty"`
	Nz                 int           `yaml:"nz,omitempty"`
	NGridpoints        int           `yaml:"ngridpoints,omitempty"`
}

// Attribute is a named resolution value.
type Attribute struct {
	Name  string
	Value any
	Set   bool
}

// Attributes returns the declared attribute set in declaration order.
func (r Record) Attributes() []Attribute {
	return []Attribute{
		{Name: "LateralResolution", Value: r.LateralResolution, Set: r.LateralResolution != ""},
		{Name: "VerticalResolution", Value: r.VerticalResolution, Set: r.VerticalResolution != ""},
		{Name: "Timestep", Value: r.Timestep, Set: r.Timestep > 0},
		{Name: "Nx", Value: r.Nx, Set: r.Nx > 0},
		{Name: "Ny", Value: r.Ny, Set: r.Ny > 0},
		{Name: "Nz", Value: r.Nz, Set: r.Nz > 0},
		{Name: "NGridpoints", Value: r.NGridpoints, Set: r.NGridpoints > 0},
	}
}

// Missing lists the names of unset attributes.
func (r Record) Missing() []string {
	var missing []string
	for _, attr := range r.Attributes() {
		if !attr.Set {
			missing = append(missing, attr.Name)
		}
	}
	return missing
}

// Gridpoints returns NGridpoints, or Nx*Ny*Nz when the total is not given.
// Zero means the count cannot be determined.
func (r Record) Gridpoints() int {
	if r.NGridpoints > 0 {
		return r.NGridpoints
	}
	if r.Nx > 0 && r.Ny > 0 && r.Nz > 0 {
		return r.Nx * r.Ny * r.Nz
	}
	return 0
}

func (r Record) validate() error {
	if r.Timestep < 0 {
		return fmt.Errorf("timestep must be >= 0")
	}
	for name, v := range map[string]int{"nx": r.Nx, "ny": r.Ny, "nz": r.Nz, "ngridpoints": r.NGridpoints} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	return nil
}

// Table maps resolution keys to records.
type Table map[string]Record

// Builtin returns the table shipped with the model: only the default key,
// with every attribute unset.
func Builtin() Table {
	return Table{DefaultKey: {}}
}

// Merge returns a copy of t with extra's entries added or replaced. Keys
// are normalized; the default key is always present.
func (t Table) Merge(extra Table) (Table, error) {
	out := make(Table, len(t)+len(extra))
	for k, v := range t {
		out[NormalizeKey(k)] = v
	}
	for k, v := range extra {
		key := NormalizeKey(k)
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("resolution: %s: %w", key, err)
		}
		out[key] = v
	}
	if _, ok := out[DefaultKey]; !ok {
		out[DefaultKey] = Record{}
	}
	return out, nil
}

// Select looks up the record for key. An empty key selects DefaultKey.
func (t Table) Select(key string) (Record, error) {
	normalized := NormalizeKey(key)
	rec, ok := t[normalized]
	if !ok {
		return Record{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownKey, key, strings.Join(t.Keys(), ", "))
	}
	return rec, nil
}

// Keys returns the sorted keys of the table.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeKey trims key and maps the empty key to DefaultKey.
func NormalizeKey(key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return DefaultKey
	}
	return trimmed
}
