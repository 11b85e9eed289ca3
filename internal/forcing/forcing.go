// Package forcing inspects the NetCDF layout of inbound forcing files
// without going through CDO.
package forcing

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
)

// ErrLayout is returned when a file does not match its Schema.
var ErrLayout = errors.New("forcing: unexpected layout")

// Layout is what a file declares for one variable.
type Layout struct {
	Variable   string
	Dimensions []string
	Type       string
	// Sizes holds the declared length of each dimension. Unlimited
	// dimensions report their current record count.
	Sizes map[string]uint64
}

// Schema is the layout a forcing variable must have.
type Schema struct {
	Variable   string
	Dimensions []string
	Type       string
	Sizes      map[string]uint64
}

// IceThickness is the ice-sheet model's thickness field: Ice(epoch, lat, lon)
// as float on a 512 x 256 lon/lat grid. epoch is unlimited.
var IceThickness = Schema{
	Variable:   "Ice",
	Dimensions: []string{"epoch", "lat", "lon"},
	Type:       "float",
	Sizes:      map[string]uint64{"lon": 512, "lat": 256},
}

// Inspect reads the layout of variable from the NetCDF file at path,
// classic CDF or NetCDF-4 (HDF5).
func Inspect(path, variable string) (Layout, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return Layout{}, fmt.Errorf("forcing: open %s: %w", path, err)
	}
	defer g.Close()
	vg, err := g.GetVarGetter(variable)
	if err != nil {
		return Layout{}, fmt.Errorf("%w: %s has no variable %q: %v", ErrLayout, path, variable, err)
	}
	layout := Layout{
		Variable:   variable,
		Dimensions: vg.Dimensions(),
		Type:       vg.Type(),
		Sizes:      map[string]uint64{},
	}
	for _, dim := range layout.Dimensions {
		if n, ok := g.GetDimension(dim); ok {
			layout.Sizes[dim] = n
		}
	}
	return layout, nil
}

// Check compares l against the schema.
func (s Schema) Check(l Layout) error {
	var problems []string
	if !slices.Equal(l.Dimensions, s.Dimensions) {
		problems = append(problems, fmt.Sprintf("dimensions (%s), want (%s)",
			strings.Join(l.Dimensions, ", "), strings.Join(s.Dimensions, ", ")))
	}
	if s.Type != "" && l.Type != s.Type {
		problems = append(problems, fmt.Sprintf("type %s, want %s", l.Type, s.Type))
	}
	for _, dim := range sortedKeys(s.Sizes) {
		got, ok := l.Sizes[dim]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("no %s dimension", dim))
		case got != s.Sizes[dim]:
			problems = append(problems, fmt.Sprintf("%s=%d, want %d", dim, got, s.Sizes[dim]))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrLayout, s.Variable, strings.Join(problems, "; "))
	}
	return nil
}

// CheckFile inspects path and checks it against the schema.
func (s Schema) CheckFile(path string) error {
	layout, err := Inspect(path, s.Variable)
	if err != nil {
		return err
	}
	return s.Check(layout)
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
