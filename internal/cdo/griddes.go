package cdo

import (
	"fmt"
	"strconv"
	"strings"
)

// GridDescription is a parsed griddes dump. Multi-line values (xvals,
// yvals) are joined with single spaces.
type GridDescription struct {
	keys   []string
	values map[string]string
}

// ParseGriddes parses the key = value lines CDO's griddes operator prints.
// Comment lines start with '#'.
func ParseGriddes(lines []string) (GridDescription, error) {
	gd := GridDescription{values: map[string]string{}}
	var last string
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			if last == "" {
				return GridDescription{}, fmt.Errorf("cdo: griddes line %d: expected key = value", i+1)
			}
			gd.values[last] = strings.TrimSpace(gd.values[last] + " " + line)
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return GridDescription{}, fmt.Errorf("cdo: griddes line %d: empty key", i+1)
		}
		if _, seen := gd.values[key]; !seen {
			gd.keys = append(gd.keys, key)
		}
		gd.values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
		last = key
	}
	if len(gd.keys) == 0 {
		return GridDescription{}, fmt.Errorf("cdo: griddes output is empty")
	}
	return gd, nil
}

// Keys returns keys in the order they appeared.
func (g GridDescription) Keys() []string {
	return append([]string(nil), g.keys...)
}

// Get returns the raw value for key.
func (g GridDescription) Get(key string) (string, bool) {
	v, ok := g.values[key]
	return v, ok
}

// GridType returns the gridtype entry.
func (g GridDescription) GridType() string {
	return g.values["gridtype"]
}

// Size returns an integer entry such as xsize or ysize.
func (g GridDescription) Size(key string) (int, error) {
	v, ok := g.values[key]
	if !ok {
		return 0, fmt.Errorf("cdo: griddes has no %s", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("cdo: griddes %s=%q: %w", key, v, err)
	}
	return n, nil
}
