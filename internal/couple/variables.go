package couple

import (
	"fmt"
	"strings"
)

// Variable maps a physical field offered to the ice model onto its name
// and units in the solid-earth output.
type Variable struct {
	Field string
	Name  string
	Units string
}

// OfferedVariables are the fields described in <type>_variables.dat.
// Relative sea level is in metres relative to the initial state of the run.
var OfferedVariables = []Variable{
	{Field: "solid_earth_relative_sea_level", Name: "rsl", Units: "m"},
	// TODO: confirm the orography unit with the ice-sheet side; the
	// initial file carries none and "0" is what downstream readers expect today.
	{Field: "solid_earth_orography", Name: "topo", Units: "0"},
}

// VariableDescription renders vars in the key=value format of the
// variables descriptor.
func VariableDescription(vars []Variable) string {
	var b strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&b, "%s_variablename=%s\n", v.Field, v.Name)
		fmt.Fprintf(&b, "%s_units=%s\n", v.Field, v.Units)
	}
	return b.String()
}
