package couple

import "fmt"

// TimestepPolicy picks which rsl timestep is sent to the ice sheet. The rsl
// output grows during the run, so only its ends are meaningful.
type TimestepPolicy string

const (
	// TimestepLast sends the most recent timestep. This is the default.
	TimestepLast TimestepPolicy = "last"
	// TimestepFirst sends the initial timestep.
	TimestepFirst TimestepPolicy = "first"
)

// Selector returns the seltimestep argument for the policy.
func (p TimestepPolicy) Selector() (string, error) {
	switch p {
	case "", TimestepLast:
		return "-1", nil
	case TimestepFirst:
		return "1", nil
	default:
		return "", fmt.Errorf("couple: unknown timestep policy %q", string(p))
	}
}
