// Package couple exchanges ice-sheet forcing between the solid-earth model
// and an ice-sheet model through files.
//
// Receive regrids the ice thickness handed over by the ice-sheet model onto
// the atmosphere grid. Send cuts one timestep of relative sea level out of
// the run's output, describes its grid and variables in the coupling
// directory, commits the staged files and cleans up. Every transformation
// is one call into CDO; the adapter performs no numerical work itself.
package couple
