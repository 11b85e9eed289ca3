// Package vilma is the VILMA solid-earth model component.
//
// A Model is assembled from three parts that the host queries separately:
// its identity and active resolution, the compute requirements the
// scheduler launches it with, and the coupling adapter that exchanges
// ice-sheet forcing. Register installs the model in a component registry
// under Name.
package vilma
