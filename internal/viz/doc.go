// Package viz provides a terminal view of a running kinetic simulation.
//
// The package implements a live TUI using the Bubble Tea framework: a
// table of counts per compartment and patch with sparklines, and a plot of
// the selected species.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Reset to initial conditions
//	Tab   - Select next species
//	+/-   - Change the simulated time per frame
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
