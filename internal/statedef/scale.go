package statedef

import "math"

// Avogadro's constant in 1/mol.
const Avogadro = 6.02214076e23

// CompCcst converts a macroscopic volume rate constant (M-based units) into
// the mesoscopic constant for a volume of vol cubic metres.
func CompCcst(k, vol float64, order int) float64 {
	vscale := 1.0e3 * vol * Avogadro
	return k * math.Pow(vscale, -float64(order-1))
}

// SurfCcst is CompCcst for surface-only reactions, scaled by area in square
// metres.
func SurfCcst(k, area float64, order int) float64 {
	ascale := area * Avogadro
	return k * math.Pow(ascale, -float64(order-1))
}
