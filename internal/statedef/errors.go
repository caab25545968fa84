package statedef

import "errors"

var (
	// ErrNoParent is returned when a rule spec is set up without the
	// statedef that owns the species table.
	ErrNoParent = errors.New("statedef: rule has no parent statedef")

	// ErrNegativeRate rejects negative rate or diffusion constants.
	ErrNegativeRate = errors.New("statedef: negative rate constant")

	// ErrUnknownSystem is returned when a container names a volume or
	// surface system the model does not define.
	ErrUnknownSystem = errors.New("statedef: unknown system")

	// ErrMissingComp is returned when a surface reaction needs a
	// compartment that its patch does not have.
	ErrMissingComp = errors.New("statedef: surface reaction needs a missing compartment")
)

// ErrUnknownSpecies is returned when a rule names a species outside the
// species table.
var ErrUnknownSpecies = errors.New("statedef: unknown species")
