package regiontree

import "errors"

var (
	// ErrCoordinateOverflow is returned when an edit or expansion would address a coordinate
	// outside [MinCoord, MaxCoord]. The tree is left unchanged.
	ErrCoordinateOverflow = errors.New("coordinate overflow")

	// ErrInvalidBox is returned for boxes whose Min exceeds Max on some axis.
	ErrInvalidBox = errors.New("invalid box")

	// ErrInvalidBounds is returned when a tree's covering cube is not a power of two.
	ErrInvalidBounds = errors.New("invalid tree bounds")

	// ErrInvariantViolation is returned when a tree is found in a non-canonical shape.
	ErrInvariantViolation = errors.New("tree invariant violated")
)
