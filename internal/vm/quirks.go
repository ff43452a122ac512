package vm

// Quirks selects between the historically divergent behaviours of a few
// instructions. Test ROMs disagree on these, so they are configurable per
// machine.
type Quirks struct {
	// ShiftUsesVY makes 8XY6 and 8XYE shift VY into VX. Otherwise VX is
	// shifted in place and VY is ignored.
	ShiftUsesVY bool

	// JumpUsesVX makes BXNN jump to XNN + VX. Otherwise BNNN jumps to
	// NNN + V0.
	JumpUsesVX bool

	// IncrementIndex leaves I pointing past the last register after FX55
	// and FX65 (I = I + X + 1).
	IncrementIndex bool

	// ResetVF clears VF after 8XY1, 8XY2 and 8XY3.
	ResetVF bool

	// WrapSprites wraps sprite pixels past the right and bottom edges to the
	// opposite side instead of clipping them.
	WrapSprites bool
}

// DefaultQuirks shifts in place, jumps with V0, increments I on register
// load/store and clips sprites.
func DefaultQuirks() Quirks {
	return Quirks{
		IncrementIndex: true,
	}
}
