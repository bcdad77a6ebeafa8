package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Textual IR parsing.
	ParseSyntax        Code = 1001
	ParseUnknownOp     Code = 1002
	ParseUndefValue    Code = 1003
	ParseBadType       Code = 1004
	ParseArityMismatch Code = 1005

	// Staged type conversion. Verifier failures are returned as plain errors
	// and carry no code; the 2000 band stays reserved for them.
	ConvStructuralFailure Code = 3001

	// Pointer analysis.
	PtrUnsupportedOp      Code = 4001
	PtrRankMismatch       Code = 4002
	PtrUnresolvedState    Code = 4003
	PtrLoopCarriedDynamic Code = 4004

	// Load/store lowering.
	LowUnresolvedAccess Code = 5001
	LowBadMaskShape     Code = 5002
	LowBadElemType      Code = 5003
	LowBadFallbackType  Code = 5004
)

func (c Code) String() string {
	switch {
	case c >= 1000 && c < 2000:
		return fmt.Sprintf("PARSE%04d", uint16(c))
	case c >= 3000 && c < 4000:
		return fmt.Sprintf("CONV%04d", uint16(c))
	case c >= 4000 && c < 5000:
		return fmt.Sprintf("PTR%04d", uint16(c))
	case c >= 5000 && c < 6000:
		return fmt.Sprintf("LOWER%04d", uint16(c))
	default:
		return fmt.Sprintf("DIAG%04d", uint16(c))
	}
}
