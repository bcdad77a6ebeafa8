package ir

// WalkAction controls traversal from a visitor callback.
type WalkAction uint8

const (
	// WalkContinue visits nested regions and keeps going.
	WalkContinue WalkAction = iota
	// WalkSkip does not descend into the op's regions.
	WalkSkip
	// WalkStop aborts the traversal.
	WalkStop
)

// Walk visits each live operation of the function in program order (outer
// ops before the contents of their regions). The visitor may insert or erase
// operations: each region's op list is snapshotted before iteration, and
// erased ops are skipped.
func (f *Func) Walk(visit func(id OpID, op *Op) WalkAction) {
	f.walkRegion(f.Body, visit)
}

func (f *Func) walkRegion(r RegionID, visit func(id OpID, op *Op) WalkAction) WalkAction {
	region := f.RegionAt(r)
	if region == nil {
		return WalkContinue
	}
	snapshot := make([]OpID, len(region.Ops))
	copy(snapshot, region.Ops)

	for _, id := range snapshot {
		op := f.OpAt(id)
		if op == nil || op.Kind == OpErased {
			continue
		}
		switch visit(id, op) {
		case WalkStop:
			return WalkStop
		case WalkSkip:
			continue
		}
		// Re-read: the visitor may have grown the arena and moved it.
		op = f.OpAt(id)
		for _, nested := range op.Regions {
			if f.walkRegion(nested, visit) == WalkStop {
				return WalkStop
			}
		}
	}
	return WalkContinue
}

// CountOps returns the number of live ops matching kind.
func (f *Func) CountOps(kind OpKind) int {
	n := 0
	f.Walk(func(_ OpID, op *Op) WalkAction {
		if op.Kind == kind {
			n++
		}
		return WalkContinue
	})
	return n
}

// FindOps returns every live op of the given kind in program order.
func (f *Func) FindOps(kind OpKind) []OpID {
	var out []OpID
	f.Walk(func(id OpID, op *Op) WalkAction {
		if op.Kind == kind {
			out = append(out, id)
		}
		return WalkContinue
	})
	return out
}
