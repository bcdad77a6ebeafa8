package ir

// ValueID indexes a value inside a function's value arena.
type ValueID int32

// OpID indexes an operation inside a function's op arena.
type OpID int32

// RegionID indexes a region inside a function's region arena.
type RegionID int32

const (
	// NoValueID marks the absence of a value.
	NoValueID ValueID = -1
	// NoOpID marks the absence of an operation. Values with NoOpID as their
	// defining op are region parameters.
	NoOpID OpID = -1
	// NoRegionID marks the absence of a region.
	NoRegionID RegionID = -1
)

// IsValid reports whether the ID refers to an arena slot.
func (v ValueID) IsValid() bool { return v >= 0 }

// IsValid reports whether the ID refers to an arena slot.
func (o OpID) IsValid() bool { return o >= 0 }

// IsValid reports whether the ID refers to an arena slot.
func (r RegionID) IsValid() bool { return r >= 0 }
