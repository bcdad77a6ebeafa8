package source

import (
	"fmt"
)

// Span is a half-open byte range inside a file. Operations created by a
// rewrite inherit the span of the operation they replace, so diagnostics keep
// pointing at the original construct.
type Span struct {
	File  FileID
	Start uint32 // inclusive
	End   uint32 // exclusive
}

// NoSpan is the span of synthesized operations with no textual origin.
var NoSpan = Span{File: NoFileID}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	if s.File == NoFileID {
		return "<synth>"
	}
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Cover extends the span to include other. Spans from different files are
// left untouched.
func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}
