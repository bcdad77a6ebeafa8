package source

type (
	// FileID uniquely identifies a source file within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about a source file.
	FileFlags uint8
)

const (
	// FileVirtual indicates the file was added from memory (test, snapshot cache).
	FileVirtual FileFlags = 1 << iota
)

// NoFileID marks spans that are not backed by any file, e.g. locations of
// operations synthesized by a lowering stage.
const NoFileID FileID = ^FileID(0)

// File captures metadata and content for a single textual-IR file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32
	Hash    [32]byte
	Flags   FileFlags
}

// LineCol represents a human-readable position in a file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}
