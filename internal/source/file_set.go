package source

import (
	"crypto/sha256"
	"fmt"

	"fortio.org/safecast"
)

// FileSet manages the textual-IR files a pipeline run was fed from and
// resolves byte offsets back to line/column positions.
type FileSet struct {
	files []File
	index map[string]FileID // path -> id
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0),
		index: make(map[string]FileID),
	}
}

// Add stores a file, computes its line index and hash, and returns a new
// FileID. A later Add with the same path shadows the earlier entry in the
// path index but keeps the old FileID resolvable.
func (fs *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	hash := sha256.Sum256(content)
	lineIdx := buildLineIndex(content)

	lenFiles, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    path,
		Content: content,
		LineIdx: lineIdx,
		Hash:    hash,
		Flags:   flags,
	})
	fs.index[path] = id
	return id
}

// Get returns the file for an ID, or nil.
func (fs *FileSet) Get(id FileID) *File {
	if fs == nil || int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

// Lookup returns the most recent FileID registered under path.
func (fs *FileSet) Lookup(path string) (FileID, bool) {
	id, ok := fs.index[path]
	return id, ok
}

// Len returns the number of files in the set.
func (fs *FileSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.files)
}

// Position resolves a byte offset in a file to a 1-based line/column.
func (fs *FileSet) Position(id FileID, offset uint32) (LineCol, bool) {
	f := fs.Get(id)
	if f == nil || int(offset) > len(f.Content) {
		return LineCol{}, false
	}
	line := uint32(0)
	for line < uint32(len(f.LineIdx)) && f.LineIdx[line] <= offset {
		line++
	}
	lineStart := uint32(0)
	if line > 0 {
		lineStart = f.LineIdx[line-1]
	}
	return LineCol{Line: line + 1, Col: offset - lineStart + 1}, true
}

func buildLineIndex(content []byte) []uint32 {
	var out []uint32
	for i, b := range content {
		if b == '\n' {
			lenOut, err := safecast.Conv[uint32](i + 1)
			if err != nil {
				panic(fmt.Errorf("line index overflow: %w", err))
			}
			out = append(out, lenOut)
		}
	}
	return out
}
