package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/xujh333/triton-shared/internal/ir"
)

// Cache stores lowered-module snapshots on disk, keyed by a digest of the
// input module's printed form. The pipeline owns no persisted state beyond
// this convenience layer; a cold cache only costs a re-run.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// OpenCache initializes a cache under dir, or the standard user cache
// location when dir is empty.
func OpenCache(dir string) (*Cache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "triton-shared")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Key digests a module's printed form.
func Key(m *ir.Module) [sha256.Size]byte {
	return sha256.Sum256([]byte(ir.DumpString(m)))
}

func (c *Cache) pathFor(key [sha256.Size]byte) string {
	return filepath.Join(c.dir, "lowered", hex.EncodeToString(key[:])+".mp")
}

// Get returns the cached lowered module for key. Unreadable or
// schema-mismatched entries read as a miss.
func (c *Cache) Get(key [sha256.Size]byte) (*ir.Module, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		return nil, false
	}
	m, err := ir.DecodeModule(data)
	if err != nil {
		return nil, false
	}
	return m, true
}

// Put writes the lowered module under key with an atomic rename.
func (c *Cache) Put(key [sha256.Size]byte, m *ir.Module) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := ir.EncodeModule(m)
	if err != nil {
		return err
	}
	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}
