package pipeline

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/xyproto/env/v2"
)

// Options configures one pipeline run.
type Options struct {
	// CacheEnabled turns on the lowered-module disk cache.
	CacheEnabled bool `toml:"cache_enabled"`
	// CacheDir overrides the standard user cache location.
	CacheDir string `toml:"cache_dir"`
	// StrictSites makes any partially-lowered function a run failure instead
	// of a combined soft error on the result.
	StrictSites bool `toml:"strict_sites"`
	// MaxDiagnostics bounds the diagnostic bag.
	MaxDiagnostics int `toml:"max_diagnostics"`
}

func DefaultOptions() Options {
	return Options{MaxDiagnostics: 128}
}

// LoadOptions reads a TOML options file and applies environment overrides.
// An empty path loads defaults plus the environment.
func LoadOptions(path string) (Options, error) {
	o := DefaultOptions()
	if path != "" {
		if _, err := toml.DecodeFile(path, &o); err != nil {
			return o, fmt.Errorf("pipeline: options %s: %w", path, err)
		}
	}
	return o.WithEnv(), nil
}

// WithEnv applies TRITON_SHARED_* environment overrides on top of o.
func (o Options) WithEnv() Options {
	// env caches os.Environ at first use; re-read it so changes made after
	// an earlier lookup are seen.
	env.Load()
	if env.Has("TRITON_SHARED_CACHE") {
		o.CacheEnabled = env.Bool("TRITON_SHARED_CACHE")
	}
	o.CacheDir = env.Str("TRITON_SHARED_CACHE_DIR", o.CacheDir)
	if env.Has("TRITON_SHARED_STRICT") {
		o.StrictSites = env.Bool("TRITON_SHARED_STRICT")
	}
	return o
}
