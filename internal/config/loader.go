// Package config loads the optional .cotest.yaml runner configuration.
// Test binaries construct one context per test, frequently in parallel, so
// the loader caches per-path results and collapses concurrent loads of the
// same file into one read.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/msageha/cotest/internal/model"
)

// FileName is the configuration file looked up next to the working
// directory of the test binary.
const FileName = ".cotest.yaml"

// ErrMalformed wraps YAML and schema errors from a config file.
var ErrMalformed = errors.New("malformed cotest configuration")

// Loader resolves directories to configurations.
type Loader struct {
	mu     sync.RWMutex
	cache  map[string]model.Config
	flight singleflight.Group
}

func NewLoader() *Loader {
	return &Loader{cache: make(map[string]model.Config)}
}

// defaultLoader backs the package-level Load.
var defaultLoader = NewLoader()

// Load resolves dir's configuration through the process-wide loader.
func Load(dir string) (model.Config, error) {
	return defaultLoader.Load(dir)
}

// Load returns the configuration for dir: the parsed .cotest.yaml when one
// exists there, the defaults otherwise. Results are cached per absolute
// path; concurrent first loads of the same path share one file read.
func (l *Loader) Load(dir string) (model.Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return model.DefaultConfig(), fmt.Errorf("resolve config dir: %w", err)
	}

	l.mu.RLock()
	cfg, ok := l.cache[abs]
	l.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	v, err, _ := l.flight.Do(abs, func() (any, error) {
		cfg, err := loadFile(filepath.Join(abs, FileName))
		if err != nil {
			return model.Config{}, err
		}
		l.mu.Lock()
		l.cache[abs] = cfg
		l.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return model.DefaultConfig(), err
	}
	return v.(model.Config), nil
}

// Invalidate drops the cached entry for dir, forcing a re-read.
func (l *Loader) Invalidate(dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return
	}
	l.mu.Lock()
	delete(l.cache, abs)
	l.mu.Unlock()
}

// loadFile parses one config file, layering it over the defaults. A
// missing file is not an error.
func loadFile(path string) (model.Config, error) {
	cfg := model.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = 1
	}
	if cfg.SchemaVersion != 1 {
		return cfg, fmt.Errorf("%w: %s: unsupported schema_version %d",
			ErrMalformed, path, cfg.SchemaVersion)
	}
	if cfg.Trace.Enabled && cfg.Trace.Path == "" {
		return cfg, fmt.Errorf("%w: %s: trace.enabled requires trace.path",
			ErrMalformed, path)
	}
	return cfg, nil
}
