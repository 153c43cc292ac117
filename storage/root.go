package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultConfigFile is where the active root is persisted.
const DefaultConfigFile = "storage_config.json"

const (
	writeProbeName  = ".write_test"
	configLockWait  = 5 * time.Second
	configFileMode  = 0o644
	sessionDirMode  = 0o755
	sessionFileMode = 0o644
)

type rootConfig struct {
	StoragePath string `json:"storage_path"`
}

// Root holds the active storage directory. It is safe for concurrent use;
// the last Set wins.
type Root struct {
	mu         sync.RWMutex
	path       string
	configFile string
	logger     *slog.Logger
}

// NewRoot creates an unconfigured root that persists to configFile. An
// empty configFile disables persistence.
func NewRoot(configFile string, logger *slog.Logger) *Root {
	if logger == nil {
		logger = slog.Default()
	}
	return &Root{configFile: configFile, logger: logger}
}

// Load reads the persisted root, if any. A missing config file is not an
// error.
func (r *Root) Load() error {
	if r.configFile == "" {
		return nil
	}
	data, err := os.ReadFile(r.configFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &StorageError{Op: "load", Entity: "root", ID: r.configFile, Err: err}
	}

	var cfg rootConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return &StorageError{Op: "load", Entity: "root", ID: r.configFile, Err: err}
	}
	if cfg.StoragePath == "" {
		return nil
	}

	r.mu.Lock()
	r.path = cfg.StoragePath
	r.mu.Unlock()
	r.logger.Info("storage: loaded storage path", slog.String("path", cfg.StoragePath))
	return nil
}

// Get returns the active root and whether one is configured.
func (r *Root) Get() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path, r.path != ""
}

// Path returns the active root or ErrRootNotConfigured.
func (r *Root) Path() (string, error) {
	p, ok := r.Get()
	if !ok {
		return "", ErrRootNotConfigured
	}
	return p, nil
}

// Set validates dir and makes it the active root. The directory is created
// if missing and must accept a probe write. Set returns the absolute path.
// A failure to persist the choice is logged and does not fail Set.
func (r *Root) Set(dir string) (string, error) {
	if dir == "" {
		return "", &RootError{Path: dir, Problem: ErrCannotCreate, Err: errors.New("empty path")}
	}

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, sessionDirMode); err != nil {
			return "", &RootError{Path: dir, Problem: ErrCannotCreate, Err: err}
		}
		info, err = os.Stat(dir)
	}
	if err != nil {
		return "", &RootError{Path: dir, Problem: ErrCannotCreate, Err: err}
	}
	if !info.IsDir() {
		return "", &RootError{Path: dir, Problem: ErrNotDirectory}
	}

	probe := filepath.Join(dir, writeProbeName+"_"+uuid.NewString())
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return "", &RootError{Path: dir, Problem: ErrNotWritable, Err: err}
	}
	if err := os.Remove(probe); err != nil {
		return "", &RootError{Path: dir, Problem: ErrNotWritable, Err: err}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &RootError{Path: dir, Problem: ErrCannotCreate, Err: err}
	}

	r.mu.Lock()
	r.path = abs
	r.mu.Unlock()
	r.logger.Info("storage: storage path set", slog.String("path", abs))

	if err := r.persist(abs); err != nil {
		r.logger.Error("storage: saving storage config failed",
			slog.String("file", r.configFile),
			slog.String("error", err.Error()))
	}
	return abs, nil
}

func (r *Root) persist(path string) error {
	if r.configFile == "" {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rootConfig{StoragePath: path}); err != nil {
		return err
	}

	lock := NewFileLock(r.configFile)
	if err := lock.Lock(configLockWait); err != nil {
		return fmt.Errorf("lock %s: %w", r.configFile, err)
	}
	defer lock.Unlock()
	return WriteFileAtomic(r.configFile, buf.Bytes(), configFileMode)
}
