package keystore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk shape of a key file.
type fileFormat struct {
	Keys map[string]string `yaml:"keys"`
}

// File is a YAML-backed key store. Writes go through the file atomically
// (write temp, rename); external edits are picked up by an fsnotify watcher
// so rotated keys take effect without a restart.
type File struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	keys map[string]string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFile opens (or creates) the key file at path and starts watching it
// for external changes. Close releases the watcher.
func NewFile(path string, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &File{
		path:   path,
		logger: logger,
		keys:   make(map[string]string),
		done:   make(chan struct{}),
	}

	if err := f.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create key directory: %w", err)
		}
		if err := f.flush(); err != nil {
			return nil, err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch key file: %w", err)
	}
	// Watch the directory: editors and atomic writers replace the file,
	// which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch key directory: %w", err)
	}
	f.watcher = watcher
	go f.watch()

	return f, nil
}

// Close stops the file watcher.
func (f *File) Close() error {
	close(f.done)
	return f.watcher.Close()
}

// Put implements Store.
func (f *File) Put(agentID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[agentID] = key
	return f.flushLocked()
}

// Get implements Store.
func (f *File) Get(agentID string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	key, ok := f.keys[agentID]
	return key, ok
}

// Remove implements Store.
func (f *File) Remove(agentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[agentID]; !ok {
		return false
	}
	delete(f.keys, agentID)
	if err := f.flushLocked(); err != nil {
		f.logger.Warn("failed to persist key removal", slog.String("error", err.Error()))
	}
	return true
}

// Agents implements Store.
func (f *File) Agents() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.keys))
	for id := range f.keys {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	var parsed fileFormat
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse key file %s: %w", f.path, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if parsed.Keys == nil {
		parsed.Keys = make(map[string]string)
	}
	f.keys = parsed.Keys
	return nil
}

func (f *File) flush() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flushLocked()
}

func (f *File) flushLocked() error {
	data, err := yaml.Marshal(fileFormat{Keys: f.keys})
	if err != nil {
		return fmt.Errorf("marshal key file: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace key file: %w", err)
	}
	return nil
}

func (f *File) watch() {
	for {
		select {
		case <-f.done:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := f.load(); err != nil {
				f.logger.Warn("failed to reload key file",
					slog.String("path", f.path), slog.String("error", err.Error()))
				continue
			}
			f.logger.Debug("key file reloaded", slog.String("path", f.path))
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("key file watcher error", slog.String("error", err.Error()))
		}
	}
}
