package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"authpool-go/internal/profile"
)

const lockRetryInterval = 25 * time.Millisecond

// FileStore persists the pool as a single JSON snapshot file. Writers across
// processes are serialized with a sidecar flock file; writers within one
// process additionally share a mutex so the flock is never re-entered.
type FileStore struct {
	path     string
	lockPath string
	mu       sync.Mutex
}

// NewFileStore creates a store around path. Nothing is touched on disk until
// the first load or write.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:     path,
		lockPath: path + ".lock",
	}
}

// Path returns the snapshot file location.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(_ context.Context) (*profile.AuthProfileStore, error) {
	return f.load()
}

func (f *FileStore) load() (*profile.AuthProfileStore, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return &profile.AuthProfileStore{
			Version:  1,
			Profiles: make(map[string]json.RawMessage),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile store: %w", err)
	}
	var store profile.AuthProfileStore
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("parse profile store: %w", err)
	}
	return &store, nil
}

func (f *FileStore) Save(_ context.Context, store *profile.AuthProfileStore) error {
	return f.save(store)
}

// save writes the snapshot atomically via a temp file and rename, so readers
// never observe a partially written store.
func (f *FileStore) save(store *profile.AuthProfileStore) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("prepare store directory: %w", err)
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile store: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write profile store: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("persist profile store: %w", err)
	}
	return nil
}

// WithLock holds the cross-process lock for the whole reload-mutate-persist
// cycle. Reloading inside the lock is what keeps concurrent recordings from
// losing each other's deadlines.
func (f *FileStore) WithLock(ctx context.Context, mutate func(*profile.AuthProfileStore) (*profile.AuthProfileStore, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("prepare store directory: %w", err)
	}
	fileLock := flock.New(f.lockPath)
	locked, err := fileLock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire store lock %s: lock not granted", f.lockPath)
	}
	defer func() { _ = fileLock.Unlock() }()

	store, err := f.load()
	if err != nil {
		return err
	}
	next, err := mutate(store)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return f.save(next)
}

func (f *FileStore) Raw(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile store: %w", err)
	}
	return data, nil
}
