package theme

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists the theme preference.
type Store interface {
	// Get returns the stored theme, or Default when none is stored.
	Get(ctx context.Context) (Theme, error)
	Set(ctx context.Context, t Theme) error
}

// Toggle flips the stored theme and returns the new value.
func Toggle(ctx context.Context, s Store) (Theme, error) {
	cur, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	next := cur.Toggle()
	if err := s.Set(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}

// =============================================================================
// MemoryStore
// =============================================================================

// MemoryStore keeps the preference in memory.
type MemoryStore struct {
	mu sync.RWMutex
	t  Theme
}

func (s *MemoryStore) Get(context.Context) (Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Parse(string(s.t)), nil
}

func (s *MemoryStore) Set(_ context.Context, t Theme) error {
	if err := Validate(string(t)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = t
	return nil
}

// =============================================================================
// FileStore
// =============================================================================

// FileStore keeps the preference in a JSON file, as {"techmap-theme": "light"},
// so other preferences can share the file later.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore creates a store at path. An empty path means
// ~/.config/techmap/preferences.json.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		path = filepath.Join(dir, "techmap", "preferences.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the preferences file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) read() (map[string]string, error) {
	prefs := map[string]string{}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return prefs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		// A corrupt file reads as empty and is overwritten on the next Set.
		return map[string]string{}, nil
	}
	return prefs, nil
}

func (s *FileStore) Get(context.Context) (Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, err := s.read()
	if err != nil {
		return "", err
	}
	return Parse(prefs[Key]), nil
}

func (s *FileStore) Set(_ context.Context, t Theme) error {
	if err := Validate(string(t)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.read()
	if err != nil {
		return err
	}
	prefs[Key] = string(t)
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// =============================================================================
// RedisStore
// =============================================================================

// RedisStore keeps one preference per owner (for example a client id)
// under "techmap-theme:<owner>".
type RedisStore struct {
	client redis.UniversalClient
	owner  string
}

// NewRedisStore returns a store for owner.
func NewRedisStore(client redis.UniversalClient, owner string) *RedisStore {
	return &RedisStore{client: client, owner: owner}
}

// RedisKey returns the Redis key of the preference.
func (s *RedisStore) RedisKey() string {
	if s.owner == "" {
		return Key
	}
	return Key + ":" + s.owner
}

func (s *RedisStore) Get(ctx context.Context) (Theme, error) {
	v, err := s.client.Get(ctx, s.RedisKey()).Result()
	if err == redis.Nil {
		return Default, nil
	}
	if err != nil {
		return "", fmt.Errorf("get theme: %w", err)
	}
	return Parse(v), nil
}

func (s *RedisStore) Set(ctx context.Context, t Theme) error {
	if err := Validate(string(t)); err != nil {
		return err
	}
	return s.client.Set(ctx, s.RedisKey(), string(t), 0).Err()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)
