package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store persists sessions, one JSON file per key, under a sessions
// directory. Sessions are created lazily on first reference and never
// deleted by the agent core; Clear exists for the explicit new-topic
// command.
type Store struct {
	Dir string

	mu    sync.Mutex
	cache map[string]*Session
}

// NewStore creates a session store rooted at <workspace>/sessions.
func NewStore(workspace string) *Store {
	dir := filepath.Join(workspace, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("failed to create sessions dir", "dir", dir, "error", err)
	}
	return &Store{Dir: dir, cache: make(map[string]*Session)}
}

// filenameReplacer maps characters that are unsafe in filenames.
var filenameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// SafeFilename encodes a session key into a filesystem-safe name.
func SafeFilename(key string) string {
	return filenameReplacer.Replace(key) + ".json"
}

func (st *Store) path(key string) string {
	return filepath.Join(st.Dir, SafeFilename(key))
}

// GetOrCreate returns the session for key, loading it from disk or creating
// an empty one. A malformed file is treated as an empty session; it will be
// overwritten on the next save.
func (st *Store) GetOrCreate(key string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sess, ok := st.cache[key]; ok {
		return sess
	}

	sess := st.load(key)
	if sess == nil {
		sess = NewSession(key)
	}
	st.cache[key] = sess
	return sess
}

func (st *Store) load(key string) *Session {
	data, err := os.ReadFile(st.path(key))
	if err != nil {
		return nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		slog.Warn("malformed session file, starting empty", "key", key, "error", err)
		return nil
	}
	sess.Key = key
	return &sess
}

// Save writes a session to disk, serializing writes per store.
func (st *Store) Save(sess *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.cache[sess.Key] = sess
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.Key, err)
	}
	if err := os.WriteFile(st.path(sess.Key), data, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", sess.Key, err)
	}
	return nil
}

// Append adds turns to the session for key and persists it.
func (st *Store) Append(key string, turns ...Turn) error {
	sess := st.GetOrCreate(key)
	sess.Append(turns...)
	return st.Save(sess)
}

// Clear removes a session from the cache and disk.
func (st *Store) Clear(key string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.cache, key)
	err := os.Remove(st.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
