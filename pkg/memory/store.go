package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store keeps the agent's persistent memory as markdown under
// <workspace>/memory: MEMORY.md for long-term notes plus one dated file per
// day.
type Store struct {
	Workspace string
	MemoryDir string
}

// NewStore creates a memory store, creating the directory.
func NewStore(workspace string) *Store {
	dir := filepath.Join(workspace, "memory")
	os.MkdirAll(dir, 0o755)
	return &Store{Workspace: workspace, MemoryDir: dir}
}

// TodayFile returns the path of today's notes file.
func (m *Store) TodayFile() string {
	return filepath.Join(m.MemoryDir, time.Now().Format("2006-01-02")+".md")
}

// ReadToday returns today's notes, empty if none.
func (m *Store) ReadToday() (string, error) {
	return readOptional(m.TodayFile())
}

// AppendToday adds a note to today's file, creating it with a date header.
func (m *Store) AppendToday(content string) error {
	path := m.TodayFile()
	existing, err := readOptional(path)
	if err != nil {
		return err
	}
	if existing == "" {
		content = fmt.Sprintf("# %s\n\n%s", time.Now().Format("2006-01-02"), content)
	} else {
		content = existing + "\n" + content
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// ReadLongTerm returns MEMORY.md, empty if none.
func (m *Store) ReadLongTerm() (string, error) {
	return readOptional(filepath.Join(m.MemoryDir, "MEMORY.md"))
}

// WriteLongTerm replaces MEMORY.md.
func (m *Store) WriteLongTerm(content string) error {
	return os.WriteFile(filepath.Join(m.MemoryDir, "MEMORY.md"), []byte(content), 0o644)
}

// Recent returns the last n days of notes, newest first.
func (m *Store) Recent(days int) (string, error) {
	var parts []string
	today := time.Now()
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		content, err := readOptional(filepath.Join(m.MemoryDir, date+".md"))
		if err != nil {
			return "", err
		}
		if content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

// Context assembles the memory block for the system prompt.
func (m *Store) Context() string {
	var parts []string
	if longTerm, _ := m.ReadLongTerm(); longTerm != "" {
		parts = append(parts, "## Long-term Memory\n"+longTerm)
	}
	if today, _ := m.ReadToday(); today != "" {
		parts = append(parts, "## Today's Notes\n"+today)
	}
	return strings.Join(parts, "\n\n")
}

func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}
