package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// resolvePath expands the path and, when root is non-empty, refuses paths
// that escape it. An empty root disables the pin.
func resolvePath(path, root string) (string, error) {
	p := expandPath(path)
	if root == "" {
		return p, nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(absRoot, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(absRoot, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path outside the allowed directory: %s", path)
	}
	return p, nil
}

func pathParam() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "The file path"},
		},
		"required": []string{"path"},
	}
}

// ReadFileTool reads file contents. Root, when set, pins reads to a
// directory.
type ReadFileTool struct {
	Root string
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file at the given path." }
func (t *ReadFileTool) Parameters() map[string]any {
	return pathParam()
}

func (t *ReadFileTool) Execute(args map[string]any) (string, error) {
	path, err := strArg(args, "path")
	if err != nil {
		return "", err
	}
	resolved, err := resolvePath(path, t.Root)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: file not found: %s", path), nil
		}
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error reading file: %v", err), nil
	}
	return string(data), nil
}

// WriteFileTool writes content to a file, creating parent directories.
type WriteFileTool struct {
	Root string
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file at the given path. Creates parent directories if needed."
}

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "The file path to write to"},
			"content": map[string]any{"type": "string", "description": "The content to write"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(args map[string]any) (string, error) {
	path, err := strArg(args, "path")
	if err != nil {
		return "", err
	}
	content, ok := args["content"].(string)
	if !ok {
		return "", fmt.Errorf("content must be a string")
	}

	resolved, err := resolvePath(path, t.Root)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Sprintf("Error creating directories: %v", err), nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err), nil
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// AppendFileTool appends content to a file, creating it if missing.
type AppendFileTool struct {
	Root string
}

func (t *AppendFileTool) Name() string { return "append_file" }
func (t *AppendFileTool) Description() string {
	return "Append content to the end of a file. Creates the file if it doesn't exist."
}

func (t *AppendFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "The file path to append to"},
			"content": map[string]any{"type": "string", "description": "The content to append"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *AppendFileTool) Execute(args map[string]any) (string, error) {
	path, err := strArg(args, "path")
	if err != nil {
		return "", err
	}
	content, ok := args["content"].(string)
	if !ok {
		return "", fmt.Errorf("content must be a string")
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	resolved, err := resolvePath(path, t.Root)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Sprintf("Error creating directories: %v", err), nil
	}
	f, err := os.OpenFile(resolved, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Sprintf("Error opening file: %v", err), nil
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return fmt.Sprintf("Error writing to file: %v", err), nil
	}
	return fmt.Sprintf("Appended to %s", path), nil
}

// EditFileTool replaces a single occurrence of old_text. Matching is
// byte-exact, including line endings; the model should re-read the file
// when a match fails.
type EditFileTool struct {
	Root string
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Edit a file by replacing old_text with new_text. old_text must match exactly once; re-read the file first if unsure."
}

func (t *EditFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":     map[string]any{"type": "string", "description": "The file path to edit"},
			"old_text": map[string]any{"type": "string", "description": "The exact text to find"},
			"new_text": map[string]any{"type": "string", "description": "The replacement text"},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *EditFileTool) Execute(args map[string]any) (string, error) {
	path, err := strArg(args, "path")
	if err != nil {
		return "", err
	}
	oldText, err := strArg(args, "old_text")
	if err != nil {
		return "", err
	}
	newText, ok := args["new_text"].(string)
	if !ok {
		return "", fmt.Errorf("new_text must be a string")
	}

	resolved, err := resolvePath(path, t.Root)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: file not found: %s", path), nil
		}
		return fmt.Sprintf("Error reading file: %v", err), nil
	}

	content := string(data)
	switch n := strings.Count(content, oldText); {
	case n == 0:
		return "Error: old_text not found in file. Make sure it matches exactly, including whitespace.", nil
	case n > 1:
		return fmt.Sprintf("Error: old_text appears %d times. Provide more context to make it unique.", n), nil
	}

	content = strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err), nil
	}
	return fmt.Sprintf("Edited %s", path), nil
}

// ListDirTool lists a directory, marking subdirectories.
type ListDirTool struct {
	Root string
}

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List the contents of a directory." }
func (t *ListDirTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "The directory path to list"},
		},
		"required": []string{"path"},
	}
}

func (t *ListDirTool) Execute(args map[string]any) (string, error) {
	path, err := strArg(args, "path")
	if err != nil {
		return "", err
	}
	resolved, err := resolvePath(path, t.Root)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: directory not found: %s", path), nil
		}
		return fmt.Sprintf("Error listing directory: %v", err), nil
	}
	if len(entries) == 0 {
		return fmt.Sprintf("Directory %s is empty", path), nil
	}

	items := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			items = append(items, e.Name()+"/")
		} else {
			items = append(items, e.Name())
		}
	}
	sort.Strings(items)
	return strings.Join(items, "\n"), nil
}
