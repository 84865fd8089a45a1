package skills

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metadata is the YAML frontmatter of a SKILL.md file.
type Metadata struct {
	Description string `yaml:"description"`
	Wren        struct {
		Always   bool `yaml:"always"`
		Requires struct {
			Bins []string `yaml:"bins"`
			Env  []string `yaml:"env"`
		} `yaml:"requires"`
	} `yaml:"wren"`
}

// Skill is one loaded skill directory.
type Skill struct {
	Name        string
	Path        string
	Description string
	Available   bool
	Missing     []string
	Content     string
	Always      bool
}

// Loader discovers skills under <workspace>/skills/<name>/SKILL.md.
type Loader struct {
	Workspace string
	SkillsDir string
}

// NewLoader creates a skills loader for the workspace.
func NewLoader(workspace string) *Loader {
	return &Loader{
		Workspace: workspace,
		SkillsDir: filepath.Join(workspace, "skills"),
	}
}

// List returns every skill found in the skills directory. A missing
// directory is not an error, just zero skills.
func (l *Loader) List() ([]Skill, error) {
	entries, err := os.ReadDir(l.SkillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var skills []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(l.SkillsDir, name, "SKILL.md")
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		meta, _ := parseFrontmatter(content)
		missing := checkRequirements(meta.Wren.Requires.Bins, meta.Wren.Requires.Env)
		desc := meta.Description
		if desc == "" {
			desc = name
		}
		skills = append(skills, Skill{
			Name:        name,
			Path:        path,
			Description: desc,
			Available:   len(missing) == 0,
			Missing:     missing,
			Content:     string(content),
			Always:      meta.Wren.Always,
		})
	}
	return skills, nil
}

// LoadForContext returns the named skills' bodies joined for the system
// prompt, with frontmatter stripped and {baseDir} pointing at each skill's
// directory.
func (l *Loader) LoadForContext(names []string) string {
	var parts []string
	for _, name := range names {
		skillDir := filepath.Join(l.SkillsDir, name)
		content, err := os.ReadFile(filepath.Join(skillDir, "SKILL.md"))
		if err != nil {
			continue
		}
		body := stripFrontmatter(content)
		absDir, _ := filepath.Abs(skillDir)
		body = strings.ReplaceAll(body, "{baseDir}", absDir)
		parts = append(parts, fmt.Sprintf("### Skill: %s\n\n%s", name, body))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// Summary lists all skills with availability, for progressive loading: the
// model sees what exists and reads the instruction file on demand.
func (l *Loader) Summary() string {
	skills, err := l.List()
	if err != nil || len(skills) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, s := range skills {
		status := "Available"
		if !s.Available {
			status = fmt.Sprintf("Unavailable (Missing: %s)", strings.Join(s.Missing, ", "))
		}
		fmt.Fprintf(&sb, "- **%s** (%s)\n", s.Name, status)
		fmt.Fprintf(&sb, "  Description: %s\n", s.Description)
		fmt.Fprintf(&sb, "  Instruction File: %s\n\n", s.Path)
	}
	return sb.String()
}

// AlwaysSkills returns the names of available skills marked always-load.
func (l *Loader) AlwaysSkills() []string {
	skills, _ := l.List()
	var names []string
	for _, s := range skills {
		if s.Always && s.Available {
			names = append(names, s.Name)
		}
	}
	return names
}

func parseFrontmatter(content []byte) (Metadata, error) {
	var meta Metadata
	s := string(content)
	if strings.HasPrefix(s, "---") {
		parts := strings.SplitN(s, "---", 3)
		if len(parts) >= 3 {
			err := yaml.Unmarshal([]byte(parts[1]), &meta)
			return meta, err
		}
	}
	return meta, nil
}

func stripFrontmatter(content []byte) string {
	s := string(content)
	if strings.HasPrefix(s, "---") {
		parts := strings.SplitN(s, "---", 3)
		if len(parts) >= 3 {
			return strings.TrimSpace(parts[2])
		}
	}
	return s
}

func checkRequirements(bins, envs []string) []string {
	var missing []string
	for _, bin := range bins {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, "CLI: "+bin)
		}
	}
	for _, env := range envs {
		if os.Getenv(env) == "" {
			missing = append(missing, "ENV: "+env)
		}
	}
	return missing
}
