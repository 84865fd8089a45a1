package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, workspace, name, content string) {
	t.Helper()
	dir := filepath.Join(workspace, "skills", name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
}

func TestListParsesFrontmatter(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "notes", `---
description: Note taking conventions
wren:
  always: true
---

Keep notes in bullet form.
`)
	writeSkill(t, ws, "plain", "No frontmatter here.\n")

	skills, err := NewLoader(ws).List()
	require.NoError(t, err)
	require.Len(t, skills, 2)

	byName := map[string]Skill{}
	for _, s := range skills {
		byName[s.Name] = s
	}

	assert.Equal(t, "Note taking conventions", byName["notes"].Description)
	assert.True(t, byName["notes"].Always)
	assert.True(t, byName["notes"].Available)

	// Description falls back to the skill name.
	assert.Equal(t, "plain", byName["plain"].Description)
	assert.False(t, byName["plain"].Always)
}

func TestListMissingDirIsEmpty(t *testing.T) {
	skills, err := NewLoader(t.TempDir()).List()
	require.NoError(t, err)
	assert.Empty(t, skills)
}

func TestRequirementsMarkUnavailable(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "gated", `---
description: Needs things that do not exist
wren:
  requires:
    bins: [definitely-not-a-real-binary-xyz]
    env: [WREN_TEST_UNSET_ENV_VAR]
---

Body.
`)

	skills, err := NewLoader(ws).List()
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.False(t, skills[0].Available)
	assert.Contains(t, skills[0].Missing, "CLI: definitely-not-a-real-binary-xyz")
	assert.Contains(t, skills[0].Missing, "ENV: WREN_TEST_UNSET_ENV_VAR")

	assert.Empty(t, NewLoader(ws).AlwaysSkills())
}

func TestLoadForContextStripsAndSubstitutes(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "tools", `---
description: Tool usage
---

Run {baseDir}/helper.sh first.
`)

	out := NewLoader(ws).LoadForContext([]string{"tools", "missing"})
	assert.Contains(t, out, "### Skill: tools")
	assert.NotContains(t, out, "description:")
	assert.NotContains(t, out, "{baseDir}")
	assert.Contains(t, out, filepath.Join("skills", "tools", "helper.sh"))
}

func TestSummaryListsAllSkills(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "alpha", "---\ndescription: First\n---\nBody.\n")

	sum := NewLoader(ws).Summary()
	assert.Contains(t, sum, "**alpha** (Available)")
	assert.Contains(t, sum, "Description: First")
	assert.Contains(t, sum, "Instruction File:")

	assert.Empty(t, NewLoader(t.TempDir()).Summary())
}
