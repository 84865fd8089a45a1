package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendTodayAddsHeaderOnce(t *testing.T) {
	m := NewStore(t.TempDir())

	require.NoError(t, m.AppendToday("first note"))
	require.NoError(t, m.AppendToday("second note"))

	got, err := m.ReadToday()
	require.NoError(t, err)
	assert.Contains(t, got, "# "+time.Now().Format("2006-01-02"))
	assert.Contains(t, got, "first note\nsecond note")
	assert.Equal(t, 1, countHeader(got))
}

func countHeader(s string) int {
	n := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '#' && s[i+1] == ' ' && (i == 0 || s[i-1] == '\n') {
			n++
		}
	}
	return n
}

func TestLongTermRoundTrip(t *testing.T) {
	m := NewStore(t.TempDir())

	got, err := m.ReadLongTerm()
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, m.WriteLongTerm("User prefers short answers."))
	got, err = m.ReadLongTerm()
	require.NoError(t, err)
	assert.Equal(t, "User prefers short answers.", got)
}

func TestContextAssemblesSections(t *testing.T) {
	m := NewStore(t.TempDir())
	assert.Empty(t, m.Context())

	require.NoError(t, m.WriteLongTerm("long term stuff"))
	require.NoError(t, m.AppendToday("daily stuff"))

	ctx := m.Context()
	assert.Contains(t, ctx, "## Long-term Memory\nlong term stuff")
	assert.Contains(t, ctx, "## Today's Notes\n")
	assert.Contains(t, ctx, "daily stuff")
}

func TestRecentIncludesToday(t *testing.T) {
	m := NewStore(t.TempDir())
	require.NoError(t, m.AppendToday("note"))

	got, err := m.Recent(3)
	require.NoError(t, err)
	assert.Contains(t, got, "note")
}
