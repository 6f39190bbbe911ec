package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBytes(t *testing.T) {
	f, err := ParseBytes([]byte("name: Earnings Review\ndescription: Latest quarter\nprompt: |\n  Compare revenue with last year.\n"))
	require.NoError(t, err)
	assert.Equal(t, "Earnings Review", f.Name)
	assert.Equal(t, "Latest quarter", f.Description)
	assert.Equal(t, "Compare revenue with last year.", f.Prompt)
}

func TestParseBytesInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "name: [",
		"no name":      "prompt: x",
		"no prompt":    "name: x",
		"blank prompt": "name: x\nprompt: '   '",
		"long name":    "name: " + strings.Repeat("a", MaxNameLength+1) + "\nprompt: x",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBytes([]byte(in))
			assert.ErrorIs(t, err, ErrSkillFileInvalid)
		})
	}
}

func TestIsSkillFile(t *testing.T) {
	assert.True(t, IsSkillFile("/x/a.yaml"))
	assert.True(t, IsSkillFile("b.YML"))
	assert.False(t, IsSkillFile("c.json"))
	assert.False(t, IsSkillFile(".d.yaml"))
}

func writeSkill(t *testing.T, dir, file, body string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "b.yaml", "name: Beta\nprompt: b")
	writeSkill(t, dir, "a.yml", "name: Alpha\nprompt: a")
	writeSkill(t, dir, "broken.yaml", "name: Broken")
	writeSkill(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	files, err := ScanDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "Alpha", files[0].Name)
	assert.Equal(t, filepath.Join(dir, "a.yml"), files[0].Path)
	assert.Equal(t, "Beta", files[1].Name)

	files, err = ScanDir(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.Empty(t, files)
}
