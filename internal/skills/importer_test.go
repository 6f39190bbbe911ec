package skills

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"finch/internal/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "finch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewImporterNeedsOwner(t *testing.T) {
	_, err := NewImporter(nil, "")
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestImportDirIsIdempotent(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeSkill(t, dir, "moat.yaml", "name: Moat\ndescription: Competitive moat\nprompt: Assess the moat.")
	writeSkill(t, dir, "risks.yaml", "name: Risks\nprompt: List the risks.")

	im, err := NewImporter(db, "owner@example.com")
	require.NoError(t, err)

	n, err := im.ImportDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	owner, err := db.GetUserByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	first, err := db.ListSkills(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, first, 2)

	writeSkill(t, dir, "risks.yaml", "name: Risks\nprompt: List the top three risks.")
	_, err = im.ImportDir(ctx, dir)
	require.NoError(t, err)

	second, err := db.ListSkills(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, second, 2)
	byName := map[string]*storage.Skill{}
	for _, s := range second {
		byName[s.Name] = s
		assert.Equal(t, storage.SkillSourceFile, s.Source)
	}
	assert.Equal(t, "List the top three risks.", byName["Risks"].Prompt)

	ids := map[string]bool{}
	for _, s := range first {
		ids[s.ID] = true
	}
	assert.True(t, ids[byName["Risks"].ID], "re-import keeps the skill id")
}

func TestImportDirEmpty(t *testing.T) {
	im, err := NewImporter(openDB(t), "owner@example.com")
	require.NoError(t, err)
	n, err := im.ImportDir(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWatcherReimportsOnWrite(t *testing.T) {
	// Registered first so it runs after the database is closed.
	t.Cleanup(func() { goleak.VerifyNone(t) })

	db := openDB(t)
	ctx := context.Background()
	dir := t.TempDir()
	im, err := NewImporter(db, "owner@example.com")
	require.NoError(t, err)

	w, err := NewWatcher(im, dir)
	require.NoError(t, err)
	var mu sync.Mutex
	imported := map[string]error{}
	w.onImport = func(path string, err error) {
		mu.Lock()
		imported[filepath.Base(path)] = err
		mu.Unlock()
	}
	require.NoError(t, w.Start(ctx))

	writeSkill(t, dir, "growth.yaml", "name: Growth\nprompt: Project growth.")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		err, ok := imported["growth.yaml"]
		return ok && err == nil
	}, 3*time.Second, 20*time.Millisecond)
	w.Stop()
	w.Stop()

	owner, err := db.GetUserByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	list, err := db.ListSkills(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Growth", list[0].Name)

	mu.Lock()
	_, sawTxt := imported["ignored.txt"]
	mu.Unlock()
	assert.False(t, sawTxt)
}

func TestWatcherStopWithoutStart(t *testing.T) {
	im, err := NewImporter(openDB(t), "owner@example.com")
	require.NoError(t, err)
	w, err := NewWatcher(im, t.TempDir())
	require.NoError(t, err)
	w.Stop()
}
