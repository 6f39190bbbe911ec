package skills

import (
	"context"
	"fmt"

	"finch/internal/storage"
	"finch/pkg/logger"
)

// Store is the storage the importer writes to.
type Store interface {
	EnsureUser(ctx context.Context, email string) (*storage.User, error)
	SaveSkill(ctx context.Context, s *storage.Skill) error
}

// Importer upserts skill files as skills of one owning user.
type Importer struct {
	store Store
	owner string
}

// NewImporter creates an Importer for the user with email owner.
func NewImporter(store Store, owner string) (*Importer, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return &Importer{store: store, owner: owner}, nil
}

// ImportDir imports every valid skill file in dir and returns how many
// were saved.
func (im *Importer) ImportDir(ctx context.Context, dir string) (int, error) {
	files, err := ScanDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return 0, nil
	}

	user, err := im.store.EnsureUser(ctx, im.owner)
	if err != nil {
		return 0, fmt.Errorf("ensure owner: %w", err)
	}
	n := 0
	for _, f := range files {
		if err := im.save(ctx, user.ID, f); err != nil {
			logger.Warn().Err(err).Str("path", f.Path).Msg("Failed to import skill")
			continue
		}
		n++
	}
	logger.Info().Str("dir", dir).Int("count", n).Msg("Imported skill files")
	return n, nil
}

// ImportFile imports a single skill file.
func (im *Importer) ImportFile(ctx context.Context, path string) (*storage.Skill, error) {
	f, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	user, err := im.store.EnsureUser(ctx, im.owner)
	if err != nil {
		return nil, fmt.Errorf("ensure owner: %w", err)
	}
	s := im.toSkill(user.ID, f)
	if err := im.store.SaveSkill(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (im *Importer) save(ctx context.Context, userID string, f *File) error {
	return im.store.SaveSkill(ctx, im.toSkill(userID, f))
}

func (im *Importer) toSkill(userID string, f *File) *storage.Skill {
	return &storage.Skill{
		UserID:      userID,
		Name:        f.Name,
		Description: f.Description,
		Prompt:      f.Prompt,
		Source:      storage.SkillSourceFile,
	}
}
