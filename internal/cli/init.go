package cli

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"finch/internal/cli/defaults"
	"finch/internal/config"
	"finch/internal/storage"
)

// InitOptions init 命令选项
type InitOptions struct {
	Force bool
}

// NewInitCmd 创建 init 命令
func NewInitCmd() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize finch configuration",
		Long: `Write the default configuration, create the database and copy the
sample skill files into the skills directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}
			return RunInit(cliCtx.Config, cliCtx.ConfigPath, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

// RunInit 执行初始化
func RunInit(cfg *config.Config, configPath string, opts *InitOptions, out io.Writer) error {
	if _, err := os.Stat(configPath); err == nil && !opts.Force {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", configPath)
	}
	if err := config.SaveTo(cfg, configPath); err != nil {
		return err
	}

	dataPath := cfg.Storage.Path
	if dataPath == "" {
		var err error
		if dataPath, err = config.DefaultDataPath(); err != nil {
			return fmt.Errorf("get data path: %w", err)
		}
	}
	db, err := storage.Open(dataPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	db.Close()

	skillsDir := cfg.Skills.Dir
	if skillsDir == "" {
		if skillsDir, err = config.DefaultSkillsDir(); err != nil {
			return err
		}
	}
	n, err := copyDefaultSkills(skillsDir, opts.Force)
	if err != nil {
		fmt.Fprintf(out, "Warning: failed to copy default skills: %v\n", err)
	}

	fmt.Fprintf(out, "Initialized finch\n")
	fmt.Fprintf(out, "  Config:   %s\n", configPath)
	fmt.Fprintf(out, "  Database: %s\n", dataPath)
	fmt.Fprintf(out, "  Skills:   %s (%d copied)\n", skillsDir, n)
	return nil
}

// copyDefaultSkills writes the embedded skill files into dir, keeping
// existing files unless force is set.
func copyDefaultSkills(dir string, force bool) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	fsys := defaults.GetDefaultsFS()
	entries, err := fs.ReadDir(fsys, "skills")
	if err != nil {
		return 0, err
	}

	copied := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		dst := filepath.Join(dir, e.Name())
		if _, err := os.Stat(dst); err == nil && !force {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join("skills", e.Name()))
		if err != nil {
			return copied, err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}
