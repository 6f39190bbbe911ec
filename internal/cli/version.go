package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"finch/internal/provider"
)

// Set with -ldflags "-X finch/internal/cli.Version=..." at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version      string `json:"version"`
	GitCommit    string `json:"git_commit"`
	BuildTime    string `json:"build_time"`
	GoVersion    string `json:"go_version"`
	Platform     string `json:"platform"`
	DefaultModel string `json:"default_model"`
}

func currentBuild() BuildInfo {
	return BuildInfo{
		Version:      Version,
		GitCommit:    GitCommit,
		BuildTime:    BuildTime,
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		DefaultModel: provider.DefaultModelID,
	}
}

// NewVersionCmd 创建 version 命令
func NewVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeVersion(cmd.OutOrStdout(), currentBuild(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func writeVersion(w io.Writer, info BuildInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	_, err := fmt.Fprintf(w, "finch %s (%s, built %s)\n%s %s, default model %s\n",
		info.Version, info.GitCommit, info.BuildTime, info.GoVersion, info.Platform, info.DefaultModel)
	return err
}
