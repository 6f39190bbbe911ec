package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	dir, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir() error: %v", err)
	}
	if dir != filepath.Join(home, ".finch") {
		t.Errorf("DefaultConfigDir() = %q", dir)
	}

	cases := []struct {
		name   string
		fn     func() (string, error)
		suffix string
	}{
		{"config", DefaultConfigPath, filepath.Join(".finch", "config.yaml")},
		{"data", DefaultDataPath, filepath.Join(".finch", "finch.db")},
		{"skills", DefaultSkillsDir, filepath.Join(".finch", "skills")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.fn()
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasSuffix(got, c.suffix) {
				t.Errorf("got %q, want suffix %q", got, c.suffix)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/x/y.yaml", filepath.Join(home, "x", "y.yaml")},
		{"/abs/path", "/abs/path"},
		{"rel/path", "rel/path"},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if err != nil {
			t.Fatalf("ExpandPath(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
