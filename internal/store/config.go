package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type GlobalConfig struct {
	CurrentWorkspace string `json:"currentWorkspace,omitempty"`

	// Database selects the backend. Empty means the workspace-local sqlite file.
	Database *DatabaseConfig `json:"database,omitempty"`

	// Editor holds optional preferences for the interactive editor.
	Editor *EditorConfig `json:"editor,omitempty"`

	// Generator configures the AI provider behind refine/touchup.
	Generator *GeneratorConfig `json:"generator,omitempty"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `json:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty"`
}

type EditorConfig struct {
	// Variant is "editor" (clamped navigation) or "lightbox" (wrapping navigation).
	Variant string `json:"variant,omitempty"`

	// GroupEditExclusive refuses edit modes while group mode is on.
	GroupEditExclusive *bool `json:"groupEditExclusive,omitempty"`

	PreloadRadius int `json:"preloadRadius,omitempty"`

	// Glyphs selects the thumbnail renderer ("blocks" or "ascii").
	Glyphs string `json:"glyphs,omitempty"`
}

type GeneratorConfig struct {
	// Provider is "gemini" or "copy". Empty picks gemini when an API key is available.
	Provider string `json:"provider,omitempty"`
	// Model pins every call to one model instead of the one the request names.
	Model string `json:"model,omitempty"`
	// PerMinute throttles generator calls. Zero means unlimited.
	PerMinute int `json:"perMinute,omitempty"`
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.cog).
	if v := strings.TrimSpace(os.Getenv("COG_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cog"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func LoadConfig() (*GlobalConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func SaveConfig(cfg *GlobalConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	// The DSN may carry credentials.
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

func NormalizeWorkspaceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("workspace name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", errors.New("workspace name must be a plain directory name")
	}
	return name, nil
}

func WorkspaceDir(name string) (string, error) {
	name, err := NormalizeWorkspaceName(name)
	if err != nil {
		return "", err
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "workspaces", name), nil
}

func ListWorkspaces() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	out := []string{}
	ents, err := os.ReadDir(filepath.Join(dir, "workspaces"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, err
	}
	for _, e := range ents {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
