package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkspaceDir_UnderConfigDir(t *testing.T) {
	cfgDir := t.TempDir()
	t.Setenv("COG_CONFIG_DIR", cfgDir)

	dir, err := WorkspaceDir(" team ")
	if err != nil {
		t.Fatalf("WorkspaceDir: %v", err)
	}
	if want := filepath.Join(cfgDir, "workspaces", "team"); dir != want {
		t.Fatalf("expected %q, got %q", want, dir)
	}

	for _, bad := range []string{"", "..", "a/b", `a\b`} {
		if _, err := WorkspaceDir(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestListWorkspaces_SortedDirsOnly(t *testing.T) {
	cfgDir := t.TempDir()
	t.Setenv("COG_CONFIG_DIR", cfgDir)

	ws, err := ListWorkspaces()
	if err != nil {
		t.Fatalf("ListWorkspaces: %v", err)
	}
	if len(ws) != 0 {
		t.Fatalf("expected no workspaces; got %#v", ws)
	}

	root := filepath.Join(cfgDir, "workspaces")
	for _, name := range []string{"team", "default"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ws, err = ListWorkspaces()
	if err != nil {
		t.Fatalf("ListWorkspaces: %v", err)
	}
	if len(ws) != 2 || ws[0] != "default" || ws[1] != "team" {
		t.Fatalf("unexpected workspaces: %#v", ws)
	}
}
