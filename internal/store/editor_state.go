package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const editorStateFileName = "editor_state.json"

// EditorState stores the last editor location for restoring it on relaunch.
// It is best effort: callers should tolerate missing/invalid data.
type EditorState struct {
	Version int `json:"version"`

	// Location is the editor path, e.g. /tools/cog/<series>/editor/<image>?group=true.
	Location string `json:"location,omitempty"`

	// Zoom is the last zoom level in percent (100 = fit).
	Zoom int `json:"zoom,omitempty"`
}

func (s *Store) editorStatePath() string {
	return filepath.Join(s.Dir, editorStateFileName)
}

func (s *Store) LoadEditorState() (*EditorState, error) {
	b, err := os.ReadFile(s.editorStatePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &EditorState{Version: 1}, nil
		}
		return nil, err
	}
	var st EditorState
	if err := json.Unmarshal(b, &st); err != nil {
		// Corrupted file: treat as missing.
		return &EditorState{Version: 1}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	st.Location = strings.TrimSpace(st.Location)
	return &st, nil
}

func (s *Store) SaveEditorState(st *EditorState) error {
	if st == nil {
		return nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(s.Dir, editorStateFileName+".*.tmp", s.editorStatePath(), b, 0o644)
}
