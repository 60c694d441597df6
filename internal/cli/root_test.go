package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cog-cli/internal/editor"
	"cog-cli/internal/model"
	"cog-cli/internal/store"
)

// newEnv isolates config and workspace dirs and returns the workspace dir.
func newEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("COG_CONFIG_DIR", t.TempDir())
	t.Setenv("COG_REMOTE", "")
	t.Setenv("COG_FORMAT", "")
	t.Setenv("GEMINI_API_KEY", "")
	return t.TempDir()
}

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

func mustRun(t *testing.T, args ...string) []byte {
	t.Helper()
	out, errOut, err := runCLI(t, args)
	if err != nil {
		t.Fatalf("cog %s: %v\nstderr: %s", strings.Join(args, " "), err, errOut)
	}
	return out
}

func decodeData(t *testing.T, out []byte, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("expected JSON output; got %q: %v", out, err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 6, 4))
	img.Set(2, 2, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// seed creates a series with n imported images and returns its id and image ids.
func seed(t *testing.T, dir string, n int) (string, []string) {
	t.Helper()
	var sr model.Series
	decodeData(t, mustRun(t, "--dir", dir, "series", "create", "--title", "Harbor", "--tag", "boats"), &sr)
	if sr.ID == "" {
		t.Fatalf("expected series id")
	}
	args := []string{"--dir", dir, "images", "import", sr.ID, "--prompt", "boats at dusk"}
	src := t.TempDir()
	for i := 0; i < n; i++ {
		args = append(args, writePNG(t, src, "im"+string(rune('a'+i))+".png"))
	}
	var ims []model.Image
	decodeData(t, mustRun(t, args...), &ims)
	if len(ims) != n {
		t.Fatalf("expected %d imported images; got %d", n, len(ims))
	}
	ids := make([]string, 0, n)
	for _, im := range ims {
		ids = append(ids, im.ID)
	}
	return sr.ID, ids
}

func TestSeriesImportRateList(t *testing.T) {
	dir := newEnv(t)
	seriesID, ids := seed(t, dir, 3)

	mustRun(t, "--dir", dir, "images", "rate", ids[1], "4")

	var ims []model.Image
	decodeData(t, mustRun(t, "--dir", dir, "images", "list", seriesID), &ims)
	if len(ims) != 3 {
		t.Fatalf("expected 3 images; got %d", len(ims))
	}
	for i, im := range ims {
		if im.ID != ids[i] {
			t.Fatalf("expected import order at %d; got %s", i, im.ID)
		}
	}
	if ims[1].Rating != 4 {
		t.Fatalf("expected rating 4; got %d", ims[1].Rating)
	}
	if ims[0].Prompt != "boats at dusk" {
		t.Fatalf("expected prompt to be stored; got %q", ims[0].Prompt)
	}

	out := mustRun(t, "--dir", dir, "--format", "yaml", "images", "list", seriesID)
	if !strings.Contains(string(out), "rating: 4") {
		t.Fatalf("expected yaml output with rating; got %s", out)
	}

	human := mustRun(t, "--dir", dir, "images", "list", seriesID, "--human")
	if lines := strings.Split(strings.TrimSpace(string(human)), "\n"); len(lines) != 3 {
		t.Fatalf("expected one line per image; got %q", human)
	}
}

func TestImagesRate_RejectsOutOfRange(t *testing.T) {
	dir := newEnv(t)
	_, ids := seed(t, dir, 1)

	_, errOut, err := runCLI(t, []string{"--dir", dir, "images", "rate", ids[0], "6"})
	if err == nil {
		t.Fatalf("expected error for rating 6")
	}
	if !strings.Contains(string(errOut), "rating must be 0-5") {
		t.Fatalf("expected range message on stderr; got %q", errOut)
	}
}

func TestSeriesSetPrimaryAndDelete(t *testing.T) {
	dir := newEnv(t)
	seriesID, ids := seed(t, dir, 2)

	var sr model.Series
	decodeData(t, mustRun(t, "--dir", dir, "series", "set-primary", seriesID, ids[0]), &sr)
	if sr.PrimaryImageID == nil || *sr.PrimaryImageID != ids[0] {
		t.Fatalf("expected primary %s; got %v", ids[0], sr.PrimaryImageID)
	}

	_, _, err := runCLI(t, []string{"--dir", dir, "series", "set-primary", seriesID})
	if err == nil || !strings.Contains(err.Error(), "missing image-id") {
		t.Fatalf("expected missing image-id error; got %v", err)
	}

	var res struct {
		PrimaryCleared bool `json:"primaryCleared"`
	}
	decodeData(t, mustRun(t, "--dir", dir, "images", "delete", ids[0]), &res)
	if !res.PrimaryCleared {
		t.Fatalf("expected primary to be cleared by delete")
	}
}

func TestImagesDelete_BatchReportsFailures(t *testing.T) {
	dir := newEnv(t)
	seriesID, ids := seed(t, dir, 2)

	out, _, err := runCLI(t, []string{"--dir", dir, "images", "delete", ids[0], "img-missing"})
	var be batchError
	if !errors.As(err, &be) || be.failed != 1 || be.total != 2 {
		t.Fatalf("expected 1 of 2 failed; got %v", err)
	}
	var agg batchOutput
	decodeData(t, out, &agg)
	if len(agg.Succeeded) != 1 || agg.Succeeded[0] != ids[0] {
		t.Fatalf("expected %s to succeed; got %v", ids[0], agg.Succeeded)
	}
	if _, ok := agg.Failed["img-missing"]; !ok {
		t.Fatalf("expected img-missing in failures; got %v", agg.Failed)
	}

	var ims []model.Image
	decodeData(t, mustRun(t, "--dir", dir, "images", "list", seriesID), &ims)
	if len(ims) != 1 || ims[0].ID != ids[1] {
		t.Fatalf("expected only %s to remain; got %v", ids[1], ims)
	}
}

func TestTagsAndGroups(t *testing.T) {
	dir := newEnv(t)
	seriesID, ids := seed(t, dir, 3)

	var tag model.Tag
	decodeData(t, mustRun(t, "--dir", dir, "tags", "create", "sunset", "--series", seriesID), &tag)
	if !tag.Local() {
		t.Fatalf("expected a series-local tag; got %+v", tag)
	}
	mustRun(t, "--dir", dir, "images", "tag", tag.ID, ids[0], ids[2])

	var tags []model.Tag
	decodeData(t, mustRun(t, "--dir", dir, "tags", "list"), &tags)
	if len(tags) != 0 {
		t.Fatalf("expected local tag to be hidden without --series; got %v", tags)
	}

	var grp struct {
		GroupID string `json:"groupId"`
	}
	decodeData(t, mustRun(t, "--dir", dir, "images", "group", ids[0], ids[1]), &grp)
	if grp.GroupID == "" {
		t.Fatalf("expected a new group id")
	}

	st, err := store.Open(t.Context(), store.Options{Dir: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()
	links, err := st.ImageTagIDs(t.Context(), seriesID)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(links[ids[0]]) != 1 || len(links[ids[2]]) != 1 || len(links[ids[1]]) != 0 {
		t.Fatalf("expected tag on first and last image; got %v", links)
	}
	members, err := st.ListGroupImages(t.Context(), grp.GroupID)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 group members; got %d", len(members))
	}
}

func TestJobsCreateDuplicateCancel(t *testing.T) {
	dir := newEnv(t)
	seriesID, _ := seed(t, dir, 1)

	var j model.Job
	decodeData(t, mustRun(t, "--dir", dir, "jobs", "create", seriesID,
		"--step", "generate:a lighthouse", "--step", "upscale:x2"), &j)
	if len(j.Steps) != 2 || j.Status != model.JobPending {
		t.Fatalf("expected pending job with 2 steps; got %+v", j)
	}

	var dup struct {
		JobID string `json:"jobId"`
	}
	decodeData(t, mustRun(t, "--dir", dir, "jobs", "duplicate", j.ID), &dup)
	if dup.JobID == "" || dup.JobID == j.ID {
		t.Fatalf("expected a new job id; got %q", dup.JobID)
	}

	var cancelled model.Job
	decodeData(t, mustRun(t, "--dir", dir, "jobs", "cancel", j.ID), &cancelled)
	if cancelled.Status != model.JobCancelled {
		t.Fatalf("expected cancelled; got %s", cancelled.Status)
	}
	for _, st := range cancelled.Steps {
		if st.Status != model.JobCancelled {
			t.Fatalf("expected steps cancelled; got %s", st.Status)
		}
	}

	var jobs []model.Job
	decodeData(t, mustRun(t, "--dir", dir, "jobs", "list", seriesID), &jobs)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs; got %d", len(jobs))
	}
}

func TestRemoteRejectsLocalOnlyCommands(t *testing.T) {
	newEnv(t)
	_, _, err := runCLI(t, []string{"--remote", "http://127.0.0.1:1", "series", "list"})
	if !errors.Is(err, errRemote) {
		t.Fatalf("expected errRemote; got %v", err)
	}
}

func TestUnknownFormat(t *testing.T) {
	dir := newEnv(t)
	_, _, err := runCLI(t, []string{"--dir", dir, "--format", "edn", "series", "list"})
	if err == nil || !strings.Contains(err.Error(), "expected json|yaml") {
		t.Fatalf("expected unknown format error; got %v", err)
	}
}

func TestWorkspaceUseAndCurrent(t *testing.T) {
	newEnv(t)

	mustRun(t, "workspace", "use", "studio")
	var cur struct {
		Workspace string `json:"workspace"`
		Dir       string `json:"dir"`
	}
	decodeData(t, mustRun(t, "workspace", "current"), &cur)
	if cur.Workspace != "studio" {
		t.Fatalf("expected current workspace studio; got %q", cur.Workspace)
	}
	if fi, err := os.Stat(cur.Dir); err != nil || !fi.IsDir() {
		t.Fatalf("expected workspace dir %s to exist: %v", cur.Dir, err)
	}

	var list struct {
		Workspaces []string `json:"workspaces"`
	}
	decodeData(t, mustRun(t, "workspace", "list"), &list)
	if len(list.Workspaces) != 1 || list.Workspaces[0] != "studio" {
		t.Fatalf("expected [studio]; got %v", list.Workspaces)
	}

	if _, _, err := runCLI(t, []string{"workspace", "use", "../up"}); err == nil {
		t.Fatalf("expected invalid workspace name to fail")
	}
}

func TestParseStep(t *testing.T) {
	cases := []struct {
		in   string
		want model.StepConfig
		ok   bool
	}{
		{"generate:a red boat", model.GenerateStep{Prompt: "a red boat"}, true},
		{"refine: warmer", model.RefineStep{RefinementPrompt: "warmer"}, true},
		{"touchup:spot_removal", model.TouchupStep{Mode: "spot_removal"}, true},
		{"touchup:guided_edit:remove the buoy", model.TouchupStep{Mode: "guided_edit", Instruction: "remove the buoy"}, true},
		{"upscale:4", model.UpscaleStep{Factor: 4}, true},
		{"upscale:x2", model.UpscaleStep{Factor: 2}, true},
		{"upscale:1", nil, false},
		{"generate:", nil, false},
		{"paint:stuff", nil, false},
		{"generate", nil, false},
	}
	for _, tc := range cases {
		got, err := parseStep(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("parseStep(%q): expected ok=%v; got err=%v", tc.in, tc.ok, err)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("parseStep(%q): expected %#v; got %#v", tc.in, tc.want, got)
		}
	}
}

func TestPolicyFor(t *testing.T) {
	if p := policyFor(nil, false); p != editor.EditorPolicy() {
		t.Fatalf("expected editor policy; got %+v", p)
	}
	if p := policyFor(nil, true); !p.Wrap {
		t.Fatalf("expected --lightbox to wrap")
	}
	if p := policyFor(&store.EditorConfig{Variant: "Lightbox"}, false); !p.Wrap {
		t.Fatalf("expected lightbox variant to wrap")
	}

	off := false
	p := policyFor(&store.EditorConfig{GroupEditExclusive: &off, PreloadRadius: 5}, false)
	if p.GroupEditExclusive || p.PreloadRadius != 5 || p.Wrap {
		t.Fatalf("expected overrides applied on the editor policy; got %+v", p)
	}
}
