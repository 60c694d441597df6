package server

import (
	"net/http"

	"cog-cli/internal/actions"
	"cog-cli/internal/editor"
	"cog-cli/internal/model"

	"github.com/gorilla/mux"
)

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	sr, err := s.cfg.Actions.GetSeries(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, sr)
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	ims, err := s.cfg.Actions.ListImages(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, nonNil(ims))
}

func (s *Server) handleListGroup(w http.ResponseWriter, r *http.Request) {
	ims, err := s.cfg.Actions.ListGroup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, nonNil(ims))
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	ims, err := s.cfg.Actions.VersionChain(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, nonNil(ims))
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.cfg.Actions.ListTags(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	writeOK(w, tags)
}

func (s *Server) handleImageTags(w http.ResponseWriter, r *http.Request) {
	m, err := s.cfg.Actions.ImageTags(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if m == nil {
		m = map[string][]string{}
	}
	writeOK(w, m)
}

func (s *Server) handleSetRating(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating *int `json:"rating"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Rating == nil {
		writeFail(w, http.StatusBadRequest, "rating is required")
		return
	}
	if err := s.cfg.Actions.SetRating(r.Context(), mux.Vars(r)["id"], *body.Rating); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleSetPrimary(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ImageID *string `json:"imageId"`
	}
	if !decode(w, r, &body) {
		return
	}
	id := ""
	if body.ImageID != nil {
		id = *body.ImageID
	}
	if err := s.cfg.Actions.SetPrimary(r.Context(), mux.Vars(r)["id"], id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := s.cfg.Actions.AddTag(r.Context(), v["id"], v["tag"]); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := s.cfg.Actions.RemoveTag(r.Context(), v["id"], v["tag"]); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleSetGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ImageIDs []string `json:"imageIds"`
		GroupID  string   `json:"groupId"`
	}
	if !decode(w, r, &body) {
		return
	}
	if len(body.ImageIDs) == 0 {
		writeFail(w, http.StatusBadRequest, "imageIds is required")
		return
	}
	if err := s.cfg.Actions.SetGroup(r.Context(), body.ImageIDs, body.GroupID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	res, err := s.cfg.Actions.DeleteImage(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, res)
}

type idData struct {
	ID string `json:"id"`
}

func (s *Server) handleMorph(w http.ResponseWriter, r *http.Request) {
	var body actions.MorphBody
	if !decode(w, r, &body) {
		return
	}
	id, err := s.cfg.Actions.SaveMorph(r.Context(), mux.Vars(r)["id"], body.Image)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, idData{ID: id})
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req actions.RefineRequest
	if !decode(w, r, &req) {
		return
	}
	req.ImageID = mux.Vars(r)["id"]
	id, err := s.cfg.Actions.Refine(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, idData{ID: id})
}

func (s *Server) handleTouchup(w http.ResponseWriter, r *http.Request) {
	var req actions.TouchupRequest
	if !decode(w, r, &req) {
		return
	}
	req.ImageID = mux.Vars(r)["id"]
	id, err := s.cfg.Actions.Touchup(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, idData{ID: id})
}

func (s *Server) handleDuplicateJob(w http.ResponseWriter, r *http.Request) {
	id, err := s.cfg.Actions.DuplicateJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, idData{ID: id})
}

// EditorView is what a browser editor needs to render a location.
type EditorView struct {
	Location  string        `json:"location"`
	Series    model.Series  `json:"series"`
	Index     int           `json:"index"`
	Total     int           `json:"total"`
	Image     *model.Image  `json:"image,omitempty"`
	Group     []model.Image `json:"group,omitempty"`
	Versions  []model.Image `json:"versions,omitempty"`
	PrimaryID string        `json:"primaryId,omitempty"`
	Preload   []string      `json:"preload"`
	Error     string        `json:"error,omitempty"`
}

// handleEditor resolves an editor location the way the terminal editor does,
// including the fallback when the image no longer exists.
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	loc := editor.Location{
		SeriesID: v["series"],
		ImageID:  v["image"],
		Group:    r.URL.Query().Get("group") == "true",
	}
	sess, err := editor.Open(r.Context(), s.cfg.Actions, s.cfg.Policy, loc, s.log)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	defer sess.State.Close()

	st := sess.State
	sr, err := s.cfg.Actions.GetSeries(r.Context(), st.SeriesID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	view := EditorView{
		Location:  st.Location().String(),
		Series:    sr,
		Index:     st.Index,
		Total:     len(st.Images),
		Group:     st.Group,
		Versions:  st.Versions,
		PrimaryID: st.PrimaryID,
		Preload:   []string{},
		Error:     st.Err,
	}
	if im, ok := st.Displayed(); ok {
		view.Image = &im
	}
	for _, h := range editor.Plan(st) {
		view.Preload = append(view.Preload, h.ImageID)
	}
	writeOK(w, view)
}

func nonNil(ims []model.Image) []model.Image {
	if ims == nil {
		return []model.Image{}
	}
	return ims
}
