// Package server exposes the actions API over HTTP for remote editors.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"cog-cli/internal/actions"
	"cog-cli/internal/editor"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxBody bounds request bodies; morph uploads carry a whole PNG.
const maxBody = 64 << 20

type Config struct {
	Addr    string
	Actions actions.Actions
	// Blobs serves image bytes. Defaults to Actions when it implements actions.Blobs.
	Blobs  actions.Blobs
	Policy editor.Policy
	Log    *zap.Logger
}

type Server struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		return nil, errors.New("server: addr is empty")
	}
	if cfg.Actions == nil {
		return nil, errors.New("server: no actions backend")
	}
	if cfg.Blobs == nil {
		if b, ok := cfg.Actions.(actions.Blobs); ok {
			cfg.Blobs = b
		}
	}
	if cfg.Policy == (editor.Policy{}) {
		cfg.Policy = editor.EditorPolicy()
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{cfg: cfg, log: log}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/series/{id}", s.handleGetSeries).Methods(http.MethodGet)
	api.HandleFunc("/series/{id}/images", s.handleListImages).Methods(http.MethodGet)
	api.HandleFunc("/series/{id}/tags", s.handleListTags).Methods(http.MethodGet)
	api.HandleFunc("/series/{id}/image-tags", s.handleImageTags).Methods(http.MethodGet)
	api.HandleFunc("/series/{id}/primary", s.handleSetPrimary).Methods(http.MethodPost)
	api.HandleFunc("/groups", s.handleSetGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id}/images", s.handleListGroup).Methods(http.MethodGet)
	api.HandleFunc("/images/{id}", s.handleDeleteImage).Methods(http.MethodDelete)
	api.HandleFunc("/images/{id}/versions", s.handleVersions).Methods(http.MethodGet)
	api.HandleFunc("/images/{id}/rating", s.handleSetRating).Methods(http.MethodPost)
	api.HandleFunc("/images/{id}/tags/{tag}", s.handleAddTag).Methods(http.MethodPost)
	api.HandleFunc("/images/{id}/tags/{tag}", s.handleRemoveTag).Methods(http.MethodDelete)
	api.HandleFunc("/images/{id}/morph", s.handleMorph).Methods(http.MethodPost)
	api.HandleFunc("/images/{id}/refine", s.handleRefine).Methods(http.MethodPost)
	api.HandleFunc("/images/{id}/touchup", s.handleTouchup).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}/duplicate", s.handleDuplicateJob).Methods(http.MethodPost)
	api.HandleFunc("/blobs/{ref:.+}", s.handleBlob).Methods(http.MethodGet)

	r.HandleFunc("/tools/cog/{series}/editor", s.handleEditor).Methods(http.MethodGet)
	r.HandleFunc("/tools/cog/{series}/editor/{image}", s.handleEditor).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("serving", zap.String("addr", s.cfg.Addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, env actions.Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeOK(w http.ResponseWriter, data any) {
	env := actions.Envelope{Success: true}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			writeFail(w, http.StatusInternalServerError, err.Error())
			return
		}
		env.Data = b
	}
	writeJSON(w, http.StatusOK, env)
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, actions.Envelope{Error: msg})
}

// writeErr maps an action failure to a status. Expected failures are the
// caller's problem; anything else is ours.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var ae *actions.Error
	switch {
	case errors.As(err, &ae):
		status := http.StatusUnprocessableEntity
		if strings.Contains(ae.Msg, "not found") {
			status = http.StatusNotFound
		}
		writeFail(w, status, ae.Msg)
	case errors.Is(err, context.Canceled):
		writeFail(w, http.StatusRequestTimeout, "request cancelled")
	default:
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeFail(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Blobs == nil {
		writeFail(w, http.StatusNotFound, "no blob store")
		return
	}
	ref := mux.Vars(r)["ref"]
	b, err := s.cfg.Blobs.ReadBlob(r.Context(), ref)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	ct := mime.TypeByExtension(filepath.Ext(ref))
	if ct == "" {
		ct = http.DetectContentType(b)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
