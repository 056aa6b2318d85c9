package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/satindergrewal/slidestream/internal/capture"
	"github.com/satindergrewal/slidestream/internal/export"
	"github.com/satindergrewal/slidestream/internal/logger"
	"github.com/satindergrewal/slidestream/internal/progress"
	"github.com/satindergrewal/slidestream/internal/render"
	"github.com/satindergrewal/slidestream/internal/slides"
)

// DeckLoader reads a deck directory. *slides.Loader implements it.
type DeckLoader interface {
	Load(ctx context.Context, dir string) (*slides.Store, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	// InputRoot bounds the deck directories clients may ask for.
	InputRoot string
	OutputDir string
	Defaults  export.Options

	Loader   DeckLoader
	Manager  *export.Manager
	Tracker  *progress.Tracker
	Progress http.Handler
	Monitor  http.Handler
	Offer    http.Handler
	Logger   logger.Logger

	// Listeners reports monitor audience counts by transport.
	Listeners func() map[string]int
}

// Server exposes exports over HTTP.
type Server struct {
	deps    Deps
	baseCtx context.Context

	mu         sync.Mutex
	latest     *export.Result
	latestPath string
}

// NewServer creates a Server. Exports started through it run under ctx,
// not under the request that started them.
func NewServer(ctx context.Context, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Server{deps: deps, baseCtx: ctx}
}

// Routes returns the gin engine serving every endpoint.
func (s *Server) Routes() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/api/status", s.handleStatus)
	engine.POST("/api/exports", s.handleStartExport)
	engine.POST("/api/exports/cancel", s.handleCancelExport)
	engine.GET("/api/exports/latest/download", s.handleDownload)
	if s.deps.Progress != nil {
		engine.GET("/ws/progress", gin.WrapH(s.deps.Progress))
	}
	if s.deps.Monitor != nil {
		engine.GET("/monitor/stream", gin.WrapH(s.deps.Monitor))
	}
	if s.deps.Offer != nil {
		engine.POST("/monitor/offer", gin.WrapH(s.deps.Offer))
	}
	return engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.deps.Logger.Debug(c.Request.Context(), "%s %s -> %d (%v)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sessionView struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Position   int    `json:"position"`
	Total      int    `json:"total"`
	Percent    int    `json:"percent"`
	Resolution string `json:"resolution,omitempty"`
	Error      string `json:"error,omitempty"`
}

func viewOf(sess *export.Session) *sessionView {
	if sess == nil {
		return nil
	}
	pos, total := sess.Position()
	v := &sessionView{
		ID:       sess.ID,
		State:    sess.State().String(),
		Position: pos,
		Total:    total,
		Percent:  sess.Percent(),
		Error:    export.UserMessage(sess.Err()),
	}
	if res := sess.Resolution(); res.Width > 0 {
		v.Resolution = res.String()
	}
	return v
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{
		"busy":   s.deps.Manager.Busy(),
		"active": viewOf(s.deps.Manager.Active()),
		"last":   viewOf(s.deps.Manager.Last()),
	}
	if s.deps.Listeners != nil {
		resp["listeners"] = s.deps.Listeners()
	}
	if s.deps.Tracker != nil {
		if ev, ok := s.deps.Tracker.Latest(); ok {
			resp["progress"] = ev
		}
	}
	s.mu.Lock()
	if s.latest != nil {
		resp["latest"] = gin.H{
			"session_id":   s.latest.SessionID,
			"filename":     s.latest.Filename,
			"size":         len(s.latest.Data),
			"duration_ms":  s.latest.Duration.Milliseconds(),
			"video_frames": s.latest.VideoFrames,
			"resolution":   s.latest.Resolution.String(),
			"path":         s.latestPath,
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, resp)
}

type startExportRequest struct {
	DeckDir          string `json:"deck_dir"`
	AspectRatio      string `json:"aspect_ratio"`
	Scale            int    `json:"scale"`
	Format           string `json:"format"`
	Monitor          bool   `json:"monitor"`
	RequireNarration *bool  `json:"require_narration"`
}

func (s *Server) options(req startExportRequest) (export.Options, error) {
	opts := s.deps.Defaults
	if req.AspectRatio != "" {
		ratio, err := render.ParseAspectRatio(req.AspectRatio)
		if err != nil {
			return opts, err
		}
		opts.AspectRatio = ratio
	}
	if req.Scale != 0 {
		opts.Scale = req.Scale
	}
	if req.Format != "" {
		f, err := capture.ParseFormat(req.Format)
		if err != nil {
			return opts, err
		}
		opts.Format = f
	}
	opts.Monitor = req.Monitor
	if req.RequireNarration != nil {
		opts.RequireNarration = *req.RequireNarration
	}
	return opts, nil
}

// deckPath resolves a client-supplied deck directory inside InputRoot.
func (s *Server) deckPath(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("deck_dir required")
	}
	if filepath.IsAbs(dir) {
		return "", errors.New("deck_dir must be relative to the input directory")
	}
	root := filepath.Clean(s.deps.InputRoot)
	full := filepath.Join(root, dir)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("deck_dir escapes the input directory")
	}
	return full, nil
}

func (s *Server) handleStartExport(c *gin.Context) {
	var req startExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	dir, err := s.deckPath(req.DeckDir)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts, err := s.options(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": export.UserMessage(err)})
		return
	}
	if s.deps.Manager.Busy() {
		c.JSON(http.StatusConflict, gin.H{"error": export.UserMessage(export.ErrBusy)})
		return
	}

	store, err := s.deps.Loader.Load(c.Request.Context(), dir)
	if err != nil {
		s.deps.Logger.Warn(c.Request.Context(), "load deck %s: %v", dir, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("Deck could not be loaded: %v", err)})
		return
	}

	sess, outcome, err := s.deps.Manager.Start(s.baseCtx, store, opts)
	switch {
	case errors.Is(err, export.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": export.UserMessage(err)})
		return
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": export.UserMessage(err)})
		return
	case sess == nil:
		c.JSON(http.StatusOK, gin.H{"status": "nothing to export"})
		return
	}

	go s.collect(outcome)
	c.JSON(http.StatusAccepted, gin.H{"session_id": sess.ID, "state": sess.State().String()})
}

// collect keeps the finished video for download and writes it to OutputDir.
// A failed export withdraws the previous download.
func (s *Server) collect(outcome <-chan export.Outcome) {
	o := <-outcome
	if o.Err != nil || o.Result == nil {
		s.mu.Lock()
		s.latest = nil
		s.latestPath = ""
		s.mu.Unlock()
		return
	}
	path := ""
	if s.deps.OutputDir != "" {
		p, err := export.Save(s.deps.OutputDir, o.Result)
		if err != nil {
			s.deps.Logger.Error(s.baseCtx, "save %s: %v", o.Result.Filename, err)
		} else {
			path = p
		}
	}
	s.mu.Lock()
	s.latest = o.Result
	s.latestPath = path
	s.mu.Unlock()
}

func (s *Server) handleCancelExport(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": s.deps.Manager.Cancel()})
}

func (s *Server) handleDownload(c *gin.Context) {
	s.mu.Lock()
	res := s.latest
	s.mu.Unlock()
	if res == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no finished export"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	c.Header("X-Session-ID", res.SessionID)
	c.Data(http.StatusOK, res.Format.MIMEType(), res.Data)
}
