package web

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"deepdefender/internal/acquire"
	"deepdefender/internal/pipeline"
	"deepdefender/internal/present"
	"deepdefender/internal/preview"
)

//go:embed static/index.html
var indexHTML []byte

// multipartOverhead is the slack allowed on top of the file limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// Pipeline is the part of the orchestrator the browser surface drives.
type Pipeline interface {
	Snapshot() pipeline.State
	SubmitIfIdle(ctx context.Context, source acquire.Source) (pipeline.State, error)
	Reset() pipeline.State
	Subscribe(buffer int) (<-chan pipeline.State, func())
	Previews() *preview.Registry
}

// Options configures a Server.
type Options struct {
	Limits acquire.Limits
	Logger *zap.Logger
	Debug  bool
	Now    func() time.Time
}

// Server serves the local browser surface.
type Server struct {
	pipeline  Pipeline
	presenter present.Presenter
	limits    acquire.Limits
	logger    *zap.Logger
	now       func() time.Time
	upgrader  websocket.Upgrader
	engine    *gin.Engine
}

// New builds the gin engine for p.
func New(p Pipeline, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Limits.MaxFileSize <= 0 {
		opts.Limits.MaxFileSize = present.DefaultMaxFileSize
	}

	s := &Server{
		pipeline:  p,
		presenter: present.Presenter{MaxFileSize: opts.Limits.MaxFileSize},
		limits:    opts.Limits,
		logger:    logger.Named("web"),
		now:       opts.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: sameHostOrigin,
		},
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(s.logger))
	engine.MaxMultipartMemory = opts.Limits.MaxFileSize + multipartOverhead
	s.registerRoutes(engine)
	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/state", s.handleState)
	api.POST("/upload", s.handleUpload)
	api.POST("/reset", s.handleReset)
	api.GET("/report", s.handleReport)
	api.GET("/preview/:id", s.handlePreview)
	api.GET("/preview/:id/notes", s.handlePreviewNotes)
	api.GET("/events", s.handleEvents)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.presenter.Present(s.pipeline.Snapshot()))
}

func (s *Server) handleUpload(c *gin.Context) {
	// Early out before reading the body; SubmitIfIdle makes the final call.
	if s.pipeline.Snapshot().InFlight {
		c.JSON(http.StatusConflict, gin.H{"error": "analysis in progress"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.limits.MaxFileSize+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds size limit"})
		case errors.Is(err, http.ErrMissingFile):
			c.JSON(http.StatusOK, s.presenter.Present(s.pipeline.Snapshot()))
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload"})
		}
		return
	}

	state, err := s.pipeline.SubmitIfIdle(c.Request.Context(), acquire.Upload{Header: header, Limits: s.limits})
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "analysis in progress"})
		return
	case errors.Is(err, acquire.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds size limit"})
		return
	case err != nil:
		s.logger.Warn("upload rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, s.presenter.Present(state))
}

func (s *Server) handleReset(c *gin.Context) {
	c.JSON(http.StatusOK, s.presenter.Present(s.pipeline.Reset()))
}

func (s *Server) handleReport(c *gin.Context) {
	format, err := present.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := present.BuildReport(s.pipeline.Snapshot(), s.now())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no verdict available"})
		return
	}
	data, err := report.Render(format)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.FileName(format)+`"`)
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (s *Server) lookupPreview(c *gin.Context) (*preview.Handle, bool) {
	handle, ok := s.pipeline.Previews().Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
	}
	return handle, ok
}

func (s *Server) handlePreview(c *gin.Context) {
	handle, ok := s.lookupPreview(c)
	if !ok {
		return
	}
	data, err := handle.Bytes()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, handle.MediaType(), data)
}

func (s *Server) handlePreviewNotes(c *gin.Context) {
	handle, ok := s.lookupPreview(c)
	if !ok {
		return
	}
	notes, err := handle.CaptureNotes()
	if err != nil {
		if errors.Is(err, preview.ErrReleased) {
			c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
			return
		}
		s.logger.Debug("capture notes unavailable", zap.String("preview", handle.ID()), zap.Error(err))
	}
	if notes == nil {
		notes = []preview.Note{}
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	origin = strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://")
	return strings.EqualFold(origin, r.Host)
}

func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
