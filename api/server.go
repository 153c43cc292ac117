// Package api serves the conversion, transcript and session endpoints over
// HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"markserve/convert"
	"markserve/internal/apperr"
	"markserve/storage"
	"markserve/youtube"
)

// Transcriber fetches YouTube transcripts. *youtube.Orchestrator
// implements it.
type Transcriber interface {
	Transcript(ctx context.Context, rawURL string) (*youtube.TranscriptResult, error)
}

// Deps are the collaborators of a Server. Converter may be nil, in which
// case the conversion endpoints answer 500. A nil Root is replaced by an
// unconfigured one that is not persisted.
type Deps struct {
	Transcripts Transcriber
	Converter   convert.Converter
	Root        *storage.Root
	Sessions    *storage.SessionStore
	Logger      *slog.Logger
	// MaxUploadBytes caps multipart bodies. Zero means 100 MiB.
	MaxUploadBytes int64
}

// Server holds the request handlers.
type Server struct {
	transcripts Transcriber
	converter   convert.Converter
	root        *storage.Root
	sessions    *storage.SessionStore
	logger      *slog.Logger
	maxUpload   int64
}

const defaultMaxUpload = 100 << 20

// NewServer creates a server from deps.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	root := deps.Root
	if root == nil {
		root = storage.NewRoot("", logger)
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = storage.NewSessionStore(root, logger)
	}
	return &Server{
		transcripts: deps.Transcripts,
		converter:   deps.Converter,
		root:        root,
		sessions:    sessions,
		logger:      logger,
		maxUpload:   maxUpload,
	}
}

// NewRouter constructs a Gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	return NewServer(deps).Router()
}

// Router returns a Gin engine serving s.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(requestID(), s.accessLog(), corsPolicy(), s.recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/formats", s.handleFormats)
	r.POST("/convert", s.limitBody, s.handleConvert)
	r.POST("/youtube", s.handleYouTube)
	r.POST("/convert-multiple", s.limitBody, s.handleConvertMultiple)

	r.POST("/set_storage_path", s.handleSetStoragePath)
	r.GET("/get_storage_path", s.handleGetStoragePath)
	r.POST("/save_session", s.handleSaveSession)
	r.GET("/load_sessions", s.handleLoadSessions)
	r.GET("/load_session/:chat_id", s.handleLoadSession)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
	return r
}

func (s *Server) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	c.Next()
}

// fail writes an error response. The status and reason come from the
// error's classification; body supplies the remaining fields.
func (s *Server) fail(c *gin.Context, err error, body gin.H) {
	classified := apperr.Classify(err)
	if body == nil {
		body = gin.H{}
	}
	body["success"] = false
	body["reason"] = classified.Reason
	if _, ok := body["error"]; !ok {
		body["error"] = err.Error()
	}

	status := classified.Status()
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
		body["reason"] = "too_large"
	}

	log := s.logger.With(
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("kind", string(classified.Kind)),
		slog.String("reason", classified.Reason),
		slog.String("error", err.Error()))
	if status >= http.StatusInternalServerError {
		log.Error("api: request failed", slog.String("path", c.FullPath()))
	} else {
		log.Info("api: request rejected", slog.String("path", c.FullPath()))
	}
	c.JSON(status, body)
}

// badRequest answers 400 with a fixed message.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}
