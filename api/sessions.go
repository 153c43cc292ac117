package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"markserve/storage"
)

type storagePathRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleSetStoragePath(c *gin.Context) {
	var req storagePathRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		badRequest(c, "No path provided")
		return
	}

	path, err := s.root.Set(req.Path)
	if err != nil {
		var rootErr *storage.RootError
		if errors.As(err, &rootErr) {
			badRequest(c, rootMessage(rootErr))
			return
		}
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    path,
		"message": "Storage path configured successfully",
	})
}

func rootMessage(err *storage.RootError) string {
	switch {
	case errors.Is(err.Problem, storage.ErrNotDirectory):
		return "Path is not a directory"
	case errors.Is(err.Problem, storage.ErrNotWritable):
		return "Directory is not writable: " + errString(err.Err)
	}
	return "Cannot create directory: " + errString(err.Err)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func (s *Server) handleGetStoragePath(c *gin.Context) {
	path, ok := s.root.Get()
	var value any
	if ok {
		value = path
	}
	c.JSON(http.StatusOK, gin.H{
		"path":                 value,
		"using_server_storage": ok,
	})
}

// requireRoot answers 400 when no storage root is configured.
func (s *Server) requireRoot(c *gin.Context) bool {
	if _, ok := s.root.Get(); !ok {
		badRequest(c, "Storage path not configured")
		return false
	}
	return true
}

type saveSessionRequest struct {
	ChatID    storage.ChatID    `json:"chat_id"`
	ChatTitle string            `json:"chat_title"`
	CreatedAt string            `json:"created_at"`
	Messages  []json.RawMessage `json:"messages"`
}

func (s *Server) handleSaveSession(c *gin.Context) {
	if !s.requireRoot(c) {
		return
	}
	var req saveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON payload: "+err.Error())
		return
	}
	if req.ChatID == "" {
		badRequest(c, "No chat_id provided")
		return
	}

	dir, err := s.sessions.Save(c.Request.Context(), storage.Session{
		ChatID:    req.ChatID,
		Title:     req.ChatTitle,
		CreatedAt: req.CreatedAt,
		Messages:  req.Messages,
	})
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"chat_id": req.ChatID,
		"path":    dir,
		"message": "Session saved to " + dir,
	})
}

func (s *Server) handleLoadSessions(c *gin.Context) {
	if !s.requireRoot(c) {
		return
	}
	sessions, err := s.sessions.LoadAll(c.Request.Context())
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	if sessions == nil {
		sessions = []storage.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleLoadSession(c *gin.Context) {
	if !s.requireRoot(c) {
		return
	}
	sess, err := s.sessions.LoadOne(c.Request.Context(), storage.ChatID(c.Param("chat_id")))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.fail(c, err, gin.H{"error": "Session not found"})
			return
		}
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}
