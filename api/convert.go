package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"markserve/convert"
	"markserve/internal/apperr"
	"markserve/storage"
	"markserve/youtube"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":              "healthy",
		"converter_available": s.converter != nil,
		"supported_formats":   convert.FormatNames(),
	})
}

func (s *Server) handleFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":    convert.SupportedFormats,
		"categories": convert.Categories,
	})
}

type urlRequest struct {
	URL *string `json:"url"`
}

// handleConvert converts an uploaded file, a web page or a YouTube video.
func (s *Server) handleConvert(c *gin.Context) {
	if s.converter == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Converter not available"})
		return
	}

	switch c.ContentType() {
	case gin.MIMEMultipartPOSTForm:
		fh, err := c.FormFile("file")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				badRequest(c, "Invalid request format. Send file or JSON with url")
				return
			}
			s.fail(c, apperr.New(apperr.KindInvalidInput, "bad_multipart", err), nil)
			return
		}
		s.convertUpload(c, fh)

	case gin.MIMEJSON:
		var req urlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request format. Send file or JSON with url")
			return
		}
		if req.URL == nil {
			badRequest(c, "Missing required field: url or file")
			return
		}
		if youtube.IsYouTubeURL(*req.URL) {
			s.convertYouTube(c, *req.URL)
			return
		}
		s.convertURL(c, *req.URL)

	default:
		badRequest(c, "Invalid request format. Send file or JSON with url")
	}
}

func (s *Server) convertUpload(c *gin.Context, fh *multipart.FileHeader) {
	if fh.Filename == "" {
		badRequest(c, "No file selected")
		return
	}
	s.logger.Info("api: converting uploaded file", slog.String("filename", fh.Filename))

	dir, err := os.MkdirTemp("", "markserve-upload-")
	if err != nil {
		s.fail(c, err, gin.H{"error": "Conversion failed: " + err.Error()})
		return
	}
	defer os.RemoveAll(dir)

	path, err := spool(c, fh, dir)
	if err != nil {
		s.fail(c, err, gin.H{"error": "Conversion failed: " + err.Error()})
		return
	}
	res, err := s.converter.Convert(c.Request.Context(), path)
	if err != nil {
		s.fail(c, err, gin.H{"error": "Conversion failed: " + err.Error(), "filename": fh.Filename})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"text":     res.Text,
		"markdown": res.Markdown,
		"title":    res.Title,
		"filename": fh.Filename,
	})
}

// spool saves an uploaded file into dir under its sanitized name.
func spool(c *gin.Context, fh *multipart.FileHeader, dir string) (string, error) {
	path := filepath.Join(dir, storage.Sanitize(fh.Filename))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

func (s *Server) convertURL(c *gin.Context, rawURL string) {
	s.logger.Info("api: converting url", slog.String("url", rawURL))

	res, err := s.converter.Convert(c.Request.Context(), rawURL)
	if err != nil {
		s.fail(c, err, gin.H{"error": "Conversion failed", "message": err.Error(), "url": rawURL})
		return
	}

	switch err := convert.ValidateURLContent(res.Text); {
	case errors.Is(err, convert.ErrNoContent):
		s.fail(c, err, gin.H{"error": "No content extracted from URL", "url": rawURL})
		return
	case errors.Is(err, convert.ErrErrorPage):
		s.fail(c, err, gin.H{
			"error":   "URL conversion failed - unable to extract content",
			"message": "The content could not be properly extracted. For YouTube videos, ensure captions/subtitles are available.",
			"url":     rawURL,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"text":       res.Text,
		"markdown":   res.Markdown,
		"title":      res.Title,
		"source_url": rawURL,
		"type":       "url",
	})
}

func (s *Server) convertYouTube(c *gin.Context, rawURL string) {
	result, err := s.transcript(c, rawURL)
	if err != nil {
		s.fail(c, err, gin.H{"error": "YouTube transcript extraction failed", "message": err.Error(), "url": rawURL})
		return
	}
	body := transcriptBody(result)
	body["source_url"] = result.URL
	c.JSON(http.StatusOK, body)
}

// handleYouTube extracts a transcript from a YouTube URL.
func (s *Server) handleYouTube(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == nil || *req.URL == "" {
		badRequest(c, "Missing YouTube URL")
		return
	}
	rawURL := *req.URL
	if !youtube.IsYouTubeURL(rawURL) {
		badRequest(c, "Invalid YouTube URL")
		return
	}

	result, err := s.transcript(c, rawURL)
	if err != nil {
		s.fail(c, err, gin.H{"error": "YouTube conversion failed", "message": err.Error(), "url": rawURL})
		return
	}
	body := transcriptBody(result)
	body["url"] = result.URL
	c.JSON(http.StatusOK, body)
}

func (s *Server) transcript(c *gin.Context, rawURL string) (*youtube.TranscriptResult, error) {
	if s.transcripts == nil {
		return nil, apperr.New(apperr.KindConfiguration, "transcripts_unavailable", errors.New("transcript extraction not configured"))
	}
	s.logger.Info("api: extracting youtube transcript", slog.String("url", rawURL))
	return s.transcripts.Transcript(c.Request.Context(), rawURL)
}

func transcriptBody(r *youtube.TranscriptResult) gin.H {
	body := gin.H{
		"success":      true,
		"text":         r.Text,
		"markdown":     r.Text,
		"title":        fmt.Sprintf("YouTube Transcript (%s)", r.VideoID),
		"type":         "youtube",
		"video_id":     string(r.VideoID),
		"language":     r.Language,
		"is_generated": r.IsGenerated,
		"source":       r.Source,
	}
	if r.Title != "" {
		body["video_title"] = r.Title
	}
	return body
}

// handleConvertMultiple converts every file of a multipart "files" field.
func (s *Server) handleConvertMultiple(c *gin.Context) {
	if s.converter == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Converter not available"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "No files provided")
		return
	}
	files, ok := form.File["files"]
	if !ok {
		badRequest(c, "No files provided")
		return
	}
	if len(files) == 0 {
		badRequest(c, "No files selected")
		return
	}

	dir, err := os.MkdirTemp("", "markserve-batch-")
	if err != nil {
		s.fail(c, err, gin.H{"error": "Batch conversion failed: " + err.Error()})
		return
	}
	defer os.RemoveAll(dir)

	var (
		items    []convert.BatchItem
		spoolErr = map[int]error{}
		order    []int
	)
	for i, fh := range files {
		if fh.Filename == "" {
			continue
		}
		order = append(order, i)
		sub := filepath.Join(dir, strconv.Itoa(i))
		if err := os.Mkdir(sub, 0o700); err != nil {
			spoolErr[i] = err
			continue
		}
		path, err := spool(c, fh, sub)
		if err != nil {
			spoolErr[i] = err
			continue
		}
		items = append(items, convert.BatchItem{Name: strconv.Itoa(i), Source: path})
	}

	converted := map[string]convert.BatchResult{}
	for _, r := range convert.ConvertBatch(c.Request.Context(), s.converter, items) {
		converted[r.Name] = r
	}

	results := make([]gin.H, 0, len(order))
	for _, i := range order {
		name := files[i].Filename
		err := spoolErr[i]
		r := converted[strconv.Itoa(i)]
		if err == nil {
			err = r.Err
		}
		if err != nil {
			s.logger.Warn("api: batch item failed", slog.String("filename", name), slog.String("error", err.Error()))
			results = append(results, gin.H{"filename": name, "error": err.Error(), "success": false})
			continue
		}
		results = append(results, gin.H{
			"filename": name,
			"text":     r.Result.Text,
			"markdown": r.Result.Markdown,
			"title":    r.Result.Title,
			"success":  true,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "files": results})
}
