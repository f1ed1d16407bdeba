package http

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/blob"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// AttachmentHandlers accepts uploads and serves stored attachment bytes.
type AttachmentHandlers struct {
	blobs *blob.Store
	log   *zerolog.Logger
}

// NewAttachmentHandlers creates attachment handlers backed by blobs.
func NewAttachmentHandlers(blobs *blob.Store, logger *zerolog.Logger) *AttachmentHandlers {
	return &AttachmentHandlers{blobs: blobs, log: logger}
}

// AttachmentResponse describes an uploaded attachment.
type AttachmentResponse struct {
	ID           int64  `json:"id"`
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	ByteSize     int64  `json:"byte_size"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Upload stores a multipart "file" field and returns its attachment id,
// to be referenced from message_create.
// POST /api/attachments
func (h *AttachmentHandlers) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}

	f, err := header.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("open uploaded file")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file"})
		return
	}
	defer f.Close()

	a, err := h.blobs.Put(c.Request.Context(), header.Filename, f)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
		case errors.Is(err, blob.ErrEmpty):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Str("filename", header.Filename).Msg("failed to store attachment")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, AttachmentResponse{
		ID:           a.ID,
		Filename:     a.Filename,
		ContentType:  a.ContentType,
		ByteSize:     a.ByteSize,
		URL:          h.blobs.URL(a),
		ThumbnailURL: h.blobs.ThumbnailURL(a),
	})
}

// Download serves the bytes of an attachment.
// GET /attachments/:key
func (h *AttachmentHandlers) Download(c *gin.Context) {
	a, data, err := h.blobs.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "attachment not found"})
			return
		}
		h.log.Error().Err(err).Str("key", c.Param("key")).Msg("failed to read attachment")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Header("Cache-Control", "private, max-age=86400")
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": a.Filename}))
	c.Data(http.StatusOK, a.ContentType, data)
}
