package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"filevault/internal/common"
	"filevault/internal/server/services"
)

// writeError maps service errors onto the fixed status/payload contract.
// Not-found and not-owned are already collapsed by the service layer.
func writeError(c *gin.Context, err error) {
	var ve *common.ValidationError

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Msg})
	case errors.Is(err, common.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, common.ErrNoContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "A folder doesn't have content"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (s *Server) postUpload(c *gin.Context) {
	req := &services.UploadRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		// An unreadable body gets the same treatment as absent fields; the
		// service reports the first missing field in validation order.
		req = &services.UploadRequest{}
	}

	projection, err := s.files.Upload(c.Request.Context(), c.GetHeader(TokenHeader), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, projection)
}

func (s *Server) getShow(c *gin.Context) {
	file, err := s.files.Get(c.Request.Context(), c.GetHeader(TokenHeader), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, file)
}

func (s *Server) getIndex(c *gin.Context) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil {
		page = 0
	}

	list, err := s.files.List(c.Request.Context(), c.GetHeader(TokenHeader), c.Query("parentId"), page)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (s *Server) putPublish(c *gin.Context) {
	s.setPublic(c, true)
}

func (s *Server) putUnpublish(c *gin.Context) {
	s.setPublic(c, false)
}

func (s *Server) setPublic(c *gin.Context, value bool) {
	file, err := s.files.SetPublic(c.Request.Context(), c.GetHeader(TokenHeader), c.Param("id"), value)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, file)
}

func (s *Server) getFile(c *gin.Context) {
	content, err := s.files.Open(c.Request.Context(), c.GetHeader(TokenHeader), c.Param("id"), c.Query("size"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer content.Body.Close()

	c.Header("Content-Type", content.ContentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, content.Body); err != nil {
		s.logger.Warn(c.Request.Context(), "byte stream interrupted", "fileId", c.Param("id"), "error", err)
	}
}

func (s *Server) getStatus(c *gin.Context) {
	dbOK := true
	if err := s.ping(c.Request.Context()); err != nil {
		dbOK = false
	}
	c.JSON(http.StatusOK, gin.H{"db": dbOK})
}

func (s *Server) getStats(c *gin.Context) {
	n, err := s.stats.Count(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": n})
}
