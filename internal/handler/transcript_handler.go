package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-sis-api/internal/models"
	"github.com/noah-isme/uni-sis-api/internal/service"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
	"github.com/noah-isme/uni-sis-api/pkg/response"
)

// TranscriptHandler exposes async transcript export endpoints.
type TranscriptHandler struct {
	transcripts *service.TranscriptService
}

// NewTranscriptHandler constructs TranscriptHandler.
func NewTranscriptHandler(transcripts *service.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts}
}

// Export godoc
// @Summary Queue a transcript export
// @Tags Transcripts
// @Accept json
// @Produce json
// @Param payload body service.TranscriptExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /transcripts/export [post]
func (h *TranscriptHandler) Export(c *gin.Context) {
	if h.transcripts == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "transcript export is not enabled"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.TranscriptExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.transcripts.CreateJob(c.Request.Context(), req, claims.UserID, claims.Role, claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get transcript export job status
// @Tags Transcripts
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /transcripts/export/jobs/{id} [get]
func (h *TranscriptHandler) Status(c *gin.Context) {
	if h.transcripts == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "transcript export is not enabled"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	status, err := h.transcripts.GetStatus(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download an exported transcript via signed token
// @Tags Transcripts
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /transcripts/download/{token} [get]
func (h *TranscriptHandler) Download(c *gin.Context) {
	if h.transcripts == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "transcript export is not enabled"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.transcripts.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}
	mime := "text/csv"
	if result.Format == models.TranscriptFormatPDF {
		mime = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), mime, result.File, nil)
}
