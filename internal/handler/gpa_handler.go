package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-sis-api/internal/middleware"
	"github.com/noah-isme/uni-sis-api/internal/models"
	"github.com/noah-isme/uni-sis-api/internal/service"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
	"github.com/noah-isme/uni-sis-api/pkg/response"
)

// GPAHandler exposes GPA and transcript read endpoints. Transcript reads
// can be served from the response cache when one is configured.
type GPAHandler struct {
	gpa      *service.GPAService
	cache    *service.CacheService
	cacheTTL time.Duration
}

// NewGPAHandler constructs GPAHandler.
func NewGPAHandler(gpa *service.GPAService, cache *service.CacheService, cacheTTL time.Duration) *GPAHandler {
	return &GPAHandler{gpa: gpa, cache: cache, cacheTTL: cacheTTL}
}

func (h *GPAHandler) authorizeStudent(c *gin.Context, studentID string) bool {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return false
	}
	if claims.Role == models.RoleStudent {
		if claims.StudentID == nil || *claims.StudentID != studentID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own records"))
			return false
		}
	}
	return true
}

// TermGPA godoc
// @Summary Compute term and cumulative GPA for a student
// @Tags GPA
// @Produce json
// @Param id path string true "Student ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/gpa [get]
func (h *GPAHandler) TermGPA(c *gin.Context) {
	studentID := c.Param("id")
	if !h.authorizeStudent(c, studentID) {
		return
	}
	termID := c.Query("termId")
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId query parameter is required"))
		return
	}
	term, cumulative, err := h.gpa.CalculateStudentGPA(c.Request.Context(), studentID, termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"term": term, "cumulative": cumulative}, nil)
}

// CumulativeGPA godoc
// @Summary Get cumulative GPA and academic standing
// @Tags GPA
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/cgpa [get]
func (h *GPAHandler) CumulativeGPA(c *gin.Context) {
	studentID := c.Param("id")
	if !h.authorizeStudent(c, studentID) {
		return
	}
	cumulative, err := h.gpa.GetCumulativeGPA(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cumulative, nil)
}

// Transcript godoc
// @Summary Get a student's full transcript
// @Tags GPA
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/transcript [get]
func (h *GPAHandler) Transcript(c *gin.Context) {
	studentID := c.Param("id")
	if !h.authorizeStudent(c, studentID) {
		return
	}

	cacheKey := fmt.Sprintf("transcript:%s", studentID)
	if h.cache != nil && h.cache.Enabled() {
		var cached models.Transcript
		if hit, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && hit {
			middleware.SetCacheHit(c, true)
			response.JSON(c, http.StatusOK, &cached, nil)
			return
		}
	}

	transcript, err := h.gpa.GetStudentTranscript(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.cache != nil && h.cache.Enabled() {
		middleware.SetCacheHit(c, false)
		_ = h.cache.Set(c.Request.Context(), cacheKey, transcript, h.cacheTTL)
	}
	response.JSON(c, http.StatusOK, transcript, nil)
}
