package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-sis-api/internal/middleware"
	"github.com/noah-isme/uni-sis-api/internal/models"
	"github.com/noah-isme/uni-sis-api/internal/service"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
	"github.com/noah-isme/uni-sis-api/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints. Schedule reads can be
// served from the response cache when one is configured.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	cache       *service.CacheService
	cacheTTL    time.Duration
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, cache *service.CacheService, cacheTTL time.Duration) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, cache: cache, cacheTTL: cacheTTL}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param sectionId query string false "Filter by section"
// @Param termId query string false "Filter by term"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("studentId")
	filter.SectionID = c.Query("sectionId")
	filter.TermID = c.Query("termId")
	filter.Status = models.EnrollmentStatus(strings.ToUpper(c.Query("status")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment detail
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Create godoc
// @Summary Enroll student into a section
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role != models.RoleAdmin && claims.Role != models.RoleRegistrar {
		req.BypassValidation = false
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateSchedule(c, enrollment.StudentID)
	response.Created(c, enrollment)
}

// Validate godoc
// @Summary Dry-run enrollment validation
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Validation payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/validate [post]
func (h *EnrollmentHandler) Validate(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.enrollments.Validate(c.Request.Context(), req.StudentID, req.SectionID, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Drop godoc
// @Summary Drop an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param force query bool false "Bypass the drop deadline (registrar only)"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	force := c.Query("force") == "true"
	if claims := claimsFromContext(c); claims != nil && claims.Role != models.RoleAdmin && claims.Role != models.RoleRegistrar {
		force = false
	}
	enrollment, err := h.enrollments.Drop(c.Request.Context(), c.Param("id"), force)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateSchedule(c, enrollment.StudentID)
	response.JSON(c, http.StatusOK, enrollment, nil)
}

func (h *EnrollmentHandler) invalidateSchedule(c *gin.Context, studentID string) {
	if h.cache == nil || !h.cache.Enabled() {
		return
	}
	_ = h.cache.Invalidate(c.Request.Context(), fmt.Sprintf("schedule:%s:*", studentID))
}

// Schedule godoc
// @Summary Get a student's weekly schedule for a term
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/schedule [get]
func (h *EnrollmentHandler) Schedule(c *gin.Context) {
	termID := c.Query("termId")
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId query parameter is required"))
		return
	}
	studentID := c.Param("id")

	cacheKey := fmt.Sprintf("schedule:%s:%s", studentID, termID)
	if h.cache != nil && h.cache.Enabled() {
		var cached []models.StudentScheduleEntry
		if hit, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && hit {
			middleware.SetCacheHit(c, true)
			response.JSON(c, http.StatusOK, cached, nil)
			return
		}
	}

	entries, err := h.enrollments.GetStudentSchedule(c.Request.Context(), studentID, termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.cache != nil && h.cache.Enabled() {
		middleware.SetCacheHit(c, false)
		_ = h.cache.Set(c.Request.Context(), cacheKey, entries, h.cacheTTL)
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
