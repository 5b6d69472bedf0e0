package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-sis-api/internal/models"
	"github.com/noah-isme/uni-sis-api/internal/service"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
	"github.com/noah-isme/uni-sis-api/pkg/response"
)

// CurriculumHandler exposes curriculum endpoints.
type CurriculumHandler struct {
	curricula *service.CurriculumService
}

// NewCurriculumHandler constructs CurriculumHandler.
func NewCurriculumHandler(curricula *service.CurriculumService) *CurriculumHandler {
	return &CurriculumHandler{curricula: curricula}
}

// List godoc
// @Summary List curricula
// @Tags Curricula
// @Produce json
// @Param departmentId query string false "Filter by department"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /curricula [get]
func (h *CurriculumHandler) List(c *gin.Context) {
	var filter models.CurriculumFilter
	filter.DepartmentID = c.Query("departmentId")
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	curricula, pagination, err := h.curricula.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, curricula, pagination)
}

// Get godoc
// @Summary Get curriculum detail with placements
// @Tags Curricula
// @Produce json
// @Param id path string true "Curriculum ID"
// @Success 200 {object} response.Envelope
// @Router /curricula/{id} [get]
func (h *CurriculumHandler) Get(c *gin.Context) {
	curriculum, err := h.curricula.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, curriculum, nil)
}

// Create godoc
// @Summary Create curriculum
// @Tags Curricula
// @Accept json
// @Produce json
// @Param payload body service.CurriculumRequest true "Curriculum payload"
// @Success 201 {object} response.Envelope
// @Router /curricula [post]
func (h *CurriculumHandler) Create(c *gin.Context) {
	var req service.CurriculumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	curriculum, err := h.curricula.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, curriculum)
}

// Update godoc
// @Summary Update curriculum
// @Tags Curricula
// @Accept json
// @Produce json
// @Param id path string true "Curriculum ID"
// @Param payload body service.CurriculumRequest true "Curriculum payload"
// @Success 200 {object} response.Envelope
// @Router /curricula/{id} [put]
func (h *CurriculumHandler) Update(c *gin.Context) {
	var req service.CurriculumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	curriculum, err := h.curricula.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, curriculum, nil)
}

// Delete godoc
// @Summary Delete curriculum
// @Tags Curricula
// @Produce json
// @Param id path string true "Curriculum ID"
// @Success 204 {object} response.Envelope
// @Router /curricula/{id} [delete]
func (h *CurriculumHandler) Delete(c *gin.Context) {
	if err := h.curricula.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PlaceCourse godoc
// @Summary Place a course into a curriculum term slot
// @Tags Curricula
// @Accept json
// @Produce json
// @Param id path string true "Curriculum ID"
// @Param payload body service.PlacementRequest true "Placement payload"
// @Success 201 {object} response.Envelope
// @Router /curricula/{id}/courses [post]
func (h *CurriculumHandler) PlaceCourse(c *gin.Context) {
	var req service.PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	placement, err := h.curricula.PlaceCourse(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, placement)
}

// RemoveCourse godoc
// @Summary Remove a course placement from a curriculum
// @Tags Curricula
// @Produce json
// @Param id path string true "Curriculum ID"
// @Param courseId path string true "Course ID"
// @Success 204 {object} response.Envelope
// @Router /curricula/{id}/courses/{courseId} [delete]
func (h *CurriculumHandler) RemoveCourse(c *gin.Context) {
	if err := h.curricula.RemoveCourse(c.Request.Context(), c.Param("id"), c.Param("courseId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CheckCredits godoc
// @Summary Check curriculum credit totals against batch limits
// @Tags Curricula
// @Produce json
// @Param id path string true "Curriculum ID"
// @Success 200 {object} response.Envelope
// @Router /curricula/{id}/credit-check [get]
func (h *CurriculumHandler) CheckCredits(c *gin.Context) {
	issue, err := h.curricula.CheckCredits(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issue, nil)
}
