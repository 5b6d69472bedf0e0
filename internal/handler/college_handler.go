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

// CollegeHandler exposes college and department endpoints.
type CollegeHandler struct {
	colleges *service.CollegeService
}

// NewCollegeHandler constructs CollegeHandler.
func NewCollegeHandler(colleges *service.CollegeService) *CollegeHandler {
	return &CollegeHandler{colleges: colleges}
}

// ListColleges godoc
// @Summary List colleges
// @Tags Colleges
// @Produce json
// @Param search query string false "Search by code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /colleges [get]
func (h *CollegeHandler) ListColleges(c *gin.Context) {
	var filter models.CollegeFilter
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	colleges, pagination, err := h.colleges.ListColleges(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, colleges, pagination)
}

// GetCollege godoc
// @Summary Get college
// @Tags Colleges
// @Produce json
// @Param id path string true "College ID"
// @Success 200 {object} response.Envelope
// @Router /colleges/{id} [get]
func (h *CollegeHandler) GetCollege(c *gin.Context) {
	college, err := h.colleges.GetCollege(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, college, nil)
}

// CreateCollege godoc
// @Summary Create college
// @Tags Colleges
// @Accept json
// @Produce json
// @Param payload body service.CollegeRequest true "College payload"
// @Success 201 {object} response.Envelope
// @Router /colleges [post]
func (h *CollegeHandler) CreateCollege(c *gin.Context) {
	var req service.CollegeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	college, err := h.colleges.CreateCollege(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, college)
}

// UpdateCollege godoc
// @Summary Update college
// @Tags Colleges
// @Accept json
// @Produce json
// @Param id path string true "College ID"
// @Param payload body service.CollegeRequest true "College payload"
// @Success 200 {object} response.Envelope
// @Router /colleges/{id} [put]
func (h *CollegeHandler) UpdateCollege(c *gin.Context) {
	var req service.CollegeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	college, err := h.colleges.UpdateCollege(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, college, nil)
}

// DeleteCollege godoc
// @Summary Delete college
// @Tags Colleges
// @Produce json
// @Param id path string true "College ID"
// @Success 204 {object} response.Envelope
// @Router /colleges/{id} [delete]
func (h *CollegeHandler) DeleteCollege(c *gin.Context) {
	if err := h.colleges.DeleteCollege(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListDepartments godoc
// @Summary List departments
// @Tags Departments
// @Produce json
// @Param collegeId query string false "Filter by college"
// @Param search query string false "Search by code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *CollegeHandler) ListDepartments(c *gin.Context) {
	var filter models.DepartmentFilter
	filter.CollegeID = c.Query("collegeId")
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	departments, pagination, err := h.colleges.ListDepartments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, pagination)
}

// GetDepartment godoc
// @Summary Get department with remaining seats
// @Tags Departments
// @Produce json
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [get]
func (h *CollegeHandler) GetDepartment(c *gin.Context) {
	department, remaining, err := h.colleges.GetDepartment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, department, nil, map[string]interface{}{"remaining_seats": remaining})
}

// CreateDepartment godoc
// @Summary Create department
// @Tags Departments
// @Accept json
// @Produce json
// @Param payload body service.DepartmentRequest true "Department payload"
// @Success 201 {object} response.Envelope
// @Router /departments [post]
func (h *CollegeHandler) CreateDepartment(c *gin.Context) {
	var req service.DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	department, err := h.colleges.CreateDepartment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, department)
}

// UpdateDepartment godoc
// @Summary Update department
// @Tags Departments
// @Accept json
// @Produce json
// @Param id path string true "Department ID"
// @Param payload body service.DepartmentRequest true "Department payload"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [put]
func (h *CollegeHandler) UpdateDepartment(c *gin.Context) {
	var req service.DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	department, err := h.colleges.UpdateDepartment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, department, nil)
}

// DeleteDepartment godoc
// @Summary Delete department
// @Tags Departments
// @Produce json
// @Param id path string true "Department ID"
// @Success 204 {object} response.Envelope
// @Router /departments/{id} [delete]
func (h *CollegeHandler) DeleteDepartment(c *gin.Context) {
	if err := h.colleges.DeleteDepartment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
