package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-sis-api/internal/service"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
	"github.com/noah-isme/uni-sis-api/pkg/response"
)

// GradeHandler exposes grade component and grading endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// ListComponents godoc
// @Summary List grade components of a section
// @Tags Grades
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/components [get]
func (h *GradeHandler) ListComponents(c *gin.Context) {
	components, err := h.grades.ListComponents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, components, nil)
}

// CreateComponent godoc
// @Summary Create a grade component
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body service.ComponentRequest true "Component payload"
// @Success 201 {object} response.Envelope
// @Router /sections/{id}/components [post]
func (h *GradeHandler) CreateComponent(c *gin.Context) {
	var req service.ComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SectionID = c.Param("id")
	component, err := h.grades.CreateComponent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, component)
}

// UpdateComponent godoc
// @Summary Update a grade component
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Component ID"
// @Param payload body service.ComponentRequest true "Component payload"
// @Success 200 {object} response.Envelope
// @Router /components/{id} [put]
func (h *GradeHandler) UpdateComponent(c *gin.Context) {
	var req service.ComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	component, err := h.grades.UpdateComponent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, component, nil)
}

// DeleteComponent godoc
// @Summary Delete a grade component
// @Tags Grades
// @Produce json
// @Param id path string true "Component ID"
// @Success 204 {object} response.Envelope
// @Router /components/{id} [delete]
func (h *GradeHandler) DeleteComponent(c *gin.Context) {
	if err := h.grades.DeleteComponent(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RecordGrade godoc
// @Summary Record or update a component grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.RecordGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) RecordGrade(c *gin.Context) {
	var req service.RecordGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grade, err := h.grades.RecordGrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// GradeSheet godoc
// @Summary Get itemized grades for an enrollment
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grades [get]
func (h *GradeHandler) GradeSheet(c *gin.Context) {
	sheet, err := h.grades.GetStudentGrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// Publish godoc
// @Summary Publish final grades for a section
// @Tags Grades
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/publish [post]
func (h *GradeHandler) Publish(c *gin.Context) {
	result, err := h.grades.PublishFinalGrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// FinalGrade godoc
// @Summary Get the published final grade for an enrollment
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/final-grade [get]
func (h *GradeHandler) FinalGrade(c *gin.Context) {
	grade, err := h.grades.GetFinalGrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}
