package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-sis-api/internal/service"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
	"github.com/noah-isme/uni-sis-api/pkg/response"
)

// PolicyHandler exposes standing policy and grade scale endpoints.
type PolicyHandler struct {
	policies *service.PolicyService
}

// NewPolicyHandler constructs PolicyHandler.
func NewPolicyHandler(policies *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// GetStandingPolicy godoc
// @Summary Get the academic standing policy
// @Tags Policies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /policies/standing [get]
func (h *PolicyHandler) GetStandingPolicy(c *gin.Context) {
	policy, err := h.policies.GetStandingPolicy(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// UpdateStandingPolicy godoc
// @Summary Update the academic standing policy
// @Tags Policies
// @Accept json
// @Produce json
// @Param payload body service.StandingPolicyRequest true "Policy payload"
// @Success 200 {object} response.Envelope
// @Router /policies/standing [put]
func (h *PolicyHandler) UpdateStandingPolicy(c *gin.Context) {
	var req service.StandingPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	policy, err := h.policies.UpdateStandingPolicy(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// GetGradeScale godoc
// @Summary Get the letter grade scale
// @Tags Policies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /policies/grade-scale [get]
func (h *PolicyHandler) GetGradeScale(c *gin.Context) {
	scale, err := h.policies.GetGradeScale(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scale, nil)
}

// ReplaceGradeScale godoc
// @Summary Replace the letter grade scale
// @Tags Policies
// @Accept json
// @Produce json
// @Param payload body service.GradeScaleRequest true "Scale payload"
// @Success 200 {object} response.Envelope
// @Router /policies/grade-scale [put]
func (h *PolicyHandler) ReplaceGradeScale(c *gin.Context) {
	var req service.GradeScaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	scale, err := h.policies.ReplaceGradeScale(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scale, nil)
}
