package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/metavis/renderengine/models"
	"github.com/metavis/renderengine/pkg/logger"
	"github.com/metavis/renderengine/services"
)

type GovernancePlanController struct {
	planService *services.GovernancePlanService
}

func NewGovernancePlanController() *GovernancePlanController {
	return &GovernancePlanController{
		planService: services.NewGovernancePlanService(),
	}
}

// @Summary Create a governance plan
// @Tags admin
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Router /api/v1/admin/governance-plans [post]
func (c *GovernancePlanController) Create(ctx *gin.Context) {
	var req models.GovernancePlanCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	plan, err := c.planService.CreatePlan(&req)
	if err != nil {
		logger.Warnf("Failed to create governance plan: %v", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"plan": plan})
}

// @Summary List governance plans
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/admin/governance-plans [get]
func (c *GovernancePlanController) List(ctx *gin.Context) {
	plans, err := c.planService.ListPlans()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"plans": plans})
}
