package controllers

import (
	"net/http"

	"cratedig/logger"
	"cratedig/models"
	"cratedig/services"
	"cratedig/utils"

	"github.com/gin-gonic/gin"
)

type QuotaController struct {
	quota *services.QuotaService
}

func NewQuotaController(quota *services.QuotaService) *QuotaController {
	return &QuotaController{quota: quota}
}

// GetQuota reports today's usage, for one source when ?source= is given
func (c *QuotaController) GetQuota(ctx *gin.Context) {
	var sources []models.Source
	if name := ctx.Query("source"); name != "" {
		source, err := models.ParseSource(name)
		if err != nil {
			utils.BadRequest(ctx, err.Error())
			return
		}
		sources = append(sources, source)
	}

	statuses, err := c.quota.Status(ctx.Request.Context(), sources...)
	if err != nil {
		logger.Error("Failed to load quota status", logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to load quota status")
		return
	}
	utils.Success(ctx, http.StatusOK, statuses)
}
