package controllers

import (
	"context"
	"errors"
	"net/http"

	"cratedig/logger"
	"cratedig/repository"
	"cratedig/services"
	"cratedig/utils"

	"github.com/gin-gonic/gin"
)

type CollectionController struct {
	catalog *services.CatalogService
	resync  *services.ResyncService
}

func NewCollectionController(catalog *services.CatalogService, resync *services.ResyncService) *CollectionController {
	return &CollectionController{catalog: catalog, resync: resync}
}

func (c *CollectionController) GetCollectionByID(ctx *gin.Context) {
	id, v := utils.ParseID(ctx.Param("id"), "id")
	if !utils.ValidateRequest(ctx, v) {
		return
	}

	view, err := c.catalog.Collection(ctx.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.NotFound(ctx, "Collection not found")
		return
	}
	if err != nil {
		logger.Error("Failed to load collection", logger.Uint("collection_id", id), logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to load collection")
		return
	}
	utils.Success(ctx, http.StatusOK, view)
}

func (c *CollectionController) GetNeedingSync(ctx *gin.Context) {
	limit, v := utils.ParseLimit(ctx.Query("limit"), maxListLimit)
	if !utils.ValidateRequest(ctx, v) {
		return
	}
	collections, err := c.catalog.CollectionsNeedingSync(ctx.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to list collections needing sync", logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to list collections")
		return
	}
	utils.Success(ctx, http.StatusOK, collections)
}

// Resync refreshes stale collections within the request's lifetime
func (c *CollectionController) Resync(ctx *gin.Context) {
	limit, v := utils.ParseLimit(ctx.Query("limit"), maxListLimit)
	if !utils.ValidateRequest(ctx, v) {
		return
	}

	result, err := c.resync.Run(ctx.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			utils.RequestTimeout(ctx, "Resync was cancelled")
			return
		}
		logger.Error("Resync failed", logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to resync collections")
		return
	}
	utils.Success(ctx, http.StatusOK, result)
}
