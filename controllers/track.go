package controllers

import (
	"errors"
	"net/http"
	"strings"

	"cratedig/logger"
	"cratedig/repository"
	"cratedig/services"
	"cratedig/utils"

	"github.com/gin-gonic/gin"
)

const maxListLimit = 500

type TrackController struct {
	catalog *services.CatalogService
}

func NewTrackController(catalog *services.CatalogService) *TrackController {
	return &TrackController{catalog: catalog}
}

func (c *TrackController) GetTrackByID(ctx *gin.Context) {
	id, v := utils.ParseID(ctx.Param("id"), "id")
	if !utils.ValidateRequest(ctx, v) {
		return
	}

	track, err := c.catalog.Track(ctx.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.NotFound(ctx, "Track not found")
		return
	}
	if err != nil {
		logger.Error("Failed to load track", logger.Uint("track_id", id), logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to load track")
		return
	}
	utils.Success(ctx, http.StatusOK, track)
}

func (c *TrackController) SearchTracks(ctx *gin.Context) {
	query := strings.TrimSpace(ctx.Query("q"))
	if query == "" {
		utils.BadRequest(ctx, "Search query is required")
		return
	}
	limit, v := utils.ParseLimit(ctx.Query("limit"), maxListLimit)
	if !utils.ValidateRequest(ctx, v) {
		return
	}

	matches, err := c.catalog.SearchTracks(ctx.Request.Context(), query, limit)
	if err != nil {
		logger.Error("Track search failed", logger.String("query", query), logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to search tracks")
		return
	}
	utils.Success(ctx, http.StatusOK, matches)
}

func (c *TrackController) GetMostConnected(ctx *gin.Context) {
	limit, v := utils.ParseLimit(ctx.Query("limit"), maxListLimit)
	if !utils.ValidateRequest(ctx, v) {
		return
	}
	tracks, err := c.catalog.MostConnected(ctx.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to list most connected tracks", logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to list tracks")
		return
	}
	utils.Success(ctx, http.StatusOK, tracks)
}

func (c *TrackController) GetNeedingEnrichment(ctx *gin.Context) {
	limit, v := utils.ParseLimit(ctx.Query("limit"), maxListLimit)
	if !utils.ValidateRequest(ctx, v) {
		return
	}
	tracks, err := c.catalog.NeedingEnrichment(ctx.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to list tracks needing enrichment", logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to list tracks")
		return
	}
	utils.Success(ctx, http.StatusOK, tracks)
}

func (c *TrackController) GetTrackCollections(ctx *gin.Context) {
	id, v := utils.ParseID(ctx.Param("id"), "id")
	if !utils.ValidateRequest(ctx, v) {
		return
	}

	collections, err := c.catalog.CollectionsContainingTrack(ctx.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.NotFound(ctx, "Track not found")
		return
	}
	if err != nil {
		logger.Error("Failed to list collections for track", logger.Uint("track_id", id), logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to list collections")
		return
	}
	utils.Success(ctx, http.StatusOK, collections)
}
