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

// maxSeedsPerRequest bounds the sequential work one request can queue
const maxSeedsPerRequest = 25

type RecommendationController struct {
	recommender *services.RecommendationService
	catalog     *services.CatalogService
}

func NewRecommendationController(recommender *services.RecommendationService, catalog *services.CatalogService) *RecommendationController {
	return &RecommendationController{recommender: recommender, catalog: catalog}
}

// RecommendationBody accepts free-text queries, YouTube URLs or bare video ids as seeds
type RecommendationBody struct {
	Seeds              []string `json:"seeds"`
	CollectionsPerSeed int      `json:"collections_per_seed"`
	ResultsToReturn    int      `json:"results_to_return"`
	ExcludeSeenTitles  bool     `json:"exclude_seen_titles"`
}

func (c *RecommendationController) CreateRecommendation(ctx *gin.Context) {
	var body RecommendationBody
	if !utils.BindAndValidate(ctx, &body) {
		return
	}
	if !utils.ValidateRequest(ctx,
		utils.ValidateSeeds(body.Seeds, maxSeedsPerRequest),
		utils.ValidateNonNegativeInt(body.CollectionsPerSeed, "collections_per_seed"),
		utils.ValidateNonNegativeInt(body.ResultsToReturn, "results_to_return"),
	) {
		return
	}

	req := services.RecommendationRequest{
		CollectionsPerSeed: body.CollectionsPerSeed,
		ResultsToReturn:    body.ResultsToReturn,
		ExcludeSeenTitles:  body.ExcludeSeenTitles,
	}
	for _, raw := range body.Seeds {
		query, videoID := utils.ParseSeed(raw)
		req.Seeds = append(req.Seeds, services.Seed{Query: query, TrackID: videoID})
	}

	result, err := c.recommender.Recommend(ctx.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRequest):
			utils.ValidationError(ctx, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			utils.RequestTimeout(ctx, "Recommendation run was cancelled")
		default:
			logger.Error("Recommendation run failed", logger.ErrorField(err))
			utils.InternalError(ctx, "Failed to build recommendations")
		}
		return
	}

	utils.Success(ctx, http.StatusOK, result)
}

func (c *RecommendationController) GetRun(ctx *gin.Context) {
	run, err := c.catalog.Run(ctx.Request.Context(), ctx.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		utils.NotFound(ctx, "Run not found")
		return
	}
	if err != nil {
		logger.Error("Failed to load run", logger.String("run_id", ctx.Param("id")), logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to load run")
		return
	}
	utils.Success(ctx, http.StatusOK, run)
}

func (c *RecommendationController) GetRecentRuns(ctx *gin.Context) {
	limit, v := utils.ParseLimit(ctx.Query("limit"), 100)
	if !utils.ValidateRequest(ctx, v) {
		return
	}
	runs, err := c.catalog.RecentRuns(ctx.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to list runs", logger.ErrorField(err))
		utils.InternalError(ctx, "Failed to list runs")
		return
	}
	utils.Success(ctx, http.StatusOK, runs)
}
