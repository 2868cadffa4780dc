package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tastetrail/internal/repository"
	"tastetrail/internal/services"
)

// AnalyticsHandler serves the summary read models. Dish views are counted
// off the request path through the best-effort runner; a dropped bump never
// fails a read.
type AnalyticsHandler struct {
	repo       *repository.AnalyticsRepository
	bestEffort *services.BestEffort
	log        *zap.Logger
}

func NewAnalyticsHandler(repo *repository.AnalyticsRepository, bestEffort *services.BestEffort, log *zap.Logger) *AnalyticsHandler {
	if log == nil {
		log = zap.L()
	}
	return &AnalyticsHandler{repo: repo, bestEffort: bestEffort, log: log}
}

func (h *AnalyticsHandler) DishSummary(c *gin.Context) {
	dishID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dish id"})
		return
	}

	summary, err := h.repo.GetDishSummary(c.Request.Context(), dishID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.bestEffort.Submit("dish_view_bump", func(ctx context.Context) {
		if err := h.repo.BumpDishViews(ctx, dishID, 1); err != nil {
			h.log.Warn("dish view bump failed",
				zap.String("dish_id", dishID.String()), zap.Error(err))
		}
	})

	c.JSON(http.StatusOK, gin.H{
		"dish_id":        summary.DishID,
		"total_rankings": summary.TotalRankings,
		"total_users":    summary.TotalUsers,
		"total_views":    summary.TotalViews,
		"last_ranked_at": summary.LastRankedAt,
	})
}
