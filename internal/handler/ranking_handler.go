package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tastetrail/internal/domain/ranking"
	"tastetrail/internal/services"
	tastetrail_errors "tastetrail/pkg/errors"
)

// RankingHandler exposes the synchronous ranking write.
type RankingHandler struct {
	service *services.RankingService
}

func NewRankingHandler(service *services.RankingService) *RankingHandler {
	return &RankingHandler{service: service}
}

type submitRankingRequest struct {
	UserID       uuid.UUID            `json:"user_id" binding:"required"`
	DishID       uuid.UUID            `json:"dish_id" binding:"required"`
	RestaurantID uuid.UUID            `json:"restaurant_id" binding:"required"`
	Rank         *int                 `json:"rank"`
	TasteStatus  *ranking.TasteStatus `json:"taste_status"`
}

func (h *RankingHandler) Submit(c *gin.Context) {
	var req submitRankingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.service.SubmitRanking(c.Request.Context(), services.SubmitRankingInput{
		UserID:       req.UserID,
		DishID:       req.DishID,
		RestaurantID: req.RestaurantID,
		Rank:         req.Rank,
		TasteStatus:  req.TasteStatus,
		TraceID:      c.GetString("request_id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"submission_id": sub.ID,
		"event_id":      sub.EventID,
		"created_at":    sub.CreatedAt,
	})
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tastetrail_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, tastetrail_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, tastetrail_errors.ErrAlreadyExists), errors.Is(err, tastetrail_errors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, tastetrail_errors.ErrServiceUnavailable), errors.Is(err, tastetrail_errors.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
