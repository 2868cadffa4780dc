package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tastetrail/internal/consumer"
	"tastetrail/internal/domain/outbox"
	"tastetrail/internal/events"
	"tastetrail/internal/repository"
)

// OpsHandler exposes pipeline health for operators: outbox backlog, dead
// letter depth, and circuit breaker states.
type OpsHandler struct {
	outboxRepo *repository.OutboxRepository
	deadRepo   *repository.DeadLetterRepository
	consumers  map[string]*consumer.Consumer
}

func NewOpsHandler(outboxRepo *repository.OutboxRepository, deadRepo *repository.DeadLetterRepository, consumers map[string]*consumer.Consumer) *OpsHandler {
	return &OpsHandler{outboxRepo: outboxRepo, deadRepo: deadRepo, consumers: consumers}
}

func (h *OpsHandler) OutboxDepth(c *gin.Context) {
	pending, err := h.outboxRepo.CountByStatus(c.Request.Context(), outbox.StatusPending)
	if err != nil {
		respondError(c, err)
		return
	}
	failed, err := h.outboxRepo.CountByStatus(c.Request.Context(), outbox.StatusFailed)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pending": pending,
		"failed":  failed,
	})
}

func (h *OpsHandler) DeadLetterDepth(c *gin.Context) {
	total, byType, err := h.deadRepo.Depth(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	// Report every known event type, zero included, so dashboards keep a
	// stable key set.
	depths := make(map[string]int64, len(byType))
	for _, t := range events.All() {
		depths[string(t)] = byType[string(t)]
	}
	for k, v := range byType {
		depths[k] = v
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"by_type": depths,
	})
}

func (h *OpsHandler) Breakers(c *gin.Context) {
	states := make(map[string]string, len(h.consumers))
	for name, cons := range h.consumers {
		states[name] = cons.Breaker().State().String()
	}
	c.JSON(http.StatusOK, gin.H{"breakers": states})
}
