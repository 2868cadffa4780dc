package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tastetrail/internal/services"
)

// ImportHandler accepts bulk restaurant feeds.
type ImportHandler struct {
	service *services.ImportService
}

func NewImportHandler(service *services.ImportService) *ImportHandler {
	return &ImportHandler{service: service}
}

type importRecordRequest struct {
	SourceID string `json:"source_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Cuisine  string `json:"cuisine"`
}

type createImportRequest struct {
	Source  string                `json:"source" binding:"required"`
	Records []importRecordRequest `json:"records" binding:"required,min=1"`
}

func (h *ImportHandler) Create(c *gin.Context) {
	var req createImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records := make([]services.RestaurantRecord, 0, len(req.Records))
	for _, rec := range req.Records {
		records = append(records, services.RestaurantRecord{
			SourceID: rec.SourceID,
			Name:     rec.Name,
			Address:  rec.Address,
			City:     rec.City,
			Cuisine:  rec.Cuisine,
		})
	}

	job, err := h.service.CreateJob(c.Request.Context(), req.Source, records, c.GetString("request_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":        job.ID,
		"status":        job.Status,
		"total_records": job.TotalRecords,
	})
}

func (h *ImportHandler) Get(c *gin.Context) {
	job, err := h.service.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":        job.ID,
		"source":        job.Source,
		"status":        job.Status,
		"total_records": job.TotalRecords,
		"created_at":    job.CreatedAt,
		"completed_at":  job.CompletedAt,
	})
}
