package inventory

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"patrimony/pkg/apperrors"
	"patrimony/pkg/models"
	"patrimony/pkg/security"
)

type CampaignHandler struct {
	Service *Service
}

func RegisterRoutes(router *gin.Engine, service *Service) {
	handler := CampaignHandler{Service: service}

	authorized := router.Group("/", security.JWTMiddleware())
	authorized.POST("/inventory/campaigns", security.Authorize("moderator"), handler.CreateCampaign)
	authorized.GET("/inventory/campaigns", handler.ListCampaigns)
	authorized.GET("/inventory/campaigns/:id", handler.GetCampaign)
	authorized.POST("/inventory/campaigns/:id/status", security.Authorize("moderator"), handler.Advance)
	authorized.GET("/inventory/campaigns/:id/lines", handler.Lines)
	authorized.POST("/inventory/campaigns/:id/lines", handler.RecordLine)
	authorized.GET("/inventory/campaigns/:id/report", handler.Report)
}

func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	campaign, err := h.Service.CreateCampaign(req)
	if err != nil {
		respondError(c, err, "Failed to create campaign")
		return
	}

	c.JSON(http.StatusCreated, campaign)
}

func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	campaigns, err := h.Service.ListCampaigns()
	if err != nil {
		respondError(c, err, "Unable to list campaigns")
		return
	}

	c.JSON(http.StatusOK, campaigns)
}

func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return
	}

	campaign, err := h.Service.GetCampaign(id)
	if err != nil {
		respondError(c, err, "Unable to get campaign")
		return
	}

	c.JSON(http.StatusOK, campaign)
}

func (h *CampaignHandler) Advance(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	target, err := models.NewCampaignStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign, err := h.Service.Advance(id, target, actorFrom(c))
	if err != nil {
		respondError(c, err, "Failed to advance campaign")
		return
	}

	c.JSON(http.StatusOK, campaign)
}

func (h *CampaignHandler) Lines(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return
	}

	lines, err := h.Service.Lines(id)
	if err != nil {
		respondError(c, err, "Unable to list campaign lines")
		return
	}

	c.JSON(http.StatusOK, lines)
}

func (h *CampaignHandler) RecordLine(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return
	}

	var req RecordLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	line, err := h.Service.RecordLine(id, req)
	if err != nil {
		respondError(c, err, "Failed to record line")
		return
	}

	c.JSON(http.StatusOK, line)
}

func (h *CampaignHandler) Report(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return
	}

	report, err := h.Service.Report(id)
	if err != nil {
		respondError(c, err, "Unable to build campaign report")
		return
	}

	c.JSON(http.StatusOK, report)
}

func actorFrom(c *gin.Context) string {
	username, err := security.GetUsernameFromToken(c)
	if err != nil {
		return "unknown"
	}
	return username
}

func respondError(c *gin.Context, err error, fallback string) {
	switch typed := err.(type) {
	case *apperrors.ValidationError:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": typed.Error(), "fields": typed.Fields})
	case *apperrors.NotFoundError:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": typed.Error()})
	case *apperrors.StateConflictError:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": typed.Error()})
	case *apperrors.UniqueViolationError:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": typed.Error()})
	case *apperrors.ForeignKeyViolationError:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": typed.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fallback, "details": err.Error()})
	}
}
