package maintenance

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"patrimony/pkg/apperrors"
	"patrimony/pkg/security"
)

type MaintenanceHandler struct {
	Service *Service
}

func RegisterRoutes(router *gin.Engine, service *Service) {
	handler := MaintenanceHandler{Service: service}

	authorized := router.Group("/", security.JWTMiddleware())
	authorized.POST("/maintenance/orders", handler.Schedule)
	authorized.GET("/maintenance/orders/:id", handler.GetOrder)
	authorized.POST("/maintenance/orders/:id/complete", handler.Complete)
	authorized.GET("/maintenance/orders/:id/priority", handler.Priority)
	authorized.GET("/maintenance/failures", handler.FleetFailures)
	authorized.POST("/maintenance/plans", security.Authorize("moderator"), handler.CreatePlan)
	authorized.GET("/assets/:id/maintenance", handler.OrdersByAsset)
	authorized.GET("/assets/:id/maintenance/plans", handler.PlansByAsset)
	authorized.GET("/assets/:id/maintenance/failures", handler.FailureStats)
}

func (h *MaintenanceHandler) Schedule(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	order, err := h.Service.Schedule(req)
	if err != nil {
		respondError(c, err, "Failed to schedule maintenance")
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *MaintenanceHandler) GetOrder(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := h.Service.GetOrder(id)
	if err != nil {
		respondError(c, err, "Unable to get maintenance order")
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *MaintenanceHandler) Complete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	order, err := h.Service.Complete(id, req)
	if err != nil {
		respondError(c, err, "Failed to complete maintenance order")
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *MaintenanceHandler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	plan, err := h.Service.CreatePlan(req)
	if err != nil {
		respondError(c, err, "Failed to create recurrence plan")
		return
	}

	c.JSON(http.StatusCreated, plan)
}

func (h *MaintenanceHandler) OrdersByAsset(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	orders, err := h.Service.OrdersByAsset(id)
	if err != nil {
		respondError(c, err, "Unable to list maintenance orders")
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (h *MaintenanceHandler) PlansByAsset(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	plans, err := h.Service.PlansByAsset(id)
	if err != nil {
		respondError(c, err, "Unable to list recurrence plans")
		return
	}

	c.JSON(http.StatusOK, plans)
}

func (h *MaintenanceHandler) Priority(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	assessment, err := h.Service.Priority(id)
	if err != nil {
		respondError(c, err, "Unable to score maintenance priority")
		return
	}

	c.JSON(http.StatusOK, assessment)
}

func (h *MaintenanceHandler) FleetFailures(c *gin.Context) {
	var assetIDs []int
	if raw := c.Query("asset_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset_ids"})
				return
			}
			assetIDs = append(assetIDs, id)
		}
	}

	windowMonths := 0
	if raw := c.Query("window_months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid window_months"})
			return
		}
		windowMonths = parsed
	}

	stats, err := h.Service.FleetFailures(assetIDs, windowMonths)
	if err != nil {
		respondError(c, err, "Unable to compute fleet failure statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *MaintenanceHandler) FailureStats(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	windowMonths := 0
	if raw := c.Query("window_months"); raw != "" {
		windowMonths, err = strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid window_months"})
			return
		}
	}

	stats, err := h.Service.FailureStats(id, windowMonths)
	if err != nil {
		respondError(c, err, "Unable to compute failure statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
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
