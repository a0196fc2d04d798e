package custody

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"patrimony/pkg/apperrors"
	"patrimony/pkg/security"
)

type CustodyHandler struct {
	Service *Service
}

func RegisterRoutes(router *gin.Engine, service *Service) {
	handler := CustodyHandler{Service: service}

	authorized := router.Group("/", security.JWTMiddleware())
	authorized.POST("/custody/assignments", handler.Assign)
	authorized.GET("/assets/:id/custody", handler.History)
	authorized.POST("/assets/:id/custody/close", handler.CloseAll)
}

func (h *CustodyHandler) Assign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	assignment, err := h.Service.Assign(req)
	if err != nil {
		respondError(c, err, "Failed to assign custody")
		return
	}

	c.JSON(http.StatusCreated, assignment)
}

func (h *CustodyHandler) History(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	assignments, err := h.Service.History(id)
	if err != nil {
		respondError(c, err, "Unable to get custody history")
		return
	}

	c.JSON(http.StatusOK, assignments)
}

type closeAllRequest struct {
	EffectiveDate *string `json:"effective_date"`
	Reason        string  `json:"reason"`
}

func (h *CustodyHandler) CloseAll(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	var req closeAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	effectiveDate, err := parseDateOrNow(req.EffectiveDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid effective_date, expected YYYY-MM-DD"})
		return
	}

	if err := h.Service.CloseAll(id, effectiveDate, req.Reason, actorFrom(c)); err != nil {
		respondError(c, err, "Failed to close assignments")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Assignments closed"})
}

func parseDateOrNow(raw *string) (time.Time, error) {
	if raw == nil || *raw == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", *raw)
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
