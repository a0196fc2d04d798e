package assets

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"patrimony/internal/repository"
	"patrimony/internal/valuation"
	"patrimony/pkg/apperrors"
	"patrimony/pkg/security"
)

type AssetHandler struct {
	Service *Service
}

func RegisterRoutes(router *gin.Engine, service *Service) {
	handler := AssetHandler{Service: service}

	authorized := router.Group("/", security.JWTMiddleware())
	authorized.POST("/assets", handler.CreateAsset)
	authorized.GET("/assets", handler.ListAssets)
	authorized.GET("/assets/:id", handler.GetAsset)
	authorized.GET("/assets/at-risk", handler.ListAtRisk)
	authorized.PATCH("/assets/:id", handler.ReviseAsset)
	authorized.GET("/assets/code/:code", handler.GetAssetByCode)
	authorized.GET("/assets/:id/valuation", handler.GetValuation)
	authorized.GET("/assets/:id/valuations", handler.GetValuationHistory)
	authorized.POST("/assets/:id/valuations", handler.ReviseValue)
	authorized.GET("/assets/:id/movements", handler.GetMovements)
	authorized.POST("/assets/:id/transfer", security.Authorize("moderator"), handler.TransferAsset)
	authorized.POST("/assets/:id/retire", security.Authorize("admin"), handler.RetireAsset)
}

func (h *AssetHandler) CreateAsset(c *gin.Context) {
	var req CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	asset, err := h.Service.CreateAsset(req)
	if err != nil {
		respondError(c, err, "Failed to create asset")
		return
	}

	c.JSON(http.StatusCreated, asset)
}

func (h *AssetHandler) GetAsset(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	asset, err := h.Service.GetAsset(id)
	if err != nil {
		respondError(c, err, "Unable to get asset")
		return
	}

	c.JSON(http.StatusOK, asset)
}

func (h *AssetHandler) GetAssetByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to bind asset code"})
		return
	}

	asset, err := h.Service.FindAssetByCode(code)
	if err != nil {
		respondError(c, err, "Unable to get asset")
		return
	}

	c.JSON(http.StatusOK, asset)
}

func (h *AssetHandler) ListAssets(c *gin.Context) {
	conditions := repository.NewQueryBuilder()
	if unitID := c.Query("unit_id"); unitID != "" {
		conditions.AddCondition("unit_id", unitID)
	}
	if status := c.Query("status"); status != "" {
		conditions.AddCondition("status", status)
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		conditions.AddCondition("category_id", categoryID)
	}

	assets, err := h.Service.GetAssetsBy(conditions)
	if err != nil {
		respondError(c, err, "Unable to list assets")
		return
	}

	c.JSON(http.StatusOK, assets)
}

func (h *AssetHandler) ListAtRisk(c *gin.Context) {
	assets, err := h.Service.FindAtRisk()
	if err != nil {
		respondError(c, err, "Unable to list at-risk assets")
		return
	}

	c.JSON(http.StatusOK, assets)
}

func (h *AssetHandler) ReviseAsset(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	var req ReviseAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	asset, err := h.Service.ReviseAsset(id, req)
	if err != nil {
		respondError(c, err, "Failed to revise asset")
		return
	}

	c.JSON(http.StatusOK, asset)
}

func (h *AssetHandler) GetValuation(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		asOf, err = time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid as_of date, expected YYYY-MM-DD"})
			return
		}
	}

	var method valuation.Method
	if raw := c.Query("method"); raw != "" {
		method, err = valuation.NewMethod(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.Service.Valuation(id, asOf, method)
	if err != nil {
		respondError(c, err, "Unable to compute valuation")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AssetHandler) GetValuationHistory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	records, err := h.Service.ValuationHistory(id)
	if err != nil {
		respondError(c, err, "Unable to get valuation history")
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *AssetHandler) ReviseValue(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	var req ReviseValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	record, err := h.Service.ReviseValue(id, req)
	if err != nil {
		respondError(c, err, "Failed to record valuation")
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (h *AssetHandler) GetMovements(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	movements, err := h.Service.Movements(id)
	if err != nil {
		respondError(c, err, "Unable to get movements")
		return
	}

	c.JSON(http.StatusOK, movements)
}

func (h *AssetHandler) TransferAsset(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	movement, err := h.Service.TransferAsset(id, req)
	if err != nil {
		respondError(c, err, "Failed to transfer asset")
		return
	}

	c.JSON(http.StatusOK, movement)
}

func (h *AssetHandler) RetireAsset(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	var req RetireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	req.Actor = actorFrom(c)

	asset, err := h.Service.RetireAsset(id, req)
	if err != nil {
		respondError(c, err, "Failed to retire asset")
		return
	}

	c.JSON(http.StatusOK, asset)
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
	case *apperrors.PermissionError:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": typed.Error()})
	case *apperrors.UniqueViolationError:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": typed.Error()})
	case *apperrors.ForeignKeyViolationError:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": typed.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fallback, "details": err.Error()})
	}
}
