package routes

import (
	"github.com/gin-gonic/gin"

	"patrimony/internal/assets"
	"patrimony/internal/core/container"
	"patrimony/internal/custody"
	"patrimony/internal/inventory"
	"patrimony/internal/maintenance"
	"patrimony/internal/middleware"
	"patrimony/internal/users"
)

func RegisterPublicRoutes(router *gin.Engine, container *container.Container) {
	container.LoginHandler.RegisterRoutes(router)
}

func RegisterProtectedRoutes(router *gin.Engine, container *container.Container) {
	assets.RegisterRoutes(router, container.AssetService)
	custody.RegisterRoutes(router, container.CustodyService)
	inventory.RegisterRoutes(router, container.InventoryService)
	maintenance.RegisterRoutes(router, container.MaintenanceService)
	users.RegisterRoutes(router, container.UserRepository)
}

func RegisterUtilityRoutes(router *gin.Engine) {
	router.GET("/health", middleware.HealthCheckMiddleware())
}
