package container

import (
	"database/sql"
	"os"

	"go.uber.org/zap"

	auditLogRepo "patrimony/internal/auditlog"
	"patrimony/internal/assets"
	"patrimony/internal/catalog"
	"patrimony/internal/custody"
	"patrimony/internal/inventory"
	"patrimony/internal/maintenance"
	"patrimony/internal/notifications"
	"patrimony/internal/repository"
	"patrimony/internal/users"
	"patrimony/internal/valuation"
	"patrimony/pkg/auditlog"
	"patrimony/pkg/security"
)

type Container struct {
	Repository         *repository.Repository
	Logger             *zap.Logger
	AuditLog           *auditlog.Auditlog
	Notifier           notifications.Notifier
	LoginHandler       *security.LoginHandler
	AssetService       *assets.Service
	CustodyService     *custody.Service
	InventoryService   *inventory.Service
	MaintenanceService *maintenance.Service
	UserRepository     users.UserRepository
}

func NewAppContainer(db *sql.DB, log *zap.Logger) *Container {
	repo := repository.NewRepository(db)
	auditLog := auditlog.NewAuditLog(auditLogRepo.NewRepository(repo))
	notifier := buildNotifier(log)

	method, err := valuation.NewMethod(os.Getenv("DEPRECIATION_METHOD"))
	if err != nil {
		log.Warn("invalid DEPRECIATION_METHOD, using linear", zap.Error(err))
		method = valuation.MethodLinear
	}

	catalogProvider := catalog.NewRepository(repo)
	userRepo := users.NewRepository(repo)
	roleChecker := security.NewRoleChecker(userRepo)

	custodyService := custody.NewService(custody.NewRepository(repo), repo, auditLog, log)

	assetRepo := assets.NewRepository(repo)
	assetService := assets.NewService(
		assetRepo,
		catalogProvider,
		custodyService,
		roleChecker,
		notifier,
		auditLog,
		repo,
		log,
		os.Getenv("ASSET_CODE_PREFIX"),
		method,
	)

	inventoryService := inventory.NewService(
		inventory.NewRepository(repo), assetRepo, catalogProvider, notifier, auditLog, repo, log,
	)
	maintenanceService := maintenance.NewService(
		maintenance.NewRepository(repo), assetRepo, catalogProvider, notifier, auditLog, repo, log,
	)

	return &Container{
		Repository:         repo,
		Logger:             log,
		AuditLog:           auditLog,
		Notifier:           notifier,
		LoginHandler:       security.NewLoginHandler(repo),
		AssetService:       assetService,
		CustodyService:     custodyService,
		InventoryService:   inventoryService,
		MaintenanceService: maintenanceService,
		UserRepository:     userRepo,
	}
}

func buildNotifier(log *zap.Logger) notifications.Notifier {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Info("REDIS_URL not set, notifications disabled")
		return notifications.NoopNotifier{}
	}

	channel := os.Getenv("NOTIFICATION_CHANNEL")
	if channel == "" {
		channel = notifications.DefaultChannel
	}

	notifier, err := notifications.NewRedisNotifier(redisURL, channel, log)
	if err != nil {
		log.Warn("failed to connect notifier, falling back to noop", zap.Error(err))
		return notifications.NoopNotifier{}
	}
	return notifier
}
