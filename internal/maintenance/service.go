package maintenance

import (
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"patrimony/internal/catalog"
	"patrimony/internal/notifications"
	"patrimony/internal/repository"
	"patrimony/pkg/apperrors"
	"patrimony/pkg/auditlog"
	"patrimony/pkg/metadata"
	"patrimony/pkg/models"
)

// AssetSource is the slice of the asset store the maintenance workflow
// needs. Satisfied by the assets repository.
type AssetSource interface {
	GetAsset(id int) (*models.Asset, error)
	GetAssetForUpdate(tx *goqu.TxDatabase, id int) (*models.Asset, error)
	UpdateAsset(tx *goqu.TxDatabase, id int, fields goqu.Record) error
}

// Service schedules maintenance orders, completes them (spawning
// successors from recurrence plans) and scores intervention priority.
type Service struct {
	repo     OrderRepository
	assets   AssetSource
	catalog  catalog.Provider
	notifier notifications.Notifier
	auditLog *auditlog.Auditlog
	tx       repository.TxRunner
	log      *zap.Logger
}

func NewService(
	repo OrderRepository,
	assets AssetSource,
	catalogProvider catalog.Provider,
	notifier notifications.Notifier,
	auditLog *auditlog.Auditlog,
	tx repository.TxRunner,
	log *zap.Logger,
) *Service {
	return &Service{
		repo:     repo,
		assets:   assets,
		catalog:  catalogProvider,
		notifier: notifier,
		auditLog: auditLog,
		tx:       tx,
		log:      log,
	}
}

type ScheduleRequest struct {
	AssetID       int              `json:"asset_id"`
	Type          string           `json:"type"`
	PlannedDate   time.Time        `json:"planned_date"`
	Description   string           `json:"description"`
	Provider      string           `json:"provider"`
	EstimatedCost *decimal.Decimal `json:"estimated_cost"`
	PlanID        *int             `json:"plan_id"`
	Actor         string           `json:"-"`
}

// Schedule creates a PLANNED order and pulls the asset's next-maintenance
// date forward if this order is the earliest pending one.
func (s *Service) Schedule(req ScheduleRequest) (*models.MaintenanceOrder, error) {
	maintenanceType, err := models.NewMaintenanceType(req.Type)
	if err != nil {
		return nil, apperrors.Validationf("type", "%v", err)
	}
	if req.PlannedDate.Before(time.Now().Truncate(24 * time.Hour)) {
		return nil, apperrors.Validationf("planned_date", "planned date cannot be in the past")
	}
	if req.EstimatedCost != nil && req.EstimatedCost.IsNegative() {
		return nil, apperrors.Validationf("estimated_cost", "estimated cost must not be negative")
	}

	order := models.MaintenanceOrder{
		AssetID:       req.AssetID,
		Type:          maintenanceType,
		PlannedDate:   req.PlannedDate,
		Status:        models.OrderPlanned,
		Description:   req.Description,
		Provider:      req.Provider,
		EstimatedCost: req.EstimatedCost,
		PlanID:        req.PlanID,
		CreatedBy:     req.Actor,
	}

	err = s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		asset, err := s.assets.GetAssetForUpdate(tx, req.AssetID)
		if err != nil {
			return err
		}
		if asset.Status.IsTerminal() {
			return apperrors.StateConflictf("asset", string(asset.Status),
				"cannot schedule maintenance on a %s asset", asset.Status)
		}

		id, err := s.repo.InsertOrder(tx, order)
		if err != nil {
			return err
		}
		order.ID = id

		if asset.NextMaintenance == nil || req.PlannedDate.Before(*asset.NextMaintenance) {
			if err := s.assets.UpdateAsset(tx, req.AssetID, goqu.Record{
				"next_maintenance": req.PlannedDate,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log("schedule", req.Actor, map[string]interface{}{
		"asset_id":     req.AssetID,
		"type":         maintenanceType,
		"planned_date": req.PlannedDate,
	}, &order)
	s.notifier.Notify(notifications.EventMaintenancePlanned, map[string]interface{}{
		"order_id":     order.ID,
		"asset_id":     req.AssetID,
		"type":         maintenanceType,
		"planned_date": req.PlannedDate,
	})

	return &order, nil
}

type CompleteRequest struct {
	CompletionDate *time.Time       `json:"completion_date"`
	ActualCost     *decimal.Decimal `json:"actual_cost"`
	Report         string           `json:"report"`
	Actor          string           `json:"-"`
}

// Complete moves an order to DONE exactly once. When a recurrence plan is
// attached and active, the successor order is created in the same
// transaction and becomes the asset's next maintenance date.
func (s *Service) Complete(orderID int, req CompleteRequest) (*models.MaintenanceOrder, error) {
	completionDate := time.Now()
	if req.CompletionDate != nil {
		completionDate = *req.CompletionDate
	}
	if req.ActualCost != nil && req.ActualCost.IsNegative() {
		return nil, apperrors.Validationf("actual_cost", "actual cost must not be negative")
	}

	var completed *models.MaintenanceOrder
	var successor *models.MaintenanceOrder
	err := s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		order, err := s.repo.GetOrderForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderPlanned {
			return apperrors.StateConflictf("maintenance order", string(order.Status),
				"order %d has already been completed", orderID)
		}

		actualCost := req.ActualCost
		if actualCost == nil {
			actualCost = order.EstimatedCost
		}

		if err := s.repo.UpdateOrder(tx, orderID, goqu.Record{
			"status":          models.OrderDone,
			"completion_date": completionDate,
			"actual_cost":     actualCost,
			"report":          req.Report,
			"completed_by":    req.Actor,
		}); err != nil {
			return err
		}

		order.Status = models.OrderDone
		order.CompletionDate = &completionDate
		order.ActualCost = actualCost
		order.Report = req.Report
		order.CompletedBy = req.Actor
		completed = order

		nextMaintenance := interface{}(nil)
		if order.PlanID != nil {
			plan, err := s.repo.GetPlan(*order.PlanID)
			if err != nil {
				return err
			}
			if plan.Active {
				next := models.MaintenanceOrder{
					AssetID:       order.AssetID,
					Type:          plan.Type,
					PlannedDate:   plan.NextDueDate(completionDate),
					Status:        models.OrderPlanned,
					Description:   order.Description,
					Provider:      order.Provider,
					EstimatedCost: order.EstimatedCost,
					PlanID:        order.PlanID,
					CreatedBy:     req.Actor,
				}
				id, err := s.repo.InsertOrder(tx, next)
				if err != nil {
					return err
				}
				next.ID = id
				successor = &next
				nextMaintenance = next.PlannedDate
			}
		}

		return s.assets.UpdateAsset(tx, order.AssetID, goqu.Record{
			"next_maintenance": nextMaintenance,
		})
	})
	if err != nil {
		return nil, err
	}

	if successor != nil {
		s.log.Info("recurrence plan spawned successor order",
			zap.Int("completed_order_id", orderID),
			zap.Int("successor_order_id", successor.ID),
			zap.Time("planned_date", successor.PlannedDate))
	}

	go s.auditLog.Log("complete", req.Actor, map[string]interface{}{
		"completion_date": completionDate,
		"actual_cost":     completed.ActualCost,
	}, completed)
	s.notifier.Notify(notifications.EventMaintenanceDone, map[string]interface{}{
		"order_id": orderID,
		"asset_id": completed.AssetID,
	})

	return completed, nil
}

type CreatePlanRequest struct {
	AssetID        int    `json:"asset_id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	IntervalMonths int    `json:"interval_months"`
	Actor          string `json:"-"`
}

func (s *Service) CreatePlan(req CreatePlanRequest) (*models.RecurrencePlan, error) {
	maintenanceType, err := models.NewMaintenanceType(req.Type)
	if err != nil {
		return nil, apperrors.Validationf("type", "%v", err)
	}
	if req.IntervalMonths <= 0 {
		return nil, apperrors.Validationf("interval_months", "interval must be positive")
	}

	plan := models.RecurrencePlan{
		AssetID:        req.AssetID,
		Name:           req.Name,
		Type:           maintenanceType,
		IntervalMonths: req.IntervalMonths,
		Active:         true,
	}

	err = s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		id, err := s.repo.InsertPlan(tx, plan)
		if err != nil {
			return err
		}
		plan.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// PriorityAssessment is the scored urgency of one maintenance order.
type PriorityAssessment struct {
	OrderID  int                        `json:"order_id"`
	AssetID  int                        `json:"asset_id"`
	Score    int                        `json:"score"`
	Priority models.MaintenancePriority `json:"priority"`
	Factors  []string                   `json:"factors"`
}

// Priority scores an order from its asset's book value tier, penalizing
// condition and critical subcategory, plus the order's own lateness.
func (s *Service) Priority(orderID int) (*PriorityAssessment, error) {
	order, err := s.repo.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	asset, err := s.assets.GetAsset(order.AssetID)
	if err != nil {
		return nil, err
	}
	categories, err := s.catalog.Categories()
	if err != nil {
		return nil, err
	}

	assessment := &PriorityAssessment{OrderID: orderID, AssetID: order.AssetID}

	tier := models.ValueTier(asset.CurrentValue)
	assessment.Score += tier
	switch tier {
	case 3:
		assessment.Factors = append(assessment.Factors, "high book value")
	case 2:
		assessment.Factors = append(assessment.Factors, "significant book value")
	}

	if asset.Condition == metadata.ConditionPoor || asset.Condition == metadata.ConditionAverage {
		assessment.Score += 2
		assessment.Factors = append(assessment.Factors, "worn condition")
	}

	if subcategory, ok := categories.Subcategory(asset.Subcategory.ID); ok && subcategory.Critical {
		assessment.Score += 3
		assessment.Factors = append(assessment.Factors, "critical equipment family")
	}

	today := time.Now().Truncate(24 * time.Hour)
	if order.Status == models.OrderPlanned && order.PlannedDate.Before(today) {
		assessment.Score += 2
		assessment.Factors = append(assessment.Factors, "maintenance overdue")
	}

	switch {
	case assessment.Score >= 7:
		assessment.Priority = models.PriorityCritical
	case assessment.Score >= 4:
		assessment.Priority = models.PriorityHigh
	case assessment.Score >= 2:
		assessment.Priority = models.PriorityNormal
	default:
		assessment.Priority = models.PriorityLow
	}

	return assessment, nil
}

// FailureStats summarizes corrective interventions over an observation
// window. MTBFDays is nil when fewer than two completed corrective orders
// exist, the statistic being meaningless with a single point.
type FailureStats struct {
	AssetID      int        `json:"asset_id"`
	Since        time.Time  `json:"since"`
	FailureCount int        `json:"failure_count"`
	MTBFDays     *float64   `json:"mtbf_days"`
	LastFailure  *time.Time `json:"last_failure"`
}

func (s *Service) FailureStats(assetID int, windowMonths int) (*FailureStats, error) {
	if windowMonths <= 0 {
		windowMonths = 24
	}
	since := time.Now().AddDate(0, -windowMonths, 0)

	orders, err := s.repo.GetCompletedCorrectiveOrders(assetID, since)
	if err != nil {
		return nil, err
	}

	stats := &FailureStats{
		AssetID:      assetID,
		Since:        since,
		FailureCount: len(orders),
	}
	if len(orders) == 0 {
		return stats, nil
	}

	last := *orders[len(orders)-1].CompletionDate
	stats.LastFailure = &last

	if len(orders) < 2 {
		return stats, nil
	}

	var totalDays float64
	for i := 1; i < len(orders); i++ {
		delta := orders[i].CompletionDate.Sub(*orders[i-1].CompletionDate)
		totalDays += delta.Hours() / 24
	}
	mtbf := totalDays / float64(len(orders)-1)
	stats.MTBFDays = &mtbf

	return stats, nil
}

// FleetFailureStats pools per-asset failure intervals across a set of
// assets (all assets when the filter is empty) into one overall MTBF.
// Intervals never span assets; an asset with a single failure contributes
// to the count but not to the average.
type FleetFailureStats struct {
	AssetIDs       []int     `json:"asset_ids,omitempty"`
	Since          time.Time `json:"since"`
	FailureCount   int       `json:"failure_count"`
	AssetsAffected int       `json:"assets_affected"`
	MTBFDays       *float64  `json:"mtbf_days"`
}

func (s *Service) FleetFailures(assetIDs []int, windowMonths int) (*FleetFailureStats, error) {
	if windowMonths <= 0 {
		windowMonths = 24
	}
	since := time.Now().AddDate(0, -windowMonths, 0)

	orders, err := s.repo.GetCompletedCorrectiveOrdersForFleet(assetIDs, since)
	if err != nil {
		return nil, err
	}

	stats := &FleetFailureStats{
		AssetIDs:     assetIDs,
		Since:        since,
		FailureCount: len(orders),
	}

	byAsset := make(map[int][]models.MaintenanceOrder)
	for _, order := range orders {
		byAsset[order.AssetID] = append(byAsset[order.AssetID], order)
	}
	stats.AssetsAffected = len(byAsset)

	var totalDays float64
	intervals := 0
	for _, assetOrders := range byAsset {
		for i := 1; i < len(assetOrders); i++ {
			delta := assetOrders[i].CompletionDate.Sub(*assetOrders[i-1].CompletionDate)
			totalDays += delta.Hours() / 24
			intervals++
		}
	}
	if intervals > 0 {
		mtbf := totalDays / float64(intervals)
		stats.MTBFDays = &mtbf
	}

	return stats, nil
}

func (s *Service) GetOrder(orderID int) (*models.MaintenanceOrder, error) {
	return s.repo.GetOrder(orderID)
}

func (s *Service) OrdersByAsset(assetID int) ([]models.MaintenanceOrder, error) {
	return s.repo.GetOrdersByAsset(assetID)
}

func (s *Service) PlansByAsset(assetID int) ([]models.RecurrencePlan, error) {
	return s.repo.GetPlansByAsset(assetID)
}
