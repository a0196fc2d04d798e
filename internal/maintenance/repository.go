package maintenance

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"patrimony/internal/repository"
	"patrimony/pkg/apperrors"
	"patrimony/pkg/models"
)

type OrderRepository interface {
	InsertOrder(tx *goqu.TxDatabase, order models.MaintenanceOrder) (int, error)
	GetOrder(orderID int) (*models.MaintenanceOrder, error)
	GetOrderForUpdate(tx *goqu.TxDatabase, orderID int) (*models.MaintenanceOrder, error)
	UpdateOrder(tx *goqu.TxDatabase, orderID int, fields goqu.Record) error
	GetOrdersByAsset(assetID int) ([]models.MaintenanceOrder, error)
	GetCompletedCorrectiveOrders(assetID int, since time.Time) ([]models.MaintenanceOrder, error)
	GetCompletedCorrectiveOrdersForFleet(assetIDs []int, since time.Time) ([]models.MaintenanceOrder, error)
	InsertPlan(tx *goqu.TxDatabase, plan models.RecurrencePlan) (int, error)
	GetPlan(planID int) (*models.RecurrencePlan, error)
	GetPlansByAsset(assetID int) ([]models.RecurrencePlan, error)
}

type orderRepositoryImpl struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) OrderRepository {
	return &orderRepositoryImpl{repository: r}
}

var orderColumns = []interface{}{
	"id", "asset_id", "maintenance_type", "planned_date", "status",
	"description", "provider", "estimated_cost", "actual_cost",
	"completion_date", "report", "plan_id", "created_by", "completed_by", "created_at",
}

func (r *orderRepositoryImpl) InsertOrder(tx *goqu.TxDatabase, order models.MaintenanceOrder) (int, error) {
	var id int
	_, err := tx.Insert("maintenance_orders").
		Rows(goqu.Record{
			"asset_id":         order.AssetID,
			"maintenance_type": order.Type,
			"planned_date":     order.PlannedDate,
			"status":           order.Status,
			"description":      order.Description,
			"provider":         order.Provider,
			"estimated_cost":   order.EstimatedCost,
			"plan_id":          order.PlanID,
			"created_by":       order.CreatedBy,
		}).
		Returning("id").
		Executor().ScanVal(&id)
	if err != nil {
		return 0, apperrors.WrapDBError(fmt.Errorf("failed to insert maintenance order: %w", err))
	}
	return id, nil
}

func (r *orderRepositoryImpl) GetOrder(orderID int) (*models.MaintenanceOrder, error) {
	var order models.MaintenanceOrder
	found, err := r.repository.GoquDBWrapper.Select(orderColumns...).
		From("maintenance_orders").
		Where(goqu.Ex{"id": orderID}).
		Executor().ScanStruct(&order)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to select maintenance order: %w", err)
	}
	if !found {
		return nil, &apperrors.NotFoundError{Entity: "maintenance order", ID: fmt.Sprint(orderID)}
	}
	return &order, nil
}

func (r *orderRepositoryImpl) GetOrderForUpdate(tx *goqu.TxDatabase, orderID int) (*models.MaintenanceOrder, error) {
	var order models.MaintenanceOrder
	found, err := tx.Select(orderColumns...).
		From("maintenance_orders").
		Where(goqu.Ex{"id": orderID}).
		ForUpdate(exp.Wait).
		Executor().ScanStruct(&order)
	if err != nil {
		return nil, fmt.Errorf("failed to lock maintenance order %d: %w", orderID, err)
	}
	if !found {
		return nil, &apperrors.NotFoundError{Entity: "maintenance order", ID: fmt.Sprint(orderID)}
	}
	return &order, nil
}

func (r *orderRepositoryImpl) UpdateOrder(tx *goqu.TxDatabase, orderID int, fields goqu.Record) error {
	_, err := tx.Update("maintenance_orders").
		Set(fields).
		Where(goqu.Ex{"id": orderID}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to update maintenance order %d: %w", orderID, err)
	}
	return nil
}

func (r *orderRepositoryImpl) GetOrdersByAsset(assetID int) ([]models.MaintenanceOrder, error) {
	var orders []models.MaintenanceOrder
	err := r.repository.GoquDBWrapper.Select(orderColumns...).
		From("maintenance_orders").
		Where(goqu.Ex{"asset_id": assetID}).
		Order(goqu.I("planned_date").Desc()).
		Executor().ScanStructs(&orders)
	if err != nil {
		return nil, fmt.Errorf("failed to select maintenance orders: %w", err)
	}
	return orders, nil
}

// GetCompletedCorrectiveOrders feeds the failure-interval statistic;
// ordered by completion so intervals come out consecutive.
func (r *orderRepositoryImpl) GetCompletedCorrectiveOrders(assetID int, since time.Time) ([]models.MaintenanceOrder, error) {
	var orders []models.MaintenanceOrder
	err := r.repository.GoquDBWrapper.Select(orderColumns...).
		From("maintenance_orders").
		Where(goqu.Ex{
			"asset_id":         assetID,
			"maintenance_type": models.MaintenanceCorrective,
			"status":           models.OrderDone,
		}).
		Where(goqu.I("completion_date").Gte(since)).
		Order(goqu.I("completion_date").Asc()).
		Executor().ScanStructs(&orders)
	if err != nil {
		return nil, fmt.Errorf("failed to select corrective orders: %w", err)
	}
	return orders, nil
}

// GetCompletedCorrectiveOrdersForFleet is the multi-asset variant; an
// empty assetIDs slice means the whole fleet. Ordered per asset so each
// asset's completions come out consecutive.
func (r *orderRepositoryImpl) GetCompletedCorrectiveOrdersForFleet(assetIDs []int, since time.Time) ([]models.MaintenanceOrder, error) {
	query := r.repository.GoquDBWrapper.Select(orderColumns...).
		From("maintenance_orders").
		Where(goqu.Ex{
			"maintenance_type": models.MaintenanceCorrective,
			"status":           models.OrderDone,
		}).
		Where(goqu.I("completion_date").Gte(since))
	if len(assetIDs) > 0 {
		query = query.Where(goqu.C("asset_id").In(assetIDs))
	}

	var orders []models.MaintenanceOrder
	err := query.
		Order(goqu.I("asset_id").Asc(), goqu.I("completion_date").Asc()).
		Executor().ScanStructs(&orders)
	if err != nil {
		return nil, fmt.Errorf("failed to select fleet corrective orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepositoryImpl) InsertPlan(tx *goqu.TxDatabase, plan models.RecurrencePlan) (int, error) {
	var id int
	_, err := tx.Insert("recurrence_plans").
		Rows(goqu.Record{
			"asset_id":         plan.AssetID,
			"name":             plan.Name,
			"maintenance_type": plan.Type,
			"interval_months":  plan.IntervalMonths,
			"active":           plan.Active,
		}).
		Returning("id").
		Executor().ScanVal(&id)
	if err != nil {
		return 0, apperrors.WrapDBError(fmt.Errorf("failed to insert recurrence plan: %w", err))
	}
	return id, nil
}

func (r *orderRepositoryImpl) GetPlan(planID int) (*models.RecurrencePlan, error) {
	var plan models.RecurrencePlan
	found, err := r.repository.GoquDBWrapper.Select(
		"id", "asset_id", "name", "maintenance_type", "interval_months", "active",
	).
		From("recurrence_plans").
		Where(goqu.Ex{"id": planID}).
		Executor().ScanStruct(&plan)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to select recurrence plan: %w", err)
	}
	if !found {
		return nil, &apperrors.NotFoundError{Entity: "recurrence plan", ID: fmt.Sprint(planID)}
	}
	return &plan, nil
}

func (r *orderRepositoryImpl) GetPlansByAsset(assetID int) ([]models.RecurrencePlan, error) {
	var plans []models.RecurrencePlan
	err := r.repository.GoquDBWrapper.Select(
		"id", "asset_id", "name", "maintenance_type", "interval_months", "active",
	).
		From("recurrence_plans").
		Where(goqu.Ex{"asset_id": assetID}).
		Order(goqu.I("id").Asc()).
		Executor().ScanStructs(&plans)
	if err != nil {
		return nil, fmt.Errorf("failed to select recurrence plans: %w", err)
	}
	return plans, nil
}
