package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type MaintenanceType string

const (
	MaintenancePreventive MaintenanceType = "PREVENTIVE"
	MaintenanceCorrective MaintenanceType = "CORRECTIVE"
	MaintenanceRegulatory MaintenanceType = "REGULATORY"
)

func NewMaintenanceType(value string) (MaintenanceType, error) {
	t := MaintenanceType(value)
	switch t {
	case MaintenancePreventive, MaintenanceCorrective, MaintenanceRegulatory:
		return t, nil
	default:
		return "", fmt.Errorf("invalid maintenance type: %s", value)
	}
}

type OrderStatus string

const (
	OrderPlanned OrderStatus = "PLANNED"
	OrderDone    OrderStatus = "DONE"
)

type MaintenancePriority string

const (
	PriorityCritical MaintenancePriority = "CRITICAL"
	PriorityHigh     MaintenancePriority = "HIGH"
	PriorityNormal   MaintenancePriority = "NORMAL"
	PriorityLow      MaintenancePriority = "LOW"
)

// MaintenanceOrder moves PLANNED to DONE exactly once. Completion may spawn
// a successor order when a recurrence plan is attached.
type MaintenanceOrder struct {
	ID             int              `json:"id" db:"id"`
	AssetID        int              `json:"asset_id" db:"asset_id"`
	Type           MaintenanceType  `json:"type" db:"maintenance_type"`
	PlannedDate    time.Time        `json:"planned_date" db:"planned_date"`
	Status         OrderStatus      `json:"status" db:"status"`
	Description    string           `json:"description" db:"description"`
	Provider       string           `json:"provider" db:"provider"`
	EstimatedCost  *decimal.Decimal `json:"estimated_cost" db:"estimated_cost"`
	ActualCost     *decimal.Decimal `json:"actual_cost" db:"actual_cost"`
	CompletionDate *time.Time       `json:"completion_date" db:"completion_date"`
	Report         string           `json:"report" db:"report"`
	PlanID         *int             `json:"plan_id" db:"plan_id"`
	CreatedBy      string           `json:"created_by" db:"created_by"`
	CompletedBy    string           `json:"completed_by" db:"completed_by"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// RecurrencePlan is a schedule template that auto-generates successor
// orders on completion.
type RecurrencePlan struct {
	ID             int             `json:"id" db:"id"`
	AssetID        int             `json:"asset_id" db:"asset_id"`
	Name           string          `json:"name" db:"name"`
	Type           MaintenanceType `json:"type" db:"maintenance_type"`
	IntervalMonths int             `json:"interval_months" db:"interval_months"`
	Active         bool            `json:"active" db:"active"`
}

func (p *RecurrencePlan) NextDueDate(from time.Time) time.Time {
	return from.AddDate(0, p.IntervalMonths, 0)
}

func (o *MaintenanceOrder) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   o.ID,
		ResourceType: "maintenance_order",
	}
}
