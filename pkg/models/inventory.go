package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"patrimony/pkg/metadata"
)

type CampaignStatus string

const (
	CampaignPlanned    CampaignStatus = "PLANNED"
	CampaignInProgress CampaignStatus = "IN_PROGRESS"
	CampaignClosed     CampaignStatus = "CLOSED"
)

// CanAdvanceTo enforces the monotonic campaign progression.
func (s CampaignStatus) CanAdvanceTo(target CampaignStatus) bool {
	switch s {
	case CampaignPlanned:
		return target == CampaignInProgress || target == CampaignClosed
	case CampaignInProgress:
		return target == CampaignClosed
	default:
		return false
	}
}

type LineStatus string

const (
	LineToVerify LineStatus = "TO_VERIFY"
	LineVerified LineStatus = "VERIFIED"
	LineAnomaly  LineStatus = "ANOMALY"
)

type AnomalyCode string

const (
	AnomalyNotFound           AnomalyCode = "NOT_FOUND"
	AnomalyRelocationMismatch AnomalyCode = "RELOCATION_MISMATCH"
	AnomalyConditionDegraded  AnomalyCode = "CONDITION_DEGRADED"
	AnomalyValueVariance      AnomalyCode = "VALUE_VARIANCE"
)

type InventoryCampaign struct {
	ID        int            `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	StartDate time.Time      `json:"start_date" db:"start_date"`
	EndDate   time.Time      `json:"end_date" db:"end_date"`
	UnitIDs   []int          `json:"unit_ids"`
	Status    CampaignStatus `json:"status" db:"status"`
	CreatedBy string         `json:"created_by" db:"created_by"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// InventoryLineItem is one asset's record within one campaign. The baseline
// book value is frozen at campaign creation; the line is recorded exactly
// once.
type InventoryLineItem struct {
	ID                int                 `json:"id" db:"id"`
	CampaignID        int                 `json:"campaign_id" db:"campaign_id"`
	AssetID           int                 `json:"asset_id" db:"asset_id"`
	BaselineValue     decimal.Decimal     `json:"baseline_value" db:"baseline_value"`
	Status            LineStatus          `json:"status" db:"status"`
	Present           *bool               `json:"present" db:"present"`
	ObservedCondition *metadata.Condition `json:"observed_condition" db:"observed_condition"`
	ObservedLocation  *string             `json:"observed_location" db:"observed_location"`
	ObservedValue     *decimal.Decimal    `json:"observed_value" db:"observed_value"`
	AnomalyCodes      []AnomalyCode       `json:"anomaly_codes"`
	Notes             string              `json:"notes" db:"notes"`
	VerifiedBy        string              `json:"verified_by" db:"verified_by"`
	VerifiedAt        *time.Time          `json:"verified_at" db:"verified_at"`
}

// CampaignReport is the on-demand aggregation over a campaign's lines.
type CampaignReport struct {
	Campaign        InventoryCampaign   `json:"campaign"`
	TotalLines      int                 `json:"total_lines"`
	VerifiedLines   int                 `json:"verified_lines"`
	AnomalyLines    int                 `json:"anomaly_lines"`
	PendingLines    int                 `json:"pending_lines"`
	ProgressPct     float64             `json:"progress_pct"`
	PresencePct     float64             `json:"presence_pct"`
	AnomaliesByCode map[AnomalyCode]int `json:"anomalies_by_code"`
	BaselineTotal   decimal.Decimal     `json:"baseline_total"`
	ObservedTotal   decimal.Decimal     `json:"observed_total"`
	MissingAssets   []MissingAssetLine  `json:"missing_assets"`
}

type MissingAssetLine struct {
	AssetID       int             `json:"asset_id" db:"asset_id"`
	Code          string          `json:"code" db:"code"`
	Name          string          `json:"name" db:"name"`
	BaselineValue decimal.Decimal `json:"baseline_value" db:"baseline_value"`
	LastLocation  string          `json:"last_location" db:"last_location"`
}

func (c *InventoryCampaign) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   c.ID,
		ResourceType: "inventory_campaign",
	}
}

func NewCampaignStatus(value string) (CampaignStatus, error) {
	s := CampaignStatus(value)
	switch s {
	case CampaignPlanned, CampaignInProgress, CampaignClosed:
		return s, nil
	default:
		return "", fmt.Errorf("invalid campaign status: %s", value)
	}
}
