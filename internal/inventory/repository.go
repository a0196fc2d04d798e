package inventory

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"patrimony/internal/repository"
	"patrimony/pkg/apperrors"
	"patrimony/pkg/metadata"
	"patrimony/pkg/models"
)

type CampaignRepository interface {
	InsertCampaign(tx *goqu.TxDatabase, campaign models.InventoryCampaign) (int, error)
	GetCampaign(campaignID int) (*models.InventoryCampaign, error)
	GetCampaignForUpdate(tx *goqu.TxDatabase, campaignID int) (*models.InventoryCampaign, error)
	UpdateCampaignStatus(tx *goqu.TxDatabase, campaignID int, status models.CampaignStatus) error
	ListCampaigns() ([]models.InventoryCampaign, error)
	InsertLineItems(tx *goqu.TxDatabase, lines []models.InventoryLineItem) error
	GetLineForUpdate(tx *goqu.TxDatabase, campaignID, assetID int) (*models.InventoryLineItem, error)
	UpdateLine(tx *goqu.TxDatabase, lineID int, fields goqu.Record) error
	GetLines(campaignID int) ([]models.InventoryLineItem, error)
	GetMissingAssetLines(campaignID int) ([]models.MissingAssetLine, error)
}

type campaignRepositoryImpl struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) CampaignRepository {
	return &campaignRepositoryImpl{repository: r}
}

// flatLineRecord is the scan target; anomaly codes live in a text[] column.
type flatLineRecord struct {
	ID                int                 `db:"id"`
	CampaignID        int                 `db:"campaign_id"`
	AssetID           int                 `db:"asset_id"`
	BaselineValue     decimal.Decimal     `db:"baseline_value"`
	Status            models.LineStatus   `db:"status"`
	Present           *bool               `db:"present"`
	ObservedCondition *metadata.Condition `db:"observed_condition"`
	ObservedLocation  *string             `db:"observed_location"`
	ObservedValue     *decimal.Decimal    `db:"observed_value"`
	AnomalyCodes      pq.StringArray      `db:"anomaly_codes"`
	Notes             string              `db:"notes"`
	VerifiedBy        string              `db:"verified_by"`
	VerifiedAt        *time.Time          `db:"verified_at"`
}

func (f *flatLineRecord) transform() models.InventoryLineItem {
	codes := make([]models.AnomalyCode, 0, len(f.AnomalyCodes))
	for _, c := range f.AnomalyCodes {
		codes = append(codes, models.AnomalyCode(c))
	}
	return models.InventoryLineItem{
		ID:                f.ID,
		CampaignID:        f.CampaignID,
		AssetID:           f.AssetID,
		BaselineValue:     f.BaselineValue,
		Status:            f.Status,
		Present:           f.Present,
		ObservedCondition: f.ObservedCondition,
		ObservedLocation:  f.ObservedLocation,
		ObservedValue:     f.ObservedValue,
		AnomalyCodes:      codes,
		Notes:             f.Notes,
		VerifiedBy:        f.VerifiedBy,
		VerifiedAt:        f.VerifiedAt,
	}
}

func (r *campaignRepositoryImpl) InsertCampaign(tx *goqu.TxDatabase, campaign models.InventoryCampaign) (int, error) {
	var id int
	_, err := tx.Insert("inventory_campaigns").
		Rows(goqu.Record{
			"name":       campaign.Name,
			"start_date": campaign.StartDate,
			"end_date":   campaign.EndDate,
			"status":     campaign.Status,
			"created_by": campaign.CreatedBy,
		}).
		Returning("id").
		Executor().ScanVal(&id)
	if err != nil {
		return 0, apperrors.WrapDBError(fmt.Errorf("failed to insert campaign: %w", err))
	}

	rows := make([]interface{}, 0, len(campaign.UnitIDs))
	for _, unitID := range campaign.UnitIDs {
		rows = append(rows, goqu.Record{"campaign_id": id, "unit_id": unitID})
	}
	if len(rows) > 0 {
		if _, err := tx.Insert("campaign_units").Rows(rows...).Executor().Exec(); err != nil {
			return 0, apperrors.WrapDBError(fmt.Errorf("failed to insert campaign units: %w", err))
		}
	}

	return id, nil
}

func (r *campaignRepositoryImpl) GetCampaign(campaignID int) (*models.InventoryCampaign, error) {
	wrapper := r.repository.GoquDBWrapper

	var campaign models.InventoryCampaign
	found, err := wrapper.Select(
		"id", "name", "start_date", "end_date", "status", "created_by", "created_at",
	).
		From("inventory_campaigns").
		Where(goqu.Ex{"id": campaignID}).
		Executor().ScanStruct(&campaign)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to select campaign: %w", err)
	}
	if !found {
		return nil, &apperrors.NotFoundError{Entity: "campaign", ID: fmt.Sprint(campaignID)}
	}

	if err := wrapper.Select("unit_id").
		From("campaign_units").
		Where(goqu.Ex{"campaign_id": campaignID}).
		Order(goqu.I("unit_id").Asc()).
		Executor().ScanVals(&campaign.UnitIDs); err != nil {
		return nil, fmt.Errorf("failed to select campaign units: %w", err)
	}

	return &campaign, nil
}

// GetCampaignForUpdate locks the campaign row so concurrent line
// recordings and status changes serialize per campaign.
func (r *campaignRepositoryImpl) GetCampaignForUpdate(tx *goqu.TxDatabase, campaignID int) (*models.InventoryCampaign, error) {
	var lockedID int
	found, err := tx.Select("id").
		From("inventory_campaigns").
		Where(goqu.Ex{"id": campaignID}).
		ForUpdate(exp.Wait).
		Executor().ScanVal(&lockedID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock campaign %d: %w", campaignID, err)
	}
	if !found {
		return nil, &apperrors.NotFoundError{Entity: "campaign", ID: fmt.Sprint(campaignID)}
	}

	return r.GetCampaign(campaignID)
}

func (r *campaignRepositoryImpl) UpdateCampaignStatus(tx *goqu.TxDatabase, campaignID int, status models.CampaignStatus) error {
	_, err := tx.Update("inventory_campaigns").
		Set(goqu.Record{"status": status}).
		Where(goqu.Ex{"id": campaignID}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to update campaign %d status: %w", campaignID, err)
	}
	return nil
}

func (r *campaignRepositoryImpl) ListCampaigns() ([]models.InventoryCampaign, error) {
	var campaigns []models.InventoryCampaign
	err := r.repository.GoquDBWrapper.Select(
		"id", "name", "start_date", "end_date", "status", "created_by", "created_at",
	).
		From("inventory_campaigns").
		Order(goqu.I("start_date").Desc()).
		Executor().ScanStructs(&campaigns)
	if err != nil {
		return nil, fmt.Errorf("failed to select campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepositoryImpl) InsertLineItems(tx *goqu.TxDatabase, lines []models.InventoryLineItem) error {
	if len(lines) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, goqu.Record{
			"campaign_id":    line.CampaignID,
			"asset_id":       line.AssetID,
			"baseline_value": line.BaselineValue,
			"status":         line.Status,
		})
	}

	if _, err := tx.Insert("inventory_line_items").Rows(rows...).Executor().Exec(); err != nil {
		return apperrors.WrapDBError(fmt.Errorf("failed to insert line items: %w", err))
	}
	return nil
}

func (r *campaignRepositoryImpl) GetLineForUpdate(tx *goqu.TxDatabase, campaignID, assetID int) (*models.InventoryLineItem, error) {
	var flat flatLineRecord
	found, err := tx.Select(
		"id", "campaign_id", "asset_id", "baseline_value", "status",
		"present", "observed_condition", "observed_location", "observed_value",
		"anomaly_codes", "notes", "verified_by", "verified_at",
	).
		From("inventory_line_items").
		Where(goqu.Ex{"campaign_id": campaignID, "asset_id": assetID}).
		ForUpdate(exp.Wait).
		Executor().ScanStruct(&flat)
	if err != nil {
		return nil, fmt.Errorf("failed to select line item: %w", err)
	}
	if !found {
		return nil, &apperrors.NotFoundError{
			Entity: "inventory line",
			ID:     fmt.Sprintf("campaign %d asset %d", campaignID, assetID),
		}
	}

	line := flat.transform()
	return &line, nil
}

func (r *campaignRepositoryImpl) UpdateLine(tx *goqu.TxDatabase, lineID int, fields goqu.Record) error {
	_, err := tx.Update("inventory_line_items").
		Set(fields).
		Where(goqu.Ex{"id": lineID}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to update line %d: %w", lineID, err)
	}
	return nil
}

func (r *campaignRepositoryImpl) GetLines(campaignID int) ([]models.InventoryLineItem, error) {
	var flats []flatLineRecord
	err := r.repository.GoquDBWrapper.Select(
		"id", "campaign_id", "asset_id", "baseline_value", "status",
		"present", "observed_condition", "observed_location", "observed_value",
		"anomaly_codes", "notes", "verified_by", "verified_at",
	).
		From("inventory_line_items").
		Where(goqu.Ex{"campaign_id": campaignID}).
		Order(goqu.I("id").Asc()).
		Executor().ScanStructs(&flats)
	if err != nil {
		return nil, fmt.Errorf("failed to select line items: %w", err)
	}

	lines := make([]models.InventoryLineItem, 0, len(flats))
	for i := range flats {
		lines = append(lines, flats[i].transform())
	}
	return lines, nil
}

// GetMissingAssetLines returns the asset detail for every line recorded as
// not found, for the campaign report.
func (r *campaignRepositoryImpl) GetMissingAssetLines(campaignID int) ([]models.MissingAssetLine, error) {
	var missing []models.MissingAssetLine
	err := r.repository.GoquDBWrapper.
		From(goqu.T("inventory_line_items").As("l")).
		Join(goqu.T("assets").As("a"), goqu.On(goqu.Ex{"l.asset_id": goqu.I("a.id")})).
		Select(
			goqu.I("a.id").As("asset_id"),
			goqu.I("a.code").As("code"),
			goqu.I("a.name").As("name"),
			goqu.I("l.baseline_value").As("baseline_value"),
			goqu.I("a.location").As("last_location"),
		).
		Where(goqu.Ex{"l.campaign_id": campaignID, "l.present": false}).
		Order(goqu.I("l.baseline_value").Desc()).
		Executor().ScanStructs(&missing)
	if err != nil {
		return nil, fmt.Errorf("failed to select missing assets: %w", err)
	}
	return missing, nil
}
