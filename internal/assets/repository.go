package assets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/shopspring/decimal"

	"patrimony/internal/repository"
	"patrimony/pkg/apperrors"
	"patrimony/pkg/metadata"
	"patrimony/pkg/models"
)

type AssetRepository interface {
	GetAsset(id int) (*models.Asset, error)
	FindAssetByCode(code string) (*models.Asset, error)
	GetAssetForUpdate(tx *goqu.TxDatabase, id int) (*models.Asset, error)
	GetAssetsBy(conditions repository.QueryBuilder) ([]models.Asset, error)
	CodeExists(code string) (bool, error)
	LastSequence(tx *goqu.TxDatabase, seriesPrefix string) (int, error)
	InsertAsset(tx *goqu.TxDatabase, asset *models.Asset) (int, error)
	UpdateAsset(tx *goqu.TxDatabase, id int, fields goqu.Record) error
	InsertValuationRecord(tx *goqu.TxDatabase, record models.ValuationRecord) (int, error)
	GetValuationHistory(assetID int) ([]models.ValuationRecord, error)
	InsertMovement(tx *goqu.TxDatabase, movement models.Movement) (int, error)
	GetMovements(assetID int) ([]models.Movement, error)
	FindAtRisk(now time.Time, valueThreshold decimal.Decimal) ([]models.Asset, error)
}

type assetsRepositoryImpl struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) AssetRepository {
	return &assetsRepositoryImpl{repository: r}
}

func (r *assetsRepositoryImpl) getAssetQuery() *goqu.SelectDataset {
	return r.repository.GoquDBWrapper.
		From(goqu.T("assets").As("a")).
		Join(goqu.T("categories").As("c"), goqu.On(goqu.Ex{"a.category_id": goqu.I("c.id")})).
		Join(goqu.T("subcategories").As("s"), goqu.On(goqu.Ex{"a.subcategory_id": goqu.I("s.id")})).
		Join(goqu.T("org_units").As("u"), goqu.On(goqu.Ex{"a.unit_id": goqu.I("u.id")})).
		Select(
			goqu.I("a.id").As("id"),
			goqu.I("a.code").As("code"),
			goqu.I("a.name").As("name"),
			goqu.I("a.description").As("description"),
			goqu.I("a.location").As("location"),
			goqu.I("a.serial_number").As("serial_number"),
			goqu.I("a.acquisition_value").As("acquisition_value"),
			goqu.I("a.currency").As("currency"),
			goqu.I("a.acquisition_date").As("acquisition_date"),
			goqu.I("a.duration_months").As("duration_months"),
			goqu.I("a.residual_value").As("residual_value"),
			goqu.I("a.status").As("status"),
			goqu.I("a.condition").As("condition"),
			goqu.I("a.current_value").As("current_value"),
			goqu.I("a.next_maintenance").As("next_maintenance"),
			goqu.I("a.warranty_end").As("warranty_end"),
			goqu.I("a.last_inventoried").As("last_inventoried"),
			goqu.I("a.created_at").As("created_at"),
			goqu.I("c.id").As("category_id"),
			goqu.I("c.code").As("category_code"),
			goqu.I("c.name").As("category_name"),
			goqu.I("s.id").As("subcategory_id"),
			goqu.I("s.code").As("subcategory_code"),
			goqu.I("s.name").As("subcategory_name"),
			goqu.I("u.id").As("unit_id"),
			goqu.I("u.code").As("unit_code"),
			goqu.I("u.name").As("unit_name"),
		)
}

func (r *assetsRepositoryImpl) fetchFlatAssetByCondition(condition goqu.Ex, label string) (*models.Asset, error) {
	var flat models.FlatAssetRecord
	found, err := r.getAssetQuery().Where(condition).Executor().ScanStruct(&flat)
	if err != nil {
		return nil, fmt.Errorf("unable to select asset from database: %w", err)
	}
	if !found {
		return nil, &apperrors.NotFoundError{Entity: "asset", ID: label}
	}

	asset := flat.TransformToAsset()
	return &asset, nil
}

func (r *assetsRepositoryImpl) GetAsset(id int) (*models.Asset, error) {
	return r.fetchFlatAssetByCondition(goqu.Ex{"a.id": id}, strconv.Itoa(id))
}

func (r *assetsRepositoryImpl) FindAssetByCode(code string) (*models.Asset, error) {
	return r.fetchFlatAssetByCondition(goqu.Ex{"a.code": code}, code)
}

// GetAssetForUpdate locks the asset row for the remainder of the
// transaction, then reads the joined view.
func (r *assetsRepositoryImpl) GetAssetForUpdate(tx *goqu.TxDatabase, id int) (*models.Asset, error) {
	var lockedID int
	found, err := tx.Select("id").
		From("assets").
		Where(goqu.Ex{"id": id}).
		ForUpdate(exp.Wait).
		Executor().ScanVal(&lockedID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock asset %d: %w", id, err)
	}
	if !found {
		return nil, &apperrors.NotFoundError{Entity: "asset", ID: strconv.Itoa(id)}
	}

	return r.GetAsset(id)
}

func (r *assetsRepositoryImpl) GetAssetsBy(conditions repository.QueryBuilder) ([]models.Asset, error) {
	aliases := map[string]string{
		"unit_id":        "a.unit_id",
		"unit_ids":       "a.unit_id",
		"category_id":    "a.category_id",
		"subcategory_id": "a.subcategory_id",
		"status":         "a.status",
		"condition":      "a.condition",
	}

	query := r.getAssetQuery().
		Where(conditions.BuildConditions(aliases)).
		Order(goqu.I("a.id").Asc())

	var flatAssets []models.FlatAssetRecord
	if err := query.Executor().ScanStructs(&flatAssets); err != nil {
		return nil, fmt.Errorf("unable to select assets from database: %w", err)
	}

	assets := make([]models.Asset, 0, len(flatAssets))
	for _, flat := range flatAssets {
		assets = append(assets, flat.TransformToAsset())
	}
	return assets, nil
}

func (r *assetsRepositoryImpl) CodeExists(code string) (bool, error) {
	var count int
	_, err := r.repository.GoquDBWrapper.Select(goqu.COUNT("id")).
		From("assets").
		Where(goqu.Ex{"code": code}).
		Executor().ScanVal(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check code uniqueness: %w", err)
	}
	return count > 0, nil
}

// LastSequence finds the highest issued sequence in a prefix+year+category
// series. Called inside the creating transaction so two concurrent creates
// cannot issue the same code; the unique index on code backstops it.
func (r *assetsRepositoryImpl) LastSequence(tx *goqu.TxDatabase, seriesPrefix string) (int, error) {
	var lastCode string
	found, err := tx.Select("code").
		From("assets").
		Where(goqu.I("code").Like(seriesPrefix + "%")).
		Order(goqu.I("code").Desc()).
		Limit(1).
		ForUpdate(exp.Wait).
		Executor().ScanVal(&lastCode)
	if err != nil {
		return 0, fmt.Errorf("failed to find last code in series %s: %w", seriesPrefix, err)
	}
	if !found {
		return 0, nil
	}

	parts := strings.Split(lastCode, "-")
	sequence, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, nil
	}
	return sequence, nil
}

func (r *assetsRepositoryImpl) InsertAsset(tx *goqu.TxDatabase, asset *models.Asset) (int, error) {
	var id int
	_, err := tx.Insert("assets").
		Rows(goqu.Record{
			"code":              asset.Code,
			"name":              asset.Name,
			"description":       asset.Description,
			"category_id":       asset.Category.ID,
			"subcategory_id":    asset.Subcategory.ID,
			"unit_id":           asset.Unit.ID,
			"location":          asset.Location,
			"serial_number":     asset.SerialNumber,
			"acquisition_value": asset.AcquisitionValue,
			"currency":          asset.Currency,
			"acquisition_date":  asset.AcquisitionDate,
			"duration_months":   asset.DurationMonths,
			"residual_value":    asset.ResidualValue,
			"status":            asset.Status,
			"condition":         asset.Condition,
			"current_value":     asset.CurrentValue,
			"warranty_end":      asset.WarrantyEnd,
		}).
		Returning("id").
		Executor().ScanVal(&id)
	if err != nil {
		return 0, apperrors.WrapDBError(fmt.Errorf("failed to insert asset: %w", err))
	}
	return id, nil
}

func (r *assetsRepositoryImpl) UpdateAsset(tx *goqu.TxDatabase, id int, fields goqu.Record) error {
	_, err := tx.Update("assets").
		Set(fields).
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return apperrors.WrapDBError(fmt.Errorf("failed to update asset %d: %w", id, err))
	}
	return nil
}

func (r *assetsRepositoryImpl) InsertValuationRecord(tx *goqu.TxDatabase, record models.ValuationRecord) (int, error) {
	var id int
	_, err := tx.Insert("valuation_records").
		Rows(goqu.Record{
			"asset_id":        record.AssetID,
			"effective_date":  record.EffectiveDate,
			"value":           record.Value,
			"evaluation_type": record.Type,
			"rationale":       record.Rationale,
			"evaluator":       record.Evaluator,
			"created_by":      record.CreatedBy,
		}).
		Returning("id").
		Executor().ScanVal(&id)
	if err != nil {
		return 0, apperrors.WrapDBError(fmt.Errorf("failed to insert valuation record: %w", err))
	}
	return id, nil
}

func (r *assetsRepositoryImpl) GetValuationHistory(assetID int) ([]models.ValuationRecord, error) {
	var records []models.ValuationRecord
	err := r.repository.GoquDBWrapper.Select(
		"id", "asset_id", "effective_date", "value",
		"evaluation_type", "rationale", "evaluator", "created_by", "created_at",
	).
		From("valuation_records").
		Where(goqu.Ex{"asset_id": assetID}).
		Order(goqu.I("effective_date").Desc()).
		Executor().ScanStructs(&records)
	if err != nil {
		return nil, fmt.Errorf("failed to select valuation history: %w", err)
	}
	return records, nil
}

func (r *assetsRepositoryImpl) InsertMovement(tx *goqu.TxDatabase, movement models.Movement) (int, error) {
	var id int
	_, err := tx.Insert("movements").
		Rows(goqu.Record{
			"asset_id":       movement.AssetID,
			"from_unit_id":   movement.FromUnitID,
			"to_unit_id":     movement.ToUnitID,
			"effective_date": movement.EffectiveDate,
			"reason":         movement.Reason,
			"created_by":     movement.CreatedBy,
		}).
		Returning("id").
		Executor().ScanVal(&id)
	if err != nil {
		return 0, apperrors.WrapDBError(fmt.Errorf("failed to insert movement: %w", err))
	}
	return id, nil
}

// FindAtRisk screens the live fleet for assets that need attention:
// overdue maintenance, warranty expired within the last 90 days, degraded
// condition, or a book value above the high-value threshold.
func (r *assetsRepositoryImpl) FindAtRisk(now time.Time, valueThreshold decimal.Decimal) ([]models.Asset, error) {
	warrantyWindow := now.AddDate(0, 0, -90)

	query := r.getAssetQuery().
		Where(
			goqu.I("a.status").NotIn(metadata.TerminalStatuses()),
			goqu.Or(
				goqu.I("a.next_maintenance").Lt(now),
				goqu.And(
					goqu.I("a.warranty_end").Lt(now),
					goqu.I("a.warranty_end").Gte(warrantyWindow),
				),
				goqu.I("a.condition").In(metadata.ConditionPoor, metadata.ConditionUnusable),
				goqu.I("a.current_value").Gte(valueThreshold),
			),
		).
		Order(goqu.I("a.current_value").Desc())

	var flatAssets []models.FlatAssetRecord
	if err := query.Executor().ScanStructs(&flatAssets); err != nil {
		return nil, fmt.Errorf("unable to select at-risk assets from database: %w", err)
	}

	assets := make([]models.Asset, 0, len(flatAssets))
	for _, flat := range flatAssets {
		assets = append(assets, flat.TransformToAsset())
	}
	return assets, nil
}

func (r *assetsRepositoryImpl) GetMovements(assetID int) ([]models.Movement, error) {
	var movements []models.Movement
	err := r.repository.GoquDBWrapper.Select(
		"id", "asset_id", "from_unit_id", "to_unit_id",
		"effective_date", "reason", "created_by", "created_at",
	).
		From("movements").
		Where(goqu.Ex{"asset_id": assetID}).
		Order(goqu.I("effective_date").Desc()).
		Executor().ScanStructs(&movements)
	if err != nil {
		return nil, fmt.Errorf("failed to select movements: %w", err)
	}
	return movements, nil
}
