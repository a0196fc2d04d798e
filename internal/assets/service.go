package assets

import (
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"patrimony/internal/catalog"
	"patrimony/internal/notifications"
	"patrimony/internal/repository"
	"patrimony/internal/valuation"
	"patrimony/pkg/apperrors"
	"patrimony/pkg/auditlog"
	"patrimony/pkg/metadata"
	"patrimony/pkg/models"
	"patrimony/pkg/security"
)

// CustodyCloser is the slice of the custody manager the lifecycle service
// needs: closing assignments atomically inside its own transaction.
type CustodyCloser interface {
	CloseAllOpenTx(tx *goqu.TxDatabase, assetID int, effectiveDate time.Time) error
	CloseOpenForUnitTx(tx *goqu.TxDatabase, assetID, unitID int, effectiveDate time.Time) error
}

// Service owns the asset lifecycle. Every mutation of an Asset row goes
// through one of its operations; collaborating components only read.
type Service struct {
	repo       AssetRepository
	catalog    catalog.Provider
	custody    CustodyCloser
	perms      security.PermissionChecker
	notifier   notifications.Notifier
	auditLog   *auditlog.Auditlog
	tx         repository.TxRunner
	log        *zap.Logger
	codePrefix string
	method     valuation.Method
}

func NewService(
	repo AssetRepository,
	catalogProvider catalog.Provider,
	custodyCloser CustodyCloser,
	perms security.PermissionChecker,
	notifier notifications.Notifier,
	auditLog *auditlog.Auditlog,
	tx repository.TxRunner,
	log *zap.Logger,
	codePrefix string,
	method valuation.Method,
) *Service {
	if codePrefix == "" {
		codePrefix = metadata.DefaultPrefix
	}
	if method == "" {
		method = valuation.MethodLinear
	}
	return &Service{
		repo:       repo,
		catalog:    catalogProvider,
		custody:    custodyCloser,
		perms:      perms,
		notifier:   notifier,
		auditLog:   auditLog,
		tx:         tx,
		log:        log,
		codePrefix: codePrefix,
		method:     method,
	}
}

type CreateAssetRequest struct {
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	CategoryID       int             `json:"category_id"`
	SubcategoryID    int             `json:"subcategory_id"`
	UnitID           int             `json:"unit_id"`
	Location         string          `json:"location"`
	SerialNumber     string          `json:"serial_number"`
	AcquisitionValue decimal.Decimal `json:"acquisition_value"`
	Currency         string          `json:"currency"`
	AcquisitionDate  time.Time       `json:"acquisition_date"`
	DurationMonths   *int            `json:"duration_months"`
	ResidualValue    decimal.Decimal `json:"residual_value"`
	Condition        string          `json:"condition"`
	WarrantyEnd      *time.Time      `json:"warranty_end"`
	Actor            string          `json:"-"`
}

// CreateAsset validates the acquisition facts, issues the inventory code
// and writes the asset together with its seed ACQUISITION valuation
// record in one transaction.
func (s *Service) CreateAsset(req CreateAssetRequest) (*models.Asset, error) {
	categories, err := s.catalog.Categories()
	if err != nil {
		return nil, err
	}
	units, err := s.catalog.Units()
	if err != nil {
		return nil, err
	}

	validation := apperrors.NewValidationError()
	if req.Name == "" {
		validation.Add("name", "name is required")
	}
	if !req.AcquisitionValue.IsPositive() {
		validation.Add("acquisition_value", "acquisition value must be positive")
	}
	if req.AcquisitionDate.After(time.Now()) {
		validation.Add("acquisition_date", "acquisition date cannot be in the future")
	}

	subcategory, subOK := categories.Subcategory(req.SubcategoryID)
	if _, ok := categories.Category(req.CategoryID); !ok {
		validation.Add("category_id", "unknown category")
	} else if !subOK {
		validation.Add("subcategory_id", "unknown subcategory")
	} else if !categories.Belongs(req.SubcategoryID, req.CategoryID) {
		validation.Add("subcategory_id", "subcategory does not belong to the stated category")
	}

	if _, ok := units.Unit(req.UnitID); !ok {
		validation.Add("unit_id", "unknown organizational unit")
	}

	if req.Code != "" {
		exists, err := s.repo.CodeExists(req.Code)
		if err != nil {
			return nil, err
		}
		if exists {
			validation.Add("code", "asset code already exists")
		}
	}

	if validation.HasErrors() {
		return nil, validation
	}

	condition := metadata.ConditionGood
	if req.Condition != "" {
		condition, err = metadata.NewCondition(req.Condition)
		if err != nil {
			return nil, apperrors.Validationf("condition", "%v", err)
		}
	}

	durationMonths := req.DurationMonths
	if durationMonths == nil && subOK {
		durationMonths = subcategory.DefaultDurationMonths
	}

	currency := req.Currency
	if currency == "" {
		currency = "XAF"
	}

	asset := models.Asset{
		Code:             req.Code,
		Name:             req.Name,
		Description:      req.Description,
		Category:         models.Category{ID: req.CategoryID},
		Subcategory:      models.Subcategory{ID: req.SubcategoryID},
		Unit:             models.OrgUnit{ID: req.UnitID},
		Location:         req.Location,
		SerialNumber:     req.SerialNumber,
		AcquisitionValue: req.AcquisitionValue,
		Currency:         currency,
		AcquisitionDate:  req.AcquisitionDate,
		DurationMonths:   durationMonths,
		ResidualValue:    req.ResidualValue,
		Status:           metadata.StatusActive,
		Condition:        condition,
		WarrantyEnd:      req.WarrantyEnd,
	}

	current, err := s.bookValue(&asset, time.Now())
	if err != nil {
		return nil, err
	}
	asset.CurrentValue = current

	err = s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		if asset.Code == "" {
			series := metadata.NewAssetCode(s.codePrefix, req.AcquisitionDate.Year(), subcategory.Code, 0)
			last, err := s.repo.LastSequence(tx, series.SeriesPrefix())
			if err != nil {
				return err
			}
			asset.Code = metadata.NewAssetCode(s.codePrefix, req.AcquisitionDate.Year(), subcategory.Code, last+1).String()
		}

		id, err := s.repo.InsertAsset(tx, &asset)
		if err != nil {
			return err
		}
		asset.ID = id

		_, err = s.repo.InsertValuationRecord(tx, models.ValuationRecord{
			AssetID:       id,
			EffectiveDate: req.AcquisitionDate,
			Value:         req.AcquisitionValue,
			Type:          models.EvaluationAcquisition,
			Rationale:     "Initial acquisition value",
			CreatedBy:     req.Actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log("create", req.Actor, map[string]interface{}{
		"code":    asset.Code,
		"unit_id": req.UnitID,
	}, &asset)
	s.notifier.Notify(notifications.EventAssetCreated, map[string]interface{}{
		"asset_id": asset.ID,
		"code":     asset.Code,
		"unit_id":  req.UnitID,
	})

	return s.repo.GetAsset(asset.ID)
}

type ReviseAssetRequest struct {
	Name             *string          `json:"name"`
	Description      *string          `json:"description"`
	Location         *string          `json:"location"`
	SerialNumber     *string          `json:"serial_number"`
	Condition        *string          `json:"condition"`
	Status           *string          `json:"status"`
	AcquisitionValue *decimal.Decimal `json:"acquisition_value"`
	DurationMonths   *int             `json:"duration_months"`
	WarrantyEnd      *time.Time       `json:"warranty_end"`
	Reason           string           `json:"reason"`
	Actor            string           `json:"-"`
}

// ReviseAsset applies field changes to a live asset. An acquisition-value
// change beyond 50% is refused; such a move is a revaluation and must go
// through ReviseValue.
func (s *Service) ReviseAsset(assetID int, req ReviseAssetRequest) (*models.Asset, error) {
	asset, err := s.repo.GetAsset(assetID)
	if err != nil {
		return nil, err
	}

	if asset.Status.IsTerminal() {
		return nil, apperrors.StateConflictf("asset", string(asset.Status), "a %s asset cannot be modified", asset.Status)
	}

	fields := goqu.Record{}
	valueChanged := false

	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Location != nil {
		fields["location"] = *req.Location
	}
	if req.SerialNumber != nil {
		fields["serial_number"] = *req.SerialNumber
	}
	if req.WarrantyEnd != nil {
		fields["warranty_end"] = *req.WarrantyEnd
	}
	if req.DurationMonths != nil {
		fields["duration_months"] = *req.DurationMonths
	}

	if req.Condition != nil {
		condition, err := metadata.NewCondition(*req.Condition)
		if err != nil {
			return nil, apperrors.Validationf("condition", "%v", err)
		}
		fields["condition"] = condition
	}

	if req.Status != nil {
		status, err := metadata.NewStatus(*req.Status)
		if err != nil {
			return nil, apperrors.Validationf("status", "%v", err)
		}
		if !asset.Status.CanTransitionTo(status) {
			return nil, apperrors.StateConflictf("asset", string(asset.Status), "cannot transition to %s", status)
		}
		fields["status"] = status
	}

	if req.AcquisitionValue != nil {
		newValue := *req.AcquisitionValue
		if !newValue.IsPositive() {
			return nil, apperrors.Validationf("acquisition_value", "acquisition value must be positive")
		}

		relativeChange := newValue.Sub(asset.AcquisitionValue).Abs().Div(asset.AcquisitionValue)
		if relativeChange.GreaterThan(decimal.NewFromFloat(0.5)) {
			return nil, apperrors.Validationf("acquisition_value",
				"value change exceeds 50%%; use a revaluation instead")
		}

		if !newValue.Equal(asset.AcquisitionValue) {
			fields["acquisition_value"] = newValue
			valueChanged = true
		}
	}

	if len(fields) == 0 {
		return asset, nil
	}

	err = s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		locked, err := s.repo.GetAssetForUpdate(tx, assetID)
		if err != nil {
			return err
		}
		if locked.Status.IsTerminal() {
			return apperrors.StateConflictf("asset", string(locked.Status), "a %s asset cannot be modified", locked.Status)
		}

		if err := s.repo.UpdateAsset(tx, assetID, fields); err != nil {
			return err
		}

		if valueChanged {
			rationale := req.Reason
			if rationale == "" {
				rationale = "Acquisition value revised"
			}
			if _, err := s.repo.InsertValuationRecord(tx, models.ValuationRecord{
				AssetID:       assetID,
				EffectiveDate: time.Now(),
				Value:         *req.AcquisitionValue,
				Type:          models.EvaluationReevaluation,
				Rationale:     rationale,
				CreatedBy:     req.Actor,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log("revise", req.Actor, map[string]interface{}{
		"changed": fields,
		"reason":  req.Reason,
	}, asset)

	return s.refreshBookValue(assetID)
}

type ReviseValueRequest struct {
	Value     decimal.Decimal `json:"value"`
	Type      string          `json:"type"`
	Reason    string          `json:"reason"`
	Evaluator string          `json:"evaluator"`
	Actor     string          `json:"-"`
}

// ReviseValue appends a valuation record and refreshes the cached current
// value. A change of more than 20% against the acquisition value is
// signalled to the notification collaborator.
func (s *Service) ReviseValue(assetID int, req ReviseValueRequest) (*models.ValuationRecord, error) {
	if req.Value.IsNegative() {
		return nil, apperrors.Validationf("value", "value must not be negative")
	}

	evaluationType, err := models.NewEvaluationType(req.Type)
	if err != nil {
		return nil, apperrors.Validationf("type", "%v", err)
	}

	asset, err := s.repo.GetAsset(assetID)
	if err != nil {
		return nil, err
	}

	record := models.ValuationRecord{
		AssetID:       assetID,
		EffectiveDate: time.Now(),
		Value:         req.Value,
		Type:          evaluationType,
		Rationale:     req.Reason,
		Evaluator:     req.Evaluator,
		CreatedBy:     req.Actor,
	}

	err = s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		id, err := s.repo.InsertValuationRecord(tx, record)
		if err != nil {
			return err
		}
		record.ID = id

		return s.repo.UpdateAsset(tx, assetID, goqu.Record{"current_value": req.Value})
	})
	if err != nil {
		return nil, err
	}

	if asset.AcquisitionValue.IsPositive() {
		variance := req.Value.Sub(asset.AcquisitionValue).Abs().Div(asset.AcquisitionValue)
		if variance.GreaterThan(decimal.NewFromFloat(0.2)) {
			s.notifier.Notify(notifications.EventMaterialValueChange, map[string]interface{}{
				"asset_id":     assetID,
				"code":         asset.Code,
				"new_value":    req.Value,
				"variance_pct": variance.Mul(decimal.NewFromInt(100)).Round(2),
			})
		}
	}

	go s.auditLog.Log("revise_value", req.Actor, map[string]interface{}{
		"value": req.Value,
		"type":  evaluationType,
	}, asset)

	return &record, nil
}

type TransferRequest struct {
	DestinationUnitID int        `json:"destination_unit_id"`
	Reason            string     `json:"reason"`
	EffectiveDate     *time.Time `json:"effective_date"`
	Actor             string     `json:"-"`
}

// TransferAsset reassigns an asset to another unit, appends the movement
// ledger entry and closes custody held by the origin unit's custodians,
// all in one transaction.
func (s *Service) TransferAsset(assetID int, req TransferRequest) (*models.Movement, error) {
	if !s.perms.HasPermission(req.Actor, security.ActionTransferAsset, assetID) {
		return nil, &apperrors.PermissionError{Actor: req.Actor, Action: security.ActionTransferAsset}
	}

	units, err := s.catalog.Units()
	if err != nil {
		return nil, err
	}
	if _, ok := units.Unit(req.DestinationUnitID); !ok {
		return nil, apperrors.Validationf("destination_unit_id", "unknown organizational unit")
	}

	effectiveDate := time.Now()
	if req.EffectiveDate != nil {
		effectiveDate = *req.EffectiveDate
	}

	var movement models.Movement
	err = s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		asset, err := s.repo.GetAssetForUpdate(tx, assetID)
		if err != nil {
			return err
		}

		if asset.Unit.ID == req.DestinationUnitID {
			return apperrors.Validationf("destination_unit_id", "destination unit is the same as the current unit")
		}

		movement = models.Movement{
			AssetID:       assetID,
			FromUnitID:    asset.Unit.ID,
			ToUnitID:      req.DestinationUnitID,
			EffectiveDate: effectiveDate,
			Reason:        req.Reason,
			CreatedBy:     req.Actor,
		}
		id, err := s.repo.InsertMovement(tx, movement)
		if err != nil {
			return err
		}
		movement.ID = id

		if err := s.repo.UpdateAsset(tx, assetID, goqu.Record{"unit_id": req.DestinationUnitID}); err != nil {
			return err
		}

		return s.custody.CloseOpenForUnitTx(tx, assetID, asset.Unit.ID, effectiveDate)
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log("transfer", req.Actor, map[string]interface{}{
		"from_unit_id": movement.FromUnitID,
		"to_unit_id":   movement.ToUnitID,
		"reason":       req.Reason,
	}, &movement)
	s.notifier.Notify(notifications.EventAssetTransferred, map[string]interface{}{
		"asset_id":     assetID,
		"from_unit_id": movement.FromUnitID,
		"to_unit_id":   movement.ToUnitID,
	})

	return &movement, nil
}

type RetireRequest struct {
	Reason        string           `json:"reason"`
	EffectiveDate *time.Time       `json:"effective_date"`
	ResidualValue *decimal.Decimal `json:"residual_value"`
	Actor         string           `json:"-"`
}

// RetireAsset puts an asset definitively out of service. Irreversible:
// RETIRED is terminal and closes every open custody assignment.
func (s *Service) RetireAsset(assetID int, req RetireRequest) (*models.Asset, error) {
	if !s.perms.HasPermission(req.Actor, security.ActionRetireAsset, assetID) {
		return nil, &apperrors.PermissionError{Actor: req.Actor, Action: security.ActionRetireAsset}
	}

	effectiveDate := time.Now()
	if req.EffectiveDate != nil {
		effectiveDate = *req.EffectiveDate
	}

	residual := decimal.Zero
	if req.ResidualValue != nil {
		if req.ResidualValue.IsNegative() {
			return nil, apperrors.Validationf("residual_value", "residual value must not be negative")
		}
		residual = *req.ResidualValue
	}

	err := s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		asset, err := s.repo.GetAssetForUpdate(tx, assetID)
		if err != nil {
			return err
		}
		if asset.Status.IsTerminal() {
			return apperrors.StateConflictf("asset", string(asset.Status), "asset is already out of service")
		}

		if err := s.repo.UpdateAsset(tx, assetID, goqu.Record{
			"status":         metadata.StatusRetired,
			"residual_value": residual,
			"current_value":  residual,
		}); err != nil {
			return err
		}

		if _, err := s.repo.InsertValuationRecord(tx, models.ValuationRecord{
			AssetID:       assetID,
			EffectiveDate: effectiveDate,
			Value:         residual,
			Type:          models.EvaluationDepreciation,
			Rationale:     "Retirement: " + req.Reason,
			CreatedBy:     req.Actor,
		}); err != nil {
			return err
		}

		return s.custody.CloseAllOpenTx(tx, assetID, effectiveDate)
	})
	if err != nil {
		return nil, err
	}

	asset, err := s.repo.GetAsset(assetID)
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log("retire", req.Actor, map[string]interface{}{
		"reason":         req.Reason,
		"residual_value": residual,
	}, asset)
	s.notifier.Notify(notifications.EventAssetRetired, map[string]interface{}{
		"asset_id": assetID,
		"code":     asset.Code,
	})

	return asset, nil
}

// Valuation computes the book value of an asset at a given date without
// touching stored state.
func (s *Service) Valuation(assetID int, asOf time.Time, method valuation.Method) (*valuation.Result, error) {
	asset, err := s.repo.GetAsset(assetID)
	if err != nil {
		return nil, err
	}

	if method == "" {
		method = s.method
	}

	duration := 0
	if asset.DurationMonths != nil {
		duration = *asset.DurationMonths
	}

	result, err := valuation.Compute(valuation.Input{
		AcquisitionValue: asset.AcquisitionValue,
		AcquisitionDate:  asset.AcquisitionDate,
		DurationMonths:   duration,
		ResidualValue:    asset.ResidualValue,
		AsOfDate:         asOf,
		Method:           method,
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) GetAsset(assetID int) (*models.Asset, error) {
	return s.repo.GetAsset(assetID)
}

func (s *Service) FindAssetByCode(code string) (*models.Asset, error) {
	return s.repo.FindAssetByCode(code)
}

func (s *Service) GetAssetsBy(conditions repository.QueryBuilder) ([]models.Asset, error) {
	return s.repo.GetAssetsBy(conditions)
}

// highValueThreshold is the XAF book value above which an asset is
// flagged in the at-risk screening.
var highValueThreshold = decimal.NewFromInt(10_000_000)

// FindAtRisk lists live assets needing attention: overdue maintenance,
// recently expired warranty, degraded condition or high book value.
func (s *Service) FindAtRisk() ([]models.Asset, error) {
	return s.repo.FindAtRisk(time.Now(), highValueThreshold)
}

func (s *Service) ValuationHistory(assetID int) ([]models.ValuationRecord, error) {
	return s.repo.GetValuationHistory(assetID)
}

func (s *Service) Movements(assetID int) ([]models.Movement, error) {
	return s.repo.GetMovements(assetID)
}

func (s *Service) bookValue(asset *models.Asset, asOf time.Time) (decimal.Decimal, error) {
	duration := 0
	if asset.DurationMonths != nil {
		duration = *asset.DurationMonths
	}

	result, err := valuation.Compute(valuation.Input{
		AcquisitionValue: asset.AcquisitionValue,
		AcquisitionDate:  asset.AcquisitionDate,
		DurationMonths:   duration,
		ResidualValue:    asset.ResidualValue,
		AsOfDate:         asOf,
		Method:           s.method,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return result.NetValue, nil
}

// refreshBookValue recomputes the cached current value at a defined
// point instead of on every read.
func (s *Service) refreshBookValue(assetID int) (*models.Asset, error) {
	asset, err := s.repo.GetAsset(assetID)
	if err != nil {
		return nil, err
	}

	current, err := s.bookValue(asset, time.Now())
	if err != nil {
		return nil, err
	}

	if !current.Equal(asset.CurrentValue) {
		err = s.tx.WithTx(func(tx *goqu.TxDatabase) error {
			return s.repo.UpdateAsset(tx, assetID, goqu.Record{"current_value": current})
		})
		if err != nil {
			return nil, err
		}
		asset.CurrentValue = current
	}

	return asset, nil
}
