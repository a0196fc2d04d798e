package inventory

import (
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
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

// valueVarianceThreshold flags an observed value that strays more than
// 20% from the frozen baseline.
var valueVarianceThreshold = decimal.NewFromFloat(0.2)

// AssetSource is the read/update slice of the asset store the campaign
// workflow needs. Satisfied by the assets repository.
type AssetSource interface {
	GetAsset(id int) (*models.Asset, error)
	GetAssetsBy(conditions repository.QueryBuilder) ([]models.Asset, error)
	UpdateAsset(tx *goqu.TxDatabase, id int, fields goqu.Record) error
}

// Service runs physical inventory campaigns: snapshot the fleet, record
// observations exactly once per asset, aggregate the result.
type Service struct {
	repo     CampaignRepository
	assets   AssetSource
	catalog  catalog.Provider
	notifier notifications.Notifier
	auditLog *auditlog.Auditlog
	tx       repository.TxRunner
	log      *zap.Logger
}

func NewService(
	repo CampaignRepository,
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

type CreateCampaignRequest struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	UnitIDs   []int     `json:"unit_ids"`
	Actor     string    `json:"-"`
}

// CreateCampaign snapshots every live asset in the scoped units into line
// items, freezing each asset's book value as the comparison baseline.
func (s *Service) CreateCampaign(req CreateCampaignRequest) (*models.InventoryCampaign, error) {
	units, err := s.catalog.Units()
	if err != nil {
		return nil, err
	}

	validation := apperrors.NewValidationError()
	if req.Name == "" {
		validation.Add("name", "name is required")
	}
	if !req.EndDate.After(req.StartDate) {
		validation.Add("end_date", "end date must be after start date")
	}
	today := time.Now().Truncate(24 * time.Hour)
	if req.StartDate.Before(today) {
		validation.Add("start_date", "start date cannot be in the past")
	}
	if len(req.UnitIDs) == 0 {
		validation.Add("unit_ids", "at least one unit is required")
	}
	for _, unitID := range req.UnitIDs {
		if _, ok := units.Unit(unitID); !ok {
			validation.Add("unit_ids", "unknown organizational unit")
			break
		}
	}
	if validation.HasErrors() {
		return nil, validation
	}

	// The campaign covers each requested unit and its whole subtree.
	scope := make([]int, 0, len(req.UnitIDs))
	seen := make(map[int]bool)
	for _, unitID := range req.UnitIDs {
		for _, id := range units.Scope(unitID) {
			if !seen[id] {
				seen[id] = true
				scope = append(scope, id)
			}
		}
	}

	conditions := repository.NewQueryBuilder()
	conditions.AddCondition("unit_ids", scope)
	conditions.AddCondition("status", nonTerminalStatuses())

	assets, err := s.assets.GetAssetsBy(conditions)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, apperrors.Validationf("unit_ids", "no live assets in the selected units")
	}

	campaign := models.InventoryCampaign{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		UnitIDs:   req.UnitIDs,
		Status:    models.CampaignPlanned,
		CreatedBy: req.Actor,
	}

	err = s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		id, err := s.repo.InsertCampaign(tx, campaign)
		if err != nil {
			return err
		}
		campaign.ID = id

		lines := make([]models.InventoryLineItem, 0, len(assets))
		for _, asset := range assets {
			lines = append(lines, models.InventoryLineItem{
				CampaignID:    id,
				AssetID:       asset.ID,
				BaselineValue: asset.CurrentValue,
				Status:        models.LineToVerify,
			})
		}
		return s.repo.InsertLineItems(tx, lines)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("inventory campaign created",
		zap.Int("campaign_id", campaign.ID),
		zap.Int("line_count", len(assets)))

	go s.auditLog.Log("create", req.Actor, map[string]interface{}{
		"name":     req.Name,
		"unit_ids": req.UnitIDs,
		"lines":    len(assets),
	}, &campaign)
	s.notifier.Notify(notifications.EventCampaignCreated, map[string]interface{}{
		"campaign_id": campaign.ID,
		"name":        req.Name,
		"line_count":  len(assets),
	})

	return &campaign, nil
}

// Advance moves the campaign along PLANNED -> IN_PROGRESS -> CLOSED.
// Regressions are refused.
func (s *Service) Advance(campaignID int, target models.CampaignStatus, actor string) (*models.InventoryCampaign, error) {
	var campaign *models.InventoryCampaign
	err := s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		current, err := s.repo.GetCampaignForUpdate(tx, campaignID)
		if err != nil {
			return err
		}
		if !current.Status.CanAdvanceTo(target) {
			return apperrors.StateConflictf("campaign", string(current.Status),
				"cannot advance to %s", target)
		}

		if err := s.repo.UpdateCampaignStatus(tx, campaignID, target); err != nil {
			return err
		}
		current.Status = target
		campaign = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log("advance", actor, map[string]interface{}{
		"status": target,
	}, campaign)

	return campaign, nil
}

type RecordLineRequest struct {
	AssetID           int              `json:"asset_id"`
	Present           bool             `json:"present"`
	ObservedCondition *string          `json:"observed_condition"`
	ObservedLocation  *string          `json:"observed_location"`
	ObservedValue     *decimal.Decimal `json:"observed_value"`
	Notes             string           `json:"notes"`
	Actor             string           `json:"-"`
}

// RecordLine writes one observation. A line is recorded exactly once; the
// anomaly codes are derived here, never supplied by the caller.
func (s *Service) RecordLine(campaignID int, req RecordLineRequest) (*models.InventoryLineItem, error) {
	var observedCondition *metadata.Condition
	if req.ObservedCondition != nil {
		condition, err := metadata.NewCondition(*req.ObservedCondition)
		if err != nil {
			return nil, apperrors.Validationf("observed_condition", "%v", err)
		}
		observedCondition = &condition
	}
	if req.ObservedValue != nil && req.ObservedValue.IsNegative() {
		return nil, apperrors.Validationf("observed_value", "observed value must not be negative")
	}

	asset, err := s.assets.GetAsset(req.AssetID)
	if err != nil {
		return nil, err
	}

	var recorded *models.InventoryLineItem
	err = s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		campaign, err := s.repo.GetCampaignForUpdate(tx, campaignID)
		if err != nil {
			return err
		}
		if campaign.Status != models.CampaignInProgress {
			return apperrors.StateConflictf("campaign", string(campaign.Status),
				"lines can only be recorded while the campaign is in progress")
		}

		line, err := s.repo.GetLineForUpdate(tx, campaignID, req.AssetID)
		if err != nil {
			return err
		}
		if line.Status != models.LineToVerify {
			return apperrors.StateConflictf("inventory line", string(line.Status),
				"line for asset %d has already been recorded", req.AssetID)
		}

		codes := detectAnomalies(asset, line.BaselineValue, req.Present, observedCondition, req.ObservedLocation, req.ObservedValue)

		status := models.LineVerified
		if len(codes) > 0 {
			status = models.LineAnomaly
		}

		now := time.Now()
		present := req.Present
		fields := goqu.Record{
			"status":        status,
			"present":       present,
			"notes":         req.Notes,
			"verified_by":   req.Actor,
			"verified_at":   now,
			"anomaly_codes": pq.Array(codeStrings(codes)),
		}
		if observedCondition != nil {
			fields["observed_condition"] = *observedCondition
		}
		if req.ObservedLocation != nil {
			fields["observed_location"] = *req.ObservedLocation
		}
		if req.ObservedValue != nil {
			fields["observed_value"] = *req.ObservedValue
		}

		if err := s.repo.UpdateLine(tx, line.ID, fields); err != nil {
			return err
		}

		// Observations feed back into the asset record.
		assetFields := goqu.Record{"last_inventoried": now}
		if present && observedCondition != nil {
			assetFields["condition"] = *observedCondition
		}
		if err := s.assets.UpdateAsset(tx, req.AssetID, assetFields); err != nil {
			return err
		}

		line.Status = status
		line.Present = &present
		line.ObservedCondition = observedCondition
		line.ObservedLocation = req.ObservedLocation
		line.ObservedValue = req.ObservedValue
		line.AnomalyCodes = codes
		line.Notes = req.Notes
		line.VerifiedBy = req.Actor
		line.VerifiedAt = &now
		recorded = line
		return nil
	})
	if err != nil {
		return nil, err
	}

	if recorded.Status == models.LineAnomaly {
		s.notifier.Notify(notifications.EventInventoryAnomaly, map[string]interface{}{
			"campaign_id":   campaignID,
			"asset_id":      req.AssetID,
			"asset_code":    asset.Code,
			"anomaly_codes": recorded.AnomalyCodes,
		})
	}

	return recorded, nil
}

func (s *Service) GetCampaign(campaignID int) (*models.InventoryCampaign, error) {
	return s.repo.GetCampaign(campaignID)
}

func (s *Service) ListCampaigns() ([]models.InventoryCampaign, error) {
	return s.repo.ListCampaigns()
}

func (s *Service) Lines(campaignID int) ([]models.InventoryLineItem, error) {
	return s.repo.GetLines(campaignID)
}

// Report aggregates the campaign's lines on demand; nothing is stored.
func (s *Service) Report(campaignID int) (*models.CampaignReport, error) {
	campaign, err := s.repo.GetCampaign(campaignID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(campaignID)
	if err != nil {
		return nil, err
	}

	report := models.CampaignReport{
		Campaign:        *campaign,
		TotalLines:      len(lines),
		AnomaliesByCode: make(map[models.AnomalyCode]int),
		BaselineTotal:   decimal.Zero,
		ObservedTotal:   decimal.Zero,
	}

	presentCount := 0
	recordedCount := 0
	for _, line := range lines {
		report.BaselineTotal = report.BaselineTotal.Add(line.BaselineValue)

		switch line.Status {
		case models.LineToVerify:
			report.PendingLines++
			continue
		case models.LineVerified:
			report.VerifiedLines++
		case models.LineAnomaly:
			report.AnomalyLines++
		}
		recordedCount++

		if line.Present != nil && *line.Present {
			presentCount++
		}
		if line.ObservedValue != nil {
			report.ObservedTotal = report.ObservedTotal.Add(*line.ObservedValue)
		} else {
			report.ObservedTotal = report.ObservedTotal.Add(line.BaselineValue)
		}
		for _, code := range line.AnomalyCodes {
			report.AnomaliesByCode[code]++
		}
	}

	if report.TotalLines > 0 {
		report.ProgressPct = 100 * float64(recordedCount) / float64(report.TotalLines)
	}
	if recordedCount > 0 {
		report.PresencePct = 100 * float64(presentCount) / float64(recordedCount)
	}

	missing, err := s.repo.GetMissingAssetLines(campaignID)
	if err != nil {
		return nil, err
	}
	report.MissingAssets = missing

	return &report, nil
}

func detectAnomalies(
	asset *models.Asset,
	baseline decimal.Decimal,
	present bool,
	observedCondition *metadata.Condition,
	observedLocation *string,
	observedValue *decimal.Decimal,
) []models.AnomalyCode {
	if !present {
		return []models.AnomalyCode{models.AnomalyNotFound}
	}

	var codes []models.AnomalyCode
	if observedLocation != nil && *observedLocation != "" && *observedLocation != asset.Location {
		codes = append(codes, models.AnomalyRelocationMismatch)
	}
	// Degradation is a change, not a state: an asset already recorded as
	// degraded observed in the same shape is no anomaly.
	if observedCondition != nil && observedCondition.IsDegraded() && !asset.Condition.IsDegraded() {
		codes = append(codes, models.AnomalyConditionDegraded)
	}
	if observedValue != nil && baseline.IsPositive() {
		variance := observedValue.Sub(baseline).Abs().Div(baseline)
		if variance.GreaterThan(valueVarianceThreshold) {
			codes = append(codes, models.AnomalyValueVariance)
		}
	}
	return codes
}

func codeStrings(codes []models.AnomalyCode) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, string(code))
	}
	return out
}

func nonTerminalStatuses() []metadata.Status {
	return []metadata.Status{
		metadata.StatusActive,
		metadata.StatusInactive,
		metadata.StatusMaintenance,
	}
}
