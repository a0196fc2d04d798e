package custody

import (
	"time"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"

	"patrimony/internal/repository"
	"patrimony/pkg/apperrors"
	"patrimony/pkg/auditlog"
	"patrimony/pkg/models"
)

// Service enforces the single-open-assignment invariant: for any asset, at
// most one custody assignment may have a nil end date. Every mutation locks
// the asset row first, so concurrent assigns on the same asset serialize.
type Service struct {
	repo     AssignmentRepository
	tx       repository.TxRunner
	auditLog *auditlog.Auditlog
	log      *zap.Logger
}

func NewService(repo AssignmentRepository, tx repository.TxRunner, auditLog *auditlog.Auditlog, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		auditLog: auditLog,
		log:      log,
	}
}

type AssignRequest struct {
	AssetID     int                   `json:"asset_id"`
	CustodianID int                   `json:"custodian_id"`
	Type        models.AssignmentType `json:"type"`
	StartDate   time.Time             `json:"start_date"`
	EndDate     *time.Time            `json:"end_date"`
	Reason      string                `json:"reason"`
	Actor       string                `json:"-"`
}

// Assign creates a custody assignment, deterministically displacing an
// existing open one: the old assignment is closed the day before the new
// one starts, so the new assignment is the sole open one on commit.
func (s *Service) Assign(req AssignRequest) (*models.CustodyAssignment, error) {
	custodian, err := s.repo.GetCustodian(req.CustodianID)
	if err != nil {
		return nil, err
	}
	if !custodian.Active {
		return nil, apperrors.Validationf("custodian_id", "custodian %s is no longer active", custodian.Matricule)
	}

	if req.EndDate != nil && !req.EndDate.After(req.StartDate) {
		return nil, apperrors.Validationf("end_date", "end date must be after start date")
	}

	if req.Type == "" {
		req.Type = models.AssignmentPermanent
	} else if _, err := models.NewAssignmentType(string(req.Type)); err != nil {
		return nil, apperrors.Validationf("type", "%v", err)
	}

	assignment := models.CustodyAssignment{
		AssetID:     req.AssetID,
		CustodianID: req.CustodianID,
		Type:        req.Type,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Active:      true,
		Reason:      req.Reason,
		CreatedBy:   req.Actor,
	}

	var displaced *models.CustodyAssignment
	err = s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		if err := s.repo.LockAsset(tx, req.AssetID); err != nil {
			return err
		}

		open, err := s.repo.GetOpenAssignment(tx, req.AssetID)
		if err != nil {
			return err
		}

		// A bounded assignment can overlay an open one; only a second
		// open assignment displaces the current holder.
		if open != nil && req.EndDate == nil {
			closeDate := req.StartDate.AddDate(0, 0, -1)
			if err := s.repo.CloseAssignment(tx, open.ID, closeDate); err != nil {
				return err
			}
			displaced = open
		}

		id, err := s.repo.InsertAssignment(tx, assignment)
		if err != nil {
			return err
		}
		assignment.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	if displaced != nil {
		s.log.Info("custody assignment displaced",
			zap.Int("asset_id", req.AssetID),
			zap.Int("previous_assignment_id", displaced.ID),
			zap.Int("new_assignment_id", assignment.ID))
	}

	go s.auditLog.Log("assign", req.Actor, map[string]interface{}{
		"asset_id":     req.AssetID,
		"custodian_id": req.CustodianID,
		"type":         assignment.Type,
	}, &assignment)

	return &assignment, nil
}

// CloseAll closes every open assignment for the asset at the effective
// date. Used standalone and by lifecycle retirement.
func (s *Service) CloseAll(assetID int, effectiveDate time.Time, reason, actor string) error {
	err := s.tx.WithTx(func(tx *goqu.TxDatabase) error {
		if err := s.repo.LockAsset(tx, assetID); err != nil {
			return err
		}
		return s.repo.CloseAllOpen(tx, assetID, effectiveDate)
	})
	if err != nil {
		return err
	}

	go s.auditLog.Log("close_all", actor, map[string]interface{}{
		"asset_id":       assetID,
		"effective_date": effectiveDate,
		"reason":         reason,
	}, &models.CustodyAssignment{AssetID: assetID})

	return nil
}

// CloseAllOpenTx is the in-transaction variant used by lifecycle
// operations that must close custody atomically with their own writes.
func (s *Service) CloseAllOpenTx(tx *goqu.TxDatabase, assetID int, effectiveDate time.Time) error {
	return s.repo.CloseAllOpen(tx, assetID, effectiveDate)
}

// CloseOpenForUnitTx closes open assignments held by custodians of the
// given unit, the transfer-time rule for the origin unit's custodian pool.
func (s *Service) CloseOpenForUnitTx(tx *goqu.TxDatabase, assetID, unitID int, effectiveDate time.Time) error {
	return s.repo.CloseOpenForUnit(tx, assetID, unitID, effectiveDate)
}

func (s *Service) History(assetID int) ([]models.CustodyAssignment, error) {
	return s.repo.GetAssignmentsByAsset(assetID)
}
