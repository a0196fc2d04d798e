package custody

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

type AssignmentRepository interface {
	LockAsset(tx *goqu.TxDatabase, assetID int) error
	GetOpenAssignment(tx *goqu.TxDatabase, assetID int) (*models.CustodyAssignment, error)
	CloseAssignment(tx *goqu.TxDatabase, assignmentID int, endDate time.Time) error
	CloseAllOpen(tx *goqu.TxDatabase, assetID int, endDate time.Time) error
	CloseOpenForUnit(tx *goqu.TxDatabase, assetID, unitID int, endDate time.Time) error
	InsertAssignment(tx *goqu.TxDatabase, assignment models.CustodyAssignment) (int, error)
	GetCustodian(custodianID int) (*models.Custodian, error)
	GetAssignmentsByAsset(assetID int) ([]models.CustodyAssignment, error)
}

type assignmentRepositoryImpl struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) AssignmentRepository {
	return &assignmentRepositoryImpl{repository: r}
}

// LockAsset takes the per-asset exclusive lock every custody mutation
// serializes on. Scoped to the surrounding transaction.
func (r *assignmentRepositoryImpl) LockAsset(tx *goqu.TxDatabase, assetID int) error {
	var id int
	found, err := tx.Select("id").
		From("assets").
		Where(goqu.Ex{"id": assetID}).
		ForUpdate(exp.Wait).
		Executor().ScanVal(&id)
	if err != nil {
		return fmt.Errorf("failed to lock asset %d: %w", assetID, err)
	}
	if !found {
		return &apperrors.NotFoundError{Entity: "asset", ID: fmt.Sprint(assetID)}
	}
	return nil
}

func (r *assignmentRepositoryImpl) GetOpenAssignment(tx *goqu.TxDatabase, assetID int) (*models.CustodyAssignment, error) {
	var assignment models.CustodyAssignment
	found, err := tx.Select(
		"id", "asset_id", "custodian_id", "assignment_type",
		"start_date", "end_date", "active", "reason", "created_by", "created_at",
	).
		From("custody_assignments").
		Where(goqu.Ex{"asset_id": assetID, "end_date": nil}).
		Executor().ScanStruct(&assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to select open assignment: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &assignment, nil
}

func (r *assignmentRepositoryImpl) CloseAssignment(tx *goqu.TxDatabase, assignmentID int, endDate time.Time) error {
	_, err := tx.Update("custody_assignments").
		Set(goqu.Record{"end_date": endDate, "active": false}).
		Where(goqu.Ex{"id": assignmentID}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to close assignment %d: %w", assignmentID, err)
	}
	return nil
}

func (r *assignmentRepositoryImpl) CloseAllOpen(tx *goqu.TxDatabase, assetID int, endDate time.Time) error {
	_, err := tx.Update("custody_assignments").
		Set(goqu.Record{"end_date": endDate, "active": false}).
		Where(goqu.Ex{"asset_id": assetID, "end_date": nil}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to close open assignments for asset %d: %w", assetID, err)
	}
	return nil
}

func (r *assignmentRepositoryImpl) CloseOpenForUnit(tx *goqu.TxDatabase, assetID, unitID int, endDate time.Time) error {
	custodiansInUnit := goqu.From("custodians").
		Select("id").
		Where(goqu.Ex{"unit_id": unitID})

	_, err := tx.Update("custody_assignments").
		Set(goqu.Record{"end_date": endDate, "active": false}).
		Where(
			goqu.Ex{"asset_id": assetID, "end_date": nil},
			goqu.I("custodian_id").In(custodiansInUnit),
		).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to close unit assignments for asset %d: %w", assetID, err)
	}
	return nil
}

func (r *assignmentRepositoryImpl) InsertAssignment(tx *goqu.TxDatabase, assignment models.CustodyAssignment) (int, error) {
	var id int
	_, err := tx.Insert("custody_assignments").
		Rows(goqu.Record{
			"asset_id":        assignment.AssetID,
			"custodian_id":    assignment.CustodianID,
			"assignment_type": assignment.Type,
			"start_date":      assignment.StartDate,
			"end_date":        assignment.EndDate,
			"active":          assignment.Active,
			"reason":          assignment.Reason,
			"created_by":      assignment.CreatedBy,
		}).
		Returning("id").
		Executor().ScanVal(&id)
	if err != nil {
		return 0, apperrors.WrapDBError(fmt.Errorf("failed to insert assignment: %w", err))
	}
	return id, nil
}

func (r *assignmentRepositoryImpl) GetCustodian(custodianID int) (*models.Custodian, error) {
	var custodian models.Custodian
	found, err := r.repository.GoquDBWrapper.Select(
		"id", "matricule", "full_name", "function", "unit_id", "active", "created_at",
	).
		From("custodians").
		Where(goqu.Ex{"id": custodianID}).
		Executor().ScanStruct(&custodian)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get custodian: %w", err)
	}
	if !found {
		return nil, &apperrors.NotFoundError{Entity: "custodian", ID: fmt.Sprint(custodianID)}
	}
	return &custodian, nil
}

func (r *assignmentRepositoryImpl) GetAssignmentsByAsset(assetID int) ([]models.CustodyAssignment, error) {
	var assignments []models.CustodyAssignment
	err := r.repository.GoquDBWrapper.Select(
		"id", "asset_id", "custodian_id", "assignment_type",
		"start_date", "end_date", "active", "reason", "created_by", "created_at",
	).
		From("custody_assignments").
		Where(goqu.Ex{"asset_id": assetID}).
		Order(goqu.I("start_date").Desc()).
		Executor().ScanStructs(&assignments)
	if err != nil {
		return nil, fmt.Errorf("failed to select assignments: %w", err)
	}
	return assignments, nil
}
