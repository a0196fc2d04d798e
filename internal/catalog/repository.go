package catalog

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"patrimony/internal/repository"
	"patrimony/pkg/models"
)

// Provider serves the read-mostly reference data the lifecycle and
// inventory services validate against.
type Provider interface {
	Categories() (*models.CategoryArena, error)
	Units() (*models.OrgUnitArena, error)
}

type catalogRepositoryImpl struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) Provider {
	return &catalogRepositoryImpl{repository: r}
}

func (r *catalogRepositoryImpl) Categories() (*models.CategoryArena, error) {
	var categories []models.Category
	err := r.repository.GoquDBWrapper.Select(
		"id", "code", "name", "kind", "parent_id", "active",
	).
		From("categories").
		Executor().ScanStructs(&categories)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}

	var subcategories []models.Subcategory
	err = r.repository.GoquDBWrapper.Select(
		"id", "category_id", "code", "name", "default_duration_months", "critical",
	).
		From("subcategories").
		Executor().ScanStructs(&subcategories)
	if err != nil {
		return nil, fmt.Errorf("failed to select subcategories: %w", err)
	}

	return models.NewCategoryArena(categories, subcategories), nil
}

func (r *catalogRepositoryImpl) Units() (*models.OrgUnitArena, error) {
	var units []models.OrgUnit
	err := r.repository.GoquDBWrapper.Select(
		"id", "code", "name", "kind", "parent_id", "active",
	).
		From("org_units").
		Where(goqu.Ex{"active": true}).
		Executor().ScanStructs(&units)
	if err != nil {
		return nil, fmt.Errorf("failed to select org units: %w", err)
	}

	return models.NewOrgUnitArena(units), nil
}
