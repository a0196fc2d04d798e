package models

import (
	"time"

	"github.com/shopspring/decimal"

	"patrimony/pkg/metadata"
)

// Asset is the tracked organizational item. It is owned by the lifecycle
// service; nothing else mutates it directly.
type Asset struct {
	ID               int                `json:"id" db:"id"`
	Code             string             `json:"code" db:"code"`
	Name             string             `json:"name" db:"name"`
	Description      string             `json:"description" db:"description"`
	Category         Category           `json:"category"`
	Subcategory      Subcategory        `json:"subcategory"`
	Unit             OrgUnit            `json:"unit"`
	Location         string             `json:"location" db:"location"`
	SerialNumber     string             `json:"serial_number" db:"serial_number"`
	AcquisitionValue decimal.Decimal    `json:"acquisition_value" db:"acquisition_value"`
	Currency         string             `json:"currency" db:"currency"`
	AcquisitionDate  time.Time          `json:"acquisition_date" db:"acquisition_date"`
	DurationMonths   *int               `json:"duration_months" db:"duration_months"`
	ResidualValue    decimal.Decimal    `json:"residual_value" db:"residual_value"`
	Status           metadata.Status    `json:"status" db:"status"`
	Condition        metadata.Condition `json:"condition" db:"condition"`
	CurrentValue     decimal.Decimal    `json:"current_value" db:"current_value"`
	NextMaintenance  *time.Time         `json:"next_maintenance" db:"next_maintenance"`
	WarrantyEnd      *time.Time         `json:"warranty_end" db:"warranty_end"`
	LastInventoried  *time.Time         `json:"last_inventoried" db:"last_inventoried"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
}

// FlatAssetRecord is the joined row shape scanned out of the store before
// mapping into the nested API model.
type FlatAssetRecord struct {
	ID               int                `db:"id"`
	Code             string             `db:"code"`
	Name             string             `db:"name"`
	Description      string             `db:"description"`
	Location         string             `db:"location"`
	SerialNumber     string             `db:"serial_number"`
	AcquisitionValue decimal.Decimal    `db:"acquisition_value"`
	Currency         string             `db:"currency"`
	AcquisitionDate  time.Time          `db:"acquisition_date"`
	DurationMonths   *int               `db:"duration_months"`
	ResidualValue    decimal.Decimal    `db:"residual_value"`
	Status           metadata.Status    `db:"status"`
	Condition        metadata.Condition `db:"condition"`
	CurrentValue     decimal.Decimal    `db:"current_value"`
	NextMaintenance  *time.Time         `db:"next_maintenance"`
	WarrantyEnd      *time.Time         `db:"warranty_end"`
	LastInventoried  *time.Time         `db:"last_inventoried"`
	CreatedAt        time.Time          `db:"created_at"`
	CategoryID       int                `db:"category_id"`
	CategoryCode     string             `db:"category_code"`
	CategoryName     string             `db:"category_name"`
	SubcategoryID    int                `db:"subcategory_id"`
	SubcategoryCode  string             `db:"subcategory_code"`
	SubcategoryName  string             `db:"subcategory_name"`
	UnitID           int                `db:"unit_id"`
	UnitCode         string             `db:"unit_code"`
	UnitName         string             `db:"unit_name"`
}

func (fa *FlatAssetRecord) TransformToAsset() Asset {
	return Asset{
		ID:               fa.ID,
		Code:             fa.Code,
		Name:             fa.Name,
		Description:      fa.Description,
		Location:         fa.Location,
		SerialNumber:     fa.SerialNumber,
		AcquisitionValue: fa.AcquisitionValue,
		Currency:         fa.Currency,
		AcquisitionDate:  fa.AcquisitionDate,
		DurationMonths:   fa.DurationMonths,
		ResidualValue:    fa.ResidualValue,
		Status:           fa.Status,
		Condition:        fa.Condition,
		CurrentValue:     fa.CurrentValue,
		NextMaintenance:  fa.NextMaintenance,
		WarrantyEnd:      fa.WarrantyEnd,
		LastInventoried:  fa.LastInventoried,
		CreatedAt:        fa.CreatedAt,
		Category: Category{
			ID:   fa.CategoryID,
			Code: fa.CategoryCode,
			Name: fa.CategoryName,
		},
		Subcategory: Subcategory{
			ID:         fa.SubcategoryID,
			CategoryID: fa.CategoryID,
			Code:       fa.SubcategoryCode,
			Name:       fa.SubcategoryName,
		},
		Unit: OrgUnit{
			ID:   fa.UnitID,
			Code: fa.UnitCode,
			Name: fa.UnitName,
		},
	}
}

func (a *Asset) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   a.ID,
		ResourceType: "asset",
	}
}
