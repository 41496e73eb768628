package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/docuwareperu/docuware_backend/config"
	"bitbucket.org/docuwareperu/docuware_backend/utils"
	"gorm.io/gorm"
)

// Supplier is the local cache of taxpayer-registry lookups: RUC to legal
// name. Rows exist so repeated edits of the same supplier don't hit the
// registry every time.
type Supplier struct {
	Ruc       string    `gorm:"primaryKey;column:ruc;size:11" json:"ruc"`
	LegalName string    `gorm:"column:legal_name;size:255;not null" json:"legal_name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Supplier) TableName() string {
	return "suppliers"
}

func GetSupplierName(ctx context.Context, ruc string) (string, bool, error) {
	if name, exists, err := config.GetRedisValue("Supplier:" + ruc); err == nil && exists {
		return name, true, nil
	}

	var supplier Supplier
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&supplier, "ruc = ?", ruc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	_ = config.SetRedisValue("Supplier:"+ruc, supplier.LegalName, 0)
	return supplier.LegalName, true, nil
}

// SaveSupplierName caches a registry result. An empty name is never written:
// an unknown RUC must not erase a previously known legal name.
func SaveSupplierName(ctx context.Context, ruc, legalName string) error {
	if legalName == "" {
		return nil
	}
	if !utils.IsValidRuc(ruc) {
		return utils.NewValidationError("ruc", "must be an 11-digit RUC")
	}

	db := config.GetDB()
	supplier := Supplier{Ruc: ruc, LegalName: legalName}
	if err := db.WithContext(ctx).Save(&supplier).Error; err != nil {
		return err
	}
	return config.SetRedisValue("Supplier:"+ruc, legalName, 0)
}

// GormSupplierStore adapts the supplier cache to the resolver's
// SupplierStore interface.
type GormSupplierStore struct{}

func (GormSupplierStore) GetName(ctx context.Context, ruc string) (string, bool, error) {
	return GetSupplierName(ctx, ruc)
}

func (GormSupplierStore) SaveName(ctx context.Context, ruc, legalName string) error {
	return SaveSupplierName(ctx, ruc, legalName)
}
