package models

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/docuwareperu/docuware_backend/config"
	"bitbucket.org/docuwareperu/docuware_backend/utils"
	"gorm.io/gorm"
)

// DocumentType is the catalog of SUNAT voucher types. Code is the numeric
// SUNAT type; the gateway consumes it zero-padded to two digits.
type DocumentType struct {
	TipoId int    `gorm:"primaryKey;column:tipoid" json:"tipoid"`
	Tipo   string `gorm:"column:tipo;size:100;not null" json:"tipo"`
	Code   int    `gorm:"column:code;not null" json:"code"`
}

func (DocumentType) TableName() string {
	return "document_types"
}

func GetDocumentTypes(ctx context.Context) ([]*DocumentType, error) {
	var cached []*DocumentType
	if exists, err := config.GetRedisObject("DocumentTypeList", &cached); err == nil && exists {
		return cached, nil
	}

	var types []*DocumentType
	db := config.GetDB()
	if err := db.WithContext(ctx).Order("tipoid ASC").Find(&types).Error; err != nil {
		return nil, err
	}

	_ = config.SetRedisObject("DocumentTypeList", &types, 0)
	return types, nil
}

// GetDocumentTypeCode resolves a document type id to the zero-padded
// two-digit code the tax authority expects (e.g. 1 -> "01").
func GetDocumentTypeCode(ctx context.Context, tipoId int) (string, error) {
	if tipoId <= 0 {
		return "", utils.ErrorRecordNotFound
	}

	var docType DocumentType
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&docType, tipoId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", utils.ErrorRecordNotFound
		}
		return "", err
	}
	return fmt.Sprintf("%02d", docType.Code), nil
}

func seedDocumentTypes(db *gorm.DB) error {
	var count int64
	if err := db.Model(&DocumentType{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	types := []DocumentType{
		{TipoId: 1, Tipo: "Factura", Code: 1},
		{TipoId: 2, Tipo: "Recibo por Honorarios", Code: 2},
		{TipoId: 3, Tipo: "Boleta de Venta", Code: 3},
		{TipoId: 4, Tipo: "Nota de Crédito", Code: 7},
		{TipoId: 5, Tipo: "Nota de Débito", Code: 8},
		{TipoId: 6, Tipo: "Guía de Remisión", Code: 9},
	}
	return db.Create(&types).Error
}
