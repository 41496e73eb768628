package models

import (
	"context"

	"bitbucket.org/docuwareperu/docuware_backend/config"
)

type CostCenter struct {
	CentroId     int    `gorm:"primaryKey;column:centroid" json:"centroid"`
	CentroCodigo string `gorm:"column:centrocodigo;size:20;not null;unique" json:"centrocodigo"`
	Descripcion  string `gorm:"column:descripcion;size:255" json:"descripcion"`
}

func (CostCenter) TableName() string {
	return "cost_centers"
}

func GetCostCenters(ctx context.Context) ([]*CostCenter, error) {
	var cached []*CostCenter
	if exists, err := config.GetRedisObject("CostCenterList", &cached); err == nil && exists {
		return cached, nil
	}

	var centers []*CostCenter
	db := config.GetDB()
	if err := db.WithContext(ctx).Order("centrocodigo ASC").Find(&centers).Error; err != nil {
		return nil, err
	}

	_ = config.SetRedisObject("CostCenterList", &centers, 0)
	return centers, nil
}
