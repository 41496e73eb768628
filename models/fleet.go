package models

import (
	"context"

	"bitbucket.org/docuwareperu/docuware_backend/config"
	"gorm.io/gorm"
)

// Vehicle and Driver are the fleet catalogs behind the daily scheduling
// board. NoVehiculo is the unit's registered plate number.
type Vehicle struct {
	IdVehiculo int    `gorm:"primaryKey;autoIncrement;column:idvehiculo" json:"idvehiculo"`
	NoVehiculo string `gorm:"column:no_vehiculo;size:20;not null;unique" json:"no_vehiculo"`
}

func (Vehicle) TableName() string {
	return "vehiculos"
}

type Driver struct {
	IdConductor int    `gorm:"primaryKey;autoIncrement;column:idconductor" json:"idconductor"`
	ConductorNm string `gorm:"column:conductor_nm;size:150;not null" json:"conductor_nm"`
}

func (Driver) TableName() string {
	return "conductores"
}

func GetVehicles(ctx context.Context) ([]*Vehicle, error) {
	var cached []*Vehicle
	if exists, err := config.GetRedisObject("VehicleList", &cached); err == nil && exists {
		return cached, nil
	}

	var vehicles []*Vehicle
	db := config.GetDB()
	if err := db.WithContext(ctx).Order("no_vehiculo ASC").Find(&vehicles).Error; err != nil {
		return nil, err
	}

	_ = config.SetRedisObject("VehicleList", &vehicles, 0)
	return vehicles, nil
}

func GetDrivers(ctx context.Context) ([]*Driver, error) {
	var cached []*Driver
	if exists, err := config.GetRedisObject("DriverList", &cached); err == nil && exists {
		return cached, nil
	}

	var drivers []*Driver
	db := config.GetDB()
	if err := db.WithContext(ctx).Order("conductor_nm ASC").Find(&drivers).Error; err != nil {
		return nil, err
	}

	_ = config.SetRedisObject("DriverList", &drivers, 0)
	return drivers, nil
}

func seedFleet(db *gorm.DB) error {
	var count int64
	if err := db.Model(&Vehicle{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		vehicles := []Vehicle{
			{NoVehiculo: "ABD-708"},
			{NoVehiculo: "AVF-831"},
			{NoVehiculo: "C4K-859"},
			{NoVehiculo: "F7Q-923"},
		}
		if err := db.Create(&vehicles).Error; err != nil {
			return err
		}
	}

	if err := db.Model(&Driver{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		drivers := []Driver{
			{ConductorNm: "CARLOS QUISPE HUAMAN"},
			{ConductorNm: "JORGE RAMIREZ TORRES"},
			{ConductorNm: "MIGUEL FLORES CASTILLO"},
		}
		if err := db.Create(&drivers).Error; err != nil {
			return err
		}
	}
	return nil
}
