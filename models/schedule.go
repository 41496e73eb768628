package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/docuwareperu/docuware_backend/config"
	"bitbucket.org/docuwareperu/docuware_backend/utils"
	"gorm.io/gorm"
)

// DailySchedule assigns one vehicle and one driver to a calendar day. The
// board consumes the rows with the catalog entries nested, so both
// associations are always preloaded.
type DailySchedule struct {
	ProgramacionId    int       `gorm:"primaryKey;autoIncrement;column:programacionid" json:"programacionid"`
	ProgramacionFecha time.Time `gorm:"column:programacionfecha;type:date;not null;index" json:"programacionfecha"`
	IdVehiculo        int       `gorm:"column:idvehiculo;not null" json:"-"`
	IdConductor       int       `gorm:"column:idconductor;not null" json:"-"`
	Vehiculo          Vehicle   `gorm:"foreignKey:IdVehiculo;references:IdVehiculo" json:"vehiculo"`
	Conductor         Driver    `gorm:"foreignKey:IdConductor;references:IdConductor" json:"conductor"`
}

func (DailySchedule) TableName() string {
	return "programacion_diaria"
}

type DailyScheduleInput struct {
	ProgramacionFecha string `json:"programacionfecha" binding:"required"`
	IdVehiculo        int    `json:"idvehiculo" binding:"required"`
	IdConductor       int    `json:"idconductor" binding:"required"`
}

type DailySchedulePatch struct {
	ProgramacionId    int    `json:"programacionid" binding:"required"`
	ProgramacionFecha string `json:"programacionfecha" binding:"required"`
	IdVehiculo        int    `json:"idvehiculo" binding:"required"`
	IdConductor       int    `json:"idconductor" binding:"required"`
}

func GetDailySchedules(ctx context.Context) ([]*DailySchedule, error) {
	var rows []*DailySchedule
	db := config.GetDB()
	err := db.WithContext(ctx).
		Preload("Vehiculo").
		Preload("Conductor").
		Order("programacionfecha DESC, programacionid DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func GetDailySchedule(ctx context.Context, id int) (*DailySchedule, error) {
	var row DailySchedule
	db := config.GetDB()
	err := db.WithContext(ctx).
		Preload("Vehiculo").
		Preload("Conductor").
		First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &row, nil
}

func CreateDailySchedule(ctx context.Context, input *DailyScheduleInput) (*DailySchedule, error) {
	fecha, err := parseScheduleDate(input.ProgramacionFecha)
	if err != nil {
		return nil, err
	}
	if err := validateFleetRefs(ctx, input.IdVehiculo, input.IdConductor); err != nil {
		return nil, err
	}

	row := &DailySchedule{
		ProgramacionFecha: fecha,
		IdVehiculo:        input.IdVehiculo,
		IdConductor:       input.IdConductor,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return GetDailySchedule(ctx, row.ProgramacionId)
}

func PatchDailySchedule(ctx context.Context, patch *DailySchedulePatch) (*DailySchedule, error) {
	fecha, err := parseScheduleDate(patch.ProgramacionFecha)
	if err != nil {
		return nil, err
	}

	var row DailySchedule
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&row, patch.ProgramacionId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if err := validateFleetRefs(ctx, patch.IdVehiculo, patch.IdConductor); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"programacionfecha": fecha,
		"idvehiculo":        patch.IdVehiculo,
		"idconductor":       patch.IdConductor,
	}
	if err := db.WithContext(ctx).Model(&row).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetDailySchedule(ctx, row.ProgramacionId)
}

// parseScheduleDate runs before any database access so a malformed date
// never costs a round trip.
func parseScheduleDate(value string) (time.Time, error) {
	fecha, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, utils.NewValidationError("programacionfecha", "must be a YYYY-MM-DD date")
	}
	return fecha, nil
}

func validateFleetRefs(ctx context.Context, idVehiculo, idConductor int) error {
	db := config.GetDB()

	var vehicle Vehicle
	if err := db.WithContext(ctx).First(&vehicle, idVehiculo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewValidationError("idvehiculo", "unknown vehicle")
		}
		return err
	}

	var driver Driver
	if err := db.WithContext(ctx).First(&driver, idConductor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewValidationError("idconductor", "unknown driver")
		}
		return err
	}
	return nil
}
