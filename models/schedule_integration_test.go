package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"bitbucket.org/docuwareperu/docuware_backend/config"
	"bitbucket.org/docuwareperu/docuware_backend/models"
	"bitbucket.org/docuwareperu/docuware_backend/utils"
)

// Integration test for the daily scheduling board against real MySQL +
// Redis: seeded fleet catalogs, create with catalog validation, preloaded
// listing and the id-in-body patch.
//
// Run (requires Docker): INTEGRATION_TESTS=1 go test ./models -run DailyScheduling -v

func TestDailyScheduling(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "docuware_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	// Migration seeds the fleet catalogs.
	vehicles, err := models.GetVehicles(ctx)
	if err != nil {
		t.Fatalf("GetVehicles: %v", err)
	}
	if len(vehicles) == 0 {
		t.Fatal("expected seeded vehicles")
	}
	drivers, err := models.GetDrivers(ctx)
	if err != nil {
		t.Fatalf("GetDrivers: %v", err)
	}
	if len(drivers) == 0 {
		t.Fatal("expected seeded drivers")
	}

	// Create with an unknown vehicle: catalog validation, nothing persisted.
	_, err = models.CreateDailySchedule(ctx, &models.DailyScheduleInput{
		ProgramacionFecha: "2024-03-15",
		IdVehiculo:        99999,
		IdConductor:       drivers[0].IdConductor,
	})
	var validationErr *utils.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "idvehiculo" {
		t.Fatalf("expected idvehiculo ValidationError, got %v", err)
	}

	created, err := models.CreateDailySchedule(ctx, &models.DailyScheduleInput{
		ProgramacionFecha: "2024-03-15",
		IdVehiculo:        vehicles[0].IdVehiculo,
		IdConductor:       drivers[0].IdConductor,
	})
	if err != nil {
		t.Fatalf("CreateDailySchedule: %v", err)
	}
	if created.Vehiculo.NoVehiculo != vehicles[0].NoVehiculo {
		t.Fatalf("vehicle not preloaded: %+v", created.Vehiculo)
	}
	if created.Conductor.ConductorNm != drivers[0].ConductorNm {
		t.Fatalf("driver not preloaded: %+v", created.Conductor)
	}
	if created.ProgramacionFecha.Format("2006-01-02") != "2024-03-15" {
		t.Fatalf("fecha not stored: %v", created.ProgramacionFecha)
	}

	// Listing carries the nested catalog rows for the board.
	rows, err := models.GetDailySchedules(ctx)
	if err != nil {
		t.Fatalf("GetDailySchedules: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(rows))
	}
	if rows[0].Vehiculo.NoVehiculo == "" || rows[0].Conductor.ConductorNm == "" {
		t.Fatalf("listing missing preloads: %+v", rows[0])
	}

	// Patch swaps the driver and moves the day.
	patched, err := models.PatchDailySchedule(ctx, &models.DailySchedulePatch{
		ProgramacionId:    created.ProgramacionId,
		ProgramacionFecha: "2024-03-16",
		IdVehiculo:        vehicles[0].IdVehiculo,
		IdConductor:       drivers[len(drivers)-1].IdConductor,
	})
	if err != nil {
		t.Fatalf("PatchDailySchedule: %v", err)
	}
	if patched.ProgramacionFecha.Format("2006-01-02") != "2024-03-16" {
		t.Fatalf("fecha not patched: %v", patched.ProgramacionFecha)
	}
	if patched.Conductor.IdConductor != drivers[len(drivers)-1].IdConductor {
		t.Fatalf("driver not patched: %+v", patched.Conductor)
	}

	// Patching an id that does not exist.
	_, err = models.PatchDailySchedule(ctx, &models.DailySchedulePatch{
		ProgramacionId:    99999,
		ProgramacionFecha: "2024-03-16",
		IdVehiculo:        vehicles[0].IdVehiculo,
		IdConductor:       drivers[0].IdConductor,
	})
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}
