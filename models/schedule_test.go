package models

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/docuwareperu/docuware_backend/utils"
)

// Malformed dates must be rejected before any database access, so these run
// without a connection.

func TestCreateDailySchedule_RejectsMalformedDate(t *testing.T) {
	for _, fecha := range []string{"", "15/03/2024", "2024-13-40", "mañana"} {
		_, err := CreateDailySchedule(context.Background(), &DailyScheduleInput{
			ProgramacionFecha: fecha,
			IdVehiculo:        1,
			IdConductor:       1,
		})
		var validationErr *utils.ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("fecha %q: expected ValidationError, got %v", fecha, err)
		}
		if validationErr.Field != "programacionfecha" {
			t.Fatalf("fecha %q: expected field programacionfecha, got %s", fecha, validationErr.Field)
		}
	}
}

func TestPatchDailySchedule_RejectsMalformedDate(t *testing.T) {
	_, err := PatchDailySchedule(context.Background(), &DailySchedulePatch{
		ProgramacionId:    1,
		ProgramacionFecha: "2024/03/15",
		IdVehiculo:        1,
		IdConductor:       1,
	})
	var validationErr *utils.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
