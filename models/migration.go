package models

import (
	"log"

	"bitbucket.org/docuwareperu/docuware_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Document{}, &DocumentDetail{},
		&DocumentType{}, &CostCenter{},
		&Supplier{},
		&Vehicle{}, &Driver{}, &DailySchedule{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}

	if err := seedDocumentTypes(db); err != nil {
		log.Fatal(err)
	}

	if err := seedFleet(db); err != nil {
		log.Fatal(err)
	}
}
