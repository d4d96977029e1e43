package versions

import (
	"log"

	"gorm.io/gorm"
)

// Migration_1_lead_project_created adds the project_created flag to leads and
// backfills it from the projects table, so leads that already opened a
// project before the flag existed cannot open a second one.
func Migration_1_lead_project_created(txn *gorm.DB) error {
	log.Println("adding project_created flag to leads")

	type Lead struct {
		ProjectCreated bool `gorm:"not null;default:false"`
	}

	if err := txn.Migrator().AddColumn(&Lead{}, "ProjectCreated"); err != nil {
		return err
	}

	err := txn.Exec(
		"UPDATE leads SET project_created = ? WHERE id IN (SELECT lead_id FROM projects WHERE lead_id IS NOT NULL)", true,
	).Error
	if err != nil {
		return err
	}

	log.Println("project_created backfill complete")

	return nil
}
