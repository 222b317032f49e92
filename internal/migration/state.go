package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type schemaState struct {
	ID        int `gorm:"primaryKey;autoIncrement:false"`
	Version   int
	AppliedAt time.Time
}

func (schemaState) TableName() string {
	return "schema_state"
}

func activateSchemaState(ctx context.Context, db *gorm.DB, version int) error {
	row := schemaState{ID: 1, Version: version, AppliedAt: time.Now().UTC()}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "applied_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("activate schema state: %w", err)
	}
	return nil
}

func loadSchemaState(ctx context.Context, db *gorm.DB) (schemaState, error) {
	if !db.WithContext(ctx).Migrator().HasTable(&schemaState{}) {
		return schemaState{}, ErrSchemaNotApplied
	}
	var row schemaState
	err := db.WithContext(ctx).Where("id = ?", 1).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return schemaState{}, ErrSchemaNotApplied
	}
	if err != nil {
		return schemaState{}, fmt.Errorf("load schema state: %w", err)
	}
	return row, nil
}
