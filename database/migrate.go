package database

import (
	"fmt"

	"gymserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrateDB はテーブルとインデックスを作成する。
// attendances の (user_id, check_in_day) ユニークインデックスもここで作られる。
func AutoMigrateDB(db *gorm.DB, logger *zap.Logger) error {
	tables := []interface{}{
		&models.User{},
		&models.Trainer{},
		&models.Admin{},
		&models.QrSession{},
		&models.Attendance{},
		&models.Notification{},
	}
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("error migrating tables: %w", err)
	}
	logger.Info("Tables migrated successfully", zap.Int("tables", len(tables)))
	return nil
}
