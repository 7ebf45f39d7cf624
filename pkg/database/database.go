package database

import (
	"desockfuzz/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewDBConnection connects to postgres and migrates the crash table. Without
// a DATABASE_URL it returns nil and crash records stay on disk only.
func NewDBConnection(appConfig *config.AppConfig, logger *zap.Logger) *gorm.DB {
	connectionString := appConfig.DatabaseURL
	if connectionString == "" {
		logger.Debug("database disabled, DATABASE_URL is not set")
		return nil
	}
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	if err := db.AutoMigrate(&Crash{}); err != nil {
		logger.Fatal("failed to migrate crash table", zap.Error(err))
	}
	logger.Debug("connected to database")
	return db
}
