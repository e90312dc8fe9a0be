package database

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

// Connect opens the lead journal database and migrates its schema.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, eris.New("database: empty DSN")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, eris.Wrap(err, "database: connect")
	}

	if err := db.AutoMigrate(&models.Lead{}); err != nil {
		return nil, eris.Wrap(err, "database: migrate leads")
	}

	zap.L().Info("✅ Lead journal database connected")
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return eris.Wrap(err, "database: pool")
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return eris.Wrap(err, "database: pool")
	}
	return sqlDB.Ping()
}
