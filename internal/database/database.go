package database

import (
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/backstage/services/ordermonitor/config"
	"example.com/backstage/services/ordermonitor/internal/models"
)

// Databases holds the write and read-only connections
type Databases struct {
	Write    *gorm.DB
	ReadOnly *gorm.DB
}

// Connect opens both connections and migrates the write database. The
// read-only connection falls back to the write one when no DSN is set or
// it equals the write DSN.
func Connect(cfg config.DatabaseConfig) (*Databases, error) {
	db, err := open(cfg, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to write database")
	}

	readOnlyDB := db
	if cfg.ReadOnlyDSN != "" && cfg.ReadOnlyDSN != cfg.DSN {
		readOnlyDB, err = open(cfg, cfg.ReadOnlyDSN)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to read-only database")
		}
	}

	// Auto-migrate only the write database
	if err := models.SetupModels(db); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	return &Databases{Write: db, ReadOnly: readOnlyDB}, nil
}

func open(cfg config.DatabaseConfig, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get DB instance")
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// Ping checks the write connection
func (d *Databases) Ping() error {
	sqlDB, err := d.Write.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes both connections
func (d *Databases) Close() error {
	sqlDB, err := d.Write.DB()
	if err != nil {
		return err
	}
	if d.ReadOnly != d.Write {
		if roDB, err := d.ReadOnly.DB(); err == nil {
			roDB.Close()
		}
	}
	return sqlDB.Close()
}
