// Package db persists the attestation mirror index, license descriptors and
// submission attempts with gorm.
package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"guardians/internal/platform/logger"
)

const sqlitePrefix = "sqlite:"

type Store struct {
	DB *gorm.DB
}

// NewStore opens the database named by dsn and migrates the schema. An empty
// dsn yields a store without a database; its repositories report
// errDBUnavailable. A "sqlite:" prefix selects the sqlite driver.
func NewStore(dsn string, log *logger.Logger) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		log.Warn("POSTGRES_DSN not set; index, license and attempt storage disabled")
		return &Store{}, nil
	}
	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(dsn, sqlitePrefix); ok {
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(dsn)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return &Store{DB: gdb}, nil
}

func Migrate(gdb *gorm.DB) error {
	if gdb == nil {
		return errDBUnavailable
	}
	if err := gdb.AutoMigrate(&AttestationIndexModel{}, &LicenseModel{}, &SubmissionAttemptModel{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Attestations() *AttestationIndexRepository {
	return NewAttestationIndexRepository(s.gorm())
}

func (s *Store) Licenses() *LicenseRepository {
	return NewLicenseRepository(s.gorm())
}

func (s *Store) Attempts() *SubmissionAttemptRepository {
	return NewSubmissionAttemptRepository(s.gorm())
}

func (s *Store) gorm() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.DB
}
