package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/gmsas95/dosewise/internal/medication"
)

// Record is one key/value row. Only the user key is used today.
type Record struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// SQLite keeps the user record as a JSON row through GORM
type SQLite struct {
	db  *gorm.DB
	sql *sql.DB
}

// OpenSQLite opens the database file at path; ":memory:" gives a private
// in-memory database
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// a single connection keeps an in-memory database alive and serialises
	// writers on a file
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &SQLite{db: db, sql: sqlDB}, nil
}

func (s *SQLite) GetUser(ctx context.Context) (*medication.User, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "key = ?", UserKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user record: %w", err)
	}

	var user medication.User
	if err := json.Unmarshal([]byte(rec.Value), &user); err != nil {
		return nil, fmt.Errorf("failed to decode user record: %w", err)
	}
	return &user, nil
}

func (s *SQLite) SaveUser(ctx context.Context, user *medication.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}

	rec := Record{Key: UserKey, Value: string(data), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

func (s *SQLite) DeleteUser(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&Record{}, "key = ?", UserKey).Error
}

func (s *SQLite) Close() error {
	return s.sql.Close()
}
