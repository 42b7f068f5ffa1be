// Package store persists the single User record behind the
// medication.Repository port
package store

import (
	"fmt"
	"path/filepath"

	"github.com/gmsas95/dosewise/internal/config"
	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/medication"
)

// UserKey is the fixed key the whole User record lives under
const UserKey = "user"

// Backend is a Repository that owns resources needing release
type Backend interface {
	medication.Repository
	Close() error
}

// Open selects a backend by cfg.Storage.Driver
func Open(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Driver {
	case "", "badger":
		path := cfg.Storage.BadgerPath
		if path == "" {
			path = filepath.Join(cfg.Storage.DataDir, "badger")
		}
		return OpenBadger(path)
	case "sqlite":
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Storage.DataDir, "dosewise.db")
		}
		return OpenSQLite(path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, apperrors.WrapAs(apperrors.ErrStorageDriver, fmt.Errorf("driver %q", cfg.Storage.Driver))
	}
}
