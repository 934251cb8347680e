// Package backend builds the data backend selected by DATA_BACKEND.
package backend

import (
	"context"

	"svinn/internal/gateway"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult is a ready backend and the function that closes it.
type BackendResult struct {
	Backend gateway.Backend
	Cleanup CleanupFunc
}

// Close runs Cleanup when there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds what any backend type may need.
type Config struct {
	Type BackendType

	// Memory
	DataDirectory string

	// SQLite
	SQLiteDBPath string

	// Postgres
	DatabaseURL string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleCountersSheet      string
	GoogleProfilesSheet      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Instrument wraps the backend so every gateway call is timed and
	// failures are logged.
	Instrument bool
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
