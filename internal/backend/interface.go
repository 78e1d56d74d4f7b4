// Package backend builds the ledger store and event publisher selected by
// DATA_BACKEND.
package backend

import (
	"context"
	"time"

	"finetrail/internal/ledger"
	"finetrail/internal/services"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result carries the store and, when AMQP is configured and reachable, the
// publisher. Publisher is nil otherwise.
type Result struct {
	Store     ledger.Store
	Publisher services.Publisher
	Cleanup   CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Event publishing, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	CacheTTL time.Duration
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
