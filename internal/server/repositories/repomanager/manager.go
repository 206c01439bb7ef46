// Package repomanager opens the account store selected by the DSN scheme
// and owns its lifecycle: migrations, health checks and shutdown.
package repomanager

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/idkeeper/internal/server/repositories/accounts"
)

// RepositoryManager vends the account repository of one backend.
type RepositoryManager interface {
	Accounts() accounts.Repository
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Backend names the store behind a DSN.
func Backend(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return "postgres", nil
	case "mongodb", "mongodb+srv":
		return "mongodb", nil
	case "memory":
		return "memory", nil
	default:
		return "", fmt.Errorf("unsupported dsn scheme %q", u.Scheme)
	}
}

// New opens the backend for dsn. No network round trip is made; call Ping
// or RunMigrations to reach the store.
func New(dsn string) (RepositoryManager, error) {
	backend, err := Backend(dsn)
	if err != nil {
		return nil, err
	}

	switch backend {
	case "postgres":
		return OpenPostgres(dsn)
	case "mongodb":
		return OpenMongo(dsn)
	default:
		return NewMemoryRepositoryManager(), nil
	}
}
