package repomanager

import (
	"context"

	"github.com/dmitrijs2005/idkeeper/internal/server/repositories/accounts"
)

// MemoryRepositoryManager keeps accounts in process memory.
type MemoryRepositoryManager struct {
	repo *accounts.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{repo: accounts.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) Accounts() accounts.Repository { return m.repo }

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Ping(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close(context.Context) error { return nil }
