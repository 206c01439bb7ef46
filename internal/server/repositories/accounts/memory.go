package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
)

// MemoryRepository keeps accounts in process memory. It is used for the
// memory:// DSN and in tests. Records are copied on the way in and out.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.Account
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.Account),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source. Intended for tests.
func (r *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	r.now = now
	return r
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) findBy(match func(a *models.Account) bool) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byID {
		if match(a) {
			return a.Clone(), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) FindByVerificationToken(ctx context.Context, digest string) (*models.Account, error) {
	if digest == "" {
		return nil, common.ErrorNotFound
	}
	return r.findBy(func(a *models.Account) bool { return a.VerificationTokenDigest == digest })
}

func (r *MemoryRepository) FindByResetToken(ctx context.Context, digest string) (*models.Account, error) {
	if digest == "" {
		return nil, common.ErrorNotFound
	}
	return r.findBy(func(a *models.Account) bool { return a.PasswordResetDigest == digest })
}

func (r *MemoryRepository) Insert(ctx context.Context, a *models.Account) error {
	if err := checkRole(a.Role); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[a.Email]; taken {
		return common.ErrorConflict
	}
	if _, taken := r.byID[a.ID]; taken {
		return common.ErrorConflict
	}

	now := r.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 1

	r.byID[a.ID] = a.Clone()
	r.byEmail[a.Email] = a.ID
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, a *models.Account) error {
	if err := checkRole(a.Role); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[a.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if stored.Version != a.Version {
		return common.ErrVersionConflict
	}
	if owner, taken := r.byEmail[a.Email]; taken && owner != a.ID {
		return common.ErrorConflict
	}

	a.UpdatedAt = r.now()
	a.Version++

	if stored.Email != a.Email {
		delete(r.byEmail, stored.Email)
		r.byEmail[a.Email] = a.ID
	}
	r.byID[a.ID] = a.Clone()
	return nil
}

func (r *MemoryRepository) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	delete(r.byEmail, a.Email)
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Account, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
