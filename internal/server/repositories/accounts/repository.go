// Package accounts stores account records. Every implementation enforces
// email uniqueness atomically and guards updates with the account version.
package accounts

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
)

// Repository is the account store.
//
// Lookups return common.ErrorNotFound when nothing matches. Insert and
// Update reject a role outside the closed set with common.ErrorValidation
// before anything is written. Insert and
// Update return common.ErrorConflict when the email is taken by another
// account. Update returns common.ErrVersionConflict when the stored version
// differs from a.Version; on success it bumps a.Version and a.UpdatedAt.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByVerificationToken(ctx context.Context, digest string) (*models.Account, error)
	FindByResetToken(ctx context.Context, digest string) (*models.Account, error)
	Insert(ctx context.Context, a *models.Account) error
	Update(ctx context.Context, a *models.Account) error
	DeleteByID(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*models.Account, error)
}

// checkRole rejects roles outside the closed set before a write.
func checkRole(r models.Role) error {
	if !r.Valid() {
		return fmt.Errorf("%w: unknown role %q", common.ErrorValidation, r)
	}
	return nil
}
