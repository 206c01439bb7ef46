package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
)

// AdminSeed describes the administrator created at startup.
type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

// EnsureAdmin makes sure an administrator with the given email exists.
// A missing account is created already verified; an existing one is
// promoted and its password left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, seed AdminSeed) error {
	if seed.Email == "" || seed.Password == "" {
		return common.ErrorValidation
	}

	a, err := s.accounts.FindByEmail(ctx, seed.Email)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return s.createAdmin(ctx, seed)
	case err != nil:
		return err
	}

	if a.Role == models.RoleAdministrator {
		return nil
	}

	_, err = s.mutate(ctx, a, s.byID(a.ID), func(a *models.Account) error {
		a.Role = models.RoleAdministrator
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "bootstrap admin promoted", "account_id", a.ID, "email", a.Email)
	return nil
}

func (s *AuthService) createAdmin(ctx context.Context, seed AdminSeed) error {
	hash, err := s.hasher.Hash(seed.Password)
	if err != nil {
		return err
	}

	name := seed.Name
	if name == "" {
		name = "Administrator"
	}

	a := &models.Account{
		ID:           s.newID(),
		Name:         name,
		Email:        seed.Email,
		PasswordHash: hash,
		Role:         models.RoleAdministrator,
		IsVerified:   true,
	}
	if err := s.accounts.Insert(ctx, a); err != nil {
		return err
	}

	s.log.Info(ctx, "bootstrap admin user created", "account_id", a.ID, "email", a.Email)
	return nil
}
