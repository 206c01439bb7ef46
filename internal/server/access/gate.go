// Package access resolves bearer tokens to accounts and enforces role checks.
package access

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/logging"
	"github.com/dmitrijs2005/idkeeper/internal/server/auth"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
)

// Error is a rejection with a caller-facing reason. It unwraps to
// common.ErrorUnauthenticated, common.ErrorForbidden or common.ErrorInternal.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string { return e.Reason }
func (e *Error) Unwrap() error { return e.Err }

var (
	ErrNoToken          = &Error{Reason: "No token provided", Err: common.ErrorUnauthenticated}
	ErrBadToken         = &Error{Reason: "Invalid or expired token", Err: common.ErrorUnauthenticated}
	ErrAccountGone      = &Error{Reason: "User not found", Err: common.ErrorUnauthenticated}
	ErrInsufficientRole = &Error{Reason: "Forbidden: insufficient role", Err: common.ErrorForbidden}
)

// TokenVerifier is satisfied by *auth.Issuer.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// AccountFinder is the slice of the account store the gate needs.
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

type Gate struct {
	tokens   TokenVerifier
	accounts AccountFinder
	log      logging.Logger
}

func NewGate(tokens TokenVerifier, accounts AccountFinder, log logging.Logger) *Gate {
	return &Gate{tokens: tokens, accounts: accounts, log: log.With("component", "access")}
}

// BearerToken extracts the token from an Authorization header value.
// The scheme match is exact; anything else yields "".
func BearerToken(header string) string {
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
}

// Resolve turns an Authorization header into the current account. The
// account is re-read from the store so deleted accounts and role changes
// take effect immediately.
func (g *Gate) Resolve(ctx context.Context, header string) (*models.Account, error) {
	token := BearerToken(header)
	if token == "" {
		return nil, ErrNoToken
	}

	id, err := g.tokens.Verify(token)
	if err != nil {
		g.log.Debug(ctx, "token rejected", "error", err)
		return nil, ErrBadToken
	}

	a, err := g.accounts.FindByID(ctx, id.UserID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		g.log.Warn(ctx, "token for missing account", "account_id", id.UserID)
		return nil, ErrAccountGone
	case err != nil:
		g.log.Error(ctx, "account lookup failed", "account_id", id.UserID, "error", err)
		return nil, common.ErrorInternal
	}

	return a, nil
}

// Authorize reports ErrInsufficientRole unless a holds one of allowed.
func Authorize(a *models.Account, allowed ...models.Role) error {
	if a == nil {
		return ErrNoToken
	}
	for _, r := range allowed {
		if a.Role == r {
			return nil
		}
	}
	return ErrInsufficientRole
}

type ctxKey struct{}

// WithAccount stores the authenticated account in ctx.
func WithAccount(ctx context.Context, a *models.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// AccountFrom returns the account stored by WithAccount.
func AccountFrom(ctx context.Context) (*models.Account, bool) {
	a, ok := ctx.Value(ctxKey{}).(*models.Account)
	return a, ok && a != nil
}
