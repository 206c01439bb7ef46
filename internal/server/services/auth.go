// Package services contains server-side business logic. This file implements
// AuthService, the account state machine: sign-up, email verification,
// two-phase sign-in with an emailed MFA code, password reset and
// role-gated profile operations.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/logging"
	"github.com/dmitrijs2005/idkeeper/internal/server/auth"
	"github.com/dmitrijs2005/idkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
	"github.com/dmitrijs2005/idkeeper/internal/server/notify"
	"github.com/dmitrijs2005/idkeeper/internal/server/password"
	"github.com/dmitrijs2005/idkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/idkeeper/internal/server/secrets"
	"github.com/google/uuid"
)

// maxUpdateAttempts bounds the reload-and-retry loop on version conflicts.
const maxUpdateAttempts = 3

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
	Verify(token string) (auth.Identity, error)
}

// SecretSource generates single-use secrets.
type SecretSource interface {
	NewToken() (string, error)
	NewMfaCode() (string, error)
}

// Sender delivers outbound mail.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Options tune the state machine.
type Options struct {
	AppURL               string
	MfaCodeTTL           time.Duration
	ResetTokenTTL        time.Duration
	RequireVerifiedEmail bool
}

// SignUpInput is the sign-up request. Role is not accepted from callers.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// SignUpResult reports the created account and whether the verification
// email was accepted by the notifier.
type SignUpResult struct {
	Account               models.PublicAccount
	VerificationEmailSent bool
}

type AuthService struct {
	accounts accounts.Repository
	hasher   password.Hasher
	tokens   TokenIssuer
	secrets  SecretSource
	sender   Sender
	metrics  *metrics.Recorder
	log      logging.Logger
	opts     Options

	now   func() time.Time
	newID func() string
}

func NewAuthService(repo accounts.Repository, hasher password.Hasher, tokens TokenIssuer, sender Sender, log logging.Logger, opts Options) *AuthService {
	return &AuthService{
		accounts: repo,
		hasher:   hasher,
		tokens:   tokens,
		secrets:  secrets.NewGenerator(),
		sender:   sender,
		log:      log.With("component", "auth"),
		opts:     opts,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithMetrics attaches a Prometheus recorder.
func (s *AuthService) WithMetrics(m *metrics.Recorder) *AuthService {
	s.metrics = m
	return s
}

// internal logs err with full detail and hides it behind ErrorInternal.
func (s *AuthService) internal(ctx context.Context, op string, err error, args ...any) error {
	s.log.Error(ctx, op+" failed", append(args, "error", err)...)
	return common.ErrorInternal
}

func (s *AuthService) record(event string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.AuthEvent(event, outcome)
}

// mutate applies fn to a and persists it. On a version conflict it reloads
// the account and applies fn again, so fn must decide from the record it
// is given, never from state captured before the first attempt.
func (s *AuthService) mutate(ctx context.Context, a *models.Account, reload func(ctx context.Context) (*models.Account, error), fn func(a *models.Account) error) (*models.Account, error) {
	for attempt := 1; ; attempt++ {
		if err := fn(a); err != nil {
			return nil, err
		}

		err := s.accounts.Update(ctx, a)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, common.ErrVersionConflict) || attempt == maxUpdateAttempts {
			return nil, err
		}

		s.metrics.VersionConflict()
		s.log.Debug(ctx, "version conflict, retrying", "account_id", a.ID, "attempt", attempt)

		if a, err = reload(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *AuthService) byID(id string) func(ctx context.Context) (*models.Account, error) {
	return func(ctx context.Context) (*models.Account, error) {
		return s.accounts.FindByID(ctx, id)
	}
}

// CreateUser registers an unverified StandardRole account and emails a
// verification link. A failed send does not undo the registration; it is
// reported through SignUpResult.VerificationEmailSent.
func (s *AuthService) CreateUser(ctx context.Context, in SignUpInput) (res *SignUpResult, err error) {
	defer func() { s.record("sign_up", err) }()

	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, common.ErrorValidation
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "hash password", err)
	}

	token, err := s.secrets.NewToken()
	if err != nil {
		return nil, s.internal(ctx, "generate verification token", err)
	}

	a := &models.Account{
		ID:                      s.newID(),
		Name:                    in.Name,
		Email:                   in.Email,
		PasswordHash:            hash,
		Role:                    models.RoleStandard,
		VerificationTokenDigest: secrets.Digest(token),
	}

	if err := s.accounts.Insert(ctx, a); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			s.log.Warn(ctx, "sign-up rejected, email already registered", "email", in.Email)
			return nil, common.ErrorConflict
		}
		return nil, s.internal(ctx, "insert account", err, "email", in.Email)
	}

	sent := s.deliver(ctx, verificationMessage(a.Email, s.opts.AppURL, token), a.ID)

	s.log.Info(ctx, "user signup completed", "account_id", a.ID, "verification_email_sent", sent)
	return &SignUpResult{Account: a.ToPublic(), VerificationEmailSent: sent}, nil
}

// deliver sends msg and reports whether the notifier accepted it.
func (s *AuthService) deliver(ctx context.Context, msg notify.Message, accountID string) bool {
	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.NotificationFailed(string(msg.Kind))
		s.log.Error(ctx, "failed to send email", "kind", msg.Kind, "account_id", accountID, "error", err)
		return false
	}
	return true
}

// VerifyEmail consumes a verification token. A second use of the same
// token fails with ErrInvalidOrExpiredToken.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (err error) {
	defer func() { s.record("verify_email", err) }()

	if token == "" {
		return common.ErrInvalidOrExpiredToken
	}
	digest := secrets.Digest(token)

	load := func(ctx context.Context) (*models.Account, error) {
		a, err := s.accounts.FindByVerificationToken(ctx, digest)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpiredToken
		}
		return a, err
	}

	a, err := load(ctx)
	if err != nil {
		return s.mapErr(ctx, "find by verification token", err)
	}

	a, err = s.mutate(ctx, a, load, func(a *models.Account) error {
		if a.VerificationTokenDigest != digest {
			return common.ErrInvalidOrExpiredToken
		}
		a.MarkVerified()
		return nil
	})
	if err != nil {
		return s.mapErr(ctx, "verify email", err)
	}

	s.log.Info(ctx, "email verified", "account_id", a.ID)
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account, replacing the previous one.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (err error) {
	defer func() { s.record("resend_verification", err) }()

	if email == "" {
		return common.ErrorValidation
	}

	a, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return s.mapErr(ctx, "find by email", err)
	}

	token, err := s.secrets.NewToken()
	if err != nil {
		return s.internal(ctx, "generate verification token", err)
	}

	a, err = s.mutate(ctx, a, s.byID(a.ID), func(a *models.Account) error {
		if a.IsVerified {
			return common.ErrAlreadyVerified
		}
		a.VerificationTokenDigest = secrets.Digest(token)
		return nil
	})
	if err != nil {
		return s.mapErr(ctx, "store verification token", err)
	}

	if !s.deliver(ctx, verificationMessage(a.Email, s.opts.AppURL, token), a.ID) {
		return common.ErrorInternal
	}
	return nil
}

// LoginUser is phase one of sign-in. Correct credentials never yield a
// session: a 6-digit code valid for MfaCodeTTL is stored and emailed, and
// any previous pending code is replaced.
func (s *AuthService) LoginUser(ctx context.Context, email, plain string) (err error) {
	defer func() { s.record("sign_in", err) }()

	if email == "" || plain == "" {
		return common.ErrorValidation
	}

	a, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "login failed, user not found", "email", email)
		}
		return s.mapErr(ctx, "find by email", err)
	}

	ok, err := s.hasher.Verify(a.PasswordHash, plain)
	if err != nil {
		return s.internal(ctx, "verify password", err, "account_id", a.ID)
	}
	if !ok {
		s.log.Warn(ctx, "login failed, invalid password", "account_id", a.ID)
		return common.ErrorInvalidCredentials
	}

	if s.opts.RequireVerifiedEmail && !a.IsVerified {
		s.log.Warn(ctx, "login refused, email not verified", "account_id", a.ID)
		return common.ErrorForbidden
	}

	var upgraded string
	if s.hasher.NeedsUpgrade(a.PasswordHash) {
		if upgraded, err = s.hasher.Hash(plain); err != nil {
			return s.internal(ctx, "rehash password", err, "account_id", a.ID)
		}
	}

	code, err := s.secrets.NewMfaCode()
	if err != nil {
		return s.internal(ctx, "generate mfa code", err)
	}
	expires := s.now().Add(s.opts.MfaCodeTTL)
	oldHash := a.PasswordHash

	a, err = s.mutate(ctx, a, s.byID(a.ID), func(a *models.Account) error {
		a.SetMfa(secrets.Digest(code), expires)
		if upgraded != "" && a.PasswordHash == oldHash {
			a.PasswordHash = upgraded
		}
		return nil
	})
	if err != nil {
		return s.mapErr(ctx, "store mfa code", err)
	}

	if !s.deliver(ctx, mfaMessage(a.Email, code, s.opts.MfaCodeTTL), a.ID) {
		return common.ErrorInternal
	}

	s.log.Info(ctx, "mfa code sent for login", "account_id", a.ID)
	return nil
}

// VerifyMfaCode is phase two of sign-in. The code is cleared in the same
// update that accepts it, before the session token is signed.
func (s *AuthService) VerifyMfaCode(ctx context.Context, email, code string) (token string, err error) {
	defer func() { s.record("verify_mfa", err) }()

	if email == "" || code == "" {
		return "", common.ErrorValidation
	}

	load := func(ctx context.Context) (*models.Account, error) {
		a, err := s.accounts.FindByEmail(ctx, email)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrMfaNotRequested
		}
		return a, err
	}

	a, err := load(ctx)
	if err != nil {
		return "", s.mapErr(ctx, "find by email", err)
	}

	now := s.now()
	a, err = s.mutate(ctx, a, load, func(a *models.Account) error {
		if !a.HasPendingMfa() {
			return common.ErrMfaNotRequested
		}
		if !secrets.Matches(code, a.MfaCodeDigest) || !now.Before(*a.MfaCodeExpires) {
			return common.ErrInvalidOrExpiredMfa
		}
		a.ClearMfa()
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidOrExpiredMfa) {
			s.log.Warn(ctx, "mfa verification failed", "email", email)
		}
		return "", s.mapErr(ctx, "verify mfa code", err)
	}

	token, err = s.tokens.Issue(a.ID, a.Email)
	if err != nil {
		return "", s.internal(ctx, "sign session token", err, "account_id", a.ID)
	}

	s.log.Info(ctx, "mfa verified, session issued", "account_id", a.ID)
	return token, nil
}

// RequestPasswordReset stores a reset token valid for ResetTokenTTL and
// emails the reset link. A new request supersedes an outstanding one.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer func() { s.record("forgot_password", err) }()

	if email == "" {
		return common.ErrorValidation
	}

	a, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return s.mapErr(ctx, "find by email", err)
	}

	token, err := s.secrets.NewToken()
	if err != nil {
		return s.internal(ctx, "generate reset token", err)
	}
	expires := s.now().Add(s.opts.ResetTokenTTL)

	a, err = s.mutate(ctx, a, s.byID(a.ID), func(a *models.Account) error {
		a.SetPasswordReset(secrets.Digest(token), expires)
		return nil
	})
	if err != nil {
		return s.mapErr(ctx, "store reset token", err)
	}

	if !s.deliver(ctx, resetMessage(a.Email, s.opts.AppURL, token), a.ID) {
		return common.ErrorInternal
	}

	s.log.Info(ctx, "password reset email sent", "account_id", a.ID)
	return nil
}

// ResetPassword consumes a reset token and replaces the password hash.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.record("reset_password", err) }()

	if token == "" {
		return common.ErrInvalidOrExpiredToken
	}
	if newPassword == "" {
		return common.ErrorValidation
	}
	digest := secrets.Digest(token)

	load := func(ctx context.Context) (*models.Account, error) {
		a, err := s.accounts.FindByResetToken(ctx, digest)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpiredToken
		}
		return a, err
	}

	a, err := load(ctx)
	if err != nil {
		return s.mapErr(ctx, "find by reset token", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal(ctx, "hash password", err)
	}

	now := s.now()
	a, err = s.mutate(ctx, a, load, func(a *models.Account) error {
		if a.PasswordResetDigest != digest {
			return common.ErrInvalidOrExpiredToken
		}
		if a.PasswordResetExpires != nil && !now.Before(*a.PasswordResetExpires) {
			return common.ErrInvalidOrExpiredToken
		}
		a.PasswordHash = hash
		a.ClearPasswordReset()
		return nil
	})
	if err != nil {
		return s.mapErr(ctx, "reset password", err)
	}

	s.log.Info(ctx, "password reset completed", "account_id", a.ID)
	return nil
}

// GetUserProfile returns the account without its password hash.
func (s *AuthService) GetUserProfile(ctx context.Context, id string) (models.PublicAccount, error) {
	a, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return models.PublicAccount{}, s.mapErr(ctx, "find by id", err)
	}
	return a.ToPublic(), nil
}

// UpdateUser applies a profile patch. An email already used by a different
// account is rejected with ErrorConflict; a new password is re-hashed.
func (s *AuthService) UpdateUser(ctx context.Context, id string, patch models.AccountPatch) (pub models.PublicAccount, err error) {
	defer func() { s.record("update_profile", err) }()

	a, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return models.PublicAccount{}, s.mapErr(ctx, "find by id", err)
	}

	patch = normalizePatch(patch)
	if patch.Empty() {
		return a.ToPublic(), nil
	}

	var hash string
	if patch.Password != nil {
		if hash, err = s.hasher.Hash(*patch.Password); err != nil {
			return models.PublicAccount{}, s.internal(ctx, "hash password", err)
		}
	}

	a, err = s.mutate(ctx, a, s.byID(id), func(a *models.Account) error {
		if patch.Name != nil {
			a.Name = *patch.Name
		}
		if patch.Email != nil {
			a.Email = *patch.Email
		}
		if hash != "" {
			a.PasswordHash = hash
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			s.log.Warn(ctx, "profile update rejected, email already exists", "account_id", id)
		}
		return models.PublicAccount{}, s.mapErr(ctx, "update profile", err)
	}

	s.log.Info(ctx, "user profile updated", "account_id", id)
	return a.ToPublic(), nil
}

// normalizePatch treats empty strings as "no change".
func normalizePatch(p models.AccountPatch) models.AccountPatch {
	drop := func(v *string) *string {
		if v == nil || *v == "" {
			return nil
		}
		return v
	}
	return models.AccountPatch{Name: drop(p.Name), Email: drop(p.Email), Password: drop(p.Password)}
}

// DeleteUser hard-deletes an account. Administrators may delete any
// account; everyone else only their own.
func (s *AuthService) DeleteUser(ctx context.Context, actor *models.Account, id string) (err error) {
	defer func() { s.record("delete_user", err) }()

	if id == "" {
		return common.ErrorValidation
	}
	if actor.Role != models.RoleAdministrator && actor.ID != id {
		s.log.Warn(ctx, "delete refused, insufficient role", "actor_id", actor.ID, "target_id", id)
		return common.ErrorForbidden
	}

	if err := s.accounts.DeleteByID(ctx, id); err != nil {
		return s.mapErr(ctx, "delete account", err)
	}

	s.log.Info(ctx, "user profile deleted", "account_id", id, "actor_id", actor.ID)
	return nil
}

// GetAllUsers lists every account without password hashes.
func (s *AuthService) GetAllUsers(ctx context.Context) ([]models.PublicAccount, error) {
	all, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, s.internal(ctx, "list accounts", err)
	}

	out := make([]models.PublicAccount, 0, len(all))
	for _, a := range all {
		out = append(out, a.ToPublic())
	}
	return out, nil
}

// domainErrors pass through to callers unchanged.
var domainErrors = []error{
	common.ErrorValidation,
	common.ErrorNotFound,
	common.ErrorConflict,
	common.ErrorInvalidCredentials,
	common.ErrInvalidOrExpiredToken,
	common.ErrMfaNotRequested,
	common.ErrInvalidOrExpiredMfa,
	common.ErrAlreadyVerified,
	common.ErrorForbidden,
	common.ErrorUnauthenticated,
}

// mapErr keeps domain errors and turns anything else into ErrorInternal.
// Exhausted version-conflict retries count as internal.
func (s *AuthService) mapErr(ctx context.Context, op string, err error) error {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return d
		}
	}
	return s.internal(ctx, op, err)
}
