package models

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleStandard      Role = "UserRole"
	RoleAdministrator Role = "AdminRole"
)

// ParseRole converts a stored or user supplied value into a Role.
// An empty value yields RoleStandard.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "", RoleStandard:
		return RoleStandard, nil
	case RoleAdministrator:
		return RoleAdministrator, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdministrator
}

// Account is the stored identity record.
//
// Token and code fields hold SHA-256 digests, never the values sent to the
// user. MfaCodeDigest and MfaCodeExpires are set and cleared together.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsVerified   bool

	VerificationTokenDigest string

	PasswordResetDigest  string
	PasswordResetExpires *time.Time

	MfaCodeDigest  string
	MfaCodeExpires *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version is incremented by the store on every successful update.
	Version int64
}

// HasPendingMfa reports whether a second-factor challenge is outstanding.
func (a *Account) HasPendingMfa() bool {
	return a.MfaCodeDigest != "" && a.MfaCodeExpires != nil
}

func (a *Account) SetMfa(digest string, expires time.Time) {
	a.MfaCodeDigest = digest
	a.MfaCodeExpires = &expires
}

func (a *Account) ClearMfa() {
	a.MfaCodeDigest = ""
	a.MfaCodeExpires = nil
}

func (a *Account) SetPasswordReset(digest string, expires time.Time) {
	a.PasswordResetDigest = digest
	a.PasswordResetExpires = &expires
}

func (a *Account) ClearPasswordReset() {
	a.PasswordResetDigest = ""
	a.PasswordResetExpires = nil
}

// MarkVerified consumes the verification token. It never unsets IsVerified.
func (a *Account) MarkVerified() {
	a.VerificationTokenDigest = ""
	a.IsVerified = true
}

// Clone returns a deep copy, so callers can mutate without touching
// a value shared with a store.
func (a *Account) Clone() *Account {
	c := *a
	if a.MfaCodeExpires != nil {
		t := *a.MfaCodeExpires
		c.MfaCodeExpires = &t
	}
	if a.PasswordResetExpires != nil {
		t := *a.PasswordResetExpires
		c.PasswordResetExpires = &t
	}
	return &c
}

// PublicAccount is what leaves the service: no password hash, no secrets.
type PublicAccount struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (a *Account) ToPublic() PublicAccount {
	return PublicAccount{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		Role:       a.Role,
		IsVerified: a.IsVerified,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// AccountPatch is a profile update. Nil fields mean "no change".
type AccountPatch struct {
	Name     *string
	Email    *string
	Password *string
}

// Empty reports whether the patch changes nothing.
func (p AccountPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil
}
