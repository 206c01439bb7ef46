package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "api-server"

// Claims is the session token payload: the standard registered claims plus
// the account id and email.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Identity is what a verified session token asserts.
type Identity struct {
	UserID string
	Email  string
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secretKey []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secretKey, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Issue(userID, email string) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		UserID: userID,
		Email:  email,
	})

	return token.SignedString(i.secret)
}

// Verify returns common.ErrTokenExpired for an expired token and
// common.ErrInvalidToken for anything else that fails validation.
func (i *Issuer) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return Identity{}, common.ErrInvalidToken
	}

	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}
