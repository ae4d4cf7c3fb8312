// ABOUTME: HS256 access tokens for the development API server
// ABOUTME: Issues, verifies and refresh-checks JWTs with ULID token ids

package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// ErrRefreshWindowClosed means the session is older than the refresh window.
var ErrRefreshWindowClosed = errors.New("refresh window closed")

// Claims are carried by every access token.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	// OrigIssuedAt is the login time; refreshes keep it.
	OrigIssuedAt int64 `json:"oriat"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks access tokens.
type TokenIssuer struct {
	secret        []byte
	ttl           time.Duration
	refreshWindow time.Duration
	now           func() time.Time
}

// NewTokenIssuer creates an issuer. now defaults to time.Now.
func NewTokenIssuer(secret string, ttl, refreshWindow time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		secret:        []byte(secret),
		ttl:           ttl,
		refreshWindow: refreshWindow,
		now:           now,
	}
}

// Issue signs a token for u. origIssuedAt is zero on login and the previous
// token's value on refresh.
func (t *TokenIssuer) Issue(u *User, origIssuedAt int64) (string, *Claims, error) {
	now := t.now().UTC()
	if origIssuedAt == 0 {
		origIssuedAt = now.Unix()
	}
	claims := &Claims{
		UserID:       u.ID,
		Role:         u.Role.String(),
		OrigIssuedAt: origIssuedAt,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
			Subject:   u.ID,
			Issuer:    "gradeportal-devserver",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func (t *TokenIssuer) keyFunc(*jwt.Token) (interface{}, error) {
	return t.secret, nil
}

// Verify checks signature and expiry.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// VerifyForRefresh checks the signature only, then requires the original
// login to fall inside the refresh window. Expired tokens are accepted.
func (t *TokenIssuer) VerifyForRefresh(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.OrigIssuedAt == 0 {
		return nil, fmt.Errorf("%w: token has no login time", jwt.ErrTokenInvalidClaims)
	}
	if t.now().Sub(time.Unix(claims.OrigIssuedAt, 0)) > t.refreshWindow {
		return nil, ErrRefreshWindowClosed
	}
	return claims, nil
}
