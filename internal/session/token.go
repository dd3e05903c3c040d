package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMalformedToken = errors.New("malformed token")

// Claims are the parts of the access token the client reads.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Name returns the display identity carried by the token.
func (c *Claims) Name() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Subject
}

// Decode reads the token's claims without verifying its signature; the
// client never holds the signing key. A token without an expiry is malformed.
func Decode(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}
	return claims, nil
}

// ShouldAttach reports whether token is present and its expiry, in
// milliseconds, is still ahead of now.
func ShouldAttach(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims, err := Decode(token)
	if err != nil {
		return false
	}
	return claims.ExpiresAt.Time.UnixMilli() > now.UnixMilli()
}

// ExpiresAt returns the access token's expiry, if it can be read.
func ExpiresAt(token string) (time.Time, bool) {
	claims, err := Decode(token)
	if err != nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
