package jwt

import (
	"errors"
	"fmt"
	"time"

	jw "github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSubject = errors.New("no subject")
	ErrExpired   = errors.New("token expired")
)

// Claims is what the client needs from a bearer token.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Inspect reads the claims of a token without verifying its signature. The
// client never holds the signing secret; the API still verifies every request.
func Inspect(tok string) (Claims, error) {
	mc := jw.MapClaims{}
	if _, _, err := jw.NewParser().ParseUnverified(tok, mc); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	var c Claims
	for _, k := range []string{"sub", "id", "user_id"} {
		switch v := mc[k].(type) {
		case string:
			c.UserID = v
		case float64:
			c.UserID = fmt.Sprintf("%.0f", v)
		}
		if c.UserID != "" {
			break
		}
	}
	if c.UserID == "" {
		return Claims{}, ErrNoSubject
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// Parse returns the user id of a token that has not expired.
func Parse(tok string) (string, error) {
	c, err := Inspect(tok)
	if err != nil {
		return "", err
	}
	if c.Expired(time.Now()) {
		return "", ErrExpired
	}
	return c.UserID, nil
}
