// Package sessiontest builds logged-in sessions for store tests.
package sessiontest

import (
	"context"
	"testing"
	"time"

	jw "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"chatter-client/internal/api"
	"chatter-client/internal/session"
)

// Token signs a token valid for an hour whose subject is userID.
func Token(t testing.TB, userID string) string {
	t.Helper()
	tok, err := jw.NewWithClaims(jw.SigningMethodHS256, jw.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("sessiontest"))
	require.NoError(t, err)
	return tok
}

// LoggedIn returns an in-memory session with viewer logged in.
func LoggedIn(t testing.TB, viewer api.Person) *session.Session {
	t.Helper()
	s := session.New(nil)
	require.NoError(t, s.Login(context.Background(), Token(t, viewer.ID), viewer))
	return s
}
