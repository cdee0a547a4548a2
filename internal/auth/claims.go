package auth

import (
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDFromToken reads the user_id claim from an access token without
// verifying the signature. The client never holds the signing key; the
// backend verifies every request.
func UserIDFromToken(token string) string {
	if token == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	return interfaces.IDFromAny(claims["user_id"]).String()
}
