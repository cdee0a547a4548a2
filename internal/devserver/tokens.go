package devserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the token_type claim.
const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// tokenIssuer mints and verifies HS256 tokens. Each token carries the
// generation it was minted in; bumping a generation invalidates every
// token of that type issued before.
type tokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu         sync.Mutex
	generation map[string]int
}

func newTokenIssuer(secret []byte, accessTTL, refreshTTL time.Duration) *tokenIssuer {
	return &tokenIssuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		generation: map[string]int{tokenAccess: 0, tokenRefresh: 0},
	}
}

func (ti *tokenIssuer) currentGeneration(tokenType string) int {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	return ti.generation[tokenType]
}

func (ti *tokenIssuer) bump(tokenType string) {
	ti.mu.Lock()
	ti.generation[tokenType]++
	ti.mu.Unlock()
}

func (ti *tokenIssuer) mint(userID int64, tokenType string) (string, error) {
	ttl := ti.accessTTL
	if tokenType == tokenRefresh {
		ttl = ti.refreshTTL
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":    userID,
		"token_type": tokenType,
		"gen":        ti.currentGeneration(tokenType),
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// verify returns the user id of a valid token of the wanted type.
func (ti *tokenIssuer) verify(token, tokenType string) (int64, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return ti.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	if claims["token_type"] != tokenType {
		return 0, fmt.Errorf("wrong token type %v", claims["token_type"])
	}
	gen, _ := claims["gen"].(float64)
	if int(gen) != ti.currentGeneration(tokenType) {
		return 0, fmt.Errorf("token revoked")
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("token without user_id")
	}
	return int64(userID), nil
}
