package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenClaims struct {
	ID        string
	Type      string
	UserID    int
	Username  string
	ExpiresAt time.Time
}

// TokenIssuer signs and validates HS256 access and refresh tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	denylist   TokenDenylist
	now        func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration, denylist TokenDenylist) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		denylist:   denylist,
		now:        time.Now,
	}
}

func (t *TokenIssuer) GenerateJWT(userID int, username string) (string, error) {
	return t.sign(userID, username, TokenTypeAccess, t.accessTTL)
}

func (t *TokenIssuer) GenerateRefreshToken(userID int, username string) (string, error) {
	return t.sign(userID, username, TokenTypeRefresh, t.refreshTTL)
}

func (t *TokenIssuer) sign(userID int, username, typ string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"jti":      uuid.New().String(),
		"typ":      typ,
		"user_id":  userID,
		"username": username,
		"exp":      t.now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses a token of the expected type and rejects revoked ones.
func (t *TokenIssuer) Validate(ctx context.Context, tokenString, typ string) (TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return TokenClaims{}, ErrInvalidToken
	}

	var claims TokenClaims
	// numeric claims come back as float64 from JSON
	uid, ok := mc["user_id"].(float64)
	if !ok {
		return TokenClaims{}, ErrInvalidToken
	}
	claims.UserID = int(uid)
	claims.Username, _ = mc["username"].(string)
	claims.ID, _ = mc["jti"].(string)
	claims.Type, _ = mc["typ"].(string)
	if claims.Type != typ || claims.ID == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	if t.denylist != nil {
		revoked, err := t.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return TokenClaims{}, err
		}
		if revoked {
			return TokenClaims{}, ErrInvalidToken
		}
	}

	return claims, nil
}

// Revoke denylists a token until its expiry
func (t *TokenIssuer) Revoke(ctx context.Context, claims TokenClaims) error {
	if t.denylist == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(t.now())
	if ttl <= 0 {
		return nil
	}
	return t.denylist.Revoke(ctx, claims.ID, ttl)
}
