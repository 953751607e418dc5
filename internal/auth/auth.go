// Package auth verifies backend-issued bearer tokens. It is the single
// source of identity for both the websocket handshake and the REST surface;
// nothing downstream trusts a client-supplied user id.
package auth

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is derived once per handshake or request and never persisted.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// VerifyToken parses an HS256 token and extracts the user identity. The
// backend puts the id in "user_id" (older tokens use "id"), as a number or a
// string.
func VerifyToken(tokenStr, secret string) (*Identity, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	id := stringClaim(claims["user_id"])
	if id == "" {
		id = stringClaim(claims["id"])
	}
	if id == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{ID: id, Username: stringClaim(claims["username"])}, nil
}

func stringClaim(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
