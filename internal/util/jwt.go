package util

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"labflow/internal/model"
)

// ParseJWT validates a bearer token issued by the identity service and
// extracts the actor it describes. Token issuance lives upstream; this
// service only verifies.
func ParseJWT(tokenStr, secret string) (model.Actor, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return model.Actor{}, err
	}

	if !token.Valid {
		return model.Actor{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Actor{}, jwt.ErrTokenMalformed
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return model.Actor{}, jwt.ErrTokenMalformed
	}
	role, ok := claims["role"].(string)
	if !ok {
		return model.Actor{}, jwt.ErrTokenMalformed
	}
	name, _ := claims["name"].(string)

	return model.Actor{
		ID:   int64(userID),
		Name: name,
		Role: role,
	}, nil
}

// ExtractToken pulls the bearer token out of the Authorization header.
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
