package util

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestParseJWTExtractsActor(t *testing.T) {
	token := signToken(t, "s3cret", jwt.MapClaims{
		"user_id": 42,
		"name":    "Mia",
		"role":    "supervisor",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	actor, err := ParseJWT(token, "s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor.ID != 42 || actor.Name != "Mia" || actor.Role != "supervisor" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	token := signToken(t, "s3cret", jwt.MapClaims{
		"user_id": 42,
		"role":    "operator",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	if _, err := ParseJWT(token, "other"); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseJWTRejectsMissingRole(t *testing.T) {
	token := signToken(t, "s3cret", jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	if _, err := ParseJWT(token, "s3cret"); err == nil {
		t.Fatalf("expected malformed-claims error")
	}
}

func TestExtractToken(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/jobs", nil)
	if got := ExtractToken(r); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	if got := ExtractToken(r); got != "abc.def.ghi" {
		t.Fatalf("unexpected token: %q", got)
	}

	r.Header.Set("Authorization", "Basic abc")
	if got := ExtractToken(r); got != "" {
		t.Fatalf("expected empty token for basic auth, got %q", got)
	}
}
