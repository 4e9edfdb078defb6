package auth

import (
	"context"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"droneFleetManagement/internal/fault"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestParseTokenRoundTrip(t *testing.T) {
	tok := signToken(t, testSecret, jwt.MapClaims{"sub": "42", "kind": "User", "role": "Operator"})
	p, err := ParseToken(tok, testSecret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Subject != 42 {
		t.Errorf("subject = %d, want 42", p.Subject)
	}
	if p.Kind != KindUser {
		t.Errorf("kind = %q, want %q (lowercased)", p.Kind, KindUser)
	}
	if string(p.Role) != "operator" {
		t.Errorf("role = %q, want operator (lowercased)", p.Role)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	tok := signToken(t, "other-secret", jwt.MapClaims{"sub": "1", "kind": "user"})
	if _, err := ParseToken(tok, testSecret); !fault.Is(err, fault.KindUnauthorized) {
		t.Fatalf("wrong secret should be unauthorized, got %v", err)
	}
}

func TestParseTokenExpired(t *testing.T) {
	tok := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "1",
		"kind": "user",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := ParseToken(tok, testSecret); !fault.Is(err, fault.KindUnauthorized) {
		t.Fatalf("expired token should be unauthorized, got %v", err)
	}
}

func TestParseTokenMissingClaims(t *testing.T) {
	for name, claims := range map[string]jwt.MapClaims{
		"no subject":          {"kind": "user"},
		"no kind":             {"sub": "1"},
		"non-numeric subject": {"sub": "abc", "kind": "user"},
	} {
		tok := signToken(t, testSecret, claims)
		if _, err := ParseToken(tok, testSecret); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseBearer(t *testing.T) {
	tok := signToken(t, testSecret, jwt.MapClaims{"sub": "7", "kind": "drone"})
	p, err := ParseBearer("Bearer "+tok, testSecret)
	if err != nil {
		t.Fatalf("parse bearer: %v", err)
	}
	if p.Subject != 7 || p.Kind != KindDrone {
		t.Errorf("principal = %+v", p)
	}

	if _, err := ParseBearer("", testSecret); !fault.Is(err, fault.KindUnauthorized) {
		t.Errorf("empty header should be unauthorized, got %v", err)
	}
	if _, err := ParseBearer(tok, testSecret); !fault.Is(err, fault.KindUnauthorized) {
		t.Errorf("header without scheme should be unauthorized, got %v", err)
	}
	if _, err := ParseBearer("Basic "+tok, testSecret); !fault.Is(err, fault.KindUnauthorized) {
		t.Errorf("non-bearer scheme should be unauthorized, got %v", err)
	}
}

func TestPrincipalContext(t *testing.T) {
	p := &Principal{Subject: 1, Kind: KindUser}
	ctx := WithPrincipal(context.Background(), p)
	got, ok := FromContext(ctx)
	if !ok || got != p {
		t.Fatalf("principal did not round-trip through context")
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("empty context should have no principal")
	}
}
