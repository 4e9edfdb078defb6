package testutil

import (
	"database/sql"
	"net/http"
	"strconv"
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"

	"droneFleetManagement/internal/db"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// Caller is responsible for closing the DB, typically via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	// We use a shared cache memory database so that multiple connections share the same DB if needed.
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// GenerateJWTHS256 returns a signed JWT string with the claims the app
// reads: subject id, caller kind, and role.
func GenerateJWTHS256(t *testing.T, secret string, subject int64, kind, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(subject, 10),
		"kind": kind,
	}
	if role != "" {
		claims["role"] = role
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// SetBearer puts a Bearer Authorization header with the given token on
// the request.
func SetBearer(r *http.Request, token string) {
	r.Header.Set("Authorization", "Bearer "+token)
}
