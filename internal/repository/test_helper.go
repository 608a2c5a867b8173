package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Global counter so parallel tests never collide on a prefix.
var testCounter int64

// GenerateUniquePrefix returns a prefix unique across parallel test runs.
func GenerateUniquePrefix() string {
	count := atomic.AddInt64(&testCounter, 1)
	return uuid.New().String()[:8] + "_" + time.Now().Format("150405") + "_" + string(rune(count%26+'a'))
}

// SetupIsolatedTestDB connects to the test database, skipping the test when
// it is unreachable. Each test gets a unique prefix for its data.
func SetupIsolatedTestDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()

	dsn := "host=localhost port=5432 user=postgres password=postgres dbname=warden_test sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("Skipping test, could not connect to test database: %v", err)
	}

	return db, GenerateUniquePrefix()
}

// CleanupTestDataByPrefix removes only the rows this test created.
func CleanupTestDataByPrefix(t *testing.T, db *sqlx.DB, prefix string) {
	t.Helper()

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM audit_log WHERE identity_id LIKE $1 OR room_id LIKE $1", prefix+"%")
	_, _ = db.ExecContext(ctx, "DELETE FROM separations WHERE first_id LIKE $1 OR second_id LIKE $1", prefix+"%")
}
