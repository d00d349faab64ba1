package testhelpers

import (
	"context"
	"os"
	"testing"

	"marketplace/internal/models"
	"marketplace/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func()
}

// SetupTestDB connects to TEST_DATABASE_URL and applies the migrations. The
// test is skipped when no database is configured.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, connString, 20)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return &TestDB{
		Pool:    pool,
		Cleanup: pool.Close,
	}
}

// SetupTestProfile creates (or re-plans) a profile for ownerID.
func SetupTestProfile(t *testing.T, db *TestDB, ownerID string, plan models.Plan) {
	t.Helper()

	query := `
		INSERT INTO profiles (id, email, plan)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET plan = EXCLUDED.plan, updated_at = NOW()
	`
	if _, err := db.Pool.Exec(context.Background(), query, ownerID, ownerID+"@example.com", plan.String()); err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}
}

// CleanupOwner removes every row belonging to ownerID.
func CleanupOwner(t *testing.T, db *TestDB, ownerID string) {
	t.Helper()

	ctx := context.Background()
	for _, query := range []string{
		`DELETE FROM stores WHERE owner_id = $1`,
		`DELETE FROM store_quotas WHERE owner_id = $1`,
		`DELETE FROM applications WHERE owner_id = $1`,
		`DELETE FROM profiles WHERE id = $1`,
	} {
		if _, err := db.Pool.Exec(ctx, query, ownerID); err != nil {
			t.Fatalf("Failed to clean up owner %s: %v", ownerID, err)
		}
	}
}
