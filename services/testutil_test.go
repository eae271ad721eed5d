package services

import (
	"os"
	"sync"
	"testing"

	"stone-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	testDBOnce sync.Once
	testDBConn *gorm.DB
	testDBErr  error
)

// testDB returns a shared connection to the database named by
// TEST_POSTGRES_DSN, migrated and catalog-seeded. Tests that need it are
// skipped when the variable is unset, so the pure-logic tests still run
// everywhere.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run database tests")
	}

	testDBOnce.Do(func() {
		testDBConn, testDBErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if testDBErr != nil {
			return
		}
		testDBErr = testDBConn.AutoMigrate(
			&models.StoneType{},
			&models.StoneProgress{},
			&models.StoneAward{},
			&models.DailySnapshot{},
			&models.UserProfile{},
			&models.Task{},
			&models.FocusSession{},
			&models.UserMirror{},
		)
		if testDBErr != nil {
			return
		}
		testDBErr = NewCatalogService(testDBConn).EnsureCatalog()
	})
	if testDBErr != nil {
		t.Fatalf("test database setup: %v", testDBErr)
	}
	return testDBConn
}

// newTestUser returns a fresh external user id; per-user uniqueness is the
// isolation boundary, so tests never touch each other's rows.
func newTestUser() string {
	return "test-" + uuid.NewString()
}

// testEngine wires the service graph the way main does, minus lore.
func testEngine(db *gorm.DB) *ProgressionEngine {
	awards := NewAwardService(db, nil)
	shards := NewShardService(db, awards)
	return NewProgressionEngine(db, shards, awards)
}
