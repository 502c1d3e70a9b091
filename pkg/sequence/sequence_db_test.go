package sequence

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// One connection keeps the whole test on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	err = db.Exec(`CREATE TABLE protocols (id text PRIMARY KEY, number text NOT NULL UNIQUE)`).Error
	if err != nil {
		t.Fatalf("create protocols table: %v", err)
	}
	return db
}

func insertNumber(t *testing.T, db *gorm.DB, number string) {
	t.Helper()
	if err := db.Exec(`INSERT INTO protocols (id, number) VALUES (?, ?)`, uuid.NewString(), number).Error; err != nil {
		t.Fatalf("insert protocol %q: %v", number, err)
	}
}

func TestNextStartsAtOneForEmptyYear(t *testing.T) {
	db := newTestDB(t)

	got, err := Next(db, 2025)
	if err != nil {
		t.Fatalf("Next() on empty table: %v", err)
	}
	if got != "2025-000001" {
		t.Fatalf("expected 2025-000001, got %q", got)
	}
}

func TestNextIncrementsCurrentMax(t *testing.T) {
	db := newTestDB(t)
	insertNumber(t, db, "2025-000001")
	insertNumber(t, db, "2025-000007")

	got, err := Next(db, 2025)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if got != "2025-000008" {
		t.Fatalf("expected 2025-000008, got %q", got)
	}
}

func TestNextIgnoresOtherYears(t *testing.T) {
	db := newTestDB(t)
	insertNumber(t, db, "2024-000099")

	got, err := Next(db, 2025)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if got != "2025-000001" {
		t.Fatalf("expected 2025-000001, got %q", got)
	}
}

func TestNextResetsOnCorruptStoredNumber(t *testing.T) {
	db := newTestDB(t)
	insertNumber(t, db, "2025-abc")

	got, err := Next(db, 2025)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if got != "2025-000001" {
		t.Fatalf("expected sequence reset to 2025-000001, got %q", got)
	}
}
