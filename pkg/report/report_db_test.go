package report

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

func newReportDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, ddl := range []string{
		`CREATE TABLE departments (
			id text PRIMARY KEY,
			name text NOT NULL UNIQUE,
			created_at datetime,
			updated_at datetime
		)`,
		`CREATE TABLE users (
			id text PRIMARY KEY,
			name text NOT NULL,
			email text NOT NULL UNIQUE,
			password_hash text,
			department_id text,
			role_id text,
			created_at datetime,
			updated_at datetime,
			deleted_at datetime
		)`,
		`CREATE TABLE protocols (
			id text PRIMARY KEY,
			number text NOT NULL UNIQUE,
			subject text NOT NULL,
			description text,
			due_date date,
			external boolean DEFAULT false,
			supplier_code text,
			supplier_name text,
			status text DEFAULT 'OPEN',
			created_by_id text NOT NULL,
			destination_department_id text NOT NULL,
			destination_user_id text,
			template_id text,
			rows text NOT NULL DEFAULT '[]',
			created_at datetime,
			updated_at datetime
		)`,
		`CREATE TABLE audit_entries (
			id text PRIMARY KEY,
			protocol_id text NOT NULL,
			actor_id text NOT NULL,
			text text NOT NULL,
			occurred_at datetime
		)`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func TestSummarizeNonAdminOmitsGlobalCounts(t *testing.T) {
	db := newReportDB(t)
	service := NewService(postgres.NewProtocolRepository(db), postgres.NewAuditRepository(db))

	deptID := uuid.New()
	otherDeptID := uuid.New()
	user := &model.User{ID: uuid.New(), Name: "Ana", Email: "ana@example.com", DepartmentID: &deptID}
	stranger := &model.User{ID: uuid.New(), Name: "Rui", Email: "rui@example.com", DepartmentID: &otherDeptID}
	for _, u := range []*model.User{user, stranger} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	now := time.Now()
	pastDue := now.AddDate(0, 0, -3)
	mine := &model.Protocol{
		ID: uuid.New(), Number: "2025-000001", Subject: "mine",
		Status: model.ProtocolOpen, CreatedByID: user.ID,
		DestinationDepartmentID: otherDeptID, DueDate: &pastDue,
	}
	theirs := &model.Protocol{
		ID: uuid.New(), Number: "2025-000002", Subject: "theirs",
		Status: model.ProtocolOpen, CreatedByID: stranger.ID,
		DestinationDepartmentID: otherDeptID, DueDate: &pastDue,
	}
	for _, p := range []*model.Protocol{mine, theirs} {
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("seed protocol: %v", err)
		}
	}

	scope := postgres.Scope{UserID: user.ID, DepartmentID: &deptID}
	summary, err := service.Summarize(context.Background(), user, scope, now)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}

	if summary.ByStatus != nil || summary.ByDepartment != nil || summary.ByMonth != nil {
		t.Fatalf("non-admin summary must not carry global breakdowns: %+v", summary)
	}
	if len(summary.MySent) != 1 || summary.MySent[0].ID != mine.ID {
		t.Fatalf("expected exactly the caller's own protocol in my_sent, got %d", len(summary.MySent))
	}
	// Only the visible overdue protocol counts, not the stranger's.
	if summary.Overdue != 1 {
		t.Fatalf("overdue = %d, want 1", summary.Overdue)
	}
}
