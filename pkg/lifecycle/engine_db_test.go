package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/sequence"
)

var testSchema = []string{
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
	`CREATE TABLE notifications (
		id text PRIMARY KEY,
		kind text,
		recipient text,
		subject text,
		body text,
		protocol_id text,
		status text DEFAULT 'pending',
		attempts integer DEFAULT 0,
		last_error text,
		created_at datetime,
		delivered_at datetime
	)`,
}

func newEngineDB(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// One connection keeps the whole test on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	for _, ddl := range testSchema {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	return NewEngine(db, nil, nil, denyAll{}, zap.NewNop()), db
}

func seedDepartment(t *testing.T, db *gorm.DB, name string) *model.Department {
	t.Helper()
	dept := &model.Department{ID: uuid.New(), Name: name}
	if err := db.Create(dept).Error; err != nil {
		t.Fatalf("seed department: %v", err)
	}
	return dept
}

func seedUser(t *testing.T, db *gorm.DB, name string, departmentID *uuid.UUID) *model.User {
	t.Helper()
	user := &model.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()),
		PasswordHash: "x",
		DepartmentID: departmentID,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedProtocol(t *testing.T, db *gorm.DB, creator *model.User, dept *model.Department, rows model.RowSet) *model.Protocol {
	t.Helper()
	protocol := &model.Protocol{
		ID:                      uuid.New(),
		Number:                  fmt.Sprintf("2025-%06d", time.Now().UnixNano()%1000000),
		Subject:                 "office supplies",
		Status:                  model.ProtocolOpen,
		CreatedByID:             creator.ID,
		DestinationDepartmentID: dept.ID,
		Rows:                    rows,
	}
	if err := db.Create(protocol).Error; err != nil {
		t.Fatalf("seed protocol: %v", err)
	}
	return protocol
}

func TestCreateAssignsFirstNumberOfYear(t *testing.T) {
	engine, db := newEngineDB(t)
	dept := seedDepartment(t, db, "Finance")
	actor := seedUser(t, db, "Ana", &dept.ID)

	protocol, err := engine.Create(context.Background(), actor, CreateInput{
		Subject:                 "first of the year",
		DestinationDepartmentID: dept.ID,
	})
	if err != nil {
		t.Fatalf("Create() on empty table: %v", err)
	}

	want := sequence.Format(time.Now().Year(), 1)
	if protocol.Number != want {
		t.Fatalf("number = %q, want %q", protocol.Number, want)
	}
	if protocol.Status != model.ProtocolOpen {
		t.Fatalf("status = %q, want OPEN", protocol.Status)
	}

	second, err := engine.Create(context.Background(), actor, CreateInput{
		Subject:                 "second of the year",
		DestinationDepartmentID: dept.ID,
	})
	if err != nil {
		t.Fatalf("Create() second protocol: %v", err)
	}
	if want := sequence.Format(time.Now().Year(), 2); second.Number != want {
		t.Fatalf("number = %q, want %q", second.Number, want)
	}

	var entries int64
	if err := db.Model(&model.AuditEntry{}).Where("protocol_id = ?", protocol.ID).Count(&entries).Error; err != nil {
		t.Fatalf("count audit entries: %v", err)
	}
	if entries != 1 {
		t.Fatalf("expected 1 audit entry after create, got %d", entries)
	}
}

func TestToggleRowCheckedFlipsAndRestores(t *testing.T) {
	engine, db := newEngineDB(t)
	dept := seedDepartment(t, db, "Purchasing")
	actor := seedUser(t, db, "Bruno", &dept.ID)
	protocol := seedProtocol(t, db, actor, dept, model.RowSet{
		{"item": "paper"},
		{"item": "toner"},
	})

	checked, err := engine.ToggleRowChecked(context.Background(), actor, protocol.ID, 1)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !checked {
		t.Fatal("first toggle should check the row")
	}

	checked, err = engine.ToggleRowChecked(context.Background(), actor, protocol.ID, 1)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if checked {
		t.Fatal("second toggle should uncheck the row again")
	}

	var reloaded model.Protocol
	if err := db.First(&reloaded, "id = ?", protocol.ID).Error; err != nil {
		t.Fatalf("reload protocol: %v", err)
	}
	if reloaded.Rows[1].Checked() {
		t.Fatal("double toggle must restore the original state")
	}
	if _, present := reloaded.Rows[0][model.RowCheckedKey]; present {
		t.Fatal("toggling row 1 must not touch row 0")
	}
}

func TestToggleRowCheckedOutOfRange(t *testing.T) {
	engine, db := newEngineDB(t)
	dept := seedDepartment(t, db, "Purchasing")
	actor := seedUser(t, db, "Bruno", &dept.ID)
	protocol := seedProtocol(t, db, actor, dept, model.RowSet{{"item": "paper"}})

	for _, index := range []int{-1, 1, 99} {
		if _, err := engine.ToggleRowChecked(context.Background(), actor, protocol.ID, index); !errors.Is(err, ErrNotFound) {
			t.Fatalf("index %d: expected ErrNotFound, got %v", index, err)
		}
	}
}

func TestToggleRowCheckedForbiddenForOutsider(t *testing.T) {
	engine, db := newEngineDB(t)
	dept := seedDepartment(t, db, "Purchasing")
	other := seedDepartment(t, db, "Legal")
	creator := seedUser(t, db, "Bruno", &dept.ID)
	outsider := seedUser(t, db, "Carla", &other.ID)
	protocol := seedProtocol(t, db, creator, dept, model.RowSet{{"item": "paper"}})

	if _, err := engine.ToggleRowChecked(context.Background(), outsider, protocol.ID, 0); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestTransitionViaKanbanGeneratesDespacho(t *testing.T) {
	engine, db := newEngineDB(t)
	dept := seedDepartment(t, db, "Finance")
	actor := seedUser(t, db, "Ana", &dept.ID)
	protocol := seedProtocol(t, db, actor, dept, nil)

	updated, err := engine.Transition(context.Background(), actor, protocol.ID, model.ProtocolInAnalysis, "", ViaKanban)
	if err != nil {
		t.Fatalf("Transition() via kanban: %v", err)
	}
	if updated.Status != model.ProtocolInAnalysis {
		t.Fatalf("status = %q, want IN_ANALYSIS", updated.Status)
	}

	var entries []model.AuditEntry
	if err := db.Where("protocol_id = ?", protocol.ID).Find(&entries).Error; err != nil {
		t.Fatalf("load audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if !strings.Contains(entries[0].Text, "Kanban") || !strings.Contains(entries[0].Text, string(model.ProtocolInAnalysis)) {
		t.Fatalf("auto-generated despacho missing board marker: %q", entries[0].Text)
	}
}

func TestTransitionWithDespachoKeepsText(t *testing.T) {
	engine, db := newEngineDB(t)
	dept := seedDepartment(t, db, "Finance")
	actor := seedUser(t, db, "Ana", &dept.ID)
	protocol := seedProtocol(t, db, actor, dept, nil)

	if _, err := engine.Transition(context.Background(), actor, protocol.ID, model.ProtocolFinished, "all invoices reconciled", ""); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}

	var entries []model.AuditEntry
	if err := db.Where("protocol_id = ?", protocol.ID).Find(&entries).Error; err != nil {
		t.Fatalf("load audit entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "all invoices reconciled" {
		t.Fatalf("audit entry should carry the despacho verbatim, got %+v", entries)
	}
}
