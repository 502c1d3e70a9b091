package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/prototrack/prototrack/pkg/model"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager([]byte("test-signing-key"), time.Hour)
	deptID := uuid.New()
	user := &model.User{ID: uuid.New(), Email: "ana@example.com", DepartmentID: &deptID}

	token, err := manager.Generate(user)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	if claims.UserID != user.ID.String() {
		t.Fatalf("expected user id %s, got %s", user.ID, claims.UserID)
	}
	if claims.Email != "ana@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.DepartmentID != deptID.String() {
		t.Fatalf("expected department id %s, got %s", deptID, claims.DepartmentID)
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	manager := NewTokenManager([]byte("key-one"), time.Hour)
	other := NewTokenManager([]byte("key-two"), time.Hour)

	token, err := manager.Generate(&model.User{ID: uuid.New(), Email: "x@example.com"})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if _, err := other.Validate(token); err == nil {
		t.Fatalf("expected validation failure with wrong key")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	manager := NewTokenManager([]byte("test-signing-key"), -time.Minute)

	token, err := manager.Generate(&model.User{ID: uuid.New(), Email: "x@example.com"})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if _, err := manager.Validate(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
