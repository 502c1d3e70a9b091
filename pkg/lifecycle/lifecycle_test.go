package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/model"
)

func TestCanAccess(t *testing.T) {
	creatorID := uuid.New()
	deptID := uuid.New()
	destUserID := uuid.New()

	protocol := &model.Protocol{
		CreatedByID:             creatorID,
		DestinationDepartmentID: deptID,
		DestinationUserID:       &destUserID,
	}

	otherDept := uuid.New()
	cases := []struct {
		name  string
		user  *model.User
		admin bool
		want  bool
	}{
		{"admin sees everything", &model.User{ID: uuid.New(), DepartmentID: &otherDept}, true, true},
		{"creator", &model.User{ID: creatorID, DepartmentID: &otherDept}, false, true},
		{"destination department member", &model.User{ID: uuid.New(), DepartmentID: &deptID}, false, true},
		{"destination user", &model.User{ID: destUserID, DepartmentID: &otherDept}, false, true},
		{"unrelated user", &model.User{ID: uuid.New(), DepartmentID: &otherDept}, false, false},
		{"user without department", &model.User{ID: uuid.New()}, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAccess(tc.user, tc.admin, protocol); got != tc.want {
				t.Fatalf("CanAccess = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanAccessNoDestinationUser(t *testing.T) {
	protocol := &model.Protocol{
		CreatedByID:             uuid.New(),
		DestinationDepartmentID: uuid.New(),
	}
	otherDept := uuid.New()
	user := &model.User{ID: uuid.New(), DepartmentID: &otherDept}
	if CanAccess(user, false, protocol) {
		t.Fatal("user with no relation to the protocol should not see it")
	}
}

type denyAll struct{}

func (denyAll) HasPermission(context.Context, *model.User, string) bool { return false }

func newTestEngine() *Engine {
	return NewEngine(nil, nil, nil, denyAll{}, zap.NewNop())
}

func TestCreateRejectsBlankSubject(t *testing.T) {
	engine := newTestEngine()
	actor := &model.User{ID: uuid.New()}

	_, err := engine.Create(context.Background(), actor, CreateInput{Subject: "   "})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *ValidationError
	errors.As(err, &verr)
	if verr.Field != "subject" {
		t.Fatalf("validation field = %q, want subject", verr.Field)
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	engine := newTestEngine()
	actor := &model.User{ID: uuid.New()}

	_, err := engine.Transition(context.Background(), actor, uuid.New(), model.ProtocolStatus("LOST"), "forwarding", "")
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransitionRejectsBlankDespacho(t *testing.T) {
	engine := newTestEngine()
	actor := &model.User{ID: uuid.New()}

	_, err := engine.Transition(context.Background(), actor, uuid.New(), model.ProtocolFinished, "  \t ", "")
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *ValidationError
	errors.As(err, &verr)
	if verr.Field != "despacho" {
		t.Fatalf("validation field = %q, want despacho", verr.Field)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "subject", Reason: "must not be blank"}
	if err.Error() == "" {
		t.Fatal("empty error message")
	}
	if !IsValidation(err) {
		t.Fatal("IsValidation should match *ValidationError")
	}
	if IsValidation(ErrForbidden) {
		t.Fatal("IsValidation should not match sentinel errors")
	}
}
