package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/model"
)

type fakeRepo struct {
	pending []model.Notification
	sent    []uuid.UUID
	retried []uuid.UUID
}

func (f *fakeRepo) ListPending(ctx context.Context, limit int) ([]model.Notification, error) {
	return f.pending, nil
}

func (f *fakeRepo) MarkSent(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeRepo) MarkRetry(ctx context.Context, id uuid.UUID, sendErr error, maxAttempts int) error {
	f.retried = append(f.retried, id)
	return nil
}

type fakeMailer struct {
	failFor map[string]error
	sent    []string
}

func (f *fakeMailer) Send(recipient, subject, body string) error {
	if err, ok := f.failFor[recipient]; ok {
		return err
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func TestProcessPendingDeliversAndMarks(t *testing.T) {
	first := model.Notification{ID: uuid.New(), Recipient: "a@example.com", Subject: "s", Body: "b"}
	second := model.Notification{ID: uuid.New(), Recipient: "b@example.com", Subject: "s", Body: "b"}
	repo := &fakeRepo{pending: []model.Notification{first, second}}
	mailer := &fakeMailer{}

	relay := NewRelay(repo, mailer, zap.NewNop(), time.Second, 10, 3)
	relay.ProcessPending(context.Background())

	if len(mailer.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(mailer.sent))
	}
	if len(repo.sent) != 2 {
		t.Fatalf("expected 2 marked sent, got %d", len(repo.sent))
	}
	if len(repo.retried) != 0 {
		t.Fatalf("expected no retries, got %d", len(repo.retried))
	}
}

func TestProcessPendingFailureIsRecordedNotFatal(t *testing.T) {
	failing := model.Notification{ID: uuid.New(), Recipient: "down@example.com", Subject: "s", Body: "b"}
	working := model.Notification{ID: uuid.New(), Recipient: "up@example.com", Subject: "s", Body: "b"}
	repo := &fakeRepo{pending: []model.Notification{failing, working}}
	mailer := &fakeMailer{failFor: map[string]error{"down@example.com": errors.New("relay unreachable")}}

	relay := NewRelay(repo, mailer, zap.NewNop(), time.Second, 10, 3)
	relay.ProcessPending(context.Background())

	if len(repo.retried) != 1 || repo.retried[0] != failing.ID {
		t.Fatalf("expected failing notification to be retried, got %v", repo.retried)
	}
	if len(repo.sent) != 1 || repo.sent[0] != working.ID {
		t.Fatalf("expected working notification to be sent, got %v", repo.sent)
	}
}

func TestNewRelayDefaults(t *testing.T) {
	relay := NewRelay(&fakeRepo{}, &fakeMailer{}, zap.NewNop(), 0, 0, 0)
	if relay.pollInterval != 5*time.Second {
		t.Fatalf("expected default poll interval, got %v", relay.pollInterval)
	}
	if relay.batchSize != 100 {
		t.Fatalf("expected default batch size, got %d", relay.batchSize)
	}
	if relay.maxAttempts != 3 {
		t.Fatalf("expected default max attempts, got %d", relay.maxAttempts)
	}
}
