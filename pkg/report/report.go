// Package report builds the management views over protocols: the
// Kanban board, the summary dashboard, and the Excel export. All of
// them run through the same repository scope as the list screen, so a
// user can never export or chart a protocol they cannot open.
package report

import (
	"context"
	"time"

	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

type Service struct {
	protocols *postgres.ProtocolRepository
	audits    *postgres.AuditRepository
}

func NewService(protocols *postgres.ProtocolRepository, audits *postgres.AuditRepository) *Service {
	return &Service{protocols: protocols, audits: audits}
}

// AuditTrail pages through the append-only audit log across all
// protocols, filterable by protocol number, actor, and date range.
func (s *Service) AuditTrail(ctx context.Context, filter postgres.AuditFilter, limit, offset int) ([]model.AuditEntry, int64, error) {
	return s.audits.List(ctx, filter, limit, offset)
}

// Board groups the caller's visible protocols by status, one column
// per status in lifecycle order. Empty columns are kept so the board
// renders all five lanes.
type Board struct {
	Columns []BoardColumn `json:"columns"`
}

type BoardColumn struct {
	Status    model.ProtocolStatus `json:"status"`
	Protocols []model.Protocol     `json:"protocols"`
}

func (s *Service) Kanban(ctx context.Context, scope postgres.Scope, filter postgres.ProtocolFilter) (*Board, error) {
	protocols, err := s.protocols.ListAll(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	return GroupBoard(protocols), nil
}

func GroupBoard(protocols []model.Protocol) *Board {
	order := []model.ProtocolStatus{
		model.ProtocolOpen,
		model.ProtocolInAnalysis,
		model.ProtocolPending,
		model.ProtocolFinished,
		model.ProtocolArchived,
	}
	byStatus := make(map[model.ProtocolStatus][]model.Protocol, len(order))
	for _, p := range protocols {
		byStatus[p.Status] = append(byStatus[p.Status], p)
	}

	board := &Board{Columns: make([]BoardColumn, 0, len(order))}
	for _, status := range order {
		column := BoardColumn{Status: status, Protocols: byStatus[status]}
		if column.Protocols == nil {
			column.Protocols = []model.Protocol{}
		}
		board.Columns = append(board.Columns, column)
	}
	return board
}

// Summary is the dashboard payload: the caller's own open items plus,
// for admin-panel holders only, the system-wide aggregates.
type Summary struct {
	ByStatus     []postgres.StatusCount     `json:"by_status,omitempty"`
	ByDepartment []postgres.DepartmentCount `json:"by_department,omitempty"`
	ByMonth      []postgres.MonthCount      `json:"by_month,omitempty"`
	Overdue      int                        `json:"overdue"`
	MySent       []model.Protocol           `json:"my_sent"`
	MyReceived   []model.Protocol           `json:"my_received"`
}

func (s *Service) Summarize(ctx context.Context, user *model.User, scope postgres.Scope, now time.Time) (*Summary, error) {
	summary := &Summary{}

	// The global breakdowns cover protocols the caller could not open,
	// so only the admin scope gets them.
	if scope.Admin {
		var err error
		if summary.ByStatus, err = s.protocols.CountByStatus(ctx); err != nil {
			return nil, err
		}
		if summary.ByDepartment, err = s.protocols.CountByDepartment(ctx); err != nil {
			return nil, err
		}
		if summary.ByMonth, err = s.protocols.CountByMonth(ctx, now.AddDate(-1, 0, 0)); err != nil {
			return nil, err
		}
	}

	sent, received, err := s.protocols.PendingByUser(ctx, user)
	if err != nil {
		return nil, err
	}
	summary.MySent = sent
	summary.MyReceived = received

	visible, err := s.protocols.ListAll(ctx, scope, postgres.ProtocolFilter{})
	if err != nil {
		return nil, err
	}
	summary.Overdue = CountOverdue(visible, now)

	return summary, nil
}

// Aggregate endpoints expose the dashboard counts individually.

func (s *Service) AggregateByStatus(ctx context.Context) ([]postgres.StatusCount, error) {
	return s.protocols.CountByStatus(ctx)
}

func (s *Service) AggregateByDepartment(ctx context.Context) ([]postgres.DepartmentCount, error) {
	return s.protocols.CountByDepartment(ctx)
}

func (s *Service) AggregateByMonth(ctx context.Context, since time.Time) ([]postgres.MonthCount, error) {
	return s.protocols.CountByMonth(ctx, since)
}

// Overdue reports whether the protocol blew its due date. Settled
// protocols are never overdue regardless of the date.
func Overdue(p *model.Protocol, now time.Time) bool {
	if p.DueDate == nil || p.Status.Settled() {
		return false
	}
	due := time.Date(p.DueDate.Year(), p.DueDate.Month(), p.DueDate.Day(), 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return due.Before(today)
}

func CountOverdue(protocols []model.Protocol, now time.Time) int {
	count := 0
	for i := range protocols {
		if Overdue(&protocols[i], now) {
			count++
		}
	}
	return count
}
