package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prototrack/prototrack/pkg/eventbus"
	"github.com/prototrack/prototrack/pkg/metrics"
	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/notify"
	"github.com/prototrack/prototrack/pkg/rowdata"
	"github.com/prototrack/prototrack/pkg/sequence"
	"github.com/prototrack/prototrack/pkg/storage"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

type PermissionChecker interface {
	HasPermission(ctx context.Context, user *model.User, name string) bool
}

// Engine owns every protocol mutation. Status never changes outside
// Transition, and each mutation commits its audit entry in the same
// transaction; an entry for an uncommitted mutation cannot exist.
type Engine struct {
	db     *gorm.DB
	files  *storage.Store
	bus    *eventbus.Bus
	perms  PermissionChecker
	logger *zap.Logger
}

func NewEngine(db *gorm.DB, files *storage.Store, bus *eventbus.Bus, perms PermissionChecker, logger *zap.Logger) *Engine {
	return &Engine{db: db, files: files, bus: bus, perms: perms, logger: logger}
}

type AttachmentUpload struct {
	FileName string
	Content  []byte
}

type CreateInput struct {
	Subject                 string
	Description             string
	DestinationDepartmentID uuid.UUID
	DestinationUserID       *uuid.UUID
	TemplateID              *uuid.UUID
	DueDate                 *time.Time
	External                bool
	SupplierCode            string
	SupplierName            string
	RowForm                 map[string]string
	Attachments             []AttachmentUpload
}

// Create allocates the year's next number, decodes the dynamic rows,
// persists protocol + attachments + first audit entry + notification
// outbox row in one transaction. A duplicate number from a concurrent
// creation triggers exactly one internal retry before it surfaces as a
// conflict.
func (e *Engine) Create(ctx context.Context, actor *model.User, input CreateInput) (*model.Protocol, error) {
	if strings.TrimSpace(input.Subject) == "" {
		return nil, &ValidationError{Field: "subject", Reason: "must not be blank"}
	}

	var department model.Department
	if err := e.db.WithContext(ctx).First(&department, "id = ?", input.DestinationDepartmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ValidationError{Field: "destination_department_id", Reason: "unknown department"}
		}
		return nil, err
	}

	var destUser *model.User
	if input.DestinationUserID != nil {
		destUser = &model.User{}
		if err := e.db.WithContext(ctx).First(destUser, "id = ?", *input.DestinationUserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &ValidationError{Field: "destination_user_id", Reason: "unknown user"}
			}
			return nil, err
		}
	}

	rows := model.RowSet{}
	if input.TemplateID != nil {
		var template model.Template
		err := e.db.WithContext(ctx).
			Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC") }).
			First(&template, "id = ?", *input.TemplateID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &ValidationError{Field: "template_id", Reason: "unknown template"}
			}
			return nil, err
		}
		rows = rowdata.Decode(template.Fields, input.RowForm)
	}

	protocol, err := e.createOnce(ctx, actor, &department, destUser, rows, input)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Two creations raced to the same sequence number; recompute
		// once with fresh state before giving up.
		metrics.SequenceRetries.Inc()
		protocol, err = e.createOnce(ctx, actor, &department, destUser, rows, input)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
	}
	if err != nil {
		return nil, err
	}

	metrics.ProtocolsCreated.WithLabelValues(department.Name).Inc()
	e.publish(ctx, "protocol_created", protocol, actor, "")

	return protocol, nil
}

func (e *Engine) createOnce(ctx context.Context, actor *model.User, department *model.Department, destUser *model.User, rows model.RowSet, input CreateInput) (*model.Protocol, error) {
	var protocol *model.Protocol
	var savedKeys []string

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := sequence.Next(tx, time.Now().Year())
		if err != nil {
			return err
		}

		protocol = &model.Protocol{
			ID:                      uuid.New(),
			Number:                  number,
			Subject:                 input.Subject,
			Description:             input.Description,
			DueDate:                 input.DueDate,
			External:                input.External,
			SupplierCode:            input.SupplierCode,
			SupplierName:            input.SupplierName,
			Status:                  model.ProtocolOpen,
			CreatedByID:             actor.ID,
			DestinationDepartmentID: department.ID,
			DestinationUserID:       input.DestinationUserID,
			TemplateID:              input.TemplateID,
			Rows:                    rows,
		}
		if err := tx.Create(protocol).Error; err != nil {
			return err
		}

		for _, upload := range input.Attachments {
			if !e.files.Allowed(upload.FileName) {
				continue
			}
			key := storage.Key(protocol.ID, upload.FileName)
			attachment := &model.Attachment{
				ID:         uuid.New(),
				ProtocolID: protocol.ID,
				FileName:   upload.FileName,
				StoredKey:  key,
			}
			if err := tx.Create(attachment).Error; err != nil {
				return err
			}
			// File bytes land before commit so a committed attachment
			// row always points at a saved file.
			if err := e.files.Save(key, upload.Content); err != nil {
				return fmt.Errorf("save attachment: %w", err)
			}
			savedKeys = append(savedKeys, key)
		}

		entry := &model.AuditEntry{
			ID:         uuid.New(),
			ProtocolID: protocol.ID,
			ActorID:    actor.ID,
			Text:       fmt.Sprintf("Protocol created and routed to department %s.", department.Name),
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		if destUser != nil && destUser.ID != actor.ID && destUser.Email != "" {
			if err := tx.Create(notify.ProtocolCreated(protocol, actor, destUser)).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		for _, key := range savedKeys {
			if removeErr := e.files.Remove(key); removeErr != nil {
				e.logger.Warn("failed to remove orphaned attachment file", zap.Error(removeErr), zap.String("key", key))
			}
		}
		return nil, err
	}

	return protocol, nil
}

// ViaKanban marks a transition triggered by dragging a card on the
// Kanban board, where no comment form exists.
const ViaKanban = "kanban"

// Transition moves a protocol to newStatus. The despacho comment is
// mandatory and becomes the audit entry's text; a Kanban drag is the
// one exception and gets an auto-generated entry instead. The protocol
// row is locked for the duration so a concurrent transition or row
// toggle cannot interleave.
func (e *Engine) Transition(ctx context.Context, actor *model.User, protocolID uuid.UUID, newStatus model.ProtocolStatus, despacho, via string) (*model.Protocol, error) {
	if !newStatus.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status"}
	}
	despacho = strings.TrimSpace(despacho)
	if despacho == "" {
		if via != ViaKanban {
			return nil, &ValidationError{Field: "despacho", Reason: "must not be blank"}
		}
		despacho = fmt.Sprintf("Status changed to %s via Kanban board.", newStatus)
	}

	var protocol model.Protocol
	var oldStatus model.ProtocolStatus

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&protocol, "id = ?", protocolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !CanAccess(actor, e.isAdmin(ctx, actor), &protocol) {
			return ErrForbidden
		}

		oldStatus = protocol.Status
		if err := tx.Model(&model.Protocol{}).
			Where("id = ?", protocol.ID).
			Update("status", newStatus).Error; err != nil {
			return err
		}
		protocol.Status = newStatus

		entry := &model.AuditEntry{
			ID:         uuid.New(),
			ProtocolID: protocol.ID,
			ActorID:    actor.ID,
			Text:       despacho,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		if protocol.CreatedByID != actor.ID {
			var creator model.User
			if err := tx.First(&creator, "id = ?", protocol.CreatedByID).Error; err != nil {
				return err
			}
			if creator.Email != "" {
				notification := notify.StatusChanged(&protocol, actor, &creator, oldStatus, newStatus, despacho)
				if err := tx.Create(notification).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(newStatus)).Inc()
	e.publish(ctx, "status_changed", &protocol, actor, despacho)

	return &protocol, nil
}

// ToggleRowChecked flips the reserved checked marker on exactly one
// row and writes the whole row-set back under the protocol's row lock,
// so two users toggling different rows cannot lose each other's write.
func (e *Engine) ToggleRowChecked(ctx context.Context, actor *model.User, protocolID uuid.UUID, rowIndex int) (bool, error) {
	var newState bool

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var protocol model.Protocol
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&protocol, "id = ?", protocolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !CanAccess(actor, e.isAdmin(ctx, actor), &protocol) {
			return ErrForbidden
		}

		if rowIndex < 0 || rowIndex >= len(protocol.Rows) {
			return ErrNotFound
		}

		rows := make(model.RowSet, len(protocol.Rows))
		copy(rows, protocol.Rows)
		newState = !rows[rowIndex].Checked()
		rows[rowIndex][model.RowCheckedKey] = newState

		return tx.Model(&model.Protocol{}).
			Where("id = ?", protocol.ID).
			Update("rows", rows).Error
	})
	if err != nil {
		return false, err
	}

	metrics.RowToggles.Inc()
	return newState, nil
}

// Get loads a protocol for display; the access predicate applies.
func (e *Engine) Get(ctx context.Context, actor *model.User, protocolID uuid.UUID) (*model.Protocol, error) {
	protocol, err := postgres.NewProtocolRepository(e.db).GetByID(ctx, protocolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !CanAccess(actor, e.isAdmin(ctx, actor), protocol) {
		return nil, ErrForbidden
	}
	return protocol, nil
}

// Scope builds the repository scope for the caller; listing, Kanban,
// and export all go through it.
func (e *Engine) Scope(ctx context.Context, actor *model.User) postgres.Scope {
	return postgres.Scope{
		Admin:        e.isAdmin(ctx, actor),
		UserID:       actor.ID,
		DepartmentID: actor.DepartmentID,
	}
}

func (e *Engine) isAdmin(ctx context.Context, actor *model.User) bool {
	return e.perms.HasPermission(ctx, actor, model.PermAdminPanel)
}

func (e *Engine) publish(ctx context.Context, eventType string, protocol *model.Protocol, actor *model.User, message string) {
	if e.bus == nil {
		return
	}
	payload := eventbus.ProtocolEvent{
		ProtocolID: protocol.ID.String(),
		Number:     protocol.Number,
		Status:     string(protocol.Status),
		ActorID:    actor.ID.String(),
		Message:    message,
	}
	event, err := eventbus.NewEvent(eventType, payload)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, eventbus.ChannelProtocol, event); err != nil {
		e.logger.Debug("failed to publish protocol event", zap.Error(err))
	}
}
