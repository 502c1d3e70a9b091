package model

import (
	"time"

	"github.com/google/uuid"
)

type ProtocolStatus string

const (
	ProtocolOpen       ProtocolStatus = "OPEN"
	ProtocolInAnalysis ProtocolStatus = "IN_ANALYSIS"
	ProtocolPending    ProtocolStatus = "PENDING"
	ProtocolFinished   ProtocolStatus = "FINISHED"
	ProtocolArchived   ProtocolStatus = "ARCHIVED"
)

func (s ProtocolStatus) Valid() bool {
	switch s {
	case ProtocolOpen, ProtocolInAnalysis, ProtocolPending, ProtocolFinished, ProtocolArchived:
		return true
	default:
		return false
	}
}

// Settled statuses never count as overdue or due-soon regardless of the
// due date.
func (s ProtocolStatus) Settled() bool {
	return s == ProtocolFinished || s == ProtocolArchived
}

type Protocol struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Number      string    `gorm:"uniqueIndex;not null"`
	Subject     string    `gorm:"not null"`
	Description string
	DueDate     *time.Time `gorm:"type:date"`
	External    bool       `gorm:"default:false"`

	// Loose reference into the external supplier directory; the master
	// record lives in another system, so no foreign key.
	SupplierCode string
	SupplierName string

	Status                  ProtocolStatus `gorm:"type:varchar(20);default:'OPEN';index"`
	CreatedByID             uuid.UUID      `gorm:"type:uuid;not null;index"`
	CreatedBy               *User          `gorm:"foreignKey:CreatedByID"`
	DestinationDepartmentID uuid.UUID      `gorm:"type:uuid;not null;index"`
	DestinationDepartment   *Department    `gorm:"foreignKey:DestinationDepartmentID"`
	DestinationUserID       *uuid.UUID     `gorm:"type:uuid;index"`
	DestinationUser         *User          `gorm:"foreignKey:DestinationUserID"`
	TemplateID              *uuid.UUID     `gorm:"type:uuid"`
	Template                *Template      `gorm:"foreignKey:TemplateID"`

	Rows        RowSet       `gorm:"type:jsonb;not null;default:'[]'"`
	History     []AuditEntry `gorm:"foreignKey:ProtocolID"`
	Attachments []Attachment `gorm:"foreignKey:ProtocolID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuditEntry is append-only: no update or delete path exists once a row
// is written. This is the compliance record.
type AuditEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProtocolID uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_protocol_time"`
	Protocol   *Protocol `gorm:"foreignKey:ProtocolID"`
	ActorID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Actor      *User     `gorm:"foreignKey:ActorID"`
	Text       string    `gorm:"type:text;not null"`
	OccurredAt time.Time `gorm:"autoCreateTime;not null;index:idx_audit_protocol_time"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}

type Attachment struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProtocolID uuid.UUID `gorm:"type:uuid;not null;index"`
	FileName   string    `gorm:"not null"`
	StoredKey  string    `gorm:"not null"`
	CreatedAt  time.Time
}
