package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

const (
	NotificationProtocolCreated = "protocol_created"
	NotificationStatusChanged   = "status_changed"
)

// Notification is the outbox row written inside the same transaction as
// the mutation it announces. The notifier process delivers it later;
// delivery outcome never affects the triggering operation.
type Notification struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Kind        string    `gorm:"not null"`
	Recipient   string    `gorm:"not null"`
	Subject     string    `gorm:"not null"`
	Body        string    `gorm:"type:text;not null"`
	ProtocolID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Status      string    `gorm:"not null;default:'pending';index"`
	Attempts    int       `gorm:"default:0"`
	LastError   string
	CreatedAt   time.Time `gorm:"autoCreateTime;not null"`
	DeliveredAt *time.Time
}

func (Notification) TableName() string {
	return "notifications"
}
