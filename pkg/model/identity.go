package model

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Permission names checked throughout the API. A user's effective
// capability set is the permission set of its single role.
const (
	PermAdminPanel        = "admin_panel"
	PermManageRoles       = "manage_roles"
	PermManageTemplates   = "manage_templates"
	PermManageDepartments = "manage_departments"
	PermManageUsers       = "manage_users"
	PermManageSuppliers   = "manage_suppliers"
)

type Permission struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name string    `gorm:"uniqueIndex;not null"`
}

type Role struct {
	ID          uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name        string       `gorm:"uniqueIndex;not null"`
	Permissions []Permission `gorm:"many2many:role_permissions;"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	DepartmentID *uuid.UUID  `gorm:"type:uuid;index"`
	Department   *Department `gorm:"foreignKey:DepartmentID"`
	RoleID       *uuid.UUID  `gorm:"type:uuid"`
	Role         *Role       `gorm:"foreignKey:RoleID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// HasPermission reports whether the user's role grants the named
// permission. Role and its permissions must be preloaded.
func (u *User) HasPermission(name string) bool {
	if u.Role == nil {
		return false
	}
	for _, p := range u.Role.Permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (u *User) HasAnyPermission(names ...string) bool {
	for _, name := range names {
		if u.HasPermission(name) {
			return true
		}
	}
	return false
}
