package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Username         string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	Email            string    `gorm:"type:varchar(254);uniqueIndex;not null" json:"email"`
	FirstName        string    `gorm:"type:varchar(150)" json:"first_name"`
	LastName         string    `gorm:"type:varchar(150)" json:"last_name"`
	Bio              string    `gorm:"type:text" json:"bio"`
	Role             Role      `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	IsSuperuser      bool      `gorm:"not null;default:false" json:"-"`
	ConfirmationCode string    `gorm:"type:varchar(255);not null;default:''" json:"-"` // never exposed
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

// BeforeCreate assigns the id in Go so the same model works on Postgres and SQLite.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// EffectiveRole folds the superuser flag into the role ladder.
func (u *User) EffectiveRole() Role {
	if u.IsSuperuser {
		return RoleAdmin
	}
	return u.Role
}

// HasConfirmationCode reports whether signup has already issued a code.
func (u *User) HasConfirmationCode() bool {
	return strings.TrimSpace(u.ConfirmationCode) != ""
}
