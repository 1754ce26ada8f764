package models

import (
	"fmt"
	"strings"
	"time"
)

// UserRole represents the role of a user in the system.
type UserRole string

const (
	// RoleUser is a regular user who may only touch their own files.
	RoleUser UserRole = "user"
	// RoleAdmin bypasses ownership checks and may mint download URLs in any state.
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is a valid UserRole.
func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a stable identity. Demo sessions are backed by auto-provisioned
// users whose ID equals the demo session id.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"default:user;size:50" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	Files []FileObject `gorm:"foreignKey:OwnerID" json:"-"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// IsAdmin checks if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("invalid email %q", u.Email)
	}
	if u.Role != "" && !UserRole(u.Role).IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}

// DemoEmail returns the synthetic unique email used for the auto-provisioned
// user backing a demo session.
func DemoEmail(demoID string) string {
	return "demo-" + demoID + "@demo.invalid"
}
