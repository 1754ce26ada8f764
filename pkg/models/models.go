// Package models defines the persistent entities of the upload lifecycle:
// users, file objects with their state machine, audit events, and per-owner
// usage counters.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&FileObject{},
		&AuditEvent{},
		&UsageCounter{},
	}
}
