package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Audit action codes. One event is emitted for every state transition and
// every minted download URL.
const (
	ActionFileInit          = "FILE_INIT"
	ActionUploadRejected    = "UPLOAD_REJECTED"
	ActionUploadQuarantined = "UPLOAD_QUARANTINED"
	ActionUploadEnqueued    = "UPLOAD_ENQUEUED"
	ActionScanPass          = "SCAN_PASS"
	ActionScanQuarantined   = "SCAN_QUARANTINED"
	ActionScanFail          = "SCAN_FAIL"
	ActionDownloadURLIssued = "DOWNLOAD_URL_ISSUED"
)

// JSONMap is a free-form JSON object stored in a single column. It works on
// both SQLite (TEXT) and PostgreSQL (JSONB declared as JSON by GORM).
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// GormDataType tells GORM to use a JSON column where the dialect has one.
func (JSONMap) GormDataType() string {
	return "json"
}

// AuditEvent is an append-only record attached to state transitions and
// download URL minting. Events are write-once and never updated.
type AuditEvent struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	ActorUserID *string `gorm:"size:36;index" json:"actor_user_id,omitempty"`
	Action      string  `gorm:"not null;size:64;index" json:"action"`
	FileID      *string `gorm:"size:36;index" json:"file_id,omitempty"`
	IP          string  `gorm:"size:64" json:"ip,omitempty"`
	UserAgent   string  `gorm:"size:512" json:"user_agent,omitempty"`
	Details     JSONMap `json:"details,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for AuditEvent.
func (AuditEvent) TableName() string {
	return "audit_events"
}
