package model

// AuditEvent rows are append-only; nothing updates or deletes them.
type AuditEvent struct {
	EventID   uint64 `gorm:"column:event_id;primaryKey;autoIncrement"`
	TenantID  string `gorm:"column:tenant_id;type:text;not null;index"`
	Action    string `gorm:"column:action;type:text;not null"`
	Actor     string `gorm:"column:actor;type:text;not null"`
	Metadata  string `gorm:"column:metadata;type:text"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
