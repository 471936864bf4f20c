package model

// SyncSnapshot is the three-way-merge baseline: the last value confirmed
// identical on both sides for one field of one record.
type SyncSnapshot struct {
	IntegrationID string `gorm:"column:integration_id;type:text;primaryKey"`
	OhTable       string `gorm:"column:oh_table;type:text;primaryKey"`
	OhField       string `gorm:"column:oh_field;type:text;primaryKey"`
	OhRecordID    string `gorm:"column:oh_record_id;type:text;primaryKey"`
	Value         string `gorm:"column:value;type:text;not null"`
	UpdatedAt     string `gorm:"column:updated_at;type:text;not null"`
}

func (SyncSnapshot) TableName() string {
	return "integration_sync_snapshots"
}
