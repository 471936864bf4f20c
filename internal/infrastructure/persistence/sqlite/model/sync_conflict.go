package model

type SyncConflict struct {
	ID            string `gorm:"column:id;type:text;primaryKey"`
	IntegrationID string `gorm:"column:integration_id;type:text;not null;index"`
	OhTable       string `gorm:"column:oh_table;type:text;not null"`
	OhField       string `gorm:"column:oh_field;type:text;not null"`
	OhRecordID    string `gorm:"column:oh_record_id;type:text;not null"`
	LocalValue    string `gorm:"column:local_value;type:text"`
	RemoteValue   string `gorm:"column:remote_value;type:text"`
	BaseValue     string `gorm:"column:base_value;type:text"`
	Status        string `gorm:"column:status;type:text;not null;index"`
	ResolvedBy    string `gorm:"column:resolved_by;type:text"`
	ResolvedAt    string `gorm:"column:resolved_at;type:text"`
	CreatedAt     string `gorm:"column:created_at;type:text;not null"`
}

func (SyncConflict) TableName() string {
	return "integration_conflicts"
}
