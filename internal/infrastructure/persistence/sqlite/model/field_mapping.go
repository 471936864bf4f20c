package model

type FieldMapping struct {
	MappingID     uint64 `gorm:"column:mapping_id;primaryKey;autoIncrement"`
	IntegrationID string `gorm:"column:integration_id;type:text;not null;index"`
	ExternalField string `gorm:"column:external_field;type:text;not null"`
	InternalTable string `gorm:"column:internal_table;type:text;not null"`
	InternalField string `gorm:"column:internal_field;type:text;not null"`
	Transform     string `gorm:"column:transform;type:text"`
	RecordKey     bool   `gorm:"column:record_key;not null;default:0"`
	Position      int    `gorm:"column:position;not null;default:0"`
}

func (FieldMapping) TableName() string {
	return "integration_field_mappings"
}
