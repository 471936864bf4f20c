package model

type Integration struct {
	ID            string `gorm:"column:id;type:text;primaryKey"`
	TenantID      string `gorm:"column:tenant_id;type:text;not null;index"`
	DevelopmentID string `gorm:"column:development_id;type:text"`
	Type          string `gorm:"column:type;type:text;not null"`
	Name          string `gorm:"column:name;type:text;not null"`
	Status        string `gorm:"column:status;type:text;not null;index"`
	Credentials   []byte `gorm:"column:credentials;type:blob"`
	// Deterministic non-secret hash of the provider subscription id.
	// Indexed so webhook routing never decrypts credential blobs.
	SubscriptionKey string `gorm:"column:subscription_key;type:text;index"`
	SyncDirection   string `gorm:"column:sync_direction;type:text;not null"`
	SyncFrequency   string `gorm:"column:sync_frequency;type:text;not null"`
	ExternalRef     string `gorm:"column:external_ref;type:text"`
	CreatedAt       string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt       string `gorm:"column:updated_at;type:text;not null"`
}

func (Integration) TableName() string {
	return "integrations"
}
