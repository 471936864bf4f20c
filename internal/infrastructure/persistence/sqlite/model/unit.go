package model

// Unit is the canonical internal record spreadsheet rows map onto.
type Unit struct {
	ID             string `gorm:"column:id;type:text;primaryKey"`
	DevelopmentID  string `gorm:"column:development_id;type:text;index"`
	Address        string `gorm:"column:address;type:text;not null;index"`
	Status         string `gorm:"column:status;type:text"`
	Price          string `gorm:"column:price;type:text"`
	PurchaserEmail string `gorm:"column:purchaser_email;type:text"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string `gorm:"column:updated_at;type:text;not null"`
}

func (Unit) TableName() string {
	return "units"
}
