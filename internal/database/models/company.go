package models

type Company struct {
	Base
	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`
	Plan string `gorm:"default:'free'" json:"plan"` // free, pro, studio

	// Relationships
	Users    []User    `gorm:"foreignKey:CompanyID" json:"-"`
	Clients  []Client  `gorm:"foreignKey:CompanyID" json:"-"`
	Projects []Project `gorm:"foreignKey:CompanyID" json:"-"`
	Invoices []Invoice `gorm:"foreignKey:CompanyID" json:"-"`
	Quotes   []Quote   `gorm:"foreignKey:CompanyID" json:"-"`
}

func (Company) TableName() string {
	return "companies"
}
