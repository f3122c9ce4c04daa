package models

import "github.com/google/uuid"

// Client is a portal principal: someone a company works for, who can
// reach the client portal through magic-link login. Clients never hold
// passwords.
type Client struct {
	Base
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Name      string    `json:"name"`
	CompanyID uuid.UUID `gorm:"type:uuid;index" json:"company_id"`

	// Relationships
	Company *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

func (Client) TableName() string {
	return "clients"
}

// ClientProject links a client to a project. Its existence is the sole
// authorization predicate for client-side project access.
type ClientProject struct {
	ClientID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"client_id"`
	ProjectID uuid.UUID `gorm:"type:uuid;primaryKey" json:"project_id"`
}

func (ClientProject) TableName() string {
	return "client_projects"
}
