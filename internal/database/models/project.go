package models

import "github.com/google/uuid"

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
)

type Project struct {
	Base
	CompanyID   uuid.UUID     `gorm:"type:uuid;index;not null" json:"company_id"`
	Name        string        `gorm:"not null" json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `gorm:"default:'active'" json:"status"`

	// Relationships
	Company *Company `gorm:"foreignKey:CompanyID" json:"-"`
	Boards  []Board  `gorm:"foreignKey:ProjectID" json:"-"`
	Files   []ProjectFile `gorm:"foreignKey:ProjectID" json:"-"`
}

func (Project) TableName() string {
	return "projects"
}

type Board struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	Name      string    `gorm:"not null" json:"name"`
	Columns   string    `gorm:"default:'[\"Backlog\",\"In Progress\",\"Done\"]'" json:"columns"` // JSON array of column names

	// Relationships
	Project *Project `gorm:"foreignKey:ProjectID" json:"-"`
	Cards   []Card   `gorm:"foreignKey:BoardID" json:"-"`
}

func (Board) TableName() string {
	return "boards"
}

type Card struct {
	Base
	BoardID     uuid.UUID `gorm:"type:uuid;index;not null" json:"board_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	Column      string    `gorm:"column:board_column;default:'Backlog'" json:"column"`
	Position    int       `gorm:"default:0" json:"position"`

	// Relationships
	Board *Board `gorm:"foreignKey:BoardID" json:"-"`
}

func (Card) TableName() string {
	return "cards"
}

type ProjectFile struct {
	Base
	ProjectID   uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	Name        string    `gorm:"not null" json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	StorageKey  string    `gorm:"not null" json:"-"`
	UploadedBy  uuid.UUID `gorm:"type:uuid" json:"uploaded_by"`

	// Relationships
	Project *Project `gorm:"foreignKey:ProjectID" json:"-"`
}

func (ProjectFile) TableName() string {
	return "project_files"
}
