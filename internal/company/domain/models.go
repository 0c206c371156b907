// Package domain contains tenant persistence models: users, companies and
// their typed settings.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type CompanyStatus string

const (
	CompanyStatusActive   CompanyStatus = "active"
	CompanyStatusInactive CompanyStatus = "inactive"
	CompanyStatusArchived CompanyStatus = "archived"
)

// User owns at most one company.
type User struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id,string"`
	Email     string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Name      string       `gorm:"type:text" json:"name"`
	IsActive  bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Company is the tenant root: the billing and data-isolation boundary.
// Churned companies are archived, never deleted.
type Company struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id,string"`
	OwnerUserID snowflake.ID   `gorm:"not null;uniqueIndex" json:"owner_user_id,string"`
	Name        string         `gorm:"type:text;not null" json:"name"`
	Status      CompanyStatus  `gorm:"type:text;not null;default:'active'" json:"status"`
	Timezone    string         `gorm:"type:text;not null;default:'UTC'" json:"timezone"`
	Settings    datatypes.JSON `gorm:"type:jsonb" json:"settings"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }
