package model

import (
	"time"

	"github.com/google/uuid"
)

// Station is one physical fuel station. All shifts, tanks, pumps and
// deliveries hang off a station.
type Station struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code   string    `gorm:"uniqueIndex;not null"`
	Name   string    `gorm:"not null"`
	Active bool      `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is an operator account. Tokens are issued by the identity service;
// this table only backs openedBy/closedBy references and seeding.
// Role: "attendant" | "manager" | "admin"
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string     `gorm:"uniqueIndex;not null"`
	PasswordHash string     `gorm:"not null"`
	Role         string     `gorm:"type:varchar(20);not null"`
	StationID    *uuid.UUID `gorm:"type:uuid;index"`
	Active       bool       `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
