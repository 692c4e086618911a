package models

import (
	"time"
)

// Client is a shop customer identified by their chat id.
type Client struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Username  string    `json:"username"`
	Contact   string    `json:"contact" gorm:"not null"`
	Name      string    `json:"name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
