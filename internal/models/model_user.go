package models

import "time"

// User is the card owner. Account management (registration, sessions,
// avatars) lives in a separate service; this table exists so a card is never
// provisioned for a user id that does not exist.
type User struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"column:username;type:varchar(64);uniqueIndex;not null" json:"username"`
	Role      string    `gorm:"column:role;type:varchar(16);not null;default:user" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
