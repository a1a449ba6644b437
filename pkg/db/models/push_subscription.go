package models

import (
	"time"

	"github.com/google/uuid"
)

// PushSubscription holds the web-push endpoint and key material for one user.
// One row per user: a fresh browser subscription overwrites the old one, and
// UpdatedAt drives staleness pruning when endpoints rotate silently.
type PushSubscription struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"userId"`
	Endpoint  string    `gorm:"type:text;not null" json:"endpoint"`
	P256dhKey string    `gorm:"column:p256dh_key;type:text;not null" json:"p256dhKey"`
	AuthKey   string    `gorm:"column:auth_key;type:text;not null" json:"authKey"`
	CreatedAt time.Time `gorm:"type:timestamptz;default:now()" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamptz;default:now()" json:"updatedAt"`
}
