package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/comedorlabs/comedor-backend/pkg/db/types"
	"github.com/comedorlabs/comedor-backend/pkg/enums"
)

// Notification stores one in-app alert scoped to a single user. A record
// belongs to the same user for its entire lifetime; only Read is mutable.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID              `gorm:"type:uuid;not null;index" json:"userId"`
	Type      enums.NotificationType `gorm:"type:notification_type;not null" json:"type"`
	Title     string                 `gorm:"type:text;not null" json:"title"`
	Message   string                 `gorm:"type:text;not null" json:"message"`
	Metadata  dbtypes.JSONMap        `gorm:"type:jsonb" json:"metadata,omitempty"`
	Read      bool                   `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time              `gorm:"type:timestamptz;default:now()" json:"createdAt"`
}
