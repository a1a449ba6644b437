package push

import (
	"context"
	"errors"
	"time"

	"github.com/comedorlabs/comedor-backend/internal/repo"
	"github.com/comedorlabs/comedor-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists push subscriptions, one row per user.
type Repository interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.PushSubscription, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	repo.Base
}

// NewRepository returns a push subscription repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{Base: repo.NewBase(db)}
}

// Upsert stores the subscription, replacing any previous one for the user.
// A browser re-subscribe rotates the endpoint, so the stored row always
// reflects the latest registration.
func (r *repositoryImpl) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	sub.UpdatedAt = time.Now().UTC()
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"endpoint", "p256dh_key", "auth_key", "updated_at",
		}),
	}).Create(sub).Error
}

// GetByUser returns the stored subscription, or nil when the user has none.
func (r *repositoryImpl) GetByUser(ctx context.Context, userID uuid.UUID) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	err := r.DB(ctx).Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repositoryImpl) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.DB(ctx).
		Where("user_id = ?", userID).
		Delete(&models.PushSubscription{}).Error
}

// DeleteStale prunes subscriptions that have not been refreshed since the
// cutoff, forcing the device through a fresh subscribe on next visit.
func (r *repositoryImpl) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.DB(ctx).
		Where("updated_at < ?", cutoff).
		Delete(&models.PushSubscription{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
