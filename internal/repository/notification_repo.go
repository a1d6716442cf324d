package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crolars/internal/model"
	"crolars/internal/util"

	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository interface {
	Create(notification *model.Notification) error
	FindByID(id string) (*model.Notification, error)
	FindByUserID(userID string, limit, offset int) ([]*model.Notification, error)
	CountUnreadByUserID(userID string) (int64, error)
	MarkAsRead(id string) error
	MarkAllAsRead(userID string) (int64, error)
	Delete(id string) error
}

type notificationRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	notificationByUserCachePrefix = "notification:user:"
	notificationCountCachePrefix  = "notification:count:"
	notificationCacheExpiration   = 10 * time.Minute
)

func NewNotificationRepository(db *gorm.DB, redis *util.RedisClient) NotificationRepository {
	return &notificationRepository{
		db:    db,
		redis: redis,
	}
}

// Create creates a new notification
func (r *notificationRepository) Create(notification *model.Notification) error {
	if err := r.db.Create(notification).Error; err != nil {
		return err
	}
	r.invalidate(notification.UserID)
	return nil
}

// FindByID finds a notification by ID
func (r *notificationRepository) FindByID(id string) (*model.Notification, error) {
	var notification model.Notification
	err := r.db.Where("id = ?", id).First(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

// FindByUserID finds notifications for a user, newest first
func (r *notificationRepository) FindByUserID(userID string, limit, offset int) ([]*model.Notification, error) {
	key := fmt.Sprintf("%s%s:%d:%d", notificationByUserCachePrefix, userID, limit, offset)
	if cached, err := r.getListFromCache(key); err == nil {
		return cached, nil
	}

	var notifications []*model.Notification
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}

	r.cacheNotificationList(key, notifications)
	return notifications, nil
}

// CountUnreadByUserID counts unread notifications for a user
func (r *notificationRepository) CountUnreadByUserID(userID string) (int64, error) {
	if r.redis != nil {
		cached, err := r.redis.Get(notificationCountCachePrefix + userID)
		if err == nil {
			var count int64
			if _, err := fmt.Sscanf(cached, "%d", &count); err == nil {
				return count, nil
			}
		}
	}

	var count int64
	err := r.db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	if r.redis != nil {
		r.redis.Set(notificationCountCachePrefix+userID, fmt.Sprintf("%d", count), notificationCacheExpiration)
	}
	return count, nil
}

// MarkAsRead marks a notification as read
func (r *notificationRepository) MarkAsRead(id string) error {
	notification, err := r.FindByID(id)
	if err != nil {
		return err
	}
	if notification.Read {
		return nil
	}

	now := time.Now()
	err = r.db.Model(&model.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		}).Error
	if err != nil {
		return err
	}

	r.invalidate(notification.UserID)
	return nil
}

// MarkAllAsRead marks every unread notification of a user as read and
// returns how many rows changed
func (r *notificationRepository) MarkAllAsRead(userID string) (int64, error) {
	now := time.Now()
	result := r.db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		r.invalidate(userID)
	}
	return result.RowsAffected, nil
}

// Delete deletes a notification
func (r *notificationRepository) Delete(id string) error {
	notification, err := r.FindByID(id)
	if err != nil {
		return err
	}

	if err := r.db.Delete(notification).Error; err != nil {
		return err
	}

	r.invalidate(notification.UserID)
	return nil
}

// Cache helpers
func (r *notificationRepository) cacheNotificationList(key string, notifications []*model.Notification) {
	if r.redis == nil {
		return
	}

	notificationsJSON, err := json.Marshal(notifications)
	if err != nil {
		return
	}

	r.redis.Set(key, string(notificationsJSON), notificationCacheExpiration)
}

func (r *notificationRepository) getListFromCache(key string) ([]*model.Notification, error) {
	if r.redis == nil {
		return nil, util.ErrCacheMiss
	}

	cached, err := r.redis.Get(key)
	if err != nil {
		return nil, err
	}

	var notifications []*model.Notification
	if err := json.Unmarshal([]byte(cached), &notifications); err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *notificationRepository) invalidate(userID string) {
	if r.redis == nil {
		return
	}
	r.redis.DeletePattern(notificationByUserCachePrefix + userID + ":*")
	r.redis.Delete(notificationCountCachePrefix + userID)
}
