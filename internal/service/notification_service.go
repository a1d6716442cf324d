package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"crolars/internal/model"
	"crolars/internal/realtime"
	"crolars/internal/repository"
	"crolars/internal/util"
)

var (
	ErrInvalidNotificationType = errors.New("invalid notification type")
	ErrNotificationForbidden   = errors.New("notification belongs to another user")
)

const (
	NotificationQueueName  = "notification_queue"
	NotificationExchange   = "notification_exchange"
	NotificationRoutingKey = "notification"
)

// Pusher is the realtime fan-out the service and worker deliver through
type Pusher interface {
	SendToUser(userID, msgType string, data interface{})
	SendToAll(msgType string, data interface{})
}

// Publisher is the broker side of delivery
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// NotificationMessage is the RabbitMQ payload consumed by NotificationWorker
type NotificationMessage struct {
	UserID       string             `json:"user_id"`
	Notification model.Notification `json:"notification"`
	Timestamp    time.Time          `json:"timestamp"`
}

// PreferenceUpdate carries a partial preference change; nil fields are kept
type PreferenceUpdate struct {
	Email        *bool `json:"email"`
	Push         *bool `json:"push"`
	Social       *bool `json:"social"`
	Academic     *bool `json:"academic"`
	Gamification *bool `json:"gamification"`
	Marketplace  *bool `json:"marketplace"`
	System       *bool `json:"system"`
}

type NotificationService interface {
	// Dispatch stores a notification and pushes it to the user's open streams
	Dispatch(userID, notifType, title, message string, data map[string]interface{}) (*model.Notification, error)
	List(userID string, limit, offset int) ([]*model.Notification, error)
	UnreadCount(userID string) (int64, error)
	MarkAsRead(notificationID, userID string) error
	MarkAllAsRead(userID string) (int64, error)
	Delete(notificationID, userID string) error
	GetPreferences(userID string) (*model.NotificationPreference, error)
	UpdatePreferences(userID string, update PreferenceUpdate) (*model.NotificationPreference, error)
	Announce(title, message string)
	SignalFeedUpdate(userID string)
}

type notificationService struct {
	notifRepo repository.NotificationRepository
	prefRepo  repository.PreferenceRepository
	publisher Publisher
	pusher    Pusher
}

func NewNotificationService(
	notifRepo repository.NotificationRepository,
	prefRepo repository.PreferenceRepository,
	rabbitMQ *util.RabbitMQClient,
	pusher Pusher,
) NotificationService {
	s := &notificationService{
		notifRepo: notifRepo,
		prefRepo:  prefRepo,
		pusher:    pusher,
	}

	if rabbitMQ != nil {
		if err := rabbitMQ.DeclareDirect(NotificationExchange, NotificationQueueName, NotificationRoutingKey); err != nil {
			log.Printf("Warning: failed to declare notification exchange, pushing directly: %v", err)
		} else {
			s.publisher = rabbitMQ
		}
	}

	return s
}

func (s *notificationService) Dispatch(
	userID, notifType, title, message string,
	data map[string]interface{},
) (*model.Notification, error) {
	if !model.IsValidNotificationType(notifType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidNotificationType, notifType)
	}

	notification := &model.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    data,
	}

	if err := s.notifRepo.Create(notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	pref, err := s.prefRepo.FindByUserID(userID)
	if err != nil {
		log.Printf("Failed to load notification preferences for user %s, delivering anyway: %v", userID, err)
	}
	if !pref.Allows(notifType) {
		return notification, nil
	}

	s.deliver(notification)
	return notification, nil
}

// deliver publishes to RabbitMQ and falls back to a direct push
func (s *notificationService) deliver(notification *model.Notification) {
	if s.publisher != nil {
		body, err := json.Marshal(NotificationMessage{
			UserID:       notification.UserID,
			Notification: *notification,
			Timestamp:    time.Now(),
		})
		if err == nil {
			err = s.publisher.Publish(NotificationExchange, NotificationRoutingKey, body)
		}
		if err == nil {
			return
		}
		log.Printf("Failed to publish notification to RabbitMQ, pushing directly: %v", err)
	}

	if s.pusher != nil {
		s.pusher.SendToUser(notification.UserID, realtime.MessageTypeNotification, notification)
	}
}

func (s *notificationService) List(userID string, limit, offset int) ([]*model.Notification, error) {
	return s.notifRepo.FindByUserID(userID, limit, offset)
}

func (s *notificationService) UnreadCount(userID string) (int64, error) {
	return s.notifRepo.CountUnreadByUserID(userID)
}

func (s *notificationService) owned(notificationID, userID string) (*model.Notification, error) {
	notification, err := s.notifRepo.FindByID(notificationID)
	if err != nil {
		return nil, err
	}
	if notification.UserID != userID {
		return nil, ErrNotificationForbidden
	}
	return notification, nil
}

// MarkAsRead marks one notification read; already-read is a no-op
func (s *notificationService) MarkAsRead(notificationID, userID string) error {
	if _, err := s.owned(notificationID, userID); err != nil {
		return err
	}
	return s.notifRepo.MarkAsRead(notificationID)
}

// MarkAllAsRead is idempotent and returns the number of rows that changed
func (s *notificationService) MarkAllAsRead(userID string) (int64, error) {
	return s.notifRepo.MarkAllAsRead(userID)
}

func (s *notificationService) Delete(notificationID, userID string) error {
	if _, err := s.owned(notificationID, userID); err != nil {
		return err
	}
	return s.notifRepo.Delete(notificationID)
}

func (s *notificationService) GetPreferences(userID string) (*model.NotificationPreference, error) {
	return s.prefRepo.FindByUserID(userID)
}

func (s *notificationService) UpdatePreferences(userID string, update PreferenceUpdate) (*model.NotificationPreference, error) {
	pref, err := s.prefRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}

	apply := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&pref.Email, update.Email)
	apply(&pref.Push, update.Push)
	apply(&pref.Social, update.Social)
	apply(&pref.Academic, update.Academic)
	apply(&pref.Gamification, update.Gamification)
	apply(&pref.Marketplace, update.Marketplace)
	apply(&pref.System, update.System)

	if err := s.prefRepo.Upsert(pref); err != nil {
		return nil, fmt.Errorf("failed to save notification preferences: %w", err)
	}
	return pref, nil
}

// Announce sends a system_announcement to every connected user
func (s *notificationService) Announce(title, message string) {
	if s.pusher == nil {
		return
	}
	s.pusher.SendToAll(realtime.MessageTypeSystemAnnouncement, map[string]string{
		"title":   title,
		"message": message,
	})
}

// SignalFeedUpdate notifies one user, or everyone when userID is empty
func (s *notificationService) SignalFeedUpdate(userID string) {
	if s.pusher == nil {
		return
	}
	payload := map[string]interface{}{"timestamp": time.Now().Unix()}
	if userID == "" {
		s.pusher.SendToAll(realtime.MessageTypeFeedUpdate, payload)
		return
	}
	s.pusher.SendToUser(userID, realtime.MessageTypeFeedUpdate, payload)
}
