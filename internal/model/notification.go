package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is serialized with the field names the web client reads
type Notification struct {
	ID        string            `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    string            `gorm:"type:uuid;not null;index" json:"userId"`
	Type      string            `gorm:"type:varchar(20);not null;index" json:"type"` // SOCIAL, ACADEMIC, GAMIFICATION, MARKETPLACE, SYSTEM
	Title     string            `gorm:"type:varchar(255);not null" json:"title"`
	Message   string            `gorm:"type:text" json:"message"`
	Data      datatypes.JSONMap `gorm:"type:jsonb" json:"data,omitempty"`
	Read      bool              `gorm:"column:is_read;default:false;index" json:"read"`
	ReadAt    *time.Time        `gorm:"type:timestamp" json:"readAt,omitempty"`
	CreatedAt time.Time         `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"-"`
}

// BeforeCreate hook to generate UUID
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Notification) TableName() string {
	return "notifications"
}

// Notification type constants
const (
	NotificationTypeSocial       = "SOCIAL"
	NotificationTypeAcademic     = "ACADEMIC"
	NotificationTypeGamification = "GAMIFICATION"
	NotificationTypeMarketplace  = "MARKETPLACE"
	NotificationTypeSystem       = "SYSTEM"
)

// IsValidNotificationType reports whether t is one of the closed type tags
func IsValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeSocial, NotificationTypeAcademic, NotificationTypeGamification,
		NotificationTypeMarketplace, NotificationTypeSystem:
		return true
	}
	return false
}

// NotificationPreference holds per-channel toggles, all enabled by default
type NotificationPreference struct {
	UserID       string    `gorm:"type:uuid;primary_key" json:"-"`
	Email        bool      `gorm:"default:true" json:"email"`
	Push         bool      `gorm:"default:true" json:"push"`
	Social       bool      `gorm:"default:true" json:"social"`
	Academic     bool      `gorm:"default:true" json:"academic"`
	Gamification bool      `gorm:"default:true" json:"gamification"`
	Marketplace  bool      `gorm:"default:true" json:"marketplace"`
	System       bool      `gorm:"default:true" json:"system"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name
func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

// DefaultNotificationPreference returns the all-enabled preference set
func DefaultNotificationPreference(userID string) *NotificationPreference {
	return &NotificationPreference{
		UserID:       userID,
		Email:        true,
		Push:         true,
		Social:       true,
		Academic:     true,
		Gamification: true,
		Marketplace:  true,
		System:       true,
	}
}

// Allows reports whether realtime delivery is enabled for a notification type
func (p *NotificationPreference) Allows(notifType string) bool {
	if p == nil {
		return true
	}
	if !p.Push {
		return false
	}
	switch notifType {
	case NotificationTypeSocial:
		return p.Social
	case NotificationTypeAcademic:
		return p.Academic
	case NotificationTypeGamification:
		return p.Gamification
	case NotificationTypeMarketplace:
		return p.Marketplace
	case NotificationTypeSystem:
		return p.System
	}
	return true
}
