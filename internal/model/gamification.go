package model

import (
	"time"

	"crolars/internal/gamification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserGamification is the per-user progression record. XP and TotalXP are
// both running totals; only TotalXP drives the level.
type UserGamification struct {
	UserID             string     `gorm:"type:uuid;primary_key" json:"user_id"`
	XP                 int64      `gorm:"not null;default:0" json:"xp"`
	TotalXP            int64      `gorm:"not null;default:0;index" json:"total_xp"`
	Level              int        `gorm:"not null;default:1" json:"level"`
	Crolars            int64      `gorm:"not null;default:0" json:"crolars"`
	StreakCurrent      int        `gorm:"not null;default:0" json:"streak_current"`
	StreakLongest      int        `gorm:"not null;default:0" json:"streak_longest"`
	StreakLastActivity *time.Time `gorm:"type:timestamp" json:"streak_last_activity,omitempty"`
	Version            int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Badges       []UserBadge       `gorm:"foreignKey:UserID;references:UserID" json:"badges,omitempty"`
	Achievements []UserAchievement `gorm:"foreignKey:UserID;references:UserID" json:"achievements,omitempty"`
}

// TableName specifies the table name
func (UserGamification) TableName() string {
	return "user_gamification"
}

// NewUserGamification returns the starting state of a user
func NewUserGamification(userID string) *UserGamification {
	return &UserGamification{UserID: userID, Level: 1}
}

// HasBadge reports whether the user already holds a badge with that name
func (u *UserGamification) HasBadge(name string) bool {
	for _, b := range u.Badges {
		if b.BadgeName == name {
			return true
		}
	}
	return false
}

// HasAchievement reports whether the achievement was already earned
func (u *UserGamification) HasAchievement(id string) bool {
	for _, a := range u.Achievements {
		if a.AchievementID == id && a.Earned {
			return true
		}
	}
	return false
}

// Badge is catalog metadata, looked up by unique name
type Badge struct {
	ID          string    `gorm:"type:uuid;primary_key" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Icon        string    `gorm:"type:varchar(100)" json:"icon"`
	IconURL     *string   `gorm:"type:text" json:"icon_url,omitempty"`
	Rarity      string    `gorm:"type:varchar(16);default:'common'" json:"rarity"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate hook to generate UUID
func (b *Badge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Badge) TableName() string {
	return "badges"
}

// UserBadge is an earned badge. EarnedAt is set once.
type UserBadge struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index:idx_user_badge,unique" json:"user_id"`
	BadgeName string    `gorm:"type:varchar(100);not null;index:idx_user_badge,unique" json:"name"`
	BadgeID   *string   `gorm:"type:uuid" json:"badge_id,omitempty"`
	EarnedAt  time.Time `gorm:"not null" json:"earned_at"`

	Badge *Badge `gorm:"foreignKey:BadgeID;references:ID" json:"badge,omitempty"`
}

// BeforeCreate hook to generate UUID
func (b *UserBadge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (UserBadge) TableName() string {
	return "user_badges"
}

// Achievement is a catalog row; ids match gamification.Achievements()
type Achievement struct {
	ID            string    `gorm:"type:varchar(50);primary_key" json:"id"`
	Name          string    `gorm:"type:varchar(100);not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	RewardXP      int64     `gorm:"not null;default:0" json:"reward_xp"`
	RewardCrolars int64     `gorm:"not null;default:0" json:"reward_crolars"`
	RewardBadge   *string   `gorm:"type:varchar(100)" json:"reward_badge,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name
func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement flips Earned false->true at most once
type UserAchievement struct {
	ID            string     `gorm:"type:uuid;primary_key" json:"id"`
	UserID        string     `gorm:"type:uuid;not null;index:idx_user_achievement,unique" json:"user_id"`
	AchievementID string     `gorm:"type:varchar(50);not null;index:idx_user_achievement,unique" json:"achievement_id"`
	Earned        bool       `gorm:"not null;default:false" json:"earned"`
	EarnedDate    *time.Time `gorm:"type:timestamp" json:"earned_date,omitempty"`

	Achievement Achievement `gorm:"foreignKey:AchievementID;references:ID" json:"achievement"`
}

// BeforeCreate hook to generate UUID
func (a *UserAchievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (UserAchievement) TableName() string {
	return "user_achievements"
}

// XPLog is the append-only audit trail of XP grants
type XPLog struct {
	ID          string    `gorm:"type:uuid;primary_key" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Source      string    `gorm:"type:varchar(30);not null" json:"source"`
	SourceID    string    `gorm:"type:varchar(100)" json:"source_id,omitempty"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

// BeforeCreate hook to generate UUID
func (l *XPLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (XPLog) TableName() string {
	return "xp_logs"
}

// UserStats holds the counters achievements are evaluated against
type UserStats struct {
	UserID              string    `gorm:"type:uuid;primary_key" json:"user_id"`
	CoursesCompleted    int64     `gorm:"not null;default:0" json:"courses_completed"`
	ChallengesCompleted int64     `gorm:"not null;default:0" json:"challenges_completed"`
	ForumAnswers        int64     `gorm:"not null;default:0" json:"forum_answers"`
	FriendCount         int64     `gorm:"not null;default:0" json:"friend_count"`
	NotesUploaded       int64     `gorm:"not null;default:0" json:"notes_uploaded"`
	EventsAttended      int64     `gorm:"not null;default:0" json:"events_attended"`
	ClubsJoined         int64     `gorm:"not null;default:0" json:"clubs_joined"`
	StudyMinutes        int64     `gorm:"not null;default:0" json:"study_minutes"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (UserStats) TableName() string {
	return "user_stats"
}

// Snapshot converts the counters into the evaluation input
func (s *UserStats) Snapshot(streakDays int) gamification.Stats {
	if s == nil {
		return gamification.Stats{StreakDays: streakDays}
	}
	return gamification.Stats{
		CoursesCompleted:    s.CoursesCompleted,
		ChallengesCompleted: s.ChallengesCompleted,
		ForumAnswers:        s.ForumAnswers,
		StreakDays:          streakDays,
		FriendCount:         s.FriendCount,
		NotesUploaded:       s.NotesUploaded,
		EventsAttended:      s.EventsAttended,
		ClubsJoined:         s.ClubsJoined,
		StudyMinutes:        s.StudyMinutes,
	}
}

// StatColumnForSource maps an activity source to the counter it bumps
func StatColumnForSource(source gamification.Source) string {
	switch source {
	case gamification.SourceCourseComplete:
		return "courses_completed"
	case gamification.SourceChallenge:
		return "challenges_completed"
	case gamification.SourceForumAnswer, gamification.SourceForumBestAnswer:
		return "forum_answers"
	case gamification.SourceNoteUpload:
		return "notes_uploaded"
	case gamification.SourceEventAttend:
		return "events_attended"
	case gamification.SourceClubJoin:
		return "clubs_joined"
	}
	return ""
}
