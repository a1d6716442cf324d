package repository

import (
	"errors"
	"fmt"

	"crolars/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type XPLogRepository interface {
	Append(entry *model.XPLog) error
	FindByUserID(userID string, limit int) ([]model.XPLog, error)
}

type xpLogRepository struct {
	db *gorm.DB
}

func NewXPLogRepository(db *gorm.DB) XPLogRepository {
	return &xpLogRepository{db: db}
}

// Append writes an audit entry. Entries are never updated.
func (r *xpLogRepository) Append(entry *model.XPLog) error {
	return r.db.Create(entry).Error
}

func (r *xpLogRepository) FindByUserID(userID string, limit int) ([]model.XPLog, error) {
	var logs []model.XPLog
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

type StatsRepository interface {
	FindByUserID(userID string) (*model.UserStats, error)
	Increment(userID, column string, delta int64) error
	Upsert(stats *model.UserStats) error
}

type statsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

var statColumns = map[string]bool{
	"courses_completed":    true,
	"challenges_completed": true,
	"forum_answers":        true,
	"friend_count":         true,
	"notes_uploaded":       true,
	"events_attended":      true,
	"clubs_joined":         true,
	"study_minutes":        true,
}

// FindByUserID returns zeroed counters when the user has none yet
func (r *statsRepository) FindByUserID(userID string) (*model.UserStats, error) {
	var stats model.UserStats
	err := r.db.Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.UserStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Increment atomically adds delta to one counter, creating the row if needed
func (r *statsRepository) Increment(userID, column string, delta int64) error {
	if !statColumns[column] {
		return fmt.Errorf("unknown stat column: %s", column)
	}

	row := map[string]interface{}{"user_id": userID, column: delta}
	return r.db.Model(&model.UserStats{}).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Set{{
			Column: clause.Column{Name: column},
			Value:  gorm.Expr("user_stats."+column+" + ?", delta),
		}},
	}).Create(row).Error
}

func (r *statsRepository) Upsert(stats *model.UserStats) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"courses_completed", "challenges_completed", "forum_answers", "friend_count",
			"notes_uploaded", "events_attended", "clubs_joined", "study_minutes", "updated_at",
		}),
	}).Create(stats).Error
}
