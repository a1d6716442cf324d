package repository

import (
	"errors"

	"crolars/internal/gamification"
	"crolars/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrBadgeNotFound = errors.New("badge not found")

type BadgeRepository interface {
	FindByName(name string) (*model.Badge, error)
	FindAll() ([]model.Badge, error)
	UpdateIconURL(name, url string) (*model.Badge, error)
	SeedCatalog(defs []gamification.BadgeDefinition) error
}

type badgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

func (r *badgeRepository) FindByName(name string) (*model.Badge, error) {
	var badge model.Badge
	err := r.db.Where("name = ?", name).First(&badge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBadgeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

func (r *badgeRepository) FindAll() ([]model.Badge, error) {
	var badges []model.Badge
	err := r.db.Order("name ASC").Find(&badges).Error
	return badges, err
}

func (r *badgeRepository) UpdateIconURL(name, url string) (*model.Badge, error) {
	result := r.db.Model(&model.Badge{}).Where("name = ?", name).Update("icon_url", url)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrBadgeNotFound
	}
	return r.FindByName(name)
}

// SeedCatalog inserts missing badges and refreshes descriptions of existing ones
func (r *badgeRepository) SeedCatalog(defs []gamification.BadgeDefinition) error {
	for _, def := range defs {
		badge := model.Badge{
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			Rarity:      def.Rarity,
		}
		err := r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "icon", "rarity"}),
		}).Create(&badge).Error
		if err != nil {
			return err
		}
	}
	return nil
}

type AchievementRepository interface {
	FindAll() ([]model.Achievement, error)
	// FindUnearnedByUserID lists catalog achievements the user has not earned
	FindUnearnedByUserID(userID string) ([]model.Achievement, error)
	SeedCatalog(defs []gamification.AchievementDefinition) error
}

type achievementRepository struct {
	db *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) AchievementRepository {
	return &achievementRepository{db: db}
}

func (r *achievementRepository) FindAll() ([]model.Achievement, error) {
	var achievements []model.Achievement
	err := r.db.Order("id ASC").Find(&achievements).Error
	return achievements, err
}

func (r *achievementRepository) FindUnearnedByUserID(userID string) ([]model.Achievement, error) {
	var achievements []model.Achievement
	earned := r.db.Model(&model.UserAchievement{}).
		Select("achievement_id").
		Where("user_id = ? AND earned = ?", userID, true)
	err := r.db.
		Where("id NOT IN (?)", earned).
		Order("id ASC").
		Find(&achievements).Error
	return achievements, err
}

func (r *achievementRepository) SeedCatalog(defs []gamification.AchievementDefinition) error {
	for _, def := range defs {
		row := model.Achievement{
			ID:            def.ID,
			Name:          def.Name,
			Description:   def.Description,
			RewardXP:      def.Reward.XP,
			RewardCrolars: def.Reward.Crolars,
		}
		if def.Reward.Badge != "" {
			badge := def.Reward.Badge
			row.RewardBadge = &badge
		}
		err := r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "reward_xp", "reward_crolars", "reward_badge"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
	}
	return nil
}
