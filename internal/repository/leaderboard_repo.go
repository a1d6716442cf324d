package repository

import (
	"fmt"
	"log"

	"crolars/internal/model"
	"crolars/internal/util"

	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKey       = "gamification:leaderboard:total_xp"
	leaderboardSeededKey = "gamification:leaderboard:seeded"
	// leaderboardSeedSize is how many database rows a rebuild copies into redis
	leaderboardSeedSize = 1000
)

type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	UserID  string `json:"user_id"`
	TotalXP int64  `json:"total_xp"`
	Level   int    `json:"level"`
}

type LeaderboardRepository interface {
	Record(userID string, totalXP int64) error
	Top(limit int) ([]LeaderboardEntry, error)
	// Warm rebuilds the sorted set from the database
	Warm() error
}

// leaderboardRepository keeps a redis sorted set by total XP. The database
// stays the source of truth: whenever the set looks incomplete it is rebuilt
// and the answer comes from the database.
type leaderboardRepository struct {
	redis *util.RedisClient
	users GamificationRepository
}

func NewLeaderboardRepository(redis *util.RedisClient, users GamificationRepository) LeaderboardRepository {
	return &leaderboardRepository{redis: redis, users: users}
}

func (r *leaderboardRepository) Record(userID string, totalXP int64) error {
	if r.redis == nil {
		return nil
	}
	if err := r.redis.ZSet(leaderboardKey, float64(totalXP), userID); err != nil {
		return fmt.Errorf("failed to update leaderboard: %w", err)
	}
	return nil
}

func (r *leaderboardRepository) Warm() error {
	if r.redis == nil {
		return nil
	}
	_, err := r.rebuild(leaderboardSeedSize)
	return err
}

// Top returns entries without Level; callers resolve it from TotalXP
func (r *leaderboardRepository) Top(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		return []LeaderboardEntry{}, nil
	}

	if r.redis != nil {
		if entries, ok := r.cached(limit); ok {
			return entries, nil
		}
		users, err := r.rebuild(max(limit, leaderboardSeedSize))
		if err != nil {
			log.Printf("Warning: Failed to rebuild leaderboard cache: %v", err)
		}
		if users != nil {
			return rank(users, limit), nil
		}
	}

	users, err := r.users.TopByTotalXP(limit)
	if err != nil {
		return nil, err
	}
	return rank(users, limit), nil
}

// cached serves from redis only when the set is known to hold the full top:
// either it has at least limit members or it was rebuilt from the database
func (r *leaderboardRepository) cached(limit int) ([]LeaderboardEntry, bool) {
	card, err := r.redis.ZCard(leaderboardKey)
	if err != nil || card == 0 {
		return nil, false
	}
	if card < int64(limit) {
		if _, err := r.redis.Get(leaderboardSeededKey); err != nil {
			return nil, false
		}
	}

	members, err := r.redis.ZTop(leaderboardKey, int64(limit))
	if err != nil {
		return nil, false
	}
	entries := make([]LeaderboardEntry, 0, len(members))
	for i, m := range members {
		userID, _ := m.Member.(string)
		entries = append(entries, LeaderboardEntry{
			Rank:    i + 1,
			UserID:  userID,
			TotalXP: int64(m.Score),
		})
	}
	return entries, true
}

// rebuild copies the database top into redis. Scores only go up so a
// concurrent Record is never overwritten by an older row.
func (r *leaderboardRepository) rebuild(size int) ([]model.UserGamification, error) {
	users, err := r.users.TopByTotalXP(size)
	if err != nil {
		return nil, err
	}

	members := make([]redis.Z, 0, len(users))
	for _, u := range users {
		members = append(members, redis.Z{Score: float64(u.TotalXP), Member: u.UserID})
	}
	if err := r.redis.ZRaise(leaderboardKey, members...); err != nil {
		return users, fmt.Errorf("failed to seed leaderboard: %w", err)
	}
	if err := r.redis.Set(leaderboardSeededKey, "1", 0); err != nil {
		return users, fmt.Errorf("failed to mark leaderboard seeded: %w", err)
	}
	return users, nil
}

func rank(users []model.UserGamification, limit int) []LeaderboardEntry {
	if len(users) > limit {
		users = users[:limit]
	}
	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, LeaderboardEntry{
			Rank:    i + 1,
			UserID:  u.UserID,
			TotalXP: u.TotalXP,
		})
	}
	return entries
}
