package service

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"crolars/internal/gamification"
	"crolars/internal/model"
	"crolars/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidXPAmount = errors.New("xp amount must be positive")
	ErrInvalidSource   = errors.New("invalid xp source")
)

// Notification record kinds returned by engine operations
const (
	RecordXPGained          = "xp_gained"
	RecordLevelUp           = "level_up"
	RecordBadgeEarned       = "badge_earned"
	RecordAchievementUnlock = "achievement_unlocked"
	RecordStreakMilestone   = "streak_milestone"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	streakMilestoneInterval = 7
	maxHistoryLimit         = 50
)

// NotificationRecord describes something the user should be told about
type NotificationRecord struct {
	Kind    string                 `json:"kind"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

type XPGrantResult struct {
	LevelUp       bool                 `json:"level_up"`
	NewLevel      *gamification.Level  `json:"new_level,omitempty"`
	TotalXP       int64                `json:"total_xp"`
	Notifications []NotificationRecord `json:"notifications"`
}

type StreakResult struct {
	StreakUpdated bool                 `json:"streak_updated"`
	Current       int                  `json:"current"`
	Longest       int                  `json:"longest"`
	XPGranted     int64                `json:"xp_granted"`
	LevelUp       bool                 `json:"level_up"`
	NewLevel      *gamification.Level  `json:"new_level,omitempty"`
	Notifications []NotificationRecord `json:"notifications"`
}

type ActivityResult struct {
	XP           *XPGrantResult      `json:"xp"`
	Streak       *StreakResult       `json:"streak"`
	Achievements []model.Achievement `json:"achievements"`
}

type Summary struct {
	UserID             string                  `json:"user_id"`
	Level              gamification.Level      `json:"level"`
	XP                 int64                   `json:"xp"`
	TotalXP            int64                   `json:"total_xp"`
	LevelProgress      int64                   `json:"level_progress"`
	XPToNextLevel      int64                   `json:"xp_to_next_level"`
	LevelSpan          int64                   `json:"level_span"`
	MaxLevel           bool                    `json:"max_level"`
	Crolars            int64                   `json:"crolars"`
	StreakCurrent      int                     `json:"streak_current"`
	StreakLongest      int                     `json:"streak_longest"`
	StreakLastActivity *time.Time              `json:"streak_last_activity,omitempty"`
	Badges             []model.UserBadge       `json:"badges"`
	Achievements       []model.UserAchievement `json:"achievements"`
}

// Dispatcher creates user notifications; NotificationService implements it
type Dispatcher interface {
	Dispatch(userID, notifType, title, message string, data map[string]interface{}) (*model.Notification, error)
}

type GamificationService interface {
	GrantXP(userID string, amount int64, source gamification.Source, sourceID, description string) (*XPGrantResult, error)
	// GrantBadge returns nil, nil when the user already holds the badge
	GrantBadge(userID, badgeName string) (*model.UserBadge, error)
	CheckAchievements(userID string) ([]model.Achievement, error)
	UpdateDailyStreak(userID string) (*StreakResult, error)
	GetSummary(userID string) (*Summary, error)
	RecordActivity(userID string, source gamification.Source, sourceID, description string, studyMinutes int64) (*ActivityResult, error)
	SyncStats(stats *model.UserStats) error
	GetLeaderboard(limit int) ([]repository.LeaderboardEntry, error)
	GetXPHistory(userID string, limit int) ([]model.XPLog, error)
}

type gamificationService struct {
	userRepo        repository.GamificationRepository
	badgeRepo       repository.BadgeRepository
	achievementRepo repository.AchievementRepository
	xpLogRepo       repository.XPLogRepository
	statsRepo       repository.StatsRepository
	leaderboard     repository.LeaderboardRepository
	dispatcher      Dispatcher
	loc             *time.Location
	now             func() time.Time
	locks           *userLocks
}

func NewGamificationService(
	userRepo repository.GamificationRepository,
	badgeRepo repository.BadgeRepository,
	achievementRepo repository.AchievementRepository,
	xpLogRepo repository.XPLogRepository,
	statsRepo repository.StatsRepository,
	leaderboard repository.LeaderboardRepository,
	dispatcher Dispatcher,
	loc *time.Location,
) GamificationService {
	if loc == nil {
		loc = time.Local
	}
	return &gamificationService{
		userRepo:        userRepo,
		badgeRepo:       badgeRepo,
		achievementRepo: achievementRepo,
		xpLogRepo:       xpLogRepo,
		statsRepo:       statsRepo,
		leaderboard:     leaderboard,
		dispatcher:      dispatcher,
		loc:             loc,
		now:             time.Now,
		locks:           newUserLocks(),
	}
}

// pendingDispatch is sent only after the state it describes is saved
type pendingDispatch struct {
	notifType string
	title     string
	message   string
	data      map[string]interface{}
}

// mutation accumulates in-memory changes to one user between load and save
type mutation struct {
	user          *model.UserGamification
	notifications []NotificationRecord
	dispatches    []pendingDispatch
	logs          []*model.XPLog
	levelUp       bool
	newLevel      *gamification.Level
	xpGranted     int64
}

func (m *mutation) record(kind, title, message string, data map[string]interface{}) {
	m.notifications = append(m.notifications, NotificationRecord{Kind: kind, Title: title, Message: message, Data: data})
}

func (m *mutation) dispatch(notifType, title, message string, data map[string]interface{}) {
	m.dispatches = append(m.dispatches, pendingDispatch{notifType: notifType, title: title, message: message, data: data})
}

func (s *gamificationService) begin(userID string) (*mutation, error) {
	user, err := s.userRepo.FindByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load gamification state: %w", err)
	}
	return &mutation{user: user}, nil
}

// commit saves the user, appends audit entries, then sends notifications
func (s *gamificationService) commit(m *mutation) error {
	if err := s.userRepo.Save(m.user); err != nil {
		return fmt.Errorf("failed to save gamification state: %w", err)
	}

	for _, entry := range m.logs {
		if err := s.xpLogRepo.Append(entry); err != nil {
			return fmt.Errorf("failed to append xp log: %w", err)
		}
	}

	if m.xpGranted > 0 && s.leaderboard != nil {
		if err := s.leaderboard.Record(m.user.UserID, m.user.TotalXP); err != nil {
			log.Printf("Failed to update leaderboard for user %s: %v", m.user.UserID, err)
		}
	}

	if s.dispatcher != nil {
		for _, d := range m.dispatches {
			if _, err := s.dispatcher.Dispatch(m.user.UserID, d.notifType, d.title, d.message, d.data); err != nil {
				log.Printf("Failed to dispatch %s notification for user %s: %v", d.notifType, m.user.UserID, err)
			}
		}
	}
	return nil
}

// applyXP adds XP and pays out every level crossed on the way
func (s *gamificationService) applyXP(m *mutation, amount int64, source gamification.Source, sourceID, description string) error {
	user := m.user
	previous := user.Level
	user.XP += amount
	user.TotalXP += amount
	m.xpGranted += amount

	if description == "" {
		description = source.Label()
	}

	title := fmt.Sprintf("+%d XP", amount)
	message := fmt.Sprintf("Ganaste %d XP por %s", amount, source.Label())
	data := map[string]interface{}{"xp": amount, "reason": description, "source": string(source)}
	m.record(RecordXPGained, title, message, data)
	m.dispatch(model.NotificationTypeGamification, title, message, data)

	m.logs = append(m.logs, &model.XPLog{
		ID:          uuid.New().String(),
		UserID:      user.UserID,
		Amount:      amount,
		Source:      string(source),
		SourceID:    sourceID,
		Description: description,
		CreatedAt:   s.now(),
	})

	reached := gamification.ResolveLevel(user.TotalXP)
	if reached.Level <= previous {
		return nil
	}

	user.Level = reached.Level
	var paid int64
	for n := previous + 1; n <= reached.Level; n++ {
		level, ok := gamification.LevelByNumber(n)
		if !ok {
			continue
		}
		user.Crolars += level.Rewards.Crolars
		paid += level.Rewards.Crolars
		for _, name := range level.Rewards.Badges {
			badge, err := s.applyBadge(m, name)
			if err != nil {
				return err
			}
			if badge != nil {
				m.record(RecordBadgeEarned, "Nueva insignia", fmt.Sprintf("Obtuviste la insignia %s", name),
					map[string]interface{}{"badge": name})
			}
		}
	}

	title = fmt.Sprintf("¡Nivel %d alcanzado!", reached.Level)
	message = fmt.Sprintf("Ahora eres %s. Recibiste %d Crolars", reached.Name, paid)
	data = map[string]interface{}{"level": reached.Level, "name": reached.Name, "crolars": paid}
	m.record(RecordLevelUp, title, message, data)
	m.dispatch(model.NotificationTypeSystem, title, message, data)

	m.levelUp = true
	m.newLevel = &reached
	return nil
}

// applyBadge appends a badge the user does not hold yet
func (s *gamificationService) applyBadge(m *mutation, name string) (*model.UserBadge, error) {
	if m.user.HasBadge(name) {
		return nil, nil
	}

	earned := model.UserBadge{
		ID:        uuid.New().String(),
		UserID:    m.user.UserID,
		BadgeName: name,
		EarnedAt:  s.now(),
	}

	meta, err := s.badgeRepo.FindByName(name)
	switch {
	case err == nil:
		earned.BadgeID = &meta.ID
		earned.Badge = meta
	case errors.Is(err, repository.ErrBadgeNotFound):
		log.Printf("Badge %q has no catalog entry, granting by name", name)
	default:
		return nil, fmt.Errorf("failed to look up badge %s: %w", name, err)
	}

	m.user.Badges = append(m.user.Badges, earned)
	m.dispatch(model.NotificationTypeSystem, "¡Nueva insignia!", fmt.Sprintf("Has obtenido la insignia %s", name),
		map[string]interface{}{"badge": name})
	return &m.user.Badges[len(m.user.Badges)-1], nil
}

func (s *gamificationService) GrantXP(
	userID string,
	amount int64,
	source gamification.Source,
	sourceID, description string,
) (*XPGrantResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidXPAmount
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSource, source)
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	m, err := s.begin(userID)
	if err != nil {
		return nil, err
	}
	if err := s.applyXP(m, amount, source, sourceID, description); err != nil {
		return nil, err
	}
	if err := s.commit(m); err != nil {
		return nil, err
	}

	return &XPGrantResult{
		LevelUp:       m.levelUp,
		NewLevel:      m.newLevel,
		TotalXP:       m.user.TotalXP,
		Notifications: m.notifications,
	}, nil
}

func (s *gamificationService) GrantBadge(userID, badgeName string) (*model.UserBadge, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	m, err := s.begin(userID)
	if err != nil {
		return nil, err
	}
	badge, err := s.applyBadge(m, badgeName)
	if err != nil || badge == nil {
		return nil, err
	}
	if err := s.commit(m); err != nil {
		return nil, err
	}
	return badge, nil
}

func (s *gamificationService) CheckAchievements(userID string) ([]model.Achievement, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	m, err := s.begin(userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.statsRepo.FindByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}
	snapshot := stats.Snapshot(m.user.StreakCurrent)

	candidates, err := s.achievementRepo.FindUnearnedByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}

	unlocked := []model.Achievement{}
	for _, achievement := range candidates {
		if m.user.HasAchievement(achievement.ID) || !gamification.Evaluate(achievement.ID, snapshot) {
			continue
		}

		earnedAt := s.now()
		m.user.Achievements = append(m.user.Achievements, model.UserAchievement{
			ID:            uuid.New().String(),
			UserID:        userID,
			AchievementID: achievement.ID,
			Earned:        true,
			EarnedDate:    &earnedAt,
			Achievement:   achievement,
		})

		if achievement.RewardXP > 0 {
			if err := s.applyXP(m, achievement.RewardXP, gamification.SourceAchievement, achievement.ID,
				"Logro desbloqueado: "+achievement.Name); err != nil {
				return nil, err
			}
		}
		m.user.Crolars += achievement.RewardCrolars
		if achievement.RewardBadge != nil && *achievement.RewardBadge != "" {
			badge, err := s.applyBadge(m, *achievement.RewardBadge)
			if err != nil {
				return nil, err
			}
			if badge != nil {
				m.record(RecordBadgeEarned, "Nueva insignia", fmt.Sprintf("Obtuviste la insignia %s", badge.BadgeName),
					map[string]interface{}{"badge": badge.BadgeName})
			}
		}

		title := "¡Logro desbloqueado!"
		message := fmt.Sprintf("%s: %s", achievement.Name, achievement.Description)
		data := map[string]interface{}{
			"achievement": achievement.ID,
			"xp":          achievement.RewardXP,
			"crolars":     achievement.RewardCrolars,
		}
		m.record(RecordAchievementUnlock, title, message, data)
		m.dispatch(model.NotificationTypeGamification, title, message, data)

		unlocked = append(unlocked, achievement)
	}

	if len(unlocked) == 0 {
		return unlocked, nil
	}
	if err := s.commit(m); err != nil {
		return nil, err
	}
	return unlocked, nil
}

func (s *gamificationService) UpdateDailyStreak(userID string) (*StreakResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	m, err := s.begin(userID)
	if err != nil {
		return nil, err
	}
	user := m.user
	now := s.now()

	result := &StreakResult{Notifications: []NotificationRecord{}}
	switch gamification.ClassifyStreak(user.StreakLastActivity, now, s.loc) {
	case gamification.StreakUnchanged:
		result.Current = user.StreakCurrent
		result.Longest = user.StreakLongest
		return result, nil

	case gamification.StreakContinued:
		user.StreakCurrent++
		if user.StreakCurrent > user.StreakLongest {
			user.StreakLongest = user.StreakCurrent
		}
		xp := gamification.StreakXP(user.StreakCurrent)
		if err := s.applyXP(m, xp, gamification.SourceStreak, "",
			fmt.Sprintf("Racha de %d días", user.StreakCurrent)); err != nil {
			return nil, err
		}
		result.XPGranted = xp

		if user.StreakCurrent%streakMilestoneInterval == 0 {
			title := fmt.Sprintf("¡%d días de racha!", user.StreakCurrent)
			message := fmt.Sprintf("Llevas %d días seguidos aprendiendo. ¡Sigue así!", user.StreakCurrent)
			data := map[string]interface{}{"streak": user.StreakCurrent, "xp": xp}
			m.record(RecordStreakMilestone, title, message, data)
			m.dispatch(model.NotificationTypeGamification, title, message, data)
		}

	case gamification.StreakReset:
		user.StreakCurrent = 1
		if user.StreakLongest < 1 {
			user.StreakLongest = 1
		}
	}

	user.StreakLastActivity = &now
	if err := s.commit(m); err != nil {
		return nil, err
	}

	result.StreakUpdated = true
	result.Current = user.StreakCurrent
	result.Longest = user.StreakLongest
	result.LevelUp = m.levelUp
	result.NewLevel = m.newLevel
	result.Notifications = append(result.Notifications, m.notifications...)
	return result, nil
}

func (s *gamificationService) GetSummary(userID string) (*Summary, error) {
	user, err := s.userRepo.FindByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load gamification state: %w", err)
	}

	level := gamification.ResolveLevel(user.TotalXP)
	needed, span := gamification.XPToNextLevel(user.TotalXP)
	summary := &Summary{
		UserID:             user.UserID,
		Level:              level,
		XP:                 user.XP,
		TotalXP:            user.TotalXP,
		LevelProgress:      user.TotalXP - level.MinXP,
		XPToNextLevel:      needed,
		LevelSpan:          span,
		MaxLevel:           level.IsTerminal(),
		Crolars:            user.Crolars,
		StreakCurrent:      user.StreakCurrent,
		StreakLongest:      user.StreakLongest,
		StreakLastActivity: user.StreakLastActivity,
		Badges:             user.Badges,
		Achievements:       user.Achievements,
	}
	if summary.Badges == nil {
		summary.Badges = []model.UserBadge{}
	}
	if summary.Achievements == nil {
		summary.Achievements = []model.UserAchievement{}
	}
	return summary, nil
}

// RecordActivity is the entry point for user actions: it bumps the matching
// counter, grants the canonical XP, updates the streak and checks achievements
func (s *gamificationService) RecordActivity(
	userID string,
	source gamification.Source,
	sourceID, description string,
	studyMinutes int64,
) (*ActivityResult, error) {
	if !source.Valid() || !source.IsActivity() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSource, source)
	}

	if column := model.StatColumnForSource(source); column != "" {
		if err := s.statsRepo.Increment(userID, column, 1); err != nil {
			return nil, fmt.Errorf("failed to update user stats: %w", err)
		}
	}
	if studyMinutes > 0 {
		if err := s.statsRepo.Increment(userID, "study_minutes", studyMinutes); err != nil {
			return nil, fmt.Errorf("failed to update study time: %w", err)
		}
	}

	xp, err := s.GrantXP(userID, gamification.XPFor(source), source, sourceID, description)
	if err != nil {
		return nil, err
	}
	streak, err := s.UpdateDailyStreak(userID)
	if err != nil {
		return nil, err
	}
	achievements, err := s.CheckAchievements(userID)
	if err != nil {
		return nil, err
	}

	return &ActivityResult{XP: xp, Streak: streak, Achievements: achievements}, nil
}

// SyncStats overwrites counters maintained by other services (friends, study time)
func (s *gamificationService) SyncStats(stats *model.UserStats) error {
	if err := s.statsRepo.Upsert(stats); err != nil {
		return fmt.Errorf("failed to sync user stats: %w", err)
	}
	return nil
}

func (s *gamificationService) GetLeaderboard(limit int) ([]repository.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	entries, err := s.leaderboard.Top(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Level = gamification.ResolveLevel(entries[i].TotalXP).Level
	}
	return entries, nil
}

func (s *gamificationService) GetXPHistory(userID string, limit int) ([]model.XPLog, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	logs, err := s.xpLogRepo.FindByUserID(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load xp history: %w", err)
	}
	if logs == nil {
		logs = []model.XPLog{}
	}
	return logs, nil
}

// userLocks serializes load-mutate-save sequences per user within a process
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &userLock{}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
