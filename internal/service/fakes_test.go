package service

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"crolars/internal/gamification"
	"crolars/internal/model"
	"crolars/internal/repository"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeGamificationRepo struct {
	mu      sync.Mutex
	users   map[string]*model.UserGamification
	saveErr error
	saves   int
}

func newFakeGamificationRepo() *fakeGamificationRepo {
	return &fakeGamificationRepo{users: make(map[string]*model.UserGamification)}
}

func cloneUser(u *model.UserGamification) *model.UserGamification {
	out := *u
	out.Badges = append([]model.UserBadge(nil), u.Badges...)
	out.Achievements = append([]model.UserAchievement(nil), u.Achievements...)
	return &out
}

func (r *fakeGamificationRepo) put(u *model.UserGamification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Version == 0 {
		u.Version = 1
	}
	r.users[u.UserID] = cloneUser(u)
}

func (r *fakeGamificationRepo) get(userID string) *model.UserGamification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		return cloneUser(u)
	}
	return nil
}

func (r *fakeGamificationRepo) FindByUserID(userID string) (*model.UserGamification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		return cloneUser(u), nil
	}
	return model.NewUserGamification(userID), nil
}

func (r *fakeGamificationRepo) Save(user *model.UserGamification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored, ok := r.users[user.UserID]
	switch {
	case !ok && user.Version != 0:
		return repository.ErrVersionConflict
	case ok && stored.Version != user.Version:
		return repository.ErrVersionConflict
	}
	user.Version++
	r.users[user.UserID] = cloneUser(user)
	r.saves++
	return nil
}

func (r *fakeGamificationRepo) TopByTotalXP(limit int) ([]model.UserGamification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.UserGamification
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalXP > out[j].TotalXP })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeBadgeRepo struct {
	badges map[string]*model.Badge
}

func newFakeBadgeRepo() *fakeBadgeRepo {
	r := &fakeBadgeRepo{badges: make(map[string]*model.Badge)}
	for _, def := range gamification.Badges() {
		r.badges[def.Name] = &model.Badge{ID: uuid.New().String(), Name: def.Name, Description: def.Description, Icon: def.Icon, Rarity: def.Rarity}
	}
	return r
}

func (r *fakeBadgeRepo) FindByName(name string) (*model.Badge, error) {
	if b, ok := r.badges[name]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, repository.ErrBadgeNotFound
}

func (r *fakeBadgeRepo) FindAll() ([]model.Badge, error) {
	var out []model.Badge
	for _, b := range r.badges {
		out = append(out, *b)
	}
	return out, nil
}

func (r *fakeBadgeRepo) UpdateIconURL(name, url string) (*model.Badge, error) {
	b, ok := r.badges[name]
	if !ok {
		return nil, repository.ErrBadgeNotFound
	}
	b.IconURL = &url
	return r.FindByName(name)
}

func (r *fakeBadgeRepo) SeedCatalog(defs []gamification.BadgeDefinition) error { return nil }

type fakeAchievementRepo struct{}

func (fakeAchievementRepo) FindAll() ([]model.Achievement, error) {
	var out []model.Achievement
	for _, def := range gamification.Achievements() {
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
		out = append(out, row)
	}
	return out, nil
}

// FindUnearnedByUserID returns the whole catalog; the engine skips earned ones
func (r fakeAchievementRepo) FindUnearnedByUserID(userID string) ([]model.Achievement, error) {
	return r.FindAll()
}

func (fakeAchievementRepo) SeedCatalog(defs []gamification.AchievementDefinition) error { return nil }

type fakeXPLogRepo struct {
	mu      sync.Mutex
	entries []*model.XPLog
}

func (r *fakeXPLogRepo) Append(entry *model.XPLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeXPLogRepo) FindByUserID(userID string, limit int) ([]model.XPLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.XPLog
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeStatsRepo struct {
	mu    sync.Mutex
	stats map[string]*model.UserStats
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{stats: make(map[string]*model.UserStats)}
}

func (r *fakeStatsRepo) FindByUserID(userID string) (*model.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stats[userID]; ok {
		copied := *s
		return &copied, nil
	}
	return &model.UserStats{UserID: userID}, nil
}

func (r *fakeStatsRepo) Increment(userID, column string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[userID]
	if !ok {
		s = &model.UserStats{UserID: userID}
		r.stats[userID] = s
	}
	switch column {
	case "courses_completed":
		s.CoursesCompleted += delta
	case "challenges_completed":
		s.ChallengesCompleted += delta
	case "forum_answers":
		s.ForumAnswers += delta
	case "friend_count":
		s.FriendCount += delta
	case "notes_uploaded":
		s.NotesUploaded += delta
	case "events_attended":
		s.EventsAttended += delta
	case "clubs_joined":
		s.ClubsJoined += delta
	case "study_minutes":
		s.StudyMinutes += delta
	default:
		return errors.New("unknown stat column: " + column)
	}
	return nil
}

func (r *fakeStatsRepo) Upsert(stats *model.UserStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *stats
	r.stats[stats.UserID] = &copied
	return nil
}

type fakeLeaderboard struct {
	mu     sync.Mutex
	scores map[string]int64
}

func newFakeLeaderboard() *fakeLeaderboard {
	return &fakeLeaderboard{scores: make(map[string]int64)}
}

func (l *fakeLeaderboard) Record(userID string, totalXP int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scores[userID] = totalXP
	return nil
}

func (l *fakeLeaderboard) Warm() error { return nil }

func (l *fakeLeaderboard) Top(limit int) ([]repository.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var entries []repository.LeaderboardEntry
	for id, xp := range l.scores {
		entries = append(entries, repository.LeaderboardEntry{UserID: id, TotalXP: xp})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TotalXP > entries[j].TotalXP })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

type dispatched struct {
	userID    string
	notifType string
	title     string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
	err   error
}

func (d *fakeDispatcher) Dispatch(userID, notifType, title, message string, data map[string]interface{}) (*model.Notification, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatched{userID: userID, notifType: notifType, title: title})
	if d.err != nil {
		return nil, d.err
	}
	return &model.Notification{ID: uuid.New().String(), UserID: userID, Type: notifType, Title: title, Message: message}, nil
}

func (d *fakeDispatcher) types() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.calls))
	for _, c := range d.calls {
		out = append(out, c.notifType)
	}
	return out
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items map[string]*model.Notification
	order []string
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{items: make(map[string]*model.Notification)}
}

func (r *fakeNotificationRepo) Create(n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	copied := *n
	r.items[n.ID] = &copied
	r.order = append(r.order, n.ID)
	return nil
}

func (r *fakeNotificationRepo) FindByID(id string) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotificationNotFound
	}
	copied := *n
	return &copied, nil
}

func (r *fakeNotificationRepo) FindByUserID(userID string, limit, offset int) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for i := len(r.order) - 1; i >= 0; i-- {
		n, ok := r.items[r.order[i]]
		if ok && n.UserID == userID {
			copied := *n
			out = append(out, &copied)
		}
	}
	if offset >= len(out) {
		return []*model.Notification{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNotificationRepo) CountUnreadByUserID(userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.items {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkAsRead(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return repository.ErrNotificationNotFound
	}
	if !n.Read {
		now := time.Now()
		n.Read = true
		n.ReadAt = &now
	}
	return nil
}

func (r *fakeNotificationRepo) MarkAllAsRead(userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	for _, n := range r.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

func (r *fakeNotificationRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotificationNotFound
	}
	delete(r.items, id)
	return nil
}

type fakePreferenceRepo struct {
	prefs map[string]*model.NotificationPreference
}

func newFakePreferenceRepo() *fakePreferenceRepo {
	return &fakePreferenceRepo{prefs: make(map[string]*model.NotificationPreference)}
}

func (r *fakePreferenceRepo) FindByUserID(userID string) (*model.NotificationPreference, error) {
	if p, ok := r.prefs[userID]; ok {
		copied := *p
		return &copied, nil
	}
	return model.DefaultNotificationPreference(userID), nil
}

func (r *fakePreferenceRepo) Upsert(pref *model.NotificationPreference) error {
	copied := *pref
	r.prefs[pref.UserID] = &copied
	return nil
}

type pushed struct {
	userID  string
	msgType string
	data    interface{}
}

type fakePusher struct {
	mu     sync.Mutex
	toUser []pushed
	toAll  []pushed
}

func (p *fakePusher) SendToUser(userID, msgType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toUser = append(p.toUser, pushed{userID: userID, msgType: msgType, data: data})
}

func (p *fakePusher) userMessages() []pushed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushed(nil), p.toUser...)
}

func (p *fakePusher) SendToAll(msgType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toAll = append(p.toAll, pushed{msgType: msgType, data: data})
}

type fakePublisher struct {
	bodies [][]byte
	err    error
}

func (p *fakePublisher) Publish(exchange, routingKey string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *fakePublisher) decoded(i int) NotificationMessage {
	var msg NotificationMessage
	_ = json.Unmarshal(p.bodies[i], &msg)
	return msg
}

// fakeDeliverySource hands out one delivery channel per Consume call
type fakeDeliverySource struct {
	mu         sync.Mutex
	channels   []chan amqp.Delivery
	consumes   int
	declares   int
	consumeErr error
}

func (s *fakeDeliverySource) DeclareDirect(exchange, queue, routingKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declares++
	return nil
}

func (s *fakeDeliverySource) Consume(queue, consumer string) (<-chan amqp.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	ch := make(chan amqp.Delivery, 4)
	s.channels = append(s.channels, ch)
	s.consumes++
	return ch, nil
}

func (s *fakeDeliverySource) channel(i int) chan amqp.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.channels) {
		return nil
	}
	return s.channels[i]
}

func (s *fakeDeliverySource) consumeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumes
}

// fakeAcknowledger records the delivery tags acked by the worker
type fakeAcknowledger struct {
	mu    sync.Mutex
	acked []uint64
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error { return nil }

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

func (a *fakeAcknowledger) ackedTags() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.acked...)
}
