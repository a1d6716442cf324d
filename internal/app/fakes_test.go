package app

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"crolars/internal/gamification"
	"crolars/internal/model"
	"crolars/internal/realtime"
	"crolars/internal/repository"
	"crolars/internal/service"
	"crolars/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubNotificationService struct {
	list        []*model.Notification
	unread      int64
	markErr     error
	deleteErr   error
	dispatchErr error
	dispatched  []string
	pref        *model.NotificationPreference
	prefUpdate  service.PreferenceUpdate
	announced   []string
	feedTargets []string
	readAll     int64
}

func (s *stubNotificationService) Dispatch(userID, notifType, title, message string, data map[string]interface{}) (*model.Notification, error) {
	if s.dispatchErr != nil {
		return nil, s.dispatchErr
	}
	s.dispatched = append(s.dispatched, userID)
	return &model.Notification{ID: "n-new", UserID: userID, Type: notifType, Title: title, Message: message}, nil
}

func (s *stubNotificationService) List(userID string, limit, offset int) ([]*model.Notification, error) {
	return s.list, nil
}

func (s *stubNotificationService) UnreadCount(userID string) (int64, error) {
	return s.unread, nil
}

func (s *stubNotificationService) MarkAsRead(notificationID, userID string) error {
	return s.markErr
}

func (s *stubNotificationService) MarkAllAsRead(userID string) (int64, error) {
	return s.readAll, nil
}

func (s *stubNotificationService) Delete(notificationID, userID string) error {
	return s.deleteErr
}

func (s *stubNotificationService) GetPreferences(userID string) (*model.NotificationPreference, error) {
	return s.pref, nil
}

func (s *stubNotificationService) UpdatePreferences(userID string, update service.PreferenceUpdate) (*model.NotificationPreference, error) {
	s.prefUpdate = update
	return s.pref, nil
}

func (s *stubNotificationService) Announce(title, message string) {
	s.announced = append(s.announced, title)
}

func (s *stubNotificationService) SignalFeedUpdate(userID string) {
	s.feedTargets = append(s.feedTargets, userID)
}

type activityCall struct {
	userID       string
	source       gamification.Source
	studyMinutes int64
}

type stubGamificationService struct {
	grantErr   error
	grantCalls []int64
	badge      *model.UserBadge
	badgeCalls []string
	activities []activityCall
	synced     *model.UserStats
}

func (s *stubGamificationService) GrantXP(userID string, amount int64, source gamification.Source, sourceID, description string) (*service.XPGrantResult, error) {
	if s.grantErr != nil {
		return nil, s.grantErr
	}
	s.grantCalls = append(s.grantCalls, amount)
	return &service.XPGrantResult{TotalXP: amount, Notifications: []service.NotificationRecord{}}, nil
}

func (s *stubGamificationService) GrantBadge(userID, badgeName string) (*model.UserBadge, error) {
	s.badgeCalls = append(s.badgeCalls, badgeName)
	return s.badge, nil
}

func (s *stubGamificationService) CheckAchievements(userID string) ([]model.Achievement, error) {
	return nil, nil
}

func (s *stubGamificationService) UpdateDailyStreak(userID string) (*service.StreakResult, error) {
	return &service.StreakResult{StreakUpdated: true, Current: 1, Longest: 1}, nil
}

func (s *stubGamificationService) GetSummary(userID string) (*service.Summary, error) {
	return &service.Summary{UserID: userID, Level: gamification.ResolveLevel(0)}, nil
}

func (s *stubGamificationService) RecordActivity(userID string, source gamification.Source, sourceID, description string, studyMinutes int64) (*service.ActivityResult, error) {
	s.activities = append(s.activities, activityCall{userID: userID, source: source, studyMinutes: studyMinutes})
	return &service.ActivityResult{}, nil
}

func (s *stubGamificationService) SyncStats(stats *model.UserStats) error {
	s.synced = stats
	return nil
}

func (s *stubGamificationService) GetLeaderboard(limit int) ([]repository.LeaderboardEntry, error) {
	return nil, nil
}

func (s *stubGamificationService) GetXPHistory(userID string, limit int) ([]model.XPLog, error) {
	return []model.XPLog{}, nil
}

type stubBadgeRepo struct {
	badges  map[string]*model.Badge
	updated map[string]string
}

func newStubBadgeRepo(names ...string) *stubBadgeRepo {
	r := &stubBadgeRepo{badges: map[string]*model.Badge{}, updated: map[string]string{}}
	for _, name := range names {
		r.badges[name] = &model.Badge{Name: name}
	}
	return r
}

func (r *stubBadgeRepo) FindByName(name string) (*model.Badge, error) {
	b, ok := r.badges[name]
	if !ok {
		return nil, repository.ErrBadgeNotFound
	}
	return b, nil
}

func (r *stubBadgeRepo) FindAll() ([]model.Badge, error) {
	var out []model.Badge
	for _, b := range r.badges {
		out = append(out, *b)
	}
	return out, nil
}

func (r *stubBadgeRepo) UpdateIconURL(name, url string) (*model.Badge, error) {
	b, err := r.FindByName(name)
	if err != nil {
		return nil, err
	}
	r.updated[name] = url
	b.IconURL = &url
	return b, nil
}

func (r *stubBadgeRepo) SeedCatalog(defs []gamification.BadgeDefinition) error { return nil }

type stubUploader struct {
	filenames []string
	size      int
}

func (u *stubUploader) UploadBadgeIcon(data []byte, filename string) (string, error) {
	u.filenames = append(u.filenames, filename)
	u.size = len(data)
	return "https://cdn.example.com/badges/" + filename, nil
}

type testServer struct {
	router        *gin.Engine
	notifications *stubNotificationService
	gamification  *stubGamificationService
	badges        *stubBadgeRepo
}

func newTestServer(t *testing.T, uploader util.IconUploader) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		router:        gin.New(),
		notifications: &stubNotificationService{pref: &model.NotificationPreference{}},
		gamification:  &stubGamificationService{},
		badges:        newStubBadgeRepo("Primer Paso"),
	}
	hub := realtime.NewHub()
	t.Cleanup(hub.Stop)

	registerRoutes(
		ts.router,
		hub,
		NewAuthHandler(testSecret),
		NewNotificationHandler(ts.notifications),
		NewGamificationHandler(ts.gamification, ts.badges, uploader),
	)
	return ts
}

func token(t *testing.T, userID, userType string) string {
	t.Helper()
	tok, err := util.GenerateToken(userID, userID+"@crolars.test", userType, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}
