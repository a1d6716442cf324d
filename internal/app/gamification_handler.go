package app

import (
	"errors"
	"net/http"
	"strconv"

	"crolars/internal/gamification"
	"crolars/internal/model"
	"crolars/internal/repository"
	"crolars/internal/service"
	"crolars/internal/util"

	"github.com/gin-gonic/gin"
)

type GamificationHandler struct {
	gamificationService service.GamificationService
	badgeRepo           repository.BadgeRepository
	iconUploader        util.IconUploader
}

// NewGamificationHandler builds the handler. iconUploader may be nil when
// Cloudinary is not configured; icon uploads then answer 503.
func NewGamificationHandler(
	gamificationService service.GamificationService,
	badgeRepo repository.BadgeRepository,
	iconUploader util.IconUploader,
) *GamificationHandler {
	return &GamificationHandler{
		gamificationService: gamificationService,
		badgeRepo:           badgeRepo,
		iconUploader:        iconUploader,
	}
}

type recordActivityRequest struct {
	Source       string `json:"source" binding:"required"`
	SourceID     string `json:"source_id" binding:"max=100"`
	Description  string `json:"description" binding:"max=500"`
	StudyMinutes int64  `json:"study_minutes" binding:"min=0"`
}

type grantXPRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,min=1"`
	Source      string `json:"source" binding:"required"`
	SourceID    string `json:"source_id" binding:"max=100"`
	Description string `json:"description" binding:"max=500"`
}

type grantBadgeRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Badge  string `json:"badge" binding:"required"`
}

type syncStatsRequest struct {
	UserID              string `json:"user_id" binding:"required"`
	CoursesCompleted    int64  `json:"courses_completed" binding:"min=0"`
	ChallengesCompleted int64  `json:"challenges_completed" binding:"min=0"`
	ForumAnswers        int64  `json:"forum_answers" binding:"min=0"`
	FriendCount         int64  `json:"friend_count" binding:"min=0"`
	NotesUploaded       int64  `json:"notes_uploaded" binding:"min=0"`
	EventsAttended      int64  `json:"events_attended" binding:"min=0"`
	ClubsJoined         int64  `json:"clubs_joined" binding:"min=0"`
	StudyMinutes        int64  `json:"study_minutes" binding:"min=0"`
}

func (h *GamificationHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSource), errors.Is(err, service.ErrInvalidXPAmount):
		util.BadRequest(c, err.Error())
	case errors.Is(err, repository.ErrVersionConflict):
		util.ErrorResponse(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, repository.ErrBadgeNotFound):
		util.NotFound(c, "Badge not found")
	default:
		util.InternalServerError(c, err.Error())
	}
}

// GetMe returns level, progress, streak and rewards of the current user
// GET /api/v1/gamification/me
func (h *GamificationHandler) GetMe(c *gin.Context) {
	summary, err := h.gamificationService.GetSummary(c.GetString("userID"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Gamification summary retrieved successfully", summary)
}

// GET /api/v1/gamification/levels
func (h *GamificationHandler) GetLevels(c *gin.Context) {
	util.SuccessResponse(c, http.StatusOK, "Levels retrieved successfully", gamification.Levels())
}

// GET /api/v1/gamification/badges
func (h *GamificationHandler) GetBadges(c *gin.Context) {
	badges, err := h.badgeRepo.FindAll()
	if err != nil {
		h.respondError(c, err)
		return
	}
	if badges == nil {
		badges = []model.Badge{}
	}

	util.SuccessResponse(c, http.StatusOK, "Badges retrieved successfully", badges)
}

// GET /api/v1/gamification/leaderboard?limit=
func (h *GamificationHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	entries, err := h.gamificationService.GetLeaderboard(limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []repository.LeaderboardEntry{}
	}

	util.SuccessResponse(c, http.StatusOK, "Leaderboard retrieved successfully", entries)
}

// GET /api/v1/gamification/history?limit=
func (h *GamificationHandler) GetXPHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	history, err := h.gamificationService.GetXPHistory(c.GetString("userID"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "XP history retrieved successfully", history)
}

// RecordActivity handles a user action: counters, XP, streak and achievements
// POST /api/v1/gamification/activities
func (h *GamificationHandler) RecordActivity(c *gin.Context) {
	var req recordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, validationMessage(err))
		return
	}

	source, err := gamification.ParseSource(req.Source)
	if err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	result, err := h.gamificationService.RecordActivity(c.GetString("userID"), source, req.SourceID, req.Description, req.StudyMinutes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Activity recorded", result)
}

// POST /api/v1/gamification/streak
func (h *GamificationHandler) UpdateStreak(c *gin.Context) {
	result, err := h.gamificationService.UpdateDailyStreak(c.GetString("userID"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Streak updated", result)
}

// POST /api/v1/gamification/achievements/check
func (h *GamificationHandler) CheckAchievements(c *gin.Context) {
	unlocked, err := h.gamificationService.CheckAchievements(c.GetString("userID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if unlocked == nil {
		unlocked = []model.Achievement{}
	}

	util.SuccessResponse(c, http.StatusOK, "Achievements checked", unlocked)
}

// GrantXP lets an owner award arbitrary XP
// POST /api/v1/admin/gamification/xp
func (h *GamificationHandler) GrantXP(c *gin.Context) {
	var req grantXPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, validationMessage(err))
		return
	}

	source, err := gamification.ParseSource(req.Source)
	if err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	result, err := h.gamificationService.GrantXP(req.UserID, req.Amount, source, req.SourceID, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "XP granted", result)
}

// GrantBadge awards a catalog badge by name
// POST /api/v1/admin/gamification/badges
func (h *GamificationHandler) GrantBadge(c *gin.Context) {
	var req grantBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, validationMessage(err))
		return
	}

	if _, err := h.badgeRepo.FindByName(req.Badge); err != nil {
		h.respondError(c, err)
		return
	}

	badge, err := h.gamificationService.GrantBadge(req.UserID, req.Badge)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if badge == nil {
		util.SuccessResponse(c, http.StatusOK, "User already holds this badge", nil)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Badge granted", badge)
}

// PUT /api/v1/admin/gamification/stats
func (h *GamificationHandler) SyncStats(c *gin.Context) {
	var req syncStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, validationMessage(err))
		return
	}

	stats := &model.UserStats{
		UserID:              req.UserID,
		CoursesCompleted:    req.CoursesCompleted,
		ChallengesCompleted: req.ChallengesCompleted,
		ForumAnswers:        req.ForumAnswers,
		FriendCount:         req.FriendCount,
		NotesUploaded:       req.NotesUploaded,
		EventsAttended:      req.EventsAttended,
		ClubsJoined:         req.ClubsJoined,
		StudyMinutes:        req.StudyMinutes,
	}
	if err := h.gamificationService.SyncStats(stats); err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Stats synchronized", stats)
}

// UploadBadgeIcon stores new artwork for a catalog badge
// POST /api/v1/admin/badges/:name/icon
func (h *GamificationHandler) UploadBadgeIcon(c *gin.Context) {
	if h.iconUploader == nil {
		util.ErrorResponse(c, http.StatusServiceUnavailable, "Icon storage is not configured", nil)
		return
	}

	name := c.Param("name")
	if _, err := h.badgeRepo.FindByName(name); err != nil {
		h.respondError(c, err)
		return
	}

	fileHeader, err := c.FormFile("icon")
	if err != nil {
		util.BadRequest(c, "icon file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.BadRequest(c, "Failed to open uploaded file")
		return
	}
	defer file.Close()

	data, err := util.ReadAllLimited(file)
	if err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	url, err := h.iconUploader.UploadBadgeIcon(data, fileHeader.Filename)
	if err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	badge, err := h.badgeRepo.UpdateIconURL(name, url)
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Badge icon updated", badge)
}
