package gamification

// Stats is the per-user activity snapshot achievements are evaluated against
type Stats struct {
	CoursesCompleted    int64
	ChallengesCompleted int64
	ForumAnswers        int64
	StreakDays          int
	FriendCount         int64
	NotesUploaded       int64
	EventsAttended      int64
	ClubsJoined         int64
	StudyMinutes        int64
}

type AchievementReward struct {
	XP      int64  `json:"xp"`
	Crolars int64  `json:"crolars"`
	Badge   string `json:"badge,omitempty"`
}

type AchievementDefinition struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Reward      AchievementReward `json:"reward"`
}

// Achievement ids
const (
	AchievementFirstCourse     = "first_course"
	AchievementCourseCollector = "course_collector"
	AchievementChallenger      = "challenger"
	AchievementHelpingHand     = "helping_hand"
	AchievementWeekStreak      = "week_streak"
	AchievementMonthStreak     = "month_streak"
	AchievementSocialButterfly = "social_butterfly"
	AchievementNoteTaker       = "note_taker"
	AchievementEventGoer       = "event_goer"
	AchievementClubMember      = "club_member"
	AchievementStudyMarathon   = "study_marathon"
)

// Badge names handed out by achievements
const (
	BadgeFirstCourse   = "Primer Curso"
	BadgeHelpingHand   = "Mano Amiga"
	BadgeOnFire        = "En Llamas"
	BadgeUnstoppable   = "Imparable"
	BadgeSocial        = "Mariposa Social"
	BadgeStudyMarathon = "Maratonista del Estudio"
)

var achievements = []AchievementDefinition{
	{ID: AchievementFirstCourse, Name: "Primer Curso", Description: "Completa tu primer curso",
		Reward: AchievementReward{XP: XPAchievementUnlock, Crolars: 50, Badge: BadgeFirstCourse}},
	{ID: AchievementCourseCollector, Name: "Coleccionista", Description: "Completa 10 cursos",
		Reward: AchievementReward{XP: 200, Crolars: 250}},
	{ID: AchievementChallenger, Name: "Retador", Description: "Completa 5 desafíos",
		Reward: AchievementReward{XP: 100, Crolars: 100}},
	{ID: AchievementHelpingHand, Name: "Mano Amiga", Description: "Responde 10 preguntas en el foro",
		Reward: AchievementReward{XP: 100, Crolars: 100, Badge: BadgeHelpingHand}},
	{ID: AchievementWeekStreak, Name: "En Llamas", Description: "Mantén una racha de 7 días",
		Reward: AchievementReward{XP: XPAchievementUnlock, Crolars: 75, Badge: BadgeOnFire}},
	{ID: AchievementMonthStreak, Name: "Imparable", Description: "Mantén una racha de 30 días",
		Reward: AchievementReward{XP: 300, Crolars: 500, Badge: BadgeUnstoppable}},
	{ID: AchievementSocialButterfly, Name: "Mariposa Social", Description: "Ten 20 amigos",
		Reward: AchievementReward{XP: 100, Crolars: 100, Badge: BadgeSocial}},
	{ID: AchievementNoteTaker, Name: "Tomador de Apuntes", Description: "Sube 5 apuntes",
		Reward: AchievementReward{XP: XPAchievementUnlock, Crolars: 50}},
	{ID: AchievementEventGoer, Name: "Asistente Fiel", Description: "Asiste a 5 eventos",
		Reward: AchievementReward{XP: 100, Crolars: 75}},
	{ID: AchievementClubMember, Name: "Miembro Activo", Description: "Únete a 3 clubes",
		Reward: AchievementReward{XP: XPAchievementUnlock, Crolars: 50}},
	{ID: AchievementStudyMarathon, Name: "Maratonista", Description: "Acumula 600 minutos de estudio",
		Reward: AchievementReward{XP: 150, Crolars: 150, Badge: BadgeStudyMarathon}},
}

// Achievements returns the achievement catalog
func Achievements() []AchievementDefinition {
	out := make([]AchievementDefinition, len(achievements))
	copy(out, achievements)
	return out
}

// AchievementByID looks up a catalog entry
func AchievementByID(id string) (AchievementDefinition, bool) {
	for _, a := range achievements {
		if a.ID == id {
			return a, true
		}
	}
	return AchievementDefinition{}, false
}

// Evaluate runs the requirement predicate of achievement id. Unknown ids
// never unlock.
func Evaluate(id string, s Stats) bool {
	switch id {
	case AchievementFirstCourse:
		return s.CoursesCompleted >= 1
	case AchievementCourseCollector:
		return s.CoursesCompleted >= 10
	case AchievementChallenger:
		return s.ChallengesCompleted >= 5
	case AchievementHelpingHand:
		return s.ForumAnswers >= 10
	case AchievementWeekStreak:
		return s.StreakDays >= 7
	case AchievementMonthStreak:
		return s.StreakDays >= 30
	case AchievementSocialButterfly:
		return s.FriendCount >= 20
	case AchievementNoteTaker:
		return s.NotesUploaded >= 5
	case AchievementEventGoer:
		return s.EventsAttended >= 5
	case AchievementClubMember:
		return s.ClubsJoined >= 3
	case AchievementStudyMarathon:
		return s.StudyMinutes >= 600
	}
	return false
}
