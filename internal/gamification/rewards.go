package gamification

import "fmt"

// Source tags what an XP grant was awarded for
type Source string

const (
	SourceCourseComplete  Source = "course_complete"
	SourceCourseLesson    Source = "course_lesson"
	SourceChallenge       Source = "challenge"
	SourceForumQuestion   Source = "forum_question"
	SourceForumAnswer     Source = "forum_answer"
	SourceForumBestAnswer Source = "forum_best_answer"
	SourceNoteUpload      Source = "note_upload"
	SourceNoteShare       Source = "note_share"
	SourceEventAttend     Source = "event_attend"
	SourceClubJoin        Source = "club_join"
	SourceClubPost        Source = "club_post"
	SourceStreak          Source = "streak"
	SourceAchievement     Source = "achievement"
	SourceBadge           Source = "badge"
)

// XP reward constants
const (
	XPLessonComplete    int64 = 25
	XPCourseComplete    int64 = 200
	XPChallengeComplete int64 = 100
	XPForumQuestion     int64 = 15
	XPForumAnswer       int64 = 20
	XPForumBestAnswer   int64 = 50
	XPNoteUpload        int64 = 10
	XPNoteShared        int64 = 5
	XPEventAttend       int64 = 30
	XPClubJoin          int64 = 20
	XPClubPost          int64 = 10
	XPDailyStreak       int64 = 15
	XPWeeklyStreak      int64 = 100
	XPMonthlyStreak     int64 = 500
	XPAchievementUnlock int64 = 50
	XPBadgeEarn         int64 = 25
)

var sourceXP = map[Source]int64{
	SourceCourseComplete:  XPCourseComplete,
	SourceCourseLesson:    XPLessonComplete,
	SourceChallenge:       XPChallengeComplete,
	SourceForumQuestion:   XPForumQuestion,
	SourceForumAnswer:     XPForumAnswer,
	SourceForumBestAnswer: XPForumBestAnswer,
	SourceNoteUpload:      XPNoteUpload,
	SourceNoteShare:       XPNoteShared,
	SourceEventAttend:     XPEventAttend,
	SourceClubJoin:        XPClubJoin,
	SourceClubPost:        XPClubPost,
	SourceStreak:          XPDailyStreak,
	SourceAchievement:     XPAchievementUnlock,
	SourceBadge:           XPBadgeEarn,
}

var sourceLabels = map[Source]string{
	SourceCourseComplete:  "completar un curso",
	SourceCourseLesson:    "completar una lección",
	SourceChallenge:       "completar un desafío",
	SourceForumQuestion:   "publicar una pregunta en el foro",
	SourceForumAnswer:     "responder en el foro",
	SourceForumBestAnswer: "obtener la mejor respuesta",
	SourceNoteUpload:      "subir apuntes",
	SourceNoteShare:       "compartir apuntes",
	SourceEventAttend:     "asistir a un evento",
	SourceClubJoin:        "unirte a un club",
	SourceClubPost:        "publicar en un club",
	SourceStreak:          "mantener tu racha",
	SourceAchievement:     "desbloquear un logro",
	SourceBadge:           "obtener una insignia",
}

// Valid reports whether s is one of the known sources
func (s Source) Valid() bool {
	_, ok := sourceXP[s]
	return ok
}

// IsActivity reports whether the source is a user action rather than an
// engine-internal reward
func (s Source) IsActivity() bool {
	switch s {
	case SourceStreak, SourceAchievement, SourceBadge:
		return false
	}
	return s.Valid()
}

// Label is the human readable reason shown in notifications
func (s Source) Label() string {
	if label, ok := sourceLabels[s]; ok {
		return label
	}
	return string(s)
}

// ParseSource validates a raw source tag
func ParseSource(raw string) (Source, error) {
	s := Source(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown xp source: %q", raw)
	}
	return s, nil
}

// XPFor returns the canonical XP amount for a source
func XPFor(s Source) int64 {
	return sourceXP[s]
}

// StreakXP picks the streak reward for the given streak length. Weekly
// multiples take precedence over monthly ones.
func StreakXP(current int) int64 {
	if current > 0 && current%7 == 0 {
		return XPWeeklyStreak
	} else if current > 0 && current%30 == 0 {
		return XPMonthlyStreak
	}
	return XPDailyStreak
}
