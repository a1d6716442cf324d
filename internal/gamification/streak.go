package gamification

import "time"

type StreakTransition int

const (
	// StreakUnchanged: activity already recorded for today
	StreakUnchanged StreakTransition = iota
	// StreakContinued: last activity was the previous calendar day
	StreakContinued
	// StreakReset: any other gap, including clock skew and first activity
	StreakReset
)

// CalendarDayGap counts calendar days between last and now in loc
func CalendarDayGap(last, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	ly, lm, ld := last.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	// noon UTC sidesteps DST-length days
	lastDay := time.Date(ly, lm, ld, 12, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 12, 0, 0, 0, time.UTC)
	return int(today.Sub(lastDay).Hours() / 24)
}

// ClassifyStreak decides the streak transition for an activity at now
func ClassifyStreak(lastActivity *time.Time, now time.Time, loc *time.Location) StreakTransition {
	if lastActivity == nil {
		return StreakReset
	}
	switch CalendarDayGap(*lastActivity, now, loc) {
	case 0:
		return StreakUnchanged
	case 1:
		return StreakContinued
	default:
		return StreakReset
	}
}
