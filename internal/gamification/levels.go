package gamification

import (
	"fmt"
	"math"
)

// Unbounded marks the open upper end of the terminal level
const Unbounded int64 = math.MaxInt64

type LevelRewards struct {
	Crolars int64    `json:"crolars"`
	Badges  []string `json:"badges,omitempty"`
}

// Level covers the half-open XP range [MinXP, MaxXP)
type Level struct {
	Level   int          `json:"level"`
	Name    string       `json:"name"`
	MinXP   int64        `json:"min_xp"`
	MaxXP   int64        `json:"max_xp"`
	Rewards LevelRewards `json:"rewards"`
}

// Contains reports whether xp falls inside the level range
func (l Level) Contains(xp int64) bool {
	return xp >= l.MinXP && xp < l.MaxXP
}

// IsTerminal reports whether there is no level above this one
func (l Level) IsTerminal() bool {
	return l.MaxXP == Unbounded
}

// Badge names handed out by the level table
const (
	BadgeFirstStep        = "Primer Paso"
	BadgeDedicatedStudent = "Estudiante Dedicado"
	BadgeKnowledgeMaster  = "Maestro del Saber"
	BadgeCrolarsLegend    = "Leyenda Crolars"
)

var levels = []Level{
	{Level: 1, Name: "Novato", MinXP: 0, MaxXP: 100},
	{Level: 2, Name: "Aprendiz", MinXP: 100, MaxXP: 250, Rewards: LevelRewards{Crolars: 75}},
	{Level: 3, Name: "Estudiante", MinXP: 250, MaxXP: 500, Rewards: LevelRewards{Crolars: 100, Badges: []string{BadgeFirstStep}}},
	{Level: 4, Name: "Dedicado", MinXP: 500, MaxXP: 1000, Rewards: LevelRewards{Crolars: 150}},
	{Level: 5, Name: "Avanzado", MinXP: 1000, MaxXP: 2000, Rewards: LevelRewards{Crolars: 250, Badges: []string{BadgeDedicatedStudent}}},
	{Level: 6, Name: "Experto", MinXP: 2000, MaxXP: 3500, Rewards: LevelRewards{Crolars: 400}},
	{Level: 7, Name: "Maestro", MinXP: 3500, MaxXP: 5500, Rewards: LevelRewards{Crolars: 600, Badges: []string{BadgeKnowledgeMaster}}},
	{Level: 8, Name: "Sabio", MinXP: 5500, MaxXP: 8000, Rewards: LevelRewards{Crolars: 800}},
	{Level: 9, Name: "Erudito", MinXP: 8000, MaxXP: 12000, Rewards: LevelRewards{Crolars: 1000}},
	{Level: 10, Name: "Leyenda", MinXP: 12000, MaxXP: Unbounded, Rewards: LevelRewards{Crolars: 2000, Badges: []string{BadgeCrolarsLegend}}},
}

// Levels returns a copy of the level table, lowest level first
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// ResolveLevel returns the level whose range contains totalXP.
// Negative input falls back to the lowest level.
func ResolveLevel(totalXP int64) Level {
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i].MinXP <= totalXP {
			return levels[i]
		}
	}
	return levels[0]
}

// LevelByNumber looks up a level by its number
func LevelByNumber(n int) (Level, bool) {
	for _, l := range levels {
		if l.Level == n {
			return l, true
		}
	}
	return Level{}, false
}

// XPToNextLevel returns how much XP is still needed for the next level and
// the width of the current level. Both are zero on the terminal level.
func XPToNextLevel(currentXP int64) (needed int64, total int64) {
	current := ResolveLevel(currentXP)
	next, ok := LevelByNumber(current.Level + 1)
	if !ok {
		return 0, 0
	}
	return next.MinXP - currentXP, next.MinXP - current.MinXP
}

// ValidateTable checks that ranges are contiguous, non-overlapping and that
// only the last level is unbounded
func ValidateTable(table []Level) error {
	if len(table) == 0 {
		return fmt.Errorf("level table is empty")
	}
	if table[0].MinXP != 0 {
		return fmt.Errorf("level %d must start at 0 XP, starts at %d", table[0].Level, table[0].MinXP)
	}
	for i, l := range table {
		if l.MinXP >= l.MaxXP {
			return fmt.Errorf("level %d has empty range [%d,%d)", l.Level, l.MinXP, l.MaxXP)
		}
		if i == len(table)-1 {
			if l.MaxXP != Unbounded {
				return fmt.Errorf("terminal level %d must be unbounded", l.Level)
			}
			continue
		}
		next := table[i+1]
		if next.Level <= l.Level {
			return fmt.Errorf("level numbers must increase: %d then %d", l.Level, next.Level)
		}
		if l.MaxXP != next.MinXP {
			return fmt.Errorf("gap or overlap between level %d and %d", l.Level, next.Level)
		}
	}
	return nil
}
