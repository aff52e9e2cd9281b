package models

import "strings"

// Level is a label on the fixed ordinal 9-point quality scale.
type Level string

// Levels from worst to best.
const (
	LevelAbysmal      Level = "Abysmal"
	LevelHorrendous   Level = "Horrendous"
	LevelPoor         Level = "Poor"
	LevelBelowAverage Level = "Below Average"
	LevelAverage      Level = "Average"
	LevelGood         Level = "Good"
	LevelVeryGood     Level = "Very Good"
	LevelExcellent    Level = "Excellent"
	LevelOutstanding  Level = "Outstanding"
)

// Levels lists the scale in ascending order.
var Levels = []Level{
	LevelAbysmal,
	LevelHorrendous,
	LevelPoor,
	LevelBelowAverage,
	LevelAverage,
	LevelGood,
	LevelVeryGood,
	LevelExcellent,
	LevelOutstanding,
}

// ParseLevel returns the canonical label matching s case-insensitively.
func ParseLevel(s string) (Level, bool) {
	trimmed := strings.TrimSpace(s)
	for _, l := range Levels {
		if strings.EqualFold(string(l), trimmed) {
			return l, true
		}
	}

	return "", false
}
