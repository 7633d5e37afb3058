package skill

import (
	"fmt"
	"math"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE LEVELS
// ══════════════════════════════════════════════════════════════════════════════

// Level - уровень владения навыком по суммарному времени практики.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
	LevelExpert       Level = "Expert"
)

// levelThresholds - пороги уровней в минутах (по возрастанию).
var levelThresholds = []struct {
	Level   Level
	Minutes int
}{
	{LevelBeginner, 0},
	{LevelIntermediate, 300}, // 5 часов
	{LevelAdvanced, 1200},    // 20 часов
	{LevelExpert, 3000},      // 50 часов
}

// LevelFor возвращает уровень для суммарного времени практики.
func LevelFor(totalMinutes int) Level {
	for i := len(levelThresholds) - 1; i >= 0; i-- {
		if totalMinutes >= levelThresholds[i].Minutes {
			return levelThresholds[i].Level
		}
	}
	return LevelBeginner
}

// NextLevel возвращает следующий уровень и сколько минут до него осталось.
// Для Expert возвращает ("", 0).
func NextLevel(totalMinutes int) (Level, int) {
	for _, t := range levelThresholds {
		if totalMinutes < t.Minutes {
			return t.Level, t.Minutes - totalMinutes
		}
	}
	return "", 0
}

// ══════════════════════════════════════════════════════════════════════════════
// FORMATTING
// ══════════════════════════════════════════════════════════════════════════════

// FormatDuration форматирует минуты: "45 min", "2h", "1h 30m".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	rest := minutes % 60
	if rest == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, rest)
}

// ProgressPercent возвращает прогресс к цели в процентах (0..100).
// Цель задаётся в часах; без цели прогресс равен 0.
func ProgressPercent(totalMinutes int, targetHours *float64) float64 {
	if targetHours == nil || *targetHours <= 0 {
		return 0
	}
	return math.Min(float64(totalMinutes)/(*targetHours*60)*100, 100)
}

// Progress возвращает прогресс навыка к его цели.
func (s Skill) Progress() float64 {
	return ProgressPercent(s.TotalMinutes(), s.TargetPracticeTime)
}

// Level возвращает уровень навыка.
func (s Skill) Level() Level {
	return LevelFor(s.TotalMinutes())
}
