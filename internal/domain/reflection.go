package domain

import "github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"

// DayProgress is the readout of one daily log.
type DayProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Pending   int `json:"pending"`
	Reward    int `json:"reward_earned"`
}

// DailyProgress counts the day's assignments by outcome. Steps never
// assigned that day do not count, whatever their state.
func DailyProgress(dlog *entity.DailyLog) DayProgress {
	p := DayProgress{
		Total:     len(dlog.AssignedStepIDs),
		Completed: len(dlog.CompletedStepIDs),
		Skipped:   len(dlog.SkipReasons),
		Reward:    dlog.RewardEarned,
	}
	p.Pending = p.Total - p.Completed - p.Skipped
	if p.Pending < 0 {
		p.Pending = 0
	}
	return p
}

// WeekStats aggregates a window of daily logs. An active day is a day
// with at least one assignment.
type WeekStats struct {
	ActiveDays     int     `json:"active_days"`
	Assigned       int     `json:"assigned"`
	Completed      int     `json:"completed"`
	Reward         int     `json:"reward_earned"`
	AvgEnergy      float64 `json:"avg_energy"`
	CompletionRate float64 `json:"completion_rate"`
}

func ReflectWeek(logs []*entity.DailyLog) WeekStats {
	stats := WeekStats{}
	energySum, energyDays := 0, 0
	for _, dlog := range logs {
		if len(dlog.AssignedStepIDs) > 0 {
			stats.ActiveDays++
		}
		stats.Assigned += len(dlog.AssignedStepIDs)
		stats.Completed += len(dlog.CompletedStepIDs)
		stats.Reward += dlog.RewardEarned
		if dlog.EnergyLevel != nil {
			energySum += *dlog.EnergyLevel
			energyDays++
		}
	}
	if energyDays > 0 {
		stats.AvgEnergy = float64(energySum) / float64(energyDays)
	}
	if stats.Assigned > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Assigned) * 100
	}
	return stats
}

// MotivationFor picks the week's closing line by completion rate.
func MotivationFor(completionRate float64) string {
	switch {
	case completionRate >= 80:
		return "Strong week. The machine is running, keep feeding it."
	case completionRate >= 50:
		return "More than half the plan landed. Solid, push a bit further."
	case completionRate > 0:
		return "Slow week, but not a dead one. One finished step beats zero."
	default:
		return "Nothing closed this week. Pick one tiny step and take it today."
	}
}

func ShouldCelebrateStreak(streakDays int) bool {
	return streakDays >= 3
}
