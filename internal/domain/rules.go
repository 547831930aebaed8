// Package domain holds the pure calculation rules of the engine: reward
// sizing, streak arithmetic, tone and difficulty selection. No I/O, total
// over their inputs.
package domain

import (
	"math"
	"time"

	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

// EnergyFromTension maps a 0-10 tension rating to a 1-10 energy surrogate.
// Lower tension means higher energy. Unknown tension defaults to 5.
func EnergyFromTension(tension *int) int {
	if tension == nil {
		return 5
	}
	e := 10 - *tension/2
	if e < 2 {
		e = 2
	}
	if e > 8 {
		e = 8
	}
	return e
}

func SelectDifficulty(energy int) entity.Difficulty {
	if energy <= 3 {
		return entity.DifficultyEasy
	}
	if energy <= 6 {
		return entity.DifficultyMedium
	}
	return entity.DifficultyHard
}

var baseReward = map[entity.Difficulty]int{
	entity.DifficultyEasy:   10,
	entity.DifficultyMedium: 20,
	entity.DifficultyHard:   40,
}

// RewardFor sizes the reward by difficulty and duration: half below 10
// minutes, 1.5x above 30 minutes, never less than 3 points.
func RewardFor(difficulty entity.Difficulty, minutes int) int {
	reward, ok := baseReward[difficulty]
	if !ok {
		reward = baseReward[entity.DifficultyMedium]
	}
	if minutes < 10 {
		reward = reward / 2
	} else if minutes > 30 {
		reward = reward * 3 / 2
	}
	if reward < 3 {
		reward = 3
	}
	return reward
}

// ComputeStreak returns the new streak value and whether it changed.
// Same-day repeats leave the streak untouched; a yesterday continuation
// increments it; any gap resets to 1. Call at most once per logical day
// completion so the increment cannot double.
func ComputeStreak(streakDays int, lastDate *time.Time, today time.Time) (int, bool) {
	today = truncateToDate(today)
	if lastDate != nil {
		last := truncateToDate(*lastDate)
		if last.Equal(today) {
			return streakDays, false
		}
		if today.Sub(last) == 24*time.Hour {
			return streakDays + 1, true
		}
	}
	return 1, true
}

func ComputeLevel(totalPoints int) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Sqrt(float64(totalPoints) / 100))
}

// ShouldOfferDeepening decides whether to offer a longer follow-up step
// after the guided session. A tension drop always qualifies; unknown
// ratings default to offering; otherwise only a low final tension does.
func ShouldOfferDeepening(tensionBefore, tensionAfter *int) bool {
	if tensionBefore == nil || tensionAfter == nil {
		return true
	}
	if *tensionAfter < *tensionBefore {
		return true
	}
	return *tensionAfter <= 4
}

// MaxStepMinutes bounds step duration by energy. Micro steps are capped
// at 5 minutes regardless of energy.
func MaxStepMinutes(energy int, micro bool) int {
	if micro {
		return 5
	}
	switch {
	case energy <= 3:
		return 10
	case energy <= 5:
		return 20
	case energy <= 7:
		return 30
	default:
		return 45
	}
}

func StepsCountByEnergy(energy int) int {
	if energy <= 3 {
		return 2
	}
	if energy <= 6 {
		return 3
	}
	return 4
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
