// Package budget computes the rolling daily nutrition budget from the meal history.
package budget

import (
	"strings"
	"time"

	"nutriguide"
)

// DefaultCalorieGoal applies when the user has not set a calorie goal.
const DefaultCalorieGoal = 2000

// DateLayout is the local calendar date prefix of a meal timestamp.
const DateLayout = "2006-01-02"

// Progress is the accumulated intake for the active day against the goals.
type Progress struct {
	Date           string  `json:"date"`
	Current        float64 `json:"current"`
	Goal           float64 `json:"goal"`
	CurrentProtein float64 `json:"current_protein"`
	ProteinGoal    float64 `json:"protein_goal,omitempty"`
	Meals          int     `json:"meals"`
}

// Recompute sums the history entries whose timestamp falls on today's local date.
// It never mutates previous results: callers recompute after every write.
func Recompute(history []nutriguide.LoggedMeal, goals nutriguide.Goals, today time.Time) Progress {
	date := today.Format(DateLayout)

	p := Progress{
		Date:        date,
		Goal:        goals.Calories,
		ProteinGoal: goals.Protein,
	}
	if p.Goal <= 0 {
		p.Goal = DefaultCalorieGoal
	}
	if p.ProteinGoal < 0 {
		p.ProteinGoal = 0
	}

	for _, m := range history {
		if !strings.HasPrefix(m.Timestamp, date) {
			continue
		}
		p.Current += m.TotalCalories
		p.CurrentProtein += m.TotalProtein
		p.Meals++
	}

	return p
}

// Percent is the calorie completion for display, clamped to 100.
func (p Progress) Percent() float64 {
	return clampedPercent(p.Current, p.Goal)
}

// ProteinPercent is the protein completion for display, clamped to 100. It is zero when no protein goal is set.
func (p Progress) ProteinPercent() float64 {
	return clampedPercent(p.CurrentProtein, p.ProteinGoal)
}

// Remaining is the calories left before the goal is reached; negative once exceeded.
func (p Progress) Remaining() float64 {
	return p.Goal - p.Current
}

func clampedPercent(current, goal float64) float64 {
	if goal <= 0 {
		return 0
	}
	pct := current / goal * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
