package services

import (
	"time"

	"stone-progression-system/models"
)

// TriggerKind is the behavioral event category a rule is bound to.
// Each rule declares exactly one trigger.
type TriggerKind string

const (
	TriggerTaskCompleted     TriggerKind = "task_completed"
	TriggerPomodoroCompleted TriggerKind = "pomodoro_completed"
	TriggerEndOfDay          TriggerKind = "end_of_day"
	TriggerLearningActivity  TriggerKind = "learning_activity"
)

// RuleContext is the read-only state a predicate sees. The engine builds
// it once per trigger after all counter updates commit, so every rule in a
// trigger evaluates against the same snapshot.
type RuleContext struct {
	Today   *models.DailySnapshot  // never nil (zero-valued when no activity row exists)
	Window  []models.DailySnapshot // trailing 7 days inclusive of today; gaps mean no activity
	Profile *models.UserProfile    // never nil
	Task    *models.Task           // only for task-bound triggers
	Now     time.Time
}

// snapshotFor returns the window snapshot offset days before today
// (0 = today); nil when the user had no row that day.
func (ctx *RuleContext) snapshotFor(offset int) *models.DailySnapshot {
	want := models.SnapshotDate(ctx.Now).AddDate(0, 0, -offset)
	for i := range ctx.Window {
		if ctx.Window[i].Date.Equal(want) {
			return &ctx.Window[i]
		}
	}
	return nil
}

// DeepWorkPomodoroSum totals deep-work pomodoros over the trailing window.
func (ctx *RuleContext) DeepWorkPomodoroSum() int64 {
	var sum int64
	for i := range ctx.Window {
		sum += ctx.Window[i].DeepWorkPomodoros
	}
	return sum
}

// ReflectedEachOfLastDays reports whether a reflection was written on each
// of the last n consecutive days, today included.
func (ctx *RuleContext) ReflectedEachOfLastDays(n int) bool {
	for offset := 0; offset < n; offset++ {
		snap := ctx.snapshotFor(offset)
		if snap == nil || snap.ReflectionsWritten == 0 {
			return false
		}
	}
	return true
}

// Rule binds a pure predicate to a trigger and a stone. Predicates read
// the context and nothing else; award dedup lives in the ledger, not here.
type Rule struct {
	StoneSlug string
	Trigger   TriggerKind
	Predicate func(ctx *RuleContext) bool
}

var defaultRules = []Rule{
	{
		// Three tasks in a day earns the starter stone even for users who
		// missed the first-task grant path.
		StoneSlug: models.StoneClarity,
		Trigger:   TriggerTaskCompleted,
		Predicate: func(ctx *RuleContext) bool {
			return ctx.Today.TasksCompleted >= 3
		},
	},
	{
		StoneSlug: models.StoneCourage,
		Trigger:   TriggerTaskCompleted,
		Predicate: func(ctx *RuleContext) bool {
			if ctx.Task == nil {
				return false
			}
			ageDays := int(ctx.Now.Sub(ctx.Task.CreatedAt).Hours() / 24)
			return ctx.Task.Priority == models.PriorityHigh &&
				ctx.Task.EstimatedPomodoros >= 3 &&
				ageDays >= 3
		},
	},
	{
		StoneSlug: models.StoneDeepFocus,
		Trigger:   TriggerPomodoroCompleted,
		Predicate: func(ctx *RuleContext) bool {
			return ctx.DeepWorkPomodoroSum() >= 6
		},
	},
	{
		StoneSlug: models.StoneRecovery,
		Trigger:   TriggerPomodoroCompleted,
		Predicate: func(ctx *RuleContext) bool {
			return ctx.ReflectedEachOfLastDays(3)
		},
	},
	{
		StoneSlug: models.StoneLearning,
		Trigger:   TriggerLearningActivity,
		Predicate: func(ctx *RuleContext) bool {
			return ctx.Today.FlashcardsReviewed > 0 &&
				ctx.Today.QuizAttempts > 0 &&
				ctx.Today.AvgQuizScore() >= 70
		},
	},
	{
		// Streaks only move at rollover, so this binds to end_of_day.
		StoneSlug: models.StoneConsistency,
		Trigger:   TriggerEndOfDay,
		Predicate: func(ctx *RuleContext) bool {
			return ctx.Profile.CurrentDailyStreak >= 5
		},
	},
	{
		StoneSlug: models.StoneMastery,
		Trigger:   TriggerEndOfDay,
		Predicate: func(ctx *RuleContext) bool {
			return ctx.Profile.TotalDeepWorkBlocks >= 100 &&
				ctx.Profile.LongestDailyStreak >= 28
		},
	},
}

// ruleRegistry indexes the rule set by trigger kind.
var ruleRegistry = func() map[TriggerKind][]Rule {
	m := make(map[TriggerKind][]Rule)
	for _, r := range defaultRules {
		m[r.Trigger] = append(m[r.Trigger], r)
	}
	return m
}()

// RulesFor returns the rules bound to a trigger. Order within a trigger is
// unspecified; predicates are independent and side-effect-free.
func RulesFor(trigger TriggerKind) []Rule {
	return ruleRegistry[trigger]
}
