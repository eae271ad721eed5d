package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"stone-progression-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// XPWeights define relative values (tunable via config/env later)
type XPWeights struct {
	TaskBaseXP        int64 `default:"10"`
	TaskPerPomodoroXP int64 `default:"5"`
	PomodoroXP        int64 `default:"5"`
	DeepWorkBonusXP   int64 `default:"5"`
	ReflectionXP      int64 `default:"5"`
	QuizXP            int64 `default:"5"`
	FlashcardXP       int64 `default:"2"`
}

var DefaultXPWeights = XPWeights{
	TaskBaseXP:        10,
	TaskPerPomodoroXP: 5,
	PomodoroXP:        5,
	DeepWorkBonusXP:   5,
	ReflectionXP:      5,
	QuizXP:            5,
	FlashcardXP:       2,
}

// ProgressionEngine owns the three-plus-one event entry points: it updates
// the daily snapshot and profile aggregate transactionally, contributes
// shards, and evaluates the rules bound to the trigger against the freshly
// committed state.
type ProgressionEngine struct {
	DB     *gorm.DB
	Shards *ShardService
	Awards *AwardService
}

func NewProgressionEngine(db *gorm.DB, shards *ShardService, awards *AwardService) *ProgressionEngine {
	return &ProgressionEngine{DB: db, Shards: shards, Awards: awards}
}

// snapshot counter columns that accumulate via ON CONFLICT additive updates
var snapshotCounterCols = []string{
	"tasks_completed",
	"high_priority_completed",
	"deep_work_tasks",
	"deep_work_pomodoros",
	"learning_tasks",
	"pomodoro_count",
	"focus_minutes",
	"reflections_written",
	"quiz_attempts",
	"quiz_score_total",
	"flashcards_reviewed",
}

// upsertSnapshot adds the delta carried by `inc` to the user's snapshot row
// for the given day. The increment happens inside the database
// (col = col + excluded.col), so concurrent events accumulate instead of
// clobbering each other.
func (e *ProgressionEngine) upsertSnapshot(tx *gorm.DB, inc *models.DailySnapshot) error {
	assignments := make(clause.Set, 0, len(snapshotCounterCols)+1)
	for _, col := range snapshotCounterCols {
		assignments = append(assignments, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr("daily_snapshots." + col + " + excluded." + col),
		})
	}
	assignments = append(assignments, clause.Assignment{
		Column: clause.Column{Name: "updated_at"},
		Value:  gorm.Expr("now()"),
	})

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "date"}},
		DoUpdates: assignments,
	}).Create(inc).Error
}

// profile lifetime counters that accumulate the same way
var profileCounterCols = []string{
	"xp",
	"total_tasks_completed",
	"total_pomodoros",
	"total_deep_work_blocks",
}

func (e *ProgressionEngine) upsertProfile(tx *gorm.DB, inc *models.UserProfile) error {
	assignments := make(clause.Set, 0, len(profileCounterCols)+2)
	for _, col := range profileCounterCols {
		assignments = append(assignments, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr("user_profiles." + col + " + excluded." + col),
		})
	}
	assignments = append(assignments,
		clause.Assignment{Column: clause.Column{Name: "last_activity_at"}, Value: gorm.Expr("excluded.last_activity_at")},
		clause.Assignment{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("now()")},
	)

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoUpdates: assignments,
	}).Create(inc).Error
}

// OnTaskCompleted handles one completed task: counters, XP, tag-driven
// shard contributions, the first-task grant, then task-bound rules.
// Returns the slugs of any freshly awarded stones (usually empty).
func (e *ProgressionEngine) OnTaskCompleted(externalUserID, taskID string) ([]string, error) {
	var task models.Task
	if err := e.DB.Where("id = ? AND external_user_id = ?", taskID, externalUserID).First(&task).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("task %s not found for user %s", taskID, externalUserID)
		}
		return nil, err
	}

	now := time.Now().UTC()
	isDeep := task.HasTag("deep")
	isLearning := task.HasTag("learn")
	isHigh := task.Priority == models.PriorityHigh

	xp := DefaultXPWeights.TaskBaseXP + DefaultXPWeights.TaskPerPomodoroXP*int64(task.EstimatedPomodoros)
	if xp < 0 {
		xp = 0
	}

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		snap := models.DailySnapshot{
			ExternalUserID: externalUserID,
			Date:           models.SnapshotDate(now),
			TasksCompleted: 1,
		}
		if isHigh {
			snap.HighPriorityCompleted = 1
		}
		if isDeep {
			snap.DeepWorkTasks = 1
		}
		if isLearning {
			snap.LearningTasks = 1
		}
		if err := e.upsertSnapshot(tx, &snap); err != nil {
			return err
		}

		prof := models.UserProfile{
			ExternalUserID:      externalUserID,
			XP:                  xp,
			TotalTasksCompleted: 1,
			LastActivityAt:      &now,
		}
		return e.upsertProfile(tx, &prof)
	})
	if err != nil {
		return nil, err
	}

	var awarded []string
	related := []string{task.ID}

	// Tag-driven shard contributions (each its own atomic unit).
	type contribution struct {
		slug string
		when bool
	}
	for _, con := range []contribution{
		{models.StoneDeepFocus, isDeep},
		{models.StoneLearning, isLearning},
		{models.StoneCourage, isHigh},
	} {
		if !con.when {
			continue
		}
		res, err := e.Shards.AddShards(externalUserID, con.slug, 1, related)
		if err != nil {
			return nil, err
		}
		if res.Award != nil {
			e.Awards.AttachLore(res.Award)
			awarded = append(awarded, res.Award.StoneSlug)
		}
	}

	// First-ever-task special case: an empty ledger means this is the
	// user's first award — grant the starter stone unconditionally.
	total, err := e.Awards.CountAwards(externalUserID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		award, err := e.Awards.TryAward(externalUserID, models.StoneClarity, models.SourceFirstTime, related)
		if err != nil {
			return nil, err
		}
		if award != nil {
			awarded = append(awarded, award.StoneSlug)
		}
	}

	slugs, err := e.evaluateRules(TriggerTaskCompleted, externalUserID, now, &task, related)
	if err != nil {
		return nil, err
	}
	return append(awarded, slugs...), nil
}

// OnPomodoroCompleted handles one finished focus session.
func (e *ProgressionEngine) OnPomodoroCompleted(externalUserID, sessionID string) ([]string, error) {
	var session models.FocusSession
	if err := e.DB.Where("id = ? AND external_user_id = ?", sessionID, externalUserID).First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("focus session %s not found for user %s", sessionID, externalUserID)
		}
		return nil, err
	}

	now := time.Now().UTC()
	hasReflection := strings.TrimSpace(session.Reflection) != ""

	xp := DefaultXPWeights.PomodoroXP
	if session.IsDeepWork {
		xp += DefaultXPWeights.DeepWorkBonusXP
	}
	if hasReflection {
		xp += DefaultXPWeights.ReflectionXP
	}

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		snap := models.DailySnapshot{
			ExternalUserID: externalUserID,
			Date:           models.SnapshotDate(now),
			PomodoroCount:  1,
			FocusMinutes:   int64(session.DurationMinutes),
		}
		if session.IsDeepWork {
			snap.DeepWorkPomodoros = 1
		}
		if hasReflection {
			snap.ReflectionsWritten = 1
		}
		if err := e.upsertSnapshot(tx, &snap); err != nil {
			return err
		}

		prof := models.UserProfile{
			ExternalUserID: externalUserID,
			XP:             xp,
			TotalPomodoros: 1,
			LastActivityAt: &now,
		}
		if session.IsDeepWork {
			prof.TotalDeepWorkBlocks = 1
		}
		return e.upsertProfile(tx, &prof)
	})
	if err != nil {
		return nil, err
	}

	var awarded []string
	related := []string{session.ID}

	if session.IsDeepWork {
		res, err := e.Shards.AddShards(externalUserID, models.StoneDeepFocus, 1, related)
		if err != nil {
			return nil, err
		}
		if res.Award != nil {
			e.Awards.AttachLore(res.Award)
			awarded = append(awarded, res.Award.StoneSlug)
		}
	}
	if hasReflection {
		res, err := e.Shards.AddShards(externalUserID, models.StoneRecovery, 1, related)
		if err != nil {
			return nil, err
		}
		if res.Award != nil {
			e.Awards.AttachLore(res.Award)
			awarded = append(awarded, res.Award.StoneSlug)
		}
	}

	slugs, err := e.evaluateRules(TriggerPomodoroCompleted, externalUserID, now, nil, related)
	if err != nil {
		return nil, err
	}
	return append(awarded, slugs...), nil
}

// LearningActivityKind distinguishes the two learning producers.
type LearningActivityKind string

const (
	LearningQuizAttempt     LearningActivityKind = "quiz_attempt"
	LearningFlashcardReview LearningActivityKind = "flashcard_review"
)

// OnLearningActivity folds a quiz attempt or flashcard review into the
// snapshot, then evaluates learning-bound rules. For quiz attempts, score
// is the percentage result; for flashcard reviews, count is how many cards
// were flipped.
func (e *ProgressionEngine) OnLearningActivity(externalUserID string, kind LearningActivityKind, count int64, score int64) ([]string, error) {
	now := time.Now().UTC()

	snap := models.DailySnapshot{
		ExternalUserID: externalUserID,
		Date:           models.SnapshotDate(now),
	}
	var xp int64
	switch kind {
	case LearningQuizAttempt:
		snap.QuizAttempts = 1
		snap.QuizScoreTotal = score
		xp = DefaultXPWeights.QuizXP
	case LearningFlashcardReview:
		if count <= 0 {
			count = 1
		}
		snap.FlashcardsReviewed = count
		xp = DefaultXPWeights.FlashcardXP
	default:
		return nil, fmt.Errorf("unknown learning activity kind %q", kind)
	}

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		if err := e.upsertSnapshot(tx, &snap); err != nil {
			return err
		}
		prof := models.UserProfile{
			ExternalUserID: externalUserID,
			XP:             xp,
			LastActivityAt: &now,
		}
		return e.upsertProfile(tx, &prof)
	})
	if err != nil {
		return nil, err
	}

	var awarded []string
	res, err := e.Shards.AddShards(externalUserID, models.StoneLearning, 1, nil)
	if err != nil {
		return nil, err
	}
	if res.Award != nil {
		e.Awards.AttachLore(res.Award)
		awarded = append(awarded, res.Award.StoneSlug)
	}

	slugs, err := e.evaluateRules(TriggerLearningActivity, externalUserID, now, nil, nil)
	if err != nil {
		return nil, err
	}
	return append(awarded, slugs...), nil
}

// OnEndOfDay applies the streak rollup for one (user, date). Keyed by
// LastStreakRolloverDate, so redelivery of the same date is a no-op: the
// external scheduler is assumed to be at-least-once.
func (e *ProgressionEngine) OnEndOfDay(externalUserID string, date time.Time) ([]string, error) {
	day := models.SnapshotDate(date)
	applied := false

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		// Make sure a profile row exists, then serialize on it.
		seed := models.UserProfile{ExternalUserID: externalUserID}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return err
		}

		var prof models.UserProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_user_id = ?", externalUserID).
			First(&prof).Error; err != nil {
			return err
		}

		if prof.LastStreakRolloverDate != nil && !day.After(*prof.LastStreakRolloverDate) {
			// Rollover for this day (or a later one) already applied.
			return nil
		}

		var snap models.DailySnapshot
		hadActivity := false
		err := tx.Where("external_user_id = ? AND date = ?", externalUserID, day).First(&snap).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		if err == nil {
			hadActivity = snap.HadActivity()
		}

		if hadActivity {
			prof.CurrentDailyStreak++
		} else {
			prof.CurrentDailyStreak = 0
		}
		if prof.CurrentDailyStreak > prof.LongestDailyStreak {
			prof.LongestDailyStreak = prof.CurrentDailyStreak
		}
		// Invariant guard: current <= longest must hold here; anything else
		// is a programming error, clamp instead of corrupting further state.
		if prof.CurrentDailyStreak > prof.LongestDailyStreak {
			log.Printf("⚠️  Streak invariant violated for %s (current=%d > longest=%d), clamping",
				externalUserID, prof.CurrentDailyStreak, prof.LongestDailyStreak)
			prof.LongestDailyStreak = prof.CurrentDailyStreak
		}
		prof.LastStreakRolloverDate = &day

		applied = true
		return tx.Model(&models.UserProfile{}).
			Where("id = ?", prof.ID).
			Updates(map[string]interface{}{
				"current_daily_streak":      prof.CurrentDailyStreak,
				"longest_daily_streak":      prof.LongestDailyStreak,
				"last_streak_rollover_date": day,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return []string{}, nil
	}

	return e.evaluateRules(TriggerEndOfDay, externalUserID, day.AddDate(0, 0, 1), nil, nil)
}

// buildContext loads the post-update state every rule in a trigger sees.
func (e *ProgressionEngine) buildContext(externalUserID string, now time.Time, task *models.Task) (*RuleContext, error) {
	day := models.SnapshotDate(now)

	today := models.DailySnapshot{ExternalUserID: externalUserID, Date: day}
	err := e.DB.Where("external_user_id = ? AND date = ?", externalUserID, day).First(&today).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var window []models.DailySnapshot
	since := day.AddDate(0, 0, -6)
	if err := e.DB.Where("external_user_id = ? AND date BETWEEN ? AND ?", externalUserID, since, day).
		Order("date DESC").
		Find(&window).Error; err != nil {
		return nil, err
	}

	profile := models.UserProfile{ExternalUserID: externalUserID}
	err = e.DB.Where("external_user_id = ?", externalUserID).First(&profile).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	return &RuleContext{
		Today:   &today,
		Window:  window,
		Profile: &profile,
		Task:    task,
		Now:     now,
	}, nil
}

// evaluateRules runs every rule bound to the trigger against one shared
// context and issues awards for the passing ones.
func (e *ProgressionEngine) evaluateRules(trigger TriggerKind, externalUserID string, now time.Time, task *models.Task, relatedIDs []string) ([]string, error) {
	ctx, err := e.buildContext(externalUserID, now, task)
	if err != nil {
		return nil, err
	}

	awarded := []string{}
	for _, rule := range RulesFor(trigger) {
		if !rule.Predicate(ctx) {
			continue
		}
		award, err := e.Awards.TryAward(externalUserID, rule.StoneSlug, models.SourceRule, relatedIDs)
		if err != nil {
			return nil, err
		}
		if award != nil {
			awarded = append(awarded, award.StoneSlug)
		}
	}
	return awarded, nil
}
