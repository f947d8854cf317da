package store

import (
	"context"
	"time"

	"github.com/arnold/goalsync-api/internal/docstore"
	"github.com/arnold/goalsync-api/internal/models"
)

const (
	activityCollection = "activity"
	streakCollection   = "streaks"

	dateLayout     = "2006-01-02"
	historyMaxDays = 30
)

// Tracker maintains the per-owner daily activity ledger and streak record.
// Writes are read-modify-write with last-write-wins; truly concurrent
// same-day check-ins can double-increment in a race, which is accepted.
type Tracker struct {
	docs docstore.Store
	now  func() time.Time
}

func NewTracker(docs docstore.Store) *Tracker {
	return &Tracker{docs: docs, now: time.Now}
}

// LogActivity appends an activity type to today's record for the owner and
// unions the touched goal ids. Creates the record if absent.
func (t *Tracker) LogActivity(ctx context.Context, ownerID, activityType string, goalIDs []string) error {
	date := t.now().Format(dateLayout)
	id := ownerID + "_" + date

	rec := models.ActivityRecord{OwnerID: ownerID, Date: date}
	doc, err := t.docs.Get(ctx, activityCollection, id)
	if err == nil {
		if err := docstore.DataTo(doc, &rec); err != nil {
			return err
		}
	} else if err != docstore.ErrNotFound {
		return err
	}

	rec.Types = append(rec.Types, activityType)
	rec.GoalIDs = unionStrings(rec.GoalIDs, goalIDs)
	rec.UpdatedAt = t.now().UTC()

	data, err := docstore.ToMap(rec)
	if err != nil {
		return err
	}
	return t.docs.Set(ctx, activityCollection, id, data)
}

// CheckIn counts today toward the owner's streak. At most one streak
// increment per calendar day: a second call on the same day only refreshes
// today's history entry.
func (t *Tracker) CheckIn(ctx context.Context, ownerID string, goalIDs []string) (*models.StreakRecord, error) {
	today := t.now().Format(dateLayout)
	yesterday := t.now().AddDate(0, 0, -1).Format(dateLayout)

	rec := models.StreakRecord{OwnerID: ownerID}
	doc, err := t.docs.Get(ctx, streakCollection, ownerID)
	if err == nil {
		if err := docstore.DataTo(doc, &rec); err != nil {
			return nil, err
		}
	} else if err != docstore.ErrNotFound {
		return nil, err
	}

	switch rec.LastActiveDate {
	case today:
		// Already counted today.
	case yesterday:
		rec.CurrentStreak++
	default:
		// First check-in ever, or a gap of 2+ days. Resets to 1, never 0.
		rec.CurrentStreak = 1
	}
	if rec.CurrentStreak > rec.LongestStreak {
		rec.LongestStreak = rec.CurrentStreak
	}
	rec.LastActiveDate = today

	entry := models.DayActivity{Date: today, CheckIns: 1, GoalIDs: goalIDs}
	history := make([]models.DayActivity, 0, len(rec.History)+1)
	for _, day := range rec.History {
		if day.Date == today {
			entry.CheckIns = day.CheckIns + 1
			entry.GoalIDs = unionStrings(day.GoalIDs, goalIDs)
			continue
		}
		history = append(history, day)
	}
	history = append(history, entry)
	if len(history) > historyMaxDays {
		history = history[len(history)-historyMaxDays:]
	}
	rec.History = history
	rec.UpdatedAt = t.now().UTC()

	data, err := docstore.ToMap(rec)
	if err != nil {
		return nil, err
	}
	if err := t.docs.Set(ctx, streakCollection, ownerID, data); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetStreak returns the owner's streak record, or nil if they have never
// checked in.
func (t *Tracker) GetStreak(ctx context.Context, ownerID string) (*models.StreakRecord, error) {
	doc, err := t.docs.Get(ctx, streakCollection, ownerID)
	if err == docstore.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec models.StreakRecord
	if err := docstore.DataTo(doc, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func unionStrings(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	out := existing
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
