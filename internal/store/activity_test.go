package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/goalsync-api/internal/docstore"
)

func newTestTracker(t *testing.T) (*Tracker, *time.Time) {
	t.Helper()
	tracker := NewTracker(docstore.NewMemoryStore())
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	clock := &now
	tracker.now = func() time.Time { return *clock }
	return tracker, clock
}

func TestCheckIn_FirstEver(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	rec, err := tracker.CheckIn(ctx, "owner-1", []string{"g1"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.LongestStreak)
	assert.Equal(t, "2024-03-10", rec.LastActiveDate)
	require.Len(t, rec.History, 1)
	assert.Equal(t, []string{"g1"}, rec.History[0].GoalIDs)
}

func TestCheckIn_SameDayIdempotent(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.CheckIn(ctx, "owner-1", []string{"g1"})
	require.NoError(t, err)
	rec, err := tracker.CheckIn(ctx, "owner-1", []string{"g2"})
	require.NoError(t, err)

	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.LongestStreak)
	// Same-day calls overwrite today's history entry, never duplicate it.
	require.Len(t, rec.History, 1)
	assert.Equal(t, 2, rec.History[0].CheckIns)
	assert.ElementsMatch(t, []string{"g1", "g2"}, rec.History[0].GoalIDs)
}

func TestCheckIn_ConsecutiveDays(t *testing.T) {
	tracker, clock := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.CheckIn(ctx, "owner-1", nil)
	require.NoError(t, err)

	*clock = clock.AddDate(0, 0, 1)
	rec, err := tracker.CheckIn(ctx, "owner-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
	assert.Len(t, rec.History, 2)
}

func TestCheckIn_GapResetsToOne(t *testing.T) {
	tracker, clock := newTestTracker(t)
	ctx := context.Background()

	// Day 1 and day 2 build a streak of 2.
	_, err := tracker.CheckIn(ctx, "owner-1", nil)
	require.NoError(t, err)
	*clock = clock.AddDate(0, 0, 1)
	_, err = tracker.CheckIn(ctx, "owner-1", nil)
	require.NoError(t, err)

	// Skipping day 3 resets the current streak, not the longest.
	*clock = clock.AddDate(0, 0, 2)
	rec, err := tracker.CheckIn(ctx, "owner-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
}

func TestCheckIn_CalendarDayGranularity(t *testing.T) {
	tracker, clock := newTestTracker(t)
	ctx := context.Background()

	// 23:59 one day, 00:01 the next: two minutes apart, two streak days.
	*clock = time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	_, err := tracker.CheckIn(ctx, "owner-1", nil)
	require.NoError(t, err)

	*clock = time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC)
	rec, err := tracker.CheckIn(ctx, "owner-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.CurrentStreak)
}

func TestCheckIn_HistoryBounded(t *testing.T) {
	tracker, clock := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		_, err := tracker.CheckIn(ctx, "owner-1", nil)
		require.NoError(t, err)
		*clock = clock.AddDate(0, 0, 1)
	}

	rec, err := tracker.GetStreak(ctx, "owner-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 40, rec.CurrentStreak)
	assert.Len(t, rec.History, 30)
	// Oldest entries are dropped first.
	assert.Equal(t, "2024-03-20", rec.History[0].Date)
}

func TestGetStreak_AbsentOwner(t *testing.T) {
	tracker, _ := newTestTracker(t)

	rec, err := tracker.GetStreak(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLogActivity_UpsertsDailyRecord(t *testing.T) {
	docs := docstore.NewMemoryStore()
	tracker := NewTracker(docs)
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, tracker.LogActivity(ctx, "owner-1", "goal_created", []string{"g1"}))
	require.NoError(t, tracker.LogActivity(ctx, "owner-1", "task_completed", []string{"g1", "g2"}))

	doc, err := docs.Get(ctx, "activity", "owner-1_2024-03-10")
	require.NoError(t, err)

	var rec struct {
		Types   []string `json:"types"`
		GoalIDs []string `json:"goalIds"`
	}
	require.NoError(t, docstore.DataTo(doc, &rec))
	assert.Equal(t, []string{"goal_created", "task_completed"}, rec.Types)
	assert.ElementsMatch(t, []string{"g1", "g2"}, rec.GoalIDs)
}
