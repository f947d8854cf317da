package models

import "time"

// Activity types recorded against an owner's daily ledger.
const (
	ActivityGoalCreated   = "goal_created"
	ActivityGoalUpdated   = "goal_updated"
	ActivityGoalDeleted   = "goal_deleted"
	ActivityTaskCompleted = "task_completed"
	ActivityCheckIn       = "check_in"
)

// ActivityRecord is one per (owner, calendar day), stored under the id
// "<ownerId>_<date>". Types is append-only; GoalIDs is a set.
type ActivityRecord struct {
	OwnerID   string    `json:"ownerId"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Types     []string  `json:"types"`
	GoalIDs   []string  `json:"goalIds,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DayActivity is one rolling-history entry on a streak record.
type DayActivity struct {
	Date     string   `json:"date"` // YYYY-MM-DD
	CheckIns int      `json:"checkIns"`
	GoalIDs  []string `json:"goalIds,omitempty"`
}

// StreakRecord is the per-owner streak state. History holds at most the 30
// most recent day entries, oldest first.
type StreakRecord struct {
	OwnerID        string        `json:"ownerId"`
	CurrentStreak  int           `json:"currentStreak"`
	LongestStreak  int           `json:"longestStreak"`
	LastActiveDate string        `json:"lastActiveDate,omitempty"` // YYYY-MM-DD
	History        []DayActivity `json:"history,omitempty"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}
