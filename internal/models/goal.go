package models

import "time"

// Goal statuses
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// Task is a single actionable item inside a goal, whether it lives in a
// roadmap month, the flat task list, or (shape-wise) a milestone.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

// RoadmapMonth groups ordered tasks under one month of a multi-month plan.
type RoadmapMonth struct {
	Month int    `json:"month"`
	Title string `json:"title,omitempty"`
	Tasks []Task `json:"tasks"`
}

// Milestone is the oldest task encoding; order records insertion position
// for entries migrated without explicit ids.
type Milestone struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Order       int        `json:"order"`
}

// Goal is a user-owned unit of intent. Exactly one of Roadmap, Tasks or
// Milestones is normally populated; when legacy data carries several, the
// roadmap wins, then tasks, then milestones.
type Goal struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	GoalType    string     `json:"goalType,omitempty"` // short-term, medium-term, long-term
	Difficulty  string     `json:"difficulty,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	IsPublic    bool       `json:"isPublic,omitempty"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Tags        []string   `json:"tags,omitempty"`

	CheckInCount  int    `json:"checkInCount,omitempty"`
	StreakDays    int    `json:"streakDays,omitempty"`
	LastCheckedAt string `json:"lastCheckedAt,omitempty"` // YYYY-MM-DD

	Roadmap    []RoadmapMonth `json:"roadmap,omitempty"`
	Tasks      []Task         `json:"tasks,omitempty"`
	Milestones []Milestone    `json:"milestones,omitempty"`
}

// CreateGoalRequest is the creation payload accepted from the presentation
// layer.
type CreateGoalRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	GoalType    string     `json:"goalType" validate:"omitempty,oneof=short-term medium-term long-term"`
	Difficulty  string     `json:"difficulty"`
	Priority    string     `json:"priority"`
	Progress    int        `json:"progress" validate:"gte=0,lte=100"`
	TargetDate  *time.Time `json:"targetDate"`
	Tags        []string   `json:"tags"`

	Roadmap    []RoadmapMonth `json:"roadmap"`
	Tasks      []Task         `json:"tasks"`
	Milestones []Milestone    `json:"milestones"`
}

// UpdateGoalRequest is a partial patch; nil fields are left untouched.
type UpdateGoalRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	GoalType    *string    `json:"goalType"`
	Difficulty  *string    `json:"difficulty"`
	Priority    *string    `json:"priority"`
	Status      *string    `json:"status"`
	TargetDate  *time.Time `json:"targetDate"`
	Tags        []string   `json:"tags"`
}

// GoalFilters narrows listing and subscriptions by status and/or category.
// Empty slices mean no filtering on that axis.
type GoalFilters struct {
	Statuses   []string
	Categories []string
}

// Match reports whether the goal passes the filters.
func (f GoalFilters) Match(g Goal) bool {
	if len(f.Statuses) > 0 && !contains(f.Statuses, g.Status) {
		return false
	}
	if len(f.Categories) > 0 && !contains(f.Categories, g.Category) {
		return false
	}
	return true
}

// Empty reports whether no filtering is requested.
func (f GoalFilters) Empty() bool {
	return len(f.Statuses) == 0 && len(f.Categories) == 0
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
