package store

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/arnold/goalsync-api/internal/docstore"
	"github.com/arnold/goalsync-api/internal/models"
	"github.com/arnold/goalsync-api/internal/progress"
)

// legacyGoalsCollection is the deprecated flat layout: goals keyed by id
// with an embedded ownerId field. Read-only except during migration.
const legacyGoalsCollection = "goals"

var ownerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func ownerGoalsCollection(ownerID string) string {
	return "users/" + ownerID + "/goals"
}

// GoalStore owns the goal document mapping: CRUD, sanitization, and the
// transparent migration from the legacy flat collection to the per-owner
// layout.
type GoalStore struct {
	docs    docstore.Store
	tracker *Tracker
	now     func() time.Time
}

func NewGoalStore(docs docstore.Store, tracker *Tracker) *GoalStore {
	return &GoalStore{docs: docs, tracker: tracker, now: time.Now}
}

// Create validates and persists a new goal, returning its id. The title
// must be unique per owner, case-insensitive.
func (s *GoalStore) Create(ctx context.Context, ownerID string, req models.CreateGoalRequest) (string, error) {
	if !ownerIDPattern.MatchString(ownerID) {
		return "", ErrInvalidOwner
	}

	title := sanitizeText(req.Title)
	if title == "" {
		return "", ErrInvalidInput
	}
	if req.Progress < 0 || req.Progress > 100 {
		return "", ErrOutOfRange
	}

	taken, err := s.titleTaken(ctx, ownerID, title)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrDuplicateTitle
	}

	now := s.now().UTC()
	goal := models.Goal{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Description: sanitizeText(req.Description),
		Category:    sanitizeText(req.Category),
		GoalType:    req.GoalType,
		Difficulty:  req.Difficulty,
		Priority:    req.Priority,
		Status:      models.StatusActive,
		Progress:    req.Progress,
		TargetDate:  req.TargetDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        req.Tags,
		Roadmap:     normalizeRoadmap(req.Roadmap),
		Tasks:       normalizeTasks(req.Tasks),
		Milestones:  normalizeMilestones(req.Milestones),
	}

	// A task-bearing payload is the source of truth for progress.
	payload := progress.FromGoal(goal)
	if payload.Kind() != progress.KindNone {
		goal.Progress = progress.Compute(payload)
	}

	data, err := docstore.ToMap(goal)
	if err != nil {
		return "", err
	}
	if err := s.docs.Set(ctx, ownerGoalsCollection(ownerID), goal.ID, data); err != nil {
		return "", err
	}

	s.logActivity(ctx, ownerID, models.ActivityGoalCreated, goal.ID)
	return goal.ID, nil
}

// Get returns the owner's goal, migrating it from the legacy flat layout in
// place when found there.
func (s *GoalStore) Get(ctx context.Context, goalID, ownerID string) (*models.Goal, error) {
	if !ownerIDPattern.MatchString(ownerID) {
		return nil, ErrInvalidOwner
	}
	return s.resolve(ctx, goalID, ownerID)
}

// Update applies a partial patch. Status transitions to completed force
// progress to 100 and stamp the completion time.
func (s *GoalStore) Update(ctx context.Context, goalID, ownerID string, req models.UpdateGoalRequest) error {
	if !ownerIDPattern.MatchString(ownerID) {
		return ErrInvalidOwner
	}
	goal, err := s.resolve(ctx, goalID, ownerID)
	if err != nil {
		return err
	}

	patch := map[string]interface{}{}
	if req.Title != nil {
		title := sanitizeText(*req.Title)
		if title == "" {
			return ErrInvalidInput
		}
		patch["title"] = title
	}
	if req.Description != nil {
		patch["description"] = sanitizeText(*req.Description)
	}
	if req.Category != nil {
		patch["category"] = sanitizeText(*req.Category)
	}
	if req.GoalType != nil {
		patch["goalType"] = *req.GoalType
	}
	if req.Difficulty != nil {
		patch["difficulty"] = *req.Difficulty
	}
	if req.Priority != nil {
		patch["priority"] = *req.Priority
	}
	if req.TargetDate != nil {
		patch["targetDate"] = req.TargetDate.UTC()
	}
	if req.Tags != nil {
		patch["tags"] = req.Tags
	}
	if req.Status != nil {
		switch *req.Status {
		case models.StatusActive, models.StatusArchived:
			patch["status"] = *req.Status
		case models.StatusCompleted:
			patch["status"] = models.StatusCompleted
			patch["progress"] = 100
			patch["completedAt"] = s.now().UTC()
		default:
			return ErrInvalidInput
		}
	}
	patch["updatedAt"] = s.now().UTC()

	if err := s.docs.Update(ctx, ownerGoalsCollection(ownerID), goalID, patch); err != nil {
		if err == docstore.ErrNotFound {
			return ErrNotFound
		}
		return err
	}

	s.logActivity(ctx, ownerID, models.ActivityGoalUpdated, goal.ID)
	return nil
}

// UpdateProgress sets the caller-supplied progress and counts a check-in.
func (s *GoalStore) UpdateProgress(ctx context.Context, goalID, ownerID string, pct int) error {
	if !ownerIDPattern.MatchString(ownerID) {
		return ErrInvalidOwner
	}
	if pct < 0 || pct > 100 {
		return ErrOutOfRange
	}
	goal, err := s.resolve(ctx, goalID, ownerID)
	if err != nil {
		return err
	}

	patch := map[string]interface{}{
		"progress":  pct,
		"updatedAt": s.now().UTC(),
	}
	s.applyCheckIn(ctx, ownerID, goal, patch)

	if err := s.docs.Update(ctx, ownerGoalsCollection(ownerID), goalID, patch); err != nil {
		if err == docstore.ErrNotFound {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// UpdateTaskCompletion flips the named task or milestone, recomputes
// progress, and persists payload and progress together.
func (s *GoalStore) UpdateTaskCompletion(ctx context.Context, goalID, ownerID, taskID string, completed bool) error {
	if !ownerIDPattern.MatchString(ownerID) {
		return ErrInvalidOwner
	}
	goal, err := s.resolve(ctx, goalID, ownerID)
	if err != nil {
		return err
	}

	payload := progress.FromGoal(*goal)
	var field string
	var value interface{}
	found := false

	switch payload.Kind() {
	case progress.KindRoadmap:
		for i := range goal.Roadmap {
			for j := range goal.Roadmap[i].Tasks {
				if goal.Roadmap[i].Tasks[j].ID == taskID {
					flipTask(&goal.Roadmap[i].Tasks[j], completed, s.now())
					found = true
				}
			}
		}
		field, value = "roadmap", goal.Roadmap
	case progress.KindTasks:
		for i := range goal.Tasks {
			if goal.Tasks[i].ID == taskID {
				flipTask(&goal.Tasks[i], completed, s.now())
				found = true
			}
		}
		field, value = "tasks", goal.Tasks
	case progress.KindMilestones:
		for i := range goal.Milestones {
			if goal.Milestones[i].ID == taskID {
				goal.Milestones[i].Completed = completed
				if completed {
					now := s.now().UTC()
					goal.Milestones[i].CompletedAt = &now
				} else {
					goal.Milestones[i].CompletedAt = nil
				}
				found = true
			}
		}
		field, value = "milestones", goal.Milestones
	default:
		return ErrNotFound
	}
	if !found {
		return ErrNotFound
	}

	payloadValue, err := docstore.ToValue(value)
	if err != nil {
		return err
	}
	patch := map[string]interface{}{
		field:       payloadValue,
		"progress":  progress.Compute(progress.FromGoal(*goal)),
		"updatedAt": s.now().UTC(),
	}
	s.applyCheckIn(ctx, ownerID, goal, patch)

	if err := s.docs.Update(ctx, ownerGoalsCollection(ownerID), goalID, patch); err != nil {
		if err == docstore.ErrNotFound {
			return ErrNotFound
		}
		return err
	}

	s.logActivity(ctx, ownerID, models.ActivityTaskCompleted, goal.ID)
	return nil
}

// Delete removes the goal. The legacy location is checked as well; a legacy
// document owned by someone else fails with ErrForbidden.
func (s *GoalStore) Delete(ctx context.Context, goalID, ownerID string) error {
	if !ownerIDPattern.MatchString(ownerID) {
		return ErrInvalidOwner
	}

	if _, err := s.docs.Get(ctx, ownerGoalsCollection(ownerID), goalID); err == nil {
		if err := s.docs.Delete(ctx, ownerGoalsCollection(ownerID), goalID); err != nil {
			return err
		}
		s.logActivity(ctx, ownerID, models.ActivityGoalDeleted, goalID)
		return nil
	} else if err != docstore.ErrNotFound {
		return err
	}

	doc, err := s.docs.Get(ctx, legacyGoalsCollection, goalID)
	if err == docstore.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var goal models.Goal
	if err := docstore.DataTo(doc, &goal); err != nil {
		return err
	}
	if goal.OwnerID != ownerID {
		return ErrForbidden
	}
	if err := s.docs.Delete(ctx, legacyGoalsCollection, goalID); err != nil {
		return err
	}
	s.logActivity(ctx, ownerID, models.ActivityGoalDeleted, goalID)
	return nil
}

// ListByOwner returns the owner's goals newest-created-first. Single-value
// filters are pushed down to the store; anything else is applied here.
func (s *GoalStore) ListByOwner(ctx context.Context, ownerID string, filters models.GoalFilters) ([]models.Goal, error) {
	if !ownerIDPattern.MatchString(ownerID) {
		return nil, ErrInvalidOwner
	}

	serverFilters, serverApplied := pushdownFilters(filters)
	docs, err := s.docs.Query(ctx, ownerGoalsCollection(ownerID), serverFilters...)
	if err != nil {
		return nil, err
	}

	goals := make([]models.Goal, 0, len(docs))
	for _, doc := range docs {
		var g models.Goal
		if err := docstore.DataTo(doc, &g); err != nil {
			log.Printf("store: skipping undecodable goal %s: %v", doc.ID, err)
			continue
		}
		if !serverApplied && !filters.Match(g) {
			continue
		}
		goals = append(goals, g)
	}
	SortGoals(goals)
	return goals, nil
}

// Subscribe opens a change subscription on the owner's goal set. The second
// return value reports whether the filters were already applied server-side.
func (s *GoalStore) Subscribe(ctx context.Context, ownerID string, filters models.GoalFilters) (*docstore.Subscription, bool, error) {
	if !ownerIDPattern.MatchString(ownerID) {
		return nil, false, ErrInvalidOwner
	}
	serverFilters, serverApplied := pushdownFilters(filters)
	sub, err := s.docs.Subscribe(ctx, ownerGoalsCollection(ownerID), serverFilters...)
	if err != nil {
		return nil, false, err
	}
	return sub, serverApplied, nil
}

// MigrateOwner copies every legacy flat-collection goal of the owner into
// the owner-scoped location, then deletes the legacy copies. Copy commits
// before delete, so an interrupted run loses nothing and a rerun is a no-op
// (the destination's existence is the idempotence check).
func (s *GoalStore) MigrateOwner(ctx context.Context, ownerID string) (int, error) {
	if !ownerIDPattern.MatchString(ownerID) {
		return 0, ErrInvalidOwner
	}

	legacy, err := s.docs.Query(ctx, legacyGoalsCollection, docstore.Filter{Field: "ownerId", Value: ownerID})
	if err != nil {
		return 0, err
	}
	if len(legacy) == 0 {
		return 0, nil
	}

	dest := ownerGoalsCollection(ownerID)

	copies := s.docs.Batch()
	toCopy := 0
	pending := make([]docstore.Document, 0, len(legacy))
	for _, doc := range legacy {
		if _, err := s.docs.Get(ctx, dest, doc.ID); err == nil {
			// Already migrated; only the legacy copy is left to clean up.
			pending = append(pending, doc)
			continue
		} else if err != docstore.ErrNotFound {
			return 0, err
		}
		copies.Set(dest, doc.ID, doc.Data)
		toCopy++
		pending = append(pending, doc)
	}
	if toCopy > 0 {
		if err := copies.Commit(ctx); err != nil {
			return 0, err
		}
	}

	deletes := s.docs.Batch()
	for _, doc := range pending {
		deletes.Delete(legacyGoalsCollection, doc.ID)
	}
	if err := deletes.Commit(ctx); err != nil {
		return len(pending), err
	}
	return len(pending), nil
}

// SetVisibility flips the community-marketplace flag. Used by the moderation
// workflow; never touches task payloads.
func (s *GoalStore) SetVisibility(ctx context.Context, goalID, ownerID string, public bool) error {
	if !ownerIDPattern.MatchString(ownerID) {
		return ErrInvalidOwner
	}
	if _, err := s.resolve(ctx, goalID, ownerID); err != nil {
		return err
	}
	patch := map[string]interface{}{
		"isPublic":  public,
		"updatedAt": s.now().UTC(),
	}
	if err := s.docs.Update(ctx, ownerGoalsCollection(ownerID), goalID, patch); err != nil {
		if err == docstore.ErrNotFound {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Tracker exposes the activity tracker wired into this store.
func (s *GoalStore) Tracker() *Tracker {
	return s.tracker
}

// resolve finds the goal in the owner-scoped collection, falling back to the
// legacy flat collection. A legacy hit with a matching embedded owner is
// migrated in place, copy before delete.
func (s *GoalStore) resolve(ctx context.Context, goalID, ownerID string) (*models.Goal, error) {
	dest := ownerGoalsCollection(ownerID)

	doc, err := s.docs.Get(ctx, dest, goalID)
	if err == nil {
		var g models.Goal
		if err := docstore.DataTo(doc, &g); err != nil {
			return nil, err
		}
		return &g, nil
	}
	if err != docstore.ErrNotFound {
		return nil, err
	}

	doc, err = s.docs.Get(ctx, legacyGoalsCollection, goalID)
	if err == docstore.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var g models.Goal
	if err := docstore.DataTo(doc, &g); err != nil {
		return nil, err
	}
	if g.OwnerID != ownerID {
		return nil, ErrNotFound
	}

	// Lazy migration. A failure here is logged, not surfaced: the legacy
	// copy keeps the goal fully usable until the next attempt.
	if err := s.docs.Set(ctx, dest, goalID, doc.Data); err != nil {
		log.Printf("store: migrate copy failed for goal %s: %v", goalID, err)
		return &g, nil
	}
	if err := s.docs.Delete(ctx, legacyGoalsCollection, goalID); err != nil {
		log.Printf("store: migrate cleanup failed for goal %s: %v", goalID, err)
	}
	return &g, nil
}

// titleTaken scans the owner's goals, including not-yet-migrated legacy
// ones, for a case-insensitive title match.
func (s *GoalStore) titleTaken(ctx context.Context, ownerID, title string) (bool, error) {
	key := strings.ToLower(title)

	docs, err := s.docs.Query(ctx, ownerGoalsCollection(ownerID))
	if err != nil {
		return false, err
	}
	legacy, err := s.docs.Query(ctx, legacyGoalsCollection, docstore.Filter{Field: "ownerId", Value: ownerID})
	if err != nil {
		return false, err
	}

	for _, doc := range append(docs, legacy...) {
		existing, _ := doc.Data["title"].(string)
		if strings.ToLower(strings.TrimSpace(existing)) == key {
			return true, nil
		}
	}
	return false, nil
}

// applyCheckIn records a daily check-in and folds its snapshot fields into
// the goal patch. Best-effort: a tracker failure never fails the mutation.
func (s *GoalStore) applyCheckIn(ctx context.Context, ownerID string, goal *models.Goal, patch map[string]interface{}) {
	rec, err := s.tracker.CheckIn(ctx, ownerID, []string{goal.ID})
	if err != nil {
		log.Printf("store: check-in failed for owner %s: %v", ownerID, err)
		return
	}
	patch["checkInCount"] = goal.CheckInCount + 1
	patch["streakDays"] = rec.CurrentStreak
	patch["lastCheckedAt"] = rec.LastActiveDate
}

func (s *GoalStore) logActivity(ctx context.Context, ownerID, activityType, goalID string) {
	if err := s.tracker.LogActivity(ctx, ownerID, activityType, []string{goalID}); err != nil {
		log.Printf("store: activity log failed for owner %s: %v", ownerID, err)
	}
}

// SortGoals orders goals newest-created-first, regardless of where
// filtering happened.
func SortGoals(goals []models.Goal) {
	sort.Slice(goals, func(i, j int) bool {
		return goals[i].CreatedAt.After(goals[j].CreatedAt)
	})
}

// pushdownFilters maps single-value filters onto store equality filters.
// Multi-value sets stay client-side.
func pushdownFilters(filters models.GoalFilters) ([]docstore.Filter, bool) {
	if len(filters.Statuses) > 1 || len(filters.Categories) > 1 {
		return nil, false
	}
	var out []docstore.Filter
	if len(filters.Statuses) == 1 {
		out = append(out, docstore.Filter{Field: "status", Value: filters.Statuses[0]})
	}
	if len(filters.Categories) == 1 {
		out = append(out, docstore.Filter{Field: "category", Value: filters.Categories[0]})
	}
	return out, true
}

func flipTask(t *models.Task, completed bool, now time.Time) {
	t.Completed = completed
	if completed {
		ts := now.UTC()
		t.CompletedAt = &ts
	} else {
		t.CompletedAt = nil
	}
}

func normalizeTasks(tasks []models.Task) []models.Task {
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.NewString()
		}
		tasks[i].Title = sanitizeText(tasks[i].Title)
	}
	return tasks
}

func normalizeRoadmap(months []models.RoadmapMonth) []models.RoadmapMonth {
	for i := range months {
		if months[i].Month == 0 {
			months[i].Month = i + 1
		}
		months[i].Tasks = normalizeTasks(months[i].Tasks)
	}
	return months
}

// normalizeMilestones assigns deterministic synthetic ids to milestones that
// lack one and records insertion order.
func normalizeMilestones(milestones []models.Milestone) []models.Milestone {
	for i := range milestones {
		if milestones[i].ID == "" {
			milestones[i].ID = "milestone-" + strconv.Itoa(i)
		}
		milestones[i].Order = i
		milestones[i].Title = sanitizeText(milestones[i].Title)
	}
	return milestones
}

// sanitizeText trims and strips control characters from free-text input.
func sanitizeText(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(cleaned)
}
