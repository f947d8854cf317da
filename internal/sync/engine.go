// Package sync keeps an owner's goal set live against the document store:
// one subscription per owner, bounded retry with backoff, and a manual
// refresh fallback when the channel is unusable.
package sync

import (
	"context"
	"log"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arnold/goalsync-api/internal/docstore"
	"github.com/arnold/goalsync-api/internal/models"
	"github.com/arnold/goalsync-api/internal/store"
)

// Status is published to subscribers alongside every goal list so the
// presentation layer can tell "no data yet" from "sync degraded" from
// "re-authentication required".
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusLive         Status = "live"
	StatusDegraded     Status = "degraded"
	StatusAuthRequired Status = "auth-required"
)

// Error classifications for a failed subscription channel.
const (
	errPermission = "permission"
	errNetwork    = "network"
	errOther      = "other"
)

const maxRetries = 3

// Update is one published state: the current goal set plus sync status.
type Update struct {
	Goals  []models.Goal `json:"goals"`
	Status Status        `json:"syncStatus"`
}

// Engine orchestrates per-owner subscriptions. At most one live session per
// owner; starting a second tears the first down after a short grace delay.
type Engine struct {
	store *store.GoalStore

	// Tunables, overridable in tests.
	GraceDelay     time.Duration
	RefreshDelay   time.Duration
	NetworkBackoff time.Duration
	OtherBackoff   time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

func NewEngine(goals *store.GoalStore) *Engine {
	return &Engine{
		store:          goals,
		GraceDelay:     200 * time.Millisecond,
		RefreshDelay:   500 * time.Millisecond,
		NetworkBackoff: time.Second,
		OtherBackoff:   250 * time.Millisecond,
		sessions:       make(map[string]*session),
	}
}

type session struct {
	owner    string
	filters  models.GoalFilters
	onUpdate func(Update)
	onError  func(error)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu           sync.Mutex
	status       Status
	retries      int
	refreshTimer *time.Timer
}

// Start opens a live subscription for the owner. Any previous session for
// the same owner is fully torn down first, so snapshots are never delivered
// twice.
func (e *Engine) Start(ownerID string, filters models.GoalFilters, onUpdate func(Update), onError func(error)) error {
	e.teardown(ownerID)

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		owner:    ownerID,
		filters:  filters,
		onUpdate: onUpdate,
		onError:  onError,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		status:   StatusConnecting,
	}

	e.mu.Lock()
	e.sessions[ownerID] = sess
	e.mu.Unlock()

	go e.run(sess)
	return nil
}

// Stop tears down the owner's session, cancels pending retry and refresh
// timers, and clears the published state. Other owners are unaffected.
func (e *Engine) Stop(ownerID string) {
	if sess := e.teardown(ownerID); sess != nil && sess.onUpdate != nil {
		sess.onUpdate(Update{Goals: []models.Goal{}, Status: StatusConnecting})
	}
}

// Refresh performs a one-shot manual fetch and republishes it. Reads keep
// working this way even when the live channel is down.
func (e *Engine) Refresh(ctx context.Context, ownerID string) ([]models.Goal, error) {
	e.mu.Lock()
	sess := e.sessions[ownerID]
	e.mu.Unlock()

	filters := models.GoalFilters{}
	if sess != nil {
		filters = sess.filters
	}
	goals, err := e.store.ListByOwner(ctx, ownerID, filters)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		sess.publish(goals, sess.currentStatus())
	}
	return goals, nil
}

// CreateGoal creates through the store and schedules a corrective refresh in
// case push delivery lags the write.
func (e *Engine) CreateGoal(ctx context.Context, ownerID string, req models.CreateGoalRequest) (string, error) {
	id, err := e.store.Create(ctx, ownerID, req)
	if err != nil {
		return "", err
	}
	e.scheduleRefresh(ownerID)
	return id, nil
}

func (e *Engine) UpdateGoal(ctx context.Context, goalID, ownerID string, req models.UpdateGoalRequest) error {
	if err := e.store.Update(ctx, goalID, ownerID, req); err != nil {
		return err
	}
	e.scheduleRefresh(ownerID)
	return nil
}

func (e *Engine) DeleteGoal(ctx context.Context, goalID, ownerID string) error {
	if err := e.store.Delete(ctx, goalID, ownerID); err != nil {
		return err
	}
	e.scheduleRefresh(ownerID)
	return nil
}

func (e *Engine) UpdateProgress(ctx context.Context, goalID, ownerID string, pct int) error {
	if err := e.store.UpdateProgress(ctx, goalID, ownerID, pct); err != nil {
		return err
	}
	e.scheduleRefresh(ownerID)
	return nil
}

func (e *Engine) CompleteTask(ctx context.Context, goalID, ownerID, taskID string, completed bool) error {
	if err := e.store.UpdateTaskCompletion(ctx, goalID, ownerID, taskID, completed); err != nil {
		return err
	}
	e.scheduleRefresh(ownerID)
	return nil
}

// Status reports the owner's current sync status, or connecting when no
// session exists.
func (e *Engine) Status(ownerID string) Status {
	e.mu.Lock()
	sess := e.sessions[ownerID]
	e.mu.Unlock()
	if sess == nil {
		return StatusConnecting
	}
	return sess.currentStatus()
}

// teardown removes and cancels the owner's session, waiting out the grace
// delay so the old channel is fully closed before a new one opens.
func (e *Engine) teardown(ownerID string) *session {
	e.mu.Lock()
	sess := e.sessions[ownerID]
	delete(e.sessions, ownerID)
	e.mu.Unlock()

	if sess == nil {
		return nil
	}
	sess.cancel()
	sess.stopRefreshTimer()
	select {
	case <-sess.done:
	case <-time.After(e.GraceDelay):
	}
	return sess
}

// run drives the session state machine: connecting -> live, with classified
// retries and the degraded fallback after the retry budget is spent.
func (e *Engine) run(sess *session) {
	defer close(sess.done)

	sess.publish(nil, StatusConnecting)

	for sess.ctx.Err() == nil {
		sub, serverFiltered, err := e.store.Subscribe(sess.ctx, sess.owner, sess.filters)
		if err != nil {
			if !e.retryOrDegrade(sess, err) {
				return
			}
			continue
		}
		if !e.consume(sess, sub, serverFiltered) {
			return
		}
	}
}

// consume pumps snapshots until the channel errors or the session stops.
// Returns false when the session is finished for good.
func (e *Engine) consume(sess *session, sub *docstore.Subscription, serverFiltered bool) bool {
	defer sub.Stop()
	for {
		select {
		case <-sess.ctx.Done():
			return false
		case docs := <-sub.Updates:
			goals := e.mapSnapshot(docs, sess.filters, serverFiltered)
			sess.resetRetries()
			sess.publish(goals, StatusLive)
		case err := <-sub.Errors:
			return e.retryOrDegrade(sess, err)
		}
	}
}

// mapSnapshot turns raw documents into the published goal list: decoded,
// client-filtered when the store did not filter, newest-created-first.
func (e *Engine) mapSnapshot(docs []docstore.Document, filters models.GoalFilters, serverFiltered bool) []models.Goal {
	goals := make([]models.Goal, 0, len(docs))
	for _, doc := range docs {
		var g models.Goal
		if err := docstore.DataTo(doc, &g); err != nil {
			log.Printf("sync: dropping undecodable goal %s: %v", doc.ID, err)
			continue
		}
		if !serverFiltered && !filters.Match(g) {
			continue
		}
		goals = append(goals, g)
	}
	store.SortGoals(goals)
	return goals
}

// retryOrDegrade classifies a channel error and either waits out the
// backoff (true) or finishes the session (false): terminal on permission
// errors, degraded manual-refresh mode once retries are exhausted.
func (e *Engine) retryOrDegrade(sess *session, err error) bool {
	kind := classify(err)
	if kind == errPermission {
		log.Printf("sync: permission error for owner %s: %v", sess.owner, err)
		sess.fail(err)
		sess.publish(nil, StatusAuthRequired)
		return false
	}

	attempt := sess.bumpRetries()
	if attempt >= maxRetries {
		log.Printf("sync: retries exhausted for owner %s, degrading: %v", sess.owner, err)
		goals, ferr := e.store.ListByOwner(sess.ctx, sess.owner, sess.filters)
		if ferr != nil {
			goals = nil
		}
		sess.fail(err)
		sess.publish(goals, StatusDegraded)
		return false
	}

	delay := e.OtherBackoff * time.Duration(attempt)
	if kind == errNetwork {
		delay = e.NetworkBackoff << (attempt - 1)
	}
	log.Printf("sync: %s error for owner %s, retry %d/%d in %s", kind, sess.owner, attempt, maxRetries, delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-sess.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// scheduleRefresh arms a short-delay forced refresh after a mutation, as a
// corrective for lagging push delivery. Best-effort, never blocks the
// mutation.
func (e *Engine) scheduleRefresh(ownerID string) {
	e.mu.Lock()
	sess := e.sessions[ownerID]
	e.mu.Unlock()
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.refreshTimer != nil {
		sess.refreshTimer.Stop()
	}
	sess.refreshTimer = time.AfterFunc(e.RefreshDelay, func() {
		if _, err := e.Refresh(context.Background(), ownerID); err != nil {
			log.Printf("sync: corrective refresh failed for owner %s: %v", ownerID, err)
		}
	})
}

func classify(err error) string {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return errPermission
	case codes.Unavailable, codes.DeadlineExceeded:
		return errNetwork
	default:
		return errOther
	}
}

func (s *session) publish(goals []models.Goal, st Status) {
	s.mu.Lock()
	s.status = st
	onUpdate := s.onUpdate
	s.mu.Unlock()
	if onUpdate != nil {
		if goals == nil {
			goals = []models.Goal{}
		}
		onUpdate(Update{Goals: goals, Status: st})
	}
}

func (s *session) fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *session) currentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *session) bumpRetries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
	return s.retries
}

func (s *session) resetRetries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries = 0
}

func (s *session) stopRefreshTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
}
