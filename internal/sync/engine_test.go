package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arnold/goalsync-api/internal/docstore"
	"github.com/arnold/goalsync-api/internal/models"
	"github.com/arnold/goalsync-api/internal/store"
)

// flakyStore fails the first N Subscribe calls with the configured error,
// then delegates to the wrapped store.
type flakyStore struct {
	docstore.Store
	mu       sync.Mutex
	failures int
	failErr  error
}

func (f *flakyStore) Subscribe(ctx context.Context, collection string, filters ...docstore.Filter) (*docstore.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, f.failErr
	}
	return f.Store.Subscribe(ctx, collection, filters...)
}

type capture struct {
	mu      sync.Mutex
	updates []Update
	errs    []error
}

func (c *capture) onUpdate(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
}

func (c *capture) onError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *capture) last() (Update, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.updates) == 0 {
		return Update{}, false
	}
	return c.updates[len(c.updates)-1], true
}

func (c *capture) errCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

func newTestEngine(docs docstore.Store) *Engine {
	goals := store.NewGoalStore(docs, store.NewTracker(docs))
	e := NewEngine(goals)
	e.GraceDelay = 5 * time.Millisecond
	e.RefreshDelay = 5 * time.Millisecond
	e.NetworkBackoff = time.Millisecond
	e.OtherBackoff = time.Millisecond
	return e
}

func waitForStatus(t *testing.T, c *capture, want Status) Update {
	t.Helper()
	var got Update
	require.Eventually(t, func() bool {
		u, ok := c.last()
		if ok && u.Status == want {
			got = u
			return true
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "expected status %s", want)
	return got
}

func TestEngine_LiveDelivery(t *testing.T) {
	docs := docstore.NewMemoryStore()
	e := newTestEngine(docs)
	var c capture

	require.NoError(t, e.Start("owner-1", models.GoalFilters{}, c.onUpdate, c.onError))
	defer e.Stop("owner-1")
	waitForStatus(t, &c, StatusLive)

	_, err := e.CreateGoal(context.Background(), "owner-1", models.CreateGoalRequest{Title: "Run a marathon"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		u, ok := c.last()
		return ok && u.Status == StatusLive && len(u.Goals) == 1
	}, 2*time.Second, 5*time.Millisecond)

	u, _ := c.last()
	assert.Equal(t, "Run a marathon", u.Goals[0].Title)
}

func TestEngine_NetworkErrorsFallBackToDegraded(t *testing.T) {
	mem := docstore.NewMemoryStore()
	flaky := &flakyStore{
		Store:    mem,
		failures: 10, // more than the retry budget: the channel stays unusable
		failErr:  status.Error(codes.Unavailable, "listen backend unavailable"),
	}
	e := newTestEngine(flaky)

	// Seed a goal directly so the degraded fetch has something to return.
	goals := store.NewGoalStore(mem, store.NewTracker(mem))
	_, err := goals.Create(context.Background(), "owner-1", models.CreateGoalRequest{Title: "Still here"})
	require.NoError(t, err)

	var c capture
	require.NoError(t, e.Start("owner-1", models.GoalFilters{}, c.onUpdate, c.onError))
	defer e.Stop("owner-1")

	u := waitForStatus(t, &c, StatusDegraded)
	require.Len(t, u.Goals, 1)
	assert.Equal(t, "Still here", u.Goals[0].Title)
	assert.Equal(t, 1, c.errCount())

	// Manual refresh keeps working in degraded mode.
	fetched, err := e.Refresh(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, StatusDegraded, e.Status("owner-1"))
}

func TestEngine_TransientErrorRecovers(t *testing.T) {
	mem := docstore.NewMemoryStore()
	flaky := &flakyStore{
		Store:    mem,
		failures: 1,
		failErr:  status.Error(codes.Unavailable, "blip"),
	}
	e := newTestEngine(flaky)
	var c capture

	require.NoError(t, e.Start("owner-1", models.GoalFilters{}, c.onUpdate, c.onError))
	defer e.Stop("owner-1")

	waitForStatus(t, &c, StatusLive)
	assert.Equal(t, 0, c.errCount())
}

func TestEngine_PermissionErrorIsTerminal(t *testing.T) {
	flaky := &flakyStore{
		Store:    docstore.NewMemoryStore(),
		failures: 1,
		failErr:  status.Error(codes.PermissionDenied, "missing or insufficient permissions"),
	}
	e := newTestEngine(flaky)
	var c capture

	require.NoError(t, e.Start("owner-1", models.GoalFilters{}, c.onUpdate, c.onError))
	defer e.Stop("owner-1")

	waitForStatus(t, &c, StatusAuthRequired)
	assert.Equal(t, 1, c.errCount())

	// No retries were spent: the one configured failure was terminal.
	flaky.mu.Lock()
	defer flaky.mu.Unlock()
	assert.Equal(t, 0, flaky.failures)
}

func TestEngine_RestartReplacesSession(t *testing.T) {
	docs := docstore.NewMemoryStore()
	e := newTestEngine(docs)
	var first, second capture

	require.NoError(t, e.Start("owner-1", models.GoalFilters{}, first.onUpdate, first.onError))
	waitForStatus(t, &first, StatusLive)

	require.NoError(t, e.Start("owner-1", models.GoalFilters{}, second.onUpdate, second.onError))
	defer e.Stop("owner-1")
	waitForStatus(t, &second, StatusLive)

	e.mu.Lock()
	assert.Len(t, e.sessions, 1)
	e.mu.Unlock()

	// The first session is closed: a new goal only reaches the second.
	first.mu.Lock()
	firstCount := len(first.updates)
	first.mu.Unlock()

	_, err := e.CreateGoal(context.Background(), "owner-1", models.CreateGoalRequest{Title: "Swim"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		u, ok := second.last()
		return ok && len(u.Goals) == 1
	}, 2*time.Second, 5*time.Millisecond)

	first.mu.Lock()
	assert.Equal(t, firstCount, len(first.updates))
	first.mu.Unlock()
}

func TestEngine_StopClearsState(t *testing.T) {
	docs := docstore.NewMemoryStore()
	e := newTestEngine(docs)
	var c capture

	require.NoError(t, e.Start("owner-1", models.GoalFilters{}, c.onUpdate, c.onError))
	waitForStatus(t, &c, StatusLive)

	e.Stop("owner-1")

	u, ok := c.last()
	require.True(t, ok)
	assert.Empty(t, u.Goals)

	e.mu.Lock()
	assert.Len(t, e.sessions, 0)
	e.mu.Unlock()
}

func TestEngine_StopOnlyAffectsThatOwner(t *testing.T) {
	docs := docstore.NewMemoryStore()
	e := newTestEngine(docs)
	var a, b capture

	require.NoError(t, e.Start("owner-a", models.GoalFilters{}, a.onUpdate, a.onError))
	require.NoError(t, e.Start("owner-b", models.GoalFilters{}, b.onUpdate, b.onError))
	defer e.Stop("owner-b")
	waitForStatus(t, &a, StatusLive)
	waitForStatus(t, &b, StatusLive)

	e.Stop("owner-a")

	_, err := e.CreateGoal(context.Background(), "owner-b", models.CreateGoalRequest{Title: "Keep going"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		u, ok := b.last()
		return ok && len(u.Goals) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEngine_FiltersAppliedToSnapshots(t *testing.T) {
	docs := docstore.NewMemoryStore()
	e := newTestEngine(docs)
	goals := store.NewGoalStore(docs, store.NewTracker(docs))
	ctx := context.Background()

	_, err := goals.Create(ctx, "owner-1", models.CreateGoalRequest{Title: "Health goal", Category: "health"})
	require.NoError(t, err)
	_, err = goals.Create(ctx, "owner-1", models.CreateGoalRequest{Title: "Career goal", Category: "career"})
	require.NoError(t, err)

	var c capture
	filters := models.GoalFilters{Categories: []string{"health"}}
	require.NoError(t, e.Start("owner-1", filters, c.onUpdate, c.onError))
	defer e.Stop("owner-1")

	require.Eventually(t, func() bool {
		u, ok := c.last()
		return ok && u.Status == StatusLive && len(u.Goals) == 1
	}, 2*time.Second, 5*time.Millisecond)

	u, _ := c.last()
	assert.Equal(t, "Health goal", u.Goals[0].Title)
}
