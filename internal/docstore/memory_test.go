package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CRUD(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_, err := m.Get(ctx, "goals", "g1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "goals", "g1", map[string]interface{}{"title": "Run", "ownerId": "o1"}))

	doc, err := m.Get(ctx, "goals", "g1")
	require.NoError(t, err)
	assert.Equal(t, "Run", doc.Data["title"])

	require.NoError(t, m.Update(ctx, "goals", "g1", map[string]interface{}{"title": "Swim"}))
	doc, err = m.Get(ctx, "goals", "g1")
	require.NoError(t, err)
	assert.Equal(t, "Swim", doc.Data["title"])
	assert.Equal(t, "o1", doc.Data["ownerId"])

	assert.ErrorIs(t, m.Update(ctx, "goals", "missing", map[string]interface{}{"x": 1}), ErrNotFound)

	require.NoError(t, m.Delete(ctx, "goals", "g1"))
	_, err = m.Get(ctx, "goals", "g1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_QueryEqualityFilter(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "goals", "g1", map[string]interface{}{"ownerId": "o1"}))
	require.NoError(t, m.Set(ctx, "goals", "g2", map[string]interface{}{"ownerId": "o2"}))
	require.NoError(t, m.Set(ctx, "goals", "g3", map[string]interface{}{"ownerId": "o1"}))

	docs, err := m.Query(ctx, "goals", Filter{Field: "ownerId", Value: "o1"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	all, err := m.Query(ctx, "goals")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStore_SubscribeDeliversSnapshots(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	sub, err := m.Subscribe(ctx, "goals", Filter{Field: "ownerId", Value: "o1"})
	require.NoError(t, err)
	defer sub.Stop()

	// Initial snapshot of the (empty) matching set.
	select {
	case docs := <-sub.Updates:
		assert.Empty(t, docs)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	require.NoError(t, m.Set(ctx, "goals", "g1", map[string]interface{}{"ownerId": "o1"}))
	select {
	case docs := <-sub.Updates:
		require.Len(t, docs, 1)
		assert.Equal(t, "g1", docs[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after write")
	}

	// A non-matching write still re-delivers the (filtered) snapshot.
	require.NoError(t, m.Set(ctx, "goals", "g2", map[string]interface{}{"ownerId": "o2"}))
	select {
	case docs := <-sub.Updates:
		assert.Len(t, docs, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after second write")
	}
}

func TestMemoryStore_SubscribeStop(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	sub, err := m.Subscribe(ctx, "goals")
	require.NoError(t, err)
	<-sub.Updates // initial
	sub.Stop()

	require.NoError(t, m.Set(ctx, "goals", "g1", map[string]interface{}{"title": "x"}))
	select {
	case docs, ok := <-sub.Updates:
		if ok {
			t.Fatalf("unexpected snapshot after stop: %v", docs)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_BatchCommit(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "goals", "old", map[string]interface{}{"title": "legacy"}))

	b := m.Batch()
	b.Set("users/o1/goals", "old", map[string]interface{}{"title": "legacy"})
	b.Set("users/o1/goals", "new", map[string]interface{}{"title": "fresh"})
	b.Delete("goals", "old")
	require.NoError(t, b.Commit(ctx))

	_, err := m.Get(ctx, "goals", "old")
	assert.ErrorIs(t, err, ErrNotFound)
	docs, err := m.Query(ctx, "users/o1/goals")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestToMap_DropsUndefinedFields(t *testing.T) {
	type entity struct {
		Title    string `json:"title"`
		Optional string `json:"optional,omitempty"`
	}

	m, err := ToMap(entity{Title: "x"})
	require.NoError(t, err)
	_, present := m["optional"]
	assert.False(t, present)

	var back entity
	require.NoError(t, DataTo(Document{Data: m}, &back))
	assert.Equal(t, "x", back.Title)
}
