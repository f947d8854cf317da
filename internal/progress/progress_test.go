package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/goalsync-api/internal/models"
)

func tasks(completed, total int) []models.Task {
	out := make([]models.Task, total)
	for i := range out {
		out[i] = models.Task{ID: string(rune('a' + i)), Title: "t", Completed: i < completed}
	}
	return out
}

func TestCompute_FlatTasks(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      int
	}{
		{"empty", 0, 0, 0},
		{"none done", 0, 4, 0},
		{"one of four", 1, 4, 25},
		{"all done", 4, 4, 100},
		{"rounds half up", 1, 8, 13}, // 12.5 -> 13
		{"one third", 1, 3, 33},      // 33.33 -> 33
		{"two thirds", 2, 3, 67},     // 66.66 -> 67
		{"five of six", 5, 6, 83},    // 83.33 -> 83
		{"one of six", 1, 6, 17},     // 16.66 -> 17
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(Payload{Tasks: tasks(tt.completed, tt.total)})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompute_RoadmapFlattensAllMonths(t *testing.T) {
	p := Payload{Roadmap: []models.RoadmapMonth{
		{Month: 1, Tasks: tasks(3, 3)},
		{Month: 2, Tasks: tasks(0, 3)},
	}}
	assert.Equal(t, 50, Compute(p))
	assert.Len(t, p.Flatten(), 6)
}

func TestCompute_Milestones(t *testing.T) {
	p := Payload{Milestones: []models.Milestone{
		{ID: "m-0", Completed: true},
		{ID: "m-1", Completed: false},
	}}
	assert.Equal(t, KindMilestones, p.Kind())
	assert.Equal(t, 50, Compute(p))
}

func TestKind_PriorityOrder(t *testing.T) {
	// Legacy data can populate several shapes at once; the roadmap wins,
	// then the flat task list, then milestones.
	all := Payload{
		Roadmap:    []models.RoadmapMonth{{Month: 1, Tasks: tasks(1, 1)}},
		Tasks:      tasks(0, 2),
		Milestones: []models.Milestone{{ID: "m-0"}},
	}
	require.Equal(t, KindRoadmap, all.Kind())
	assert.Equal(t, 100, Compute(all))

	noRoadmap := Payload{Tasks: tasks(0, 2), Milestones: []models.Milestone{{ID: "m-0", Completed: true}}}
	require.Equal(t, KindTasks, noRoadmap.Kind())
	assert.Equal(t, 0, Compute(noRoadmap))

	assert.Equal(t, KindNone, Payload{}.Kind())
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	in := tasks(1, 3)
	_ = Compute(Payload{Tasks: in})
	assert.True(t, in[0].Completed)
	assert.False(t, in[1].Completed)
}
