// Package progress computes goal completion from whichever task encoding a
// goal carries. It is pure: no I/O, no mutation of its input.
package progress

import (
	"math"

	"github.com/arnold/goalsync-api/internal/models"
)

// Kind identifies which task-payload shape drives progress.
type Kind int

const (
	KindNone Kind = iota
	KindRoadmap
	KindTasks
	KindMilestones
)

// Payload is the tagged union of the three task encodings. When legacy data
// populates more than one shape, roadmap wins, then tasks, then milestones.
type Payload struct {
	Roadmap    []models.RoadmapMonth
	Tasks      []models.Task
	Milestones []models.Milestone
}

// FromGoal extracts the task payload of a goal.
func FromGoal(g models.Goal) Payload {
	return Payload{Roadmap: g.Roadmap, Tasks: g.Tasks, Milestones: g.Milestones}
}

// Kind returns the populated shape in priority order.
func (p Payload) Kind() Kind {
	switch {
	case len(p.Roadmap) > 0:
		return KindRoadmap
	case len(p.Tasks) > 0:
		return KindTasks
	case len(p.Milestones) > 0:
		return KindMilestones
	default:
		return KindNone
	}
}

// Flatten returns every task of the selected shape as a single ordered list.
// Milestones are projected into the Task shape.
func (p Payload) Flatten() []models.Task {
	switch p.Kind() {
	case KindRoadmap:
		var tasks []models.Task
		for _, month := range p.Roadmap {
			tasks = append(tasks, month.Tasks...)
		}
		return tasks
	case KindTasks:
		return p.Tasks
	case KindMilestones:
		tasks := make([]models.Task, 0, len(p.Milestones))
		for _, m := range p.Milestones {
			tasks = append(tasks, models.Task{
				ID:          m.ID,
				Title:       m.Title,
				Description: m.Description,
				Completed:   m.Completed,
				CompletedAt: m.CompletedAt,
			})
		}
		return tasks
	default:
		return nil
	}
}

// Compute returns the 0-100 completion percentage of the payload, rounded
// half-up. An empty payload computes to 0.
func Compute(p Payload) int {
	tasks := p.Flatten()
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(tasks))))
}
