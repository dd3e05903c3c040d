// Package filter computes the visible task set from the cached list and the
// current view criteria. Everything here is pure: inputs are never mutated.
package filter

import (
	"sort"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/model"
)

// Apply returns the tasks that pass every active criterion, in input order.
// Daily tasks are pinned to the explicit date when one is set and to today
// otherwise; weekly and monthly tasks are never filtered by date.
func Apply(tasks []model.Task, c model.Criteria, today time.Time) []model.Task {
	day := today.Format(model.DateLayout)
	query := strings.ToLower(c.Query)

	visible := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if matches(task, c, day, query) {
			visible = append(visible, task)
		}
	}
	return visible
}

func matches(task model.Task, c model.Criteria, today, query string) bool {
	if c.Status != "" && task.Status != c.Status {
		return false
	}
	if c.Frequency != "" && task.Frequency != c.Frequency {
		return false
	}
	if c.Group != "" && task.Group != c.Group {
		return false
	}

	if task.Frequency == model.FrequencyDaily {
		want := today
		if c.Date != "" {
			want = c.Date
		}
		if task.Date != want {
			return false
		}
	}

	if query != "" &&
		!strings.Contains(strings.ToLower(task.Title), query) &&
		!strings.Contains(strings.ToLower(task.Notes), query) {
		return false
	}
	return true
}

// Groups lists the distinct non-blank group labels, sorted.
func Groups(tasks []model.Task) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, task := range tasks {
		if strings.TrimSpace(task.Group) == "" {
			continue
		}
		if _, ok := seen[task.Group]; ok {
			continue
		}
		seen[task.Group] = struct{}{}
		result = append(result, task.Group)
	}
	sort.Strings(result)
	return result
}

type Summary struct {
	Total      int `json:"total"`
	NotStarted int `json:"not_started"`
	Pending    int `json:"pending"`
	Completed  int `json:"completed"`
}

// Percent is the share of completed tasks, 0 for an empty list.
func (s Summary) Percent() int {
	if s.Total == 0 {
		return 0
	}
	return s.Completed * 100 / s.Total
}

func Summarize(tasks []model.Task) Summary {
	summary := Summary{Total: len(tasks)}
	for _, task := range tasks {
		switch task.Status {
		case model.StatusNotStarted:
			summary.NotStarted++
		case model.StatusPending:
			summary.Pending++
		case model.StatusCompleted:
			summary.Completed++
		}
	}
	return summary
}
