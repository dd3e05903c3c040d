package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Joseda-hg/lazytodo/internal/filter"
	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/session"
)

func statusMarker(status model.Status) string {
	switch status {
	case model.StatusPending:
		return "[~]"
	case model.StatusCompleted:
		return "[x]"
	default:
		return "[ ]"
	}
}

func formatTaskSummary(task model.Task) string {
	parts := []string{statusMarker(task.Status), task.Title}
	if task.Notes != "" {
		parts[1] += " *"
	}
	line := strings.Join(parts, " ")
	if task.Group != "" {
		line += " | " + task.Group
	}
	return line + " | " + task.DateLabel()
}

func formatTaskDetail(task model.Task, draft string, editing bool) string {
	group := task.Group
	if group == "" {
		group = "none"
	}
	lines := []string{
		task.Title,
		fmt.Sprintf("Status: %s", task.Status.Label()),
		fmt.Sprintf("Schedule: %s (%s)", task.DateLabel(), task.Frequency),
		fmt.Sprintf("Category: %s", group),
		"",
	}
	if strings.TrimSpace(task.Notes) == "" {
		lines = append(lines, "No notes")
	} else {
		lines = append(lines, "Notes:", task.Notes)
	}
	if editing {
		lines = append(lines, "", "Unsaved note (n to resume):", draft)
	}
	return strings.Join(lines, "\n")
}

func formatStats(summary filter.Summary) string {
	return strings.Join([]string{
		fmt.Sprintf("Total:       %d", summary.Total),
		fmt.Sprintf("Not Started: %d", summary.NotStarted),
		fmt.Sprintf("In Progress: %d", summary.Pending),
		fmt.Sprintf("Completed:   %d", summary.Completed),
		fmt.Sprintf("Done:        %d%%", summary.Percent()),
	}, "\n")
}

func statusOptions() []string {
	options := []string{"All"}
	for _, status := range model.Statuses {
		options = append(options, status.Label())
	}
	return options
}

func categoryOptions(groups []string) []string {
	return append([]string{"All"}, groups...)
}

// sessionLabel describes when the stored access token runs out.
func sessionLabel(access string, now time.Time) string {
	expires, ok := session.ExpiresAt(access)
	if !ok {
		return "no session"
	}
	relative := humanize.RelTime(expires, now, "ago", "from now")
	if expires.After(now) {
		return "token expires " + relative
	}
	return "token expired " + relative
}
