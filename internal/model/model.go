package model

import "time"

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusNotStarted Status = "not started"
	StatusPending    Status = "pending"
	StatusCompleted  Status = "completed"
)

var Statuses = []Status{StatusNotStarted, StatusPending, StatusCompleted}

// Next returns the status a single toggle moves to. Unknown values restart the cycle.
func (s Status) Next() Status {
	switch s {
	case StatusNotStarted:
		return StatusPending
	case StatusPending:
		return StatusCompleted
	default:
		return StatusNotStarted
	}
}

func (s Status) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not Started"
	case StatusPending:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

var Frequencies = []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly}

type Task struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	Status    Status    `json:"status"`
	Date      string    `json:"date"`
	Group     string    `json:"group,omitempty"`
	Frequency Frequency `json:"frequency"`
}

// DateLabel renders the task's schedule the way the list shows it.
func (t Task) DateLabel() string {
	switch t.Frequency {
	case FrequencyWeekly:
		return "Weekly Task"
	case FrequencyMonthly:
		return "Monthly Task"
	}
	parsed, err := time.Parse(DateLayout, t.Date)
	if err != nil {
		return t.Date
	}
	return parsed.Format("Jan 2")
}

type NewTask struct {
	Title     string
	Group     string
	Frequency Frequency
}

// Patch is a partial update. Nil fields are left to the server.
type Patch struct {
	Title     *string    `json:"title,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	Status    *Status    `json:"status,omitempty"`
	Date      *string    `json:"date,omitempty"`
	Group     *string    `json:"group,omitempty"`
	Frequency *Frequency `json:"frequency,omitempty"`
}

// Criteria is the transient view state used to narrow the task list.
type Criteria struct {
	Status    Status    `json:"status"`
	Frequency Frequency `json:"frequency"`
	Group     string    `json:"group"`
	Date      string    `json:"date"`
	Query     string    `json:"query"`
}

func (c *Criteria) Clear() {
	c.Status = ""
	c.Frequency = ""
	c.Group = ""
	c.Date = ""
}
