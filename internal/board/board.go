// Package board keeps the client-side copy of the task list. The cache only
// ever changes with what the server sends back.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/filter"
	"github.com/Joseda-hg/lazytodo/internal/model"
)

var ErrUnknownTask = errors.New("unknown task")

// Gateway is the subset of the API client the board drives.
type Gateway interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, in model.NewTask, today time.Time) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, patch model.Patch) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

type Board struct {
	gateway Gateway

	mu       sync.Mutex
	tasks    []model.Task
	drafts   map[int64]string
	loadedAt time.Time
}

func New(gateway Gateway) *Board {
	return &Board{gateway: gateway, drafts: make(map[int64]string)}
}

// Load replaces the cache with the server's list.
func (b *Board) Load(ctx context.Context) error {
	tasks, err := b.gateway.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = tasks
	b.loadedAt = time.Now()
	return nil
}

func (b *Board) Create(ctx context.Context, in model.NewTask, today time.Time) (model.Task, error) {
	created, err := b.gateway.CreateTask(ctx, in, today)
	if err != nil {
		return model.Task{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = append([]model.Task{created}, b.tasks...)
	return created, nil
}

func (b *Board) Update(ctx context.Context, id int64, patch model.Patch) (model.Task, error) {
	updated, err := b.gateway.UpdateTask(ctx, id, patch)
	if err != nil {
		return model.Task{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tasks {
		if b.tasks[i].ID == id {
			b.tasks[i] = updated
			break
		}
	}
	return updated, nil
}

func (b *Board) Delete(ctx context.Context, id int64) error {
	if err := b.gateway.DeleteTask(ctx, id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.tasks[:0:0]
	for _, task := range b.tasks {
		if task.ID != id {
			kept = append(kept, task)
		}
	}
	b.tasks = kept
	delete(b.drafts, id)
	return nil
}

// CycleStatus advances a task one step along not started, pending, completed.
func (b *Board) CycleStatus(ctx context.Context, id int64) (model.Task, error) {
	task, ok := b.Get(id)
	if !ok {
		return model.Task{}, fmt.Errorf("cycle status %d: %w", id, ErrUnknownTask)
	}
	next := task.Status.Next()
	return b.Update(ctx, id, model.Patch{Status: &next})
}

// BeginNote opens a draft seeded with the task's current notes, unless one
// is already open.
func (b *Board) BeginNote(id int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if draft, ok := b.drafts[id]; ok {
		return draft, nil
	}
	for _, task := range b.tasks {
		if task.ID == id {
			b.drafts[id] = task.Notes
			return task.Notes, nil
		}
	}
	return "", fmt.Errorf("begin note %d: %w", id, ErrUnknownTask)
}

func (b *Board) EditNote(id int64, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drafts[id] = text
}

func (b *Board) Draft(id int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	draft, ok := b.drafts[id]
	return draft, ok
}

// SaveNote commits the draft, if any. The draft is kept when the server
// rejects it so the text is not lost.
func (b *Board) SaveNote(ctx context.Context, id int64) error {
	draft, ok := b.Draft(id)
	if !ok {
		return nil
	}
	if _, err := b.Update(ctx, id, model.Patch{Notes: &draft}); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.drafts, id)
	return nil
}

func (b *Board) CancelNote(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.drafts, id)
}

func (b *Board) Get(id int64) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, task := range b.tasks {
		if task.ID == id {
			return task, true
		}
	}
	return model.Task{}, false
}

// Tasks returns a copy of the cache, newest first.
func (b *Board) Tasks() []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Task(nil), b.tasks...)
}

func (b *Board) Visible(c model.Criteria, today time.Time) []model.Task {
	return filter.Apply(b.Tasks(), c, today)
}

func (b *Board) Groups() []string {
	return filter.Groups(b.Tasks())
}

func (b *Board) Summary() filter.Summary {
	return filter.Summarize(b.Tasks())
}

func (b *Board) LoadedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadedAt
}

// Reset drops the cache and any drafts, e.g. after logout.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = nil
	b.drafts = make(map[int64]string)
	b.loadedAt = time.Time{}
}
