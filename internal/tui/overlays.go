package tui

import (
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

// centered returns the corners of a width x height box in the middle of the screen.
func centered(gui *gocui.Gui, width, height int) (int, int, int, int) {
	maxX, maxY := gui.Size()
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	return x0, y0, x0 + width, y0 + height
}

func (u *UI) showLogin(gui *gocui.Gui) error {
	maxX, _ := gui.Size()
	x0, y0, x1, y1 := centered(gui, max(44, maxX/3), 5)

	view, err := gui.SetView(viewLogin, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Sign in"
		view.Wrap = true
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderActiveForm(view)
	_, _ = gui.SetCurrentView(viewLogin)
	return nil
}

func (u *UI) showSearch(gui *gocui.Gui) error {
	return u.showInput(gui, viewSearch, "Search (title or notes)", u.criteria.Query)
}

func (u *UI) showDateFilter(gui *gocui.Gui) error {
	return u.showInput(gui, viewDate, "Date YYYY-MM-DD (blank for today)", u.criteria.Date)
}

func (u *UI) showInput(gui *gocui.Gui, name, title, initial string) error {
	maxX, _ := gui.Size()
	x0, y0, x1, y1 := centered(gui, max(30, maxX/2), 2)

	view, err := gui.SetView(name, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = title
		view.Wrap = true
		view.Clear()
		fmt.Fprint(view, initial)
		view.SetCursor(len([]rune(initial)), 0)
	}
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	_, _ = gui.SetCurrentView(name)
	return nil
}

func (u *UI) showForm(gui *gocui.Gui) error {
	if u.form == nil {
		return nil
	}

	maxX, _ := gui.Size()
	x0, y0, x1, y1 := centered(gui, max(50, maxX/2), len(u.form.fields)+1)

	view, err := gui.SetView(viewForm, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "New Task"
		view.Wrap = true
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderActiveForm(view)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) showNote(gui *gocui.Gui) error {
	task, ok := u.board.Get(u.noteTaskID)
	if !ok {
		u.noteTaskID = 0
		return nil
	}

	maxX, maxY := gui.Size()
	x0, y0, x1, y1 := centered(gui, max(50, maxX/2), max(4, maxY/4))

	view, err := gui.SetView(viewNote, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = fmt.Sprintf("Note: %s (enter save, esc cancel)", task.Title)
		view.Wrap = true
		draft, _ := u.board.Draft(task.ID)
		view.Clear()
		fmt.Fprint(view, draft)
		lines := strings.Split(draft, "\n")
		view.SetCursor(len([]rune(lines[len(lines)-1])), len(lines)-1)
	}
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	_, _ = gui.SetCurrentView(viewNote)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, _ := gui.Size()
	text := helpText()
	x0, y0, x1, y1 := centered(gui, max(60, maxX/2), strings.Count(text, "\n")+2)

	view, err := gui.SetView(viewHelp, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, text)
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

// showStats pins the summary box to the top right corner of the task pane.
func (u *UI) showStats(gui *gocui.Gui, right int) error {
	width := 22
	view, err := gui.SetView(viewStats, right-width, 1, right, 7, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Stats"
		view.TitleColor = gocui.ColorGreen
	}
	view.Clear()
	fmt.Fprint(view, formatStats(u.board.Summary()))
	_, _ = gui.SetViewOnTop(viewStats)
	return nil
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  Tab cycle panes | 1 Status | 2 Categories | 3 Tasks | 4 Details",
		"  j/k or arrows move selection (Status and Categories filter as you move)",
		"  mouse click to focus/select",
		"",
		"Tasks:",
		"  a add task | space/x cycle status | d delete",
		"  n edit note (enter save, esc cancel)",
		"",
		"Filters:",
		"  / search title and notes | t date for daily tasks | f cycle frequency",
		"  g clear filters (search is kept)",
		"",
		"Other:",
		"  e export CSV | s toggle stats | r reload | L logout",
		"  ? help | esc/q close help | q quit",
	}, "\n")
}
