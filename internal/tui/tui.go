package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/lazytodo/internal/api"
	"github.com/Joseda-hg/lazytodo/internal/board"
	"github.com/Joseda-hg/lazytodo/internal/export"
	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/session"
)

const (
	viewHeader     = "header"
	viewFooter     = "footer"
	viewStatuses   = "statuses"
	viewCategories = "categories"
	viewTasks      = "tasks"
	viewDetails    = "details"
	viewStats      = "stats"
	viewSearch     = "search"
	viewDate       = "date"
	viewForm       = "form"
	viewNote       = "note"
	viewHelp       = "help"
	viewLogin      = "login"
)

const (
	msgLoginFailed    = "Invalid email or password"
	msgSessionExpired = "Session expired, please sign in again"
)

// Authenticator is the part of the API client the UI drives directly.
type Authenticator interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
}

type Options struct {
	Auth    Authenticator
	Board   *board.Board
	Session session.Store
	// Route is where the UI starts, normally the result of session.Guard.
	Route      session.Route
	ExportPath string
	Now        func() time.Time
}

type UI struct {
	auth       Authenticator
	board      *board.Board
	session    session.Store
	gui        atomic.Pointer[gocui.Gui]
	now        func() time.Time
	exportPath string

	route    session.Route
	criteria model.Criteria
	tasks    []model.Task
	groups   []string

	selectedStatus   int
	selectedCategory int
	selectedTask     int
	focus            string

	login        *formState
	loginError   string
	form         *formState
	formEditor   *formEditor
	noteTaskID   int64
	searchActive bool
	dateActive   bool
	helpActive   bool
	statsVisible bool
	busy         string
	status       string
}

func New(opts Options) *UI {
	u := &UI{
		auth:       opts.Auth,
		board:      opts.Board,
		session:    opts.Session,
		now:        opts.Now,
		exportPath: opts.ExportPath,
		route:      opts.Route,
		focus:      viewTasks,
	}
	if u.now == nil {
		u.now = time.Now
	}
	if u.exportPath == "" {
		u.exportPath = export.DefaultFileName
	}
	u.formEditor = &formEditor{ui: u}
	if u.route == session.RouteLogin {
		u.login = &formState{fields: buildLoginFields(u.session.Username())}
	}
	return u
}

func (u *UI) Run() error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	gui.Mouse = true
	gui.SetManagerFunc(u.layout)
	if err := u.bindKeys(gui); err != nil {
		return err
	}

	u.gui.Store(gui)
	defer u.gui.Store(nil)

	if u.route == session.RouteTasks {
		u.post(u.reloadTasks)
	}

	if err := gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

// post runs fn on the gocui main loop, or inline when no loop is running.
func (u *UI) post(fn func()) {
	gui := u.gui.Load()
	if gui == nil {
		fn()
		return
	}
	gui.Update(func(*gocui.Gui) error {
		fn()
		return nil
	})
}

// async runs op off the main loop and hands its error to done on the loop.
func (u *UI) async(label string, op func(ctx context.Context) error, done func(err error)) {
	if u.gui.Load() == nil {
		done(op(context.Background()))
		return
	}
	u.busy = label
	go func() {
		err := op(context.Background())
		u.post(func() {
			u.busy = ""
			done(err)
		})
	}()
}

// SessionExpired sends the user back to the login screen. Safe to call from
// any goroutine.
func (u *UI) SessionExpired() {
	u.post(func() {
		if u.route == session.RouteLogin {
			return
		}
		u.toLogin(msgSessionExpired)
	})
}

// Resync reloads the task list in the background unless something else is
// in flight. Safe to call from any goroutine.
func (u *UI) Resync() {
	u.post(func() {
		if u.route == session.RouteTasks && u.busy == "" {
			u.reloadTasks()
		}
	})
}

// DayChanged re-applies the filters after the calendar day rolls over.
func (u *UI) DayChanged() {
	u.post(u.refresh)
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	global := []struct {
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, u.quit},
		{'q', u.quit},
		{'r', u.reload},
		{'g', u.clearFilters},
		{'f', u.cycleFrequencyFilter},
		{'a', u.addTask},
		{'d', u.deleteTask},
		{'x', u.cycleStatus},
		{gocui.KeySpace, u.cycleStatus},
		{'n', u.editNote},
		{'/', u.startSearch},
		{'t', u.startDateFilter},
		{'e', u.exportTasks},
		{'s', u.toggleStats},
		{'L', u.logout},
		{'?', u.toggleHelp},
		{gocui.KeyTab, u.switchFocus},
		{'1', u.focusStatuses},
		{'2', u.focusCategories},
		{'3', u.focusTasks},
		{'4', u.focusDetails},
	}
	for _, binding := range global {
		if err := gui.SetKeybinding("", binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}

	for _, name := range []string{viewStatuses, viewCategories, viewTasks} {
		for _, key := range []any{gocui.KeyArrowDown, 'j'} {
			if err := gui.SetKeybinding(name, key, gocui.ModNone, u.moveDown); err != nil {
				return err
			}
		}
		for _, key := range []any{gocui.KeyArrowUp, 'k'} {
			if err := gui.SetKeybinding(name, key, gocui.ModNone, u.moveUp); err != nil {
				return err
			}
		}
	}

	overlays := []struct {
		view    string
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{viewSearch, gocui.KeyEnter, u.submitSearch},
		{viewSearch, gocui.KeyEsc, u.cancelSearch},
		{viewDate, gocui.KeyEnter, u.submitDateFilter},
		{viewDate, gocui.KeyEsc, u.cancelDateFilter},
		{viewNote, gocui.KeyEnter, u.submitNote},
		{viewNote, gocui.KeyEsc, u.cancelNote},
		{viewForm, gocui.KeyEnter, u.submitForm},
		{viewForm, gocui.KeyTab, u.nextFormField},
		{viewForm, gocui.KeyBacktab, u.prevFormField},
		{viewForm, gocui.KeyArrowDown, u.nextFormField},
		{viewForm, gocui.KeyArrowUp, u.prevFormField},
		{viewForm, gocui.KeyEsc, u.cancelForm},
		{viewLogin, gocui.KeyEnter, u.submitLogin},
		{viewLogin, gocui.KeyTab, u.nextFormField},
		{viewLogin, gocui.KeyBacktab, u.prevFormField},
		{viewLogin, gocui.KeyArrowDown, u.nextFormField},
		{viewLogin, gocui.KeyArrowUp, u.prevFormField},
		{viewHelp, gocui.KeyEsc, u.closeHelp},
		{viewHelp, 'q', u.closeHelp},
		{viewHelp, '?', u.closeHelp},
	}
	for _, binding := range overlays {
		if err := gui.SetKeybinding(binding.view, binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}

	for _, name := range []string{viewStatuses, viewCategories, viewTasks} {
		name := name
		if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: name, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
			return u.onListClick(gui, name, opts)
		}}); err != nil {
			return err
		}
	}
	for _, name := range []string{viewTasks, viewDetails} {
		if err := gui.SetKeybinding(name, gocui.MouseWheelUp, gocui.ModNone, u.scrollUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelDown, gocui.ModNone, u.scrollDown); err != nil {
			return err
		}
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = gocui.ColorDefault
	u.renderHeader(headerView)

	footerY1 := maxY - 2
	if footerY1 < 1 {
		footerY1 = 1
	}
	footerY0 := footerY1 - 2
	if footerY0 < 1 {
		footerY0 = 1
	}
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	footerView.BgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	if u.route == session.RouteLogin {
		for _, name := range []string{viewStatuses, viewCategories, viewTasks, viewDetails, viewStats, viewSearch, viewDate, viewForm, viewNote, viewHelp} {
			_ = gui.DeleteView(name)
		}
		gui.Cursor = true
		return u.showLogin(gui)
	}
	_ = gui.DeleteView(viewLogin)

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom < bodyTop {
		return nil
	}

	layout := computeLayout(maxX, bodyBottom-bodyTop+1)
	leftX0 := 0
	leftX1 := leftX0 + layout.leftWidth - 1
	rightX0 := leftX1 + 1
	if rightX0 >= maxX {
		rightX0 = leftX1
	}
	rightX1 := maxX - 1

	statusesY0 := bodyTop
	statusesY1 := statusesY0 + layout.statusHeight - 1
	categoriesY0 := statusesY1 + 1
	categoriesY1 := bodyBottom

	tasksY0 := bodyTop
	tasksY1 := tasksY0 + layout.tasksHeight - 1
	detailsY0 := tasksY1 + 1
	detailsY1 := bodyBottom

	statusesView, err := gui.SetView(viewStatuses, leftX0, statusesY0, leftX1, statusesY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		statusesView.Title = "1 Status"
	}
	applyViewStyle(statusesView, u.focus == viewStatuses, true)
	renderOptions(statusesView, statusOptions(), u.selectedStatus, u.focus == viewStatuses)

	categoriesView, err := gui.SetView(viewCategories, leftX0, categoriesY0, leftX1, categoriesY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		categoriesView.Title = "2 Categories"
	}
	applyViewStyle(categoriesView, u.focus == viewCategories, true)
	renderOptions(categoriesView, categoryOptions(u.groups), u.selectedCategory, u.focus == viewCategories)

	tasksView, err := gui.SetView(viewTasks, rightX0, tasksY0, rightX1, tasksY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		tasksView.TitleColor = gocui.ColorYellow
	}
	tasksView.Title = fmt.Sprintf("3 Tasks (%d)", len(u.tasks))
	applyViewStyle(tasksView, u.focus == viewTasks, true)
	u.renderTaskList(tasksView)

	detailsView, err := gui.SetView(viewDetails, rightX0, detailsY0, rightX1, detailsY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		detailsView.Title = "4 Details"
	}
	detailsView.Wrap = true
	applyViewStyle(detailsView, u.focus == viewDetails, false)
	u.renderDetails(detailsView)

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if u.statsVisible {
		if err := u.showStats(gui, rightX1); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewStats)
	}

	overlays := []struct {
		active bool
		name   string
		show   func(*gocui.Gui) error
	}{
		{u.searchActive, viewSearch, u.showSearch},
		{u.dateActive, viewDate, u.showDateFilter},
		{u.form != nil, viewForm, u.showForm},
		{u.noteTaskID != 0, viewNote, u.showNote},
		{u.helpActive, viewHelp, u.showHelp},
	}
	for _, overlay := range overlays {
		if overlay.active {
			if err := overlay.show(gui); err != nil {
				return err
			}
		} else {
			_ = gui.DeleteView(overlay.name)
		}
	}

	if !u.inputActive() {
		if current := gui.CurrentView(); current == nil || current.Name() != u.focus {
			_, _ = gui.SetCurrentView(u.focus)
		}
	}

	gui.Cursor = u.searchActive || u.dateActive || u.form != nil || u.noteTaskID != 0

	return nil
}

type layout struct {
	leftWidth    int
	statusHeight int
	tasksHeight  int
}

func computeLayout(width, height int) layout {
	safeWidth := max(width-2, 20)
	safeHeight := max(height, 8)

	leftWidth := safeWidth / 4
	if leftWidth < 22 {
		leftWidth = 22
	}
	if leftWidth > safeWidth-18 {
		leftWidth = safeWidth / 2
	}

	// All plus one row per status, inside a frame.
	statusHeight := len(model.Statuses) + 3
	if statusHeight > safeHeight/2 {
		statusHeight = safeHeight / 2
	}

	tasksHeight := int(float64(safeHeight) * 0.6)
	if tasksHeight < 4 {
		tasksHeight = 4
	}
	if tasksHeight > safeHeight-3 {
		tasksHeight = safeHeight - 3
	}

	return layout{
		leftWidth:    leftWidth,
		statusHeight: statusHeight,
		tasksHeight:  tasksHeight,
	}
}

// refresh recomputes the visible set from the board cache.
func (u *UI) refresh() {
	u.tasks = u.board.Visible(u.criteria, u.now())
	u.groups = u.board.Groups()

	if u.selectedTask >= len(u.tasks) {
		u.selectedTask = max(len(u.tasks)-1, 0)
	}
	if u.selectedCategory > len(u.groups) {
		u.selectedCategory = 0
	}
}

func (u *UI) reloadTasks() {
	u.async("Loading tasks", u.board.Load, func(err error) {
		if u.fail(err) {
			return
		}
		u.status = ""
		u.refresh()
	})
}

// fail reports err on the status line. Expired sessions go back to login.
func (u *UI) fail(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, api.ErrSessionExpired) {
		u.toLogin(msgSessionExpired)
		return true
	}
	u.status = err.Error()
	return true
}

func (u *UI) toLogin(message string) {
	u.route = session.RouteLogin
	u.board.Reset()
	u.tasks = nil
	u.groups = nil
	u.criteria = model.Criteria{}
	u.selectedStatus, u.selectedCategory, u.selectedTask = 0, 0, 0
	u.form = nil
	u.noteTaskID = 0
	u.searchActive, u.dateActive, u.helpActive, u.statsVisible = false, false, false, false
	u.status = ""
	u.login = &formState{fields: buildLoginFields(u.session.Username())}
	u.loginError = message
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	if u.route == session.RouteLogin {
		fmt.Fprint(view, "lazytodo | not signed in")
		return
	}

	query := strings.TrimSpace(u.criteria.Query)
	if query == "" {
		query = "type / to search"
	}
	statusLabel := "any"
	if u.criteria.Status != "" {
		statusLabel = u.criteria.Status.Label()
	}
	frequencyLabel := "any"
	if u.criteria.Frequency != "" {
		frequencyLabel = string(u.criteria.Frequency)
	}
	groupLabel := "all"
	if u.criteria.Group != "" {
		groupLabel = u.criteria.Group
	}
	dateLabel := "today"
	if u.criteria.Date != "" {
		dateLabel = u.criteria.Date
	}

	fmt.Fprintf(view, "Search: %s | Status: %s | Frequency: %s | Category: %s | Date: %s | %s (%s)",
		query, statusLabel, frequencyLabel, groupLabel, dateLabel,
		u.session.Username(), sessionLabel(u.session.Access(), u.now()))
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	if u.route == session.RouteLogin {
		fmt.Fprintln(view, "enter sign in | tab next field | ctrl+c quit")
	} else {
		fmt.Fprintln(view, "a add | space/x status | d delete | n note | / search | t date | f frequency | g clear")
		fmt.Fprintln(view, "e export | s stats | r reload | L logout | tab/1-4 panes | ? help | q quit")
	}
	switch {
	case u.busy != "":
		fmt.Fprint(view, u.busy+"...")
	case u.status != "":
		fmt.Fprint(view, u.status)
	}
}

func renderOptions(view *gocui.View, options []string, selected int, focused bool) {
	view.Clear()
	for i, option := range options {
		prefix := " "
		if i == selected {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, option)
	}
	if focused {
		view.SetCursor(0, min(selected, len(options)-1))
	}
}

func (u *UI) renderTaskList(view *gocui.View) {
	view.Clear()
	if len(u.tasks) == 0 {
		fmt.Fprint(view, "  No tasks found")
		return
	}
	focused := u.focus == viewTasks
	for i, task := range u.tasks {
		prefix := " "
		if i == u.selectedTask {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatTaskSummary(task))
	}
	if focused {
		view.SetCursor(0, min(u.selectedTask, len(u.tasks)-1))
	}
}

func (u *UI) renderDetails(view *gocui.View) {
	view.Clear()
	selected := u.selected()
	if selected == nil {
		fmt.Fprint(view, "No task selected")
		return
	}
	draft, editing := u.board.Draft(selected.ID)
	fmt.Fprint(view, formatTaskDetail(*selected, draft, editing && u.noteTaskID != selected.ID))
}

func (u *UI) selected() *model.Task {
	if u.selectedTask >= 0 && u.selectedTask < len(u.tasks) {
		return &u.tasks[u.selectedTask]
	}
	return nil
}

func (u *UI) onListClick(gui *gocui.Gui, viewName string, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	view, err := gui.View(viewName)
	if err != nil {
		return nil
	}

	_, y0, _, _ := view.Dimensions()
	_, oy := view.Origin()
	row := opts.Y - y0 - 1 + oy
	if row < 0 {
		row = 0
	}

	switch viewName {
	case viewStatuses:
		u.selectStatus(min(row, len(model.Statuses)))
	case viewCategories:
		u.selectCategory(min(row, len(u.groups)))
	case viewTasks:
		u.selectedTask = max(min(row, len(u.tasks)-1), 0)
	}
	return u.setFocus(gui, viewName)
}

func (u *UI) scrollUp(gui *gocui.Gui, view *gocui.View) error {
	if view == nil {
		return nil
	}
	view.ScrollUp(1)
	return nil
}

func (u *UI) scrollDown(gui *gocui.Gui, view *gocui.View) error {
	if view == nil {
		return nil
	}
	view.ScrollDown(1)
	return nil
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	switch u.focus {
	case viewStatuses:
		return u.setFocus(gui, viewCategories)
	case viewCategories:
		return u.setFocus(gui, viewTasks)
	case viewTasks:
		return u.setFocus(gui, viewDetails)
	default:
		return u.setFocus(gui, viewStatuses)
	}
}

func (u *UI) focusStatuses(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewStatuses)
}

func (u *UI) focusCategories(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewCategories)
}

func (u *UI) focusTasks(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewTasks)
}

func (u *UI) focusDetails(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewDetails)
}

func (u *UI) setFocus(gui *gocui.Gui, name string) error {
	if u.inputActive() {
		return nil
	}
	u.focus = name
	if gui != nil {
		_, _ = gui.SetCurrentView(name)
	}
	return nil
}

func (u *UI) moveDown(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewStatuses:
		if u.selectedStatus < len(model.Statuses) {
			u.selectStatus(u.selectedStatus + 1)
		}
	case viewCategories:
		if u.selectedCategory < len(u.groups) {
			u.selectCategory(u.selectedCategory + 1)
		}
	case viewTasks:
		if u.selectedTask < len(u.tasks)-1 {
			u.selectedTask++
		}
	}
	return nil
}

func (u *UI) moveUp(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewStatuses:
		if u.selectedStatus > 0 {
			u.selectStatus(u.selectedStatus - 1)
		}
	case viewCategories:
		if u.selectedCategory > 0 {
			u.selectCategory(u.selectedCategory - 1)
		}
	case viewTasks:
		if u.selectedTask > 0 {
			u.selectedTask--
		}
	}
	return nil
}

// selectStatus applies the status pane row; 0 is All.
func (u *UI) selectStatus(index int) {
	u.selectedStatus = index
	u.criteria.Status = ""
	if index > 0 {
		u.criteria.Status = model.Statuses[index-1]
	}
	u.refresh()
}

// selectCategory applies the categories pane row; 0 is All.
func (u *UI) selectCategory(index int) {
	u.selectedCategory = index
	u.criteria.Group = ""
	if index > 0 && index <= len(u.groups) {
		u.criteria.Group = u.groups[index-1]
	}
	u.refresh()
}

func (u *UI) reload(gui *gocui.Gui, _ *gocui.View) error {
	if u.blocked() {
		return nil
	}
	u.status = ""
	u.reloadTasks()
	return nil
}

func (u *UI) clearFilters(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.criteria.Clear()
	u.selectedStatus = 0
	u.selectedCategory = 0
	u.status = ""
	u.refresh()
	return nil
}

func (u *UI) cycleFrequencyFilter(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.criteria.Frequency {
	case "":
		u.criteria.Frequency = model.Frequencies[0]
	case model.Frequencies[len(model.Frequencies)-1]:
		u.criteria.Frequency = ""
	default:
		u.criteria.Frequency = cycleFrequency(u.criteria.Frequency, 1)
	}
	u.refresh()
	return nil
}

func (u *UI) startSearch(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.searchActive = true
	return nil
}

func (u *UI) submitSearch(gui *gocui.Gui, view *gocui.View) error {
	u.applySearch(view.Buffer())
	return nil
}

func (u *UI) applySearch(value string) {
	u.criteria.Query = strings.TrimSpace(value)
	u.searchActive = false
	u.status = ""
	u.refresh()
}

func (u *UI) cancelSearch(gui *gocui.Gui, _ *gocui.View) error {
	u.searchActive = false
	return nil
}

func (u *UI) startDateFilter(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.dateActive = true
	return nil
}

func (u *UI) submitDateFilter(gui *gocui.Gui, view *gocui.View) error {
	u.applyDate(view.Buffer())
	return nil
}

// applyDate pins daily tasks to the given YYYY-MM-DD; blank goes back to today.
func (u *UI) applyDate(value string) {
	u.dateActive = false
	value = strings.TrimSpace(value)
	if value != "" {
		if _, err := time.Parse(model.DateLayout, value); err != nil {
			u.status = fmt.Sprintf("invalid date %q, use YYYY-MM-DD", value)
			return
		}
	}
	u.criteria.Date = value
	u.status = ""
	u.refresh()
}

func (u *UI) cancelDateFilter(gui *gocui.Gui, _ *gocui.View) error {
	u.dateActive = false
	return nil
}

func (u *UI) addTask(gui *gocui.Gui, _ *gocui.View) error {
	if u.blocked() {
		return nil
	}
	fields := buildTaskFields()
	fields[fieldGroup].Value = u.criteria.Group
	if u.criteria.Frequency != "" {
		fields[fieldFrequency].Value = string(u.criteria.Frequency)
	}
	u.form = &formState{fields: fields}
	return nil
}

func (u *UI) submitForm(gui *gocui.Gui, _ *gocui.View) error {
	if u.form == nil || u.busy != "" {
		return nil
	}
	input := parseTaskFields(u.form.fields)
	u.async("Adding task", func(ctx context.Context) error {
		_, err := u.board.Create(ctx, input, u.now())
		return err
	}, func(err error) {
		if u.fail(err) {
			return
		}
		u.form = nil
		u.status = fmt.Sprintf("Added %q", input.Title)
		u.refresh()
	})
	return nil
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.form = nil
	return nil
}

func (u *UI) activeForm() *formState {
	if u.route == session.RouteLogin {
		return u.login
	}
	return u.form
}

func (u *UI) renderActiveForm(view *gocui.View) {
	if u.route == session.RouteLogin {
		renderForm(view, u.login, "", u.loginError)
		return
	}
	renderForm(view, u.form)
}

func (u *UI) nextFormField(gui *gocui.Gui, view *gocui.View) error {
	form := u.activeForm()
	if form == nil {
		return nil
	}
	form.next()
	u.renderActiveForm(view)
	return nil
}

func (u *UI) prevFormField(gui *gocui.Gui, view *gocui.View) error {
	form := u.activeForm()
	if form == nil {
		return nil
	}
	form.prev()
	u.renderActiveForm(view)
	return nil
}

func (u *UI) cycleStatus(gui *gocui.Gui, _ *gocui.View) error {
	if u.blocked() {
		return nil
	}
	selected := u.selected()
	if selected == nil {
		return nil
	}
	id := selected.ID
	u.async("Updating status", func(ctx context.Context) error {
		_, err := u.board.CycleStatus(ctx, id)
		return err
	}, u.afterMutation)
	return nil
}

func (u *UI) deleteTask(gui *gocui.Gui, _ *gocui.View) error {
	if u.blocked() {
		return nil
	}
	selected := u.selected()
	if selected == nil {
		return nil
	}
	id := selected.ID
	u.async("Deleting task", func(ctx context.Context) error {
		return u.board.Delete(ctx, id)
	}, u.afterMutation)
	return nil
}

func (u *UI) afterMutation(err error) {
	if u.fail(err) {
		return
	}
	u.status = ""
	u.refresh()
}

func (u *UI) editNote(gui *gocui.Gui, _ *gocui.View) error {
	if u.blocked() {
		return nil
	}
	selected := u.selected()
	if selected == nil {
		return nil
	}
	if _, err := u.board.BeginNote(selected.ID); err != nil {
		u.status = err.Error()
		return nil
	}
	u.noteTaskID = selected.ID
	return nil
}

func (u *UI) submitNote(gui *gocui.Gui, view *gocui.View) error {
	u.saveNote(strings.TrimRight(view.Buffer(), "\n"))
	return nil
}

// saveNote commits text as the open task's note. A rejected save keeps the
// draft so reopening the editor restores it.
func (u *UI) saveNote(text string) {
	id := u.noteTaskID
	if id == 0 || u.busy != "" {
		return
	}
	u.board.EditNote(id, text)
	u.noteTaskID = 0
	u.async("Saving note", func(ctx context.Context) error {
		return u.board.SaveNote(ctx, id)
	}, func(err error) {
		if u.fail(err) {
			return
		}
		u.status = "Note saved"
		u.refresh()
	})
}

func (u *UI) cancelNote(gui *gocui.Gui, _ *gocui.View) error {
	if u.noteTaskID != 0 {
		u.board.CancelNote(u.noteTaskID)
	}
	u.noteTaskID = 0
	return nil
}

func (u *UI) exportTasks(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	tasks := u.board.Tasks()
	if err := export.WriteFile(u.exportPath, tasks); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = fmt.Sprintf("Exported %d tasks to %s", len(tasks), u.exportPath)
	return nil
}

func (u *UI) toggleStats(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.statsVisible = !u.statsVisible
	return nil
}

func (u *UI) submitLogin(gui *gocui.Gui, _ *gocui.View) error {
	if u.login == nil || u.busy != "" {
		return nil
	}
	username := strings.TrimSpace(u.login.fields[loginUsername].Value)
	password := u.login.fields[loginPassword].Value
	if username == "" || password == "" {
		u.loginError = "Username and password are required"
		return nil
	}
	u.loginError = ""

	u.async("Signing in", func(ctx context.Context) error {
		return u.auth.Login(ctx, username, password)
	}, func(err error) {
		if err != nil {
			log.Printf("sign in as %s failed: %v", username, err)
			u.login.fields[loginPassword].Value = ""
			u.loginError = msgLoginFailed
			return
		}
		u.route = session.RouteTasks
		u.login = nil
		u.loginError = ""
		u.focus = viewTasks
		u.reloadTasks()
	})
	return nil
}

func (u *UI) logout(gui *gocui.Gui, _ *gocui.View) error {
	if u.blocked() {
		return nil
	}
	u.async("Signing out", u.auth.Logout, func(err error) {
		u.toLogin("")
		if err != nil {
			u.loginError = err.Error()
		}
	})
	return nil
}

func (u *UI) toggleHelp(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	return nil
}

func (u *UI) inputActive() bool {
	return u.route == session.RouteLogin || u.searchActive || u.dateActive || u.form != nil || u.noteTaskID != 0 || u.helpActive
}

// blocked is inputActive plus any network call still in flight.
func (u *UI) blocked() bool {
	return u.inputActive() || u.busy != ""
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
	}
}
