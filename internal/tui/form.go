package tui

import (
	"fmt"
	"strings"

	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/lazytodo/internal/model"
)

type formField struct {
	Label  string
	Value  string
	Masked bool
}

type formState struct {
	fields []formField
	index  int
}

const (
	fieldTitle = iota
	fieldGroup
	fieldFrequency
)

const (
	loginUsername = iota
	loginPassword
)

func buildTaskFields() []formField {
	return []formField{
		{Label: "Title"},
		{Label: "Category (←→ existing)"},
		{Label: "Frequency (space/←→)", Value: string(model.FrequencyDaily)},
	}
}

func buildLoginFields(username string) []formField {
	return []formField{
		{Label: "Username", Value: username},
		{Label: "Password", Masked: true},
	}
}

func parseTaskFields(fields []formField) model.NewTask {
	return model.NewTask{
		Title:     strings.TrimSpace(fields[fieldTitle].Value),
		Group:     strings.TrimSpace(fields[fieldGroup].Value),
		Frequency: model.Frequency(strings.TrimSpace(fields[fieldFrequency].Value)),
	}
}

func (f *formState) next() {
	if f.index < len(f.fields)-1 {
		f.index++
	}
}

func (f *formState) prev() {
	if f.index > 0 {
		f.index--
	}
}

func renderForm(view *gocui.View, form *formState, footer ...string) {
	if form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range form.fields {
		prefix := "  "
		if index == form.index {
			prefix = "> "
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, displayValue(field))
	}
	for _, line := range footer {
		fmt.Fprintln(view, line)
	}
	current := form.fields[form.index]
	cursorX := len([]rune(current.Label+": ")) + len([]rune(current.Value)) + 2
	view.SetCursor(cursorX, form.index)
}

func displayValue(field formField) string {
	if field.Masked {
		return strings.Repeat("*", len([]rune(field.Value)))
	}
	return field.Value
}

// formEditor feeds keystrokes into whichever form is open: the login form
// on the login screen, the add-task form otherwise.
type formEditor struct {
	ui *UI
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || view == nil {
		return false
	}
	form := ui.activeForm()
	if form == nil {
		return false
	}
	field := &form.fields[form.index]

	if form == ui.form {
		switch form.index {
		case fieldFrequency:
			switch key {
			case gocui.KeyArrowRight, gocui.KeySpace:
				field.Value = string(cycleFrequency(model.Frequency(field.Value), 1))
			case gocui.KeyArrowLeft:
				field.Value = string(cycleFrequency(model.Frequency(field.Value), -1))
			}
			ui.renderActiveForm(view)
			return true
		case fieldGroup:
			switch key {
			case gocui.KeyArrowRight:
				field.Value = cycleOption(ui.groups, field.Value, 1)
				ui.renderActiveForm(view)
				return true
			case gocui.KeyArrowLeft:
				field.Value = cycleOption(ui.groups, field.Value, -1)
				ui.renderActiveForm(view)
				return true
			}
		}
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderActiveForm(view)
	return true
}

func cycleFrequency(current model.Frequency, delta int) model.Frequency {
	order := model.Frequencies
	index := 0
	for i, frequency := range order {
		if frequency == current {
			index = i
			break
		}
	}
	index = (index + delta + len(order)) % len(order)
	return order[index]
}

func cycleOption(options []string, current string, delta int) string {
	if len(options) == 0 {
		return current
	}
	value := strings.TrimSpace(current)
	index := -1
	for i, option := range options {
		if option == value {
			index = i
			break
		}
	}
	if index < 0 {
		if delta > 0 {
			return options[0]
		}
		return options[len(options)-1]
	}
	index = (index + delta + len(options)) % len(options)
	return options[index]
}
