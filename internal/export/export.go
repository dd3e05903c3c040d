// Package export writes the task cache as CSV in the format spreadsheet
// imports of the web client expect: title always quoted, optional text
// fields quoted only when present, no trailing newline.
package export

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Joseda-hg/lazytodo/internal/model"
)

const DefaultFileName = "tasks_export.csv"

var header = []string{"ID", "Title", "Notes", "Status", "Date", "Group", "Frequency"}

func WriteCSV(w io.Writer, tasks []model.Task) error {
	lines := make([]string, 0, len(tasks)+1)
	lines = append(lines, strings.Join(header, ","))
	for _, task := range tasks {
		lines = append(lines, strings.Join([]string{
			strconv.FormatInt(task.ID, 10),
			quote(task.Title),
			quoteOptional(task.Notes),
			string(task.Status),
			task.Date,
			quoteOptional(task.Group),
			string(task.Frequency),
		}, ","))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

// WriteFile exports to path, replacing any existing file.
func WriteFile(path string, tasks []model.Task) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := WriteCSV(file, tasks); err != nil {
		file.Close()
		return fmt.Errorf("write export: %w", err)
	}
	return file.Close()
}

func quote(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteOptional(value string) string {
	if value == "" {
		return ""
	}
	return quote(value)
}
