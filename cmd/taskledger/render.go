package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/GoCodeAlone/taskledger/comms"
	"github.com/GoCodeAlone/taskledger/task"
)

const contentMaxWidth = 50

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// renderer formats CLI output, styling it only when writing to a terminal.
type renderer struct {
	w     io.Writer
	color bool
}

func newRenderer(w io.Writer) renderer {
	return renderer{w: w, color: colorEnabled(w)}
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r renderer) status(t task.Task) string {
	switch {
	case t.Deleted():
		return r.style(mutedStyle, "deleted")
	case t.Completed:
		return r.style(doneStyle, "done")
	default:
		return r.style(pendingStyle, "pending")
	}
}

// table writes rows under headers with columns padded to the widest cell.
// Padding is computed on the unstyled text.
func (r renderer) table(headers []string, rows [][]string, styleCell func(col int, row []string, padded string) string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-utf8.RuneCountInString(s))
	}
	var line []string
	for i, h := range headers {
		line = append(line, r.style(headerStyle, pad(h, widths[i])))
	}
	fmt.Fprintln(r.w, strings.TrimRight(strings.Join(line, "  "), " "))
	for _, row := range rows {
		line = line[:0]
		for i, cell := range row {
			padded := pad(cell, widths[i])
			if styleCell != nil {
				padded = styleCell(i, row, padded)
			}
			line = append(line, padded)
		}
		fmt.Fprintln(r.w, strings.TrimRight(strings.Join(line, "  "), " "))
	}
}

func (r renderer) tasks(tasks []task.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(r.w, "no tasks")
		return
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{fmt.Sprint(t.ID), plainStatus(t), truncate(t.Content, contentMaxWidth)})
	}
	r.table([]string{"ID", "STATUS", "CONTENT"}, rows, func(col int, row []string, padded string) string {
		if col != 1 {
			return padded
		}
		switch row[1] {
		case "done":
			return r.style(doneStyle, padded)
		case "pending":
			return r.style(pendingStyle, padded)
		}
		return r.style(mutedStyle, padded)
	})
}

func (r renderer) task(t task.Task) {
	fmt.Fprintf(r.w, "%s %d\n", r.style(headerStyle, "task"), t.ID)
	fmt.Fprintf(r.w, "  status:    %s\n", r.status(t))
	if !t.Deleted() {
		fmt.Fprintf(r.w, "  content:   %s\n", t.Content)
	}
	fmt.Fprintf(r.w, "  created:   %s\n", formatTime(t.CreatedAt))
	if t.CompletedAt != 0 {
		fmt.Fprintf(r.w, "  completed: %s\n", formatTime(t.CompletedAt))
	}
}

func (r renderer) events(events []comms.Event) {
	if len(events) == 0 {
		fmt.Fprintln(r.w, "no events")
		return
	}
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{formatTime(ev.Timestamp), string(ev.Type), fmt.Sprint(ev.TaskID), truncate(ev.Content, contentMaxWidth)})
	}
	r.table([]string{"TIME", "TYPE", "TASK", "CONTENT"}, rows, func(col int, _ []string, padded string) string {
		if col == 0 {
			return r.style(mutedStyle, padded)
		}
		return padded
	})
}

func plainStatus(t task.Task) string {
	switch {
	case t.Deleted():
		return "deleted"
	case t.Completed:
		return "done"
	default:
		return "pending"
	}
}

func formatTime(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
