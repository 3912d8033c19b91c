// Package export writes an owner's tasks to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/GoCodeAlone/taskledger/task"
)

// SheetName is the worksheet tasks are written to.
const SheetName = "Tasks"

var header = []any{"ID", "Content", "Status", "Created", "Completed"}

// WriteXLSX writes the live tasks in tasks to w as an XLSX workbook.
// Tombstoned slots are skipped.
func WriteXLSX(w io.Writer, owner task.Owner, tasks []task.Task) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", "E1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", "B", 60); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "D", "E", 22); err != nil {
		return err
	}

	row := 2
	for _, t := range task.Live(tasks) {
		status := "pending"
		if t.Completed {
			status = "done"
		}
		values := []any{t.ID, t.Content, status, formatUnix(t.CreatedAt), formatUnix(t.CompletedAt)}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Tasks for " + owner.String(),
		Creator: "taskledger",
	}); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook to path.
func SaveXLSX(path string, owner task.Owner, tasks []task.Task) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteXLSX(out, owner, tasks); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return out.Close()
}

func formatUnix(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
