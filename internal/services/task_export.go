package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
)

const exportSheet = "Tasks"

var exportHeader = []any{"Title", "Status", "Assigned to", "Assigned by", "Subtasks done", "Links", "Created", "Updated"}

// Export renders the project's tasks as an xlsx workbook. It returns the
// workbook bytes and a file name derived from the project name.
func (s *TaskService) Export(ctx context.Context, projectID primitive.ObjectID) ([]byte, string, error) {
	project, err := s.store.FindProjectByID(ctx, projectID)
	if err != nil {
		return nil, "", notFound(err, "Project not found")
	}
	tasks, err := s.List(ctx, projectID)
	if err != nil {
		return nil, "", err
	}

	data, err := renderTaskWorkbook(tasks)
	if err != nil {
		return nil, "", apierr.Internal("Failed to export tasks").Wrap(err)
	}

	log.Printf("📊 [EXPORT] Exported %d tasks of project %s", len(tasks), projectID.Hex())
	return data, exportFilename(project.Name), nil
}

func renderTaskWorkbook(tasks []models.TaskResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "A", "A", 40); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "F", "F", 60); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	for i, t := range tasks {
		done := 0
		for _, st := range t.Subtasks {
			if st.IsCompleted {
				done++
			}
		}
		urls := make([]string, 0, len(t.Links))
		for _, l := range t.Links {
			urls = append(urls, l.URL)
		}

		row := []any{
			t.Title,
			string(t.Status),
			summaryName(t.AssignedTo),
			summaryName(t.AssignedBy),
			fmt.Sprintf("%d/%d", done, len(t.Subtasks)),
			strings.Join(urls, "\n"),
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.UpdatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func summaryName(u *models.UserSummary) string {
	if u == nil {
		return ""
	}
	if u.Fullname != "" {
		return u.Fullname
	}
	return u.Username
}

func exportFilename(projectName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, projectName)
	if name == "" {
		name = "project"
	}
	return name + "-tasks.xlsx"
}
